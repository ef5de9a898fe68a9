package models

import "time"

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalActive   ProposalStatus = "active"
	ProposalPassed   ProposalStatus = "passed"
	ProposalRejected ProposalStatus = "rejected"
)

type VoteType string

const (
	VoteFor     VoteType = "for"
	VoteAgainst VoteType = "against"
	VoteAbstain VoteType = "abstain"
)

func (v VoteType) Valid() bool {
	return v == VoteFor || v == VoteAgainst || v == VoteAbstain
}

type Proposal struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID        int64          `gorm:"index;not null" json:"author_id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	VotesFor        float64        `gorm:"default:0" json:"votes_for"`
	VotesAgainst    float64        `gorm:"default:0" json:"votes_against"`
	VotesAbstain    float64        `gorm:"default:0" json:"votes_abstain"`
	QuorumThreshold float64        `json:"quorum_threshold"`
	Status          ProposalStatus `gorm:"size:16;index" json:"status"`
	StartsAt        time.Time      `json:"starts_at"`
	EndsAt          time.Time      `gorm:"index" json:"ends_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TotalPower is the combined voting power cast, abstentions included.
func (p Proposal) TotalPower() float64 {
	return p.VotesFor + p.VotesAgainst + p.VotesAbstain
}

// QuorumReached reports whether the combined power meets the threshold.
func (p Proposal) QuorumReached() bool {
	return p.TotalPower() >= p.QuorumThreshold
}

type Vote struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProposalID  int64     `gorm:"uniqueIndex:vote_once;not null" json:"proposal_id"`
	VoterID     int64     `gorm:"uniqueIndex:vote_once;not null" json:"voter_id"`
	Type        VoteType  `gorm:"size:16;not null" json:"type"`
	VotingPower float64   `json:"voting_power"`
	CreatedAt   time.Time `json:"created_at"`
}
