package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"creaverse/db"
	"creaverse/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateProposalInput struct {
	AuthorID    int64      `json:"-"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Quorum      float64    `json:"quorum_threshold"`
	StartsAt    *time.Time `json:"starts_at"`
}

type GovernanceService struct {
	bus           Publisher
	defaultQuorum float64
	votingPeriod  time.Duration
	now           func() time.Time
}

func NewGovernanceService(bus Publisher, defaultQuorum float64, votingPeriod time.Duration) *GovernanceService {
	return &GovernanceService{
		bus:           bus,
		defaultQuorum: defaultQuorum,
		votingPeriod:  votingPeriod,
		now:           time.Now,
	}
}

// CreateProposal opens a proposal. It is active right away unless StartsAt is
// in the future.
func (s *GovernanceService) CreateProposal(ctx context.Context, in CreateProposalInput) (*models.Proposal, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Quorum < 0 {
		return nil, fmt.Errorf("%w: quorum is negative", ErrInvalidInput)
	}

	now := s.now().UTC()
	startsAt := now
	if in.StartsAt != nil && in.StartsAt.After(now) {
		startsAt = in.StartsAt.UTC()
	}
	quorum := in.Quorum
	if quorum == 0 {
		quorum = s.defaultQuorum
	}
	status := models.ProposalActive
	if startsAt.After(now) {
		status = models.ProposalPending
	}

	p := &models.Proposal{
		AuthorID:        in.AuthorID,
		Title:           title,
		Description:     strings.TrimSpace(in.Description),
		QuorumThreshold: quorum,
		Status:          status,
		StartsAt:        startsAt,
		EndsAt:          startsAt.Add(s.votingPeriod),
	}
	if err := db.GetWriteDB(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}
	slog.InfoContext(ctx, "proposal created", "proposal_id", p.ID, "status", p.Status)
	return p, nil
}

// CastVote records one vote weighted by the voter's power and updates the
// tallies in the same transaction.
func (s *GovernanceService) CastVote(ctx context.Context, proposalID, voterID int64, voteType models.VoteType) (*models.Vote, error) {
	if !voteType.Valid() {
		return nil, fmt.Errorf("%w: vote type %q", ErrInvalidInput, voteType)
	}
	now := s.now().UTC()

	var vote *models.Vote
	err := db.GetWriteDB(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Proposal
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, proposalID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("proposal %d: %w", proposalID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		if p.Status == models.ProposalPending && !now.Before(p.StartsAt) {
			p.Status = models.ProposalActive
			if err := tx.Model(&p).Update("status", p.Status).Error; err != nil {
				return err
			}
		}
		if p.Status != models.ProposalActive || now.Before(p.StartsAt) || !now.Before(p.EndsAt) {
			return ErrVotingClosed
		}

		var voter models.User
		if err := tx.Select("id", "voting_power").First(&voter, voterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("voter %d: %w", voterID, ErrNotFound)
			}
			return err
		}
		power := voter.VotingPower
		if power <= 0 {
			power = 1
		}

		vote = &models.Vote{ProposalID: proposalID, VoterID: voterID, Type: voteType, VotingPower: power}
		err = tx.Create(vote).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyVoted
		}
		if err != nil {
			return err
		}

		column := tallyColumn(voteType)
		return tx.Model(&models.Proposal{}).Where("id = ?", proposalID).
			UpdateColumn(column, gorm.Expr(column+" + ?", power)).Error
	})
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		_ = s.bus.Publish(ctx, NewEvent(EventVoteCast, voterID, voterID, proposalID, "", vote))
	}
	return vote, nil
}

func tallyColumn(v models.VoteType) string {
	switch v {
	case models.VoteFor:
		return "votes_for"
	case models.VoteAgainst:
		return "votes_against"
	}
	return "votes_abstain"
}

// Outcome decides a closed proposal: it passes when the combined power meets
// the quorum and "for" outweighs "against".
func Outcome(p models.Proposal) models.ProposalStatus {
	if p.QuorumReached() && p.VotesFor > p.VotesAgainst {
		return models.ProposalPassed
	}
	return models.ProposalRejected
}

// Finalize closes the proposal once its voting window has ended. Finalizing an
// already decided proposal returns it unchanged.
func (s *GovernanceService) Finalize(ctx context.Context, proposalID int64, now time.Time) (*models.Proposal, error) {
	var p models.Proposal
	decided := false
	err := db.GetWriteDB(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, proposalID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("proposal %d: %w", proposalID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if p.Status == models.ProposalPassed || p.Status == models.ProposalRejected {
			return nil
		}
		if now.Before(p.EndsAt) {
			return ErrVotingOpen
		}

		p.Status = Outcome(p)
		decided = true
		return tx.Model(&p).Update("status", p.Status).Error
	})
	if err != nil {
		return nil, err
	}

	if decided {
		slog.InfoContext(ctx, "proposal finalized", "proposal_id", p.ID, "status", p.Status,
			"for", p.VotesFor, "against", p.VotesAgainst, "abstain", p.VotesAbstain)
		if s.bus != nil {
			_ = s.bus.Publish(ctx, NewEvent(EventToken, p.AuthorID, 0, p.ID,
				fmt.Sprintf("your proposal %q was %s", p.Title, p.Status), nil))
		}
	}
	return &p, nil
}

// Activate opens pending proposals whose start time has come.
func (s *GovernanceService) Activate(ctx context.Context, now time.Time) (int64, error) {
	res := db.GetWriteDB(ctx).Model(&models.Proposal{}).
		Where("status = ? AND starts_at <= ?", models.ProposalPending, now.UTC()).
		Update("status", models.ProposalActive)
	return res.RowsAffected, res.Error
}

// FinalizeDue finalizes every open proposal whose window has ended.
func (s *GovernanceService) FinalizeDue(ctx context.Context, now time.Time) (int, error) {
	var ids []int64
	err := db.GetReadOnlyDB(ctx).Model(&models.Proposal{}).
		Where("status IN ? AND ends_at <= ?", []models.ProposalStatus{models.ProposalActive, models.ProposalPending}, now.UTC()).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	finalized := 0
	for _, id := range ids {
		if _, err := s.Finalize(ctx, id, now); err != nil {
			slog.ErrorContext(ctx, "failed to finalize proposal", "proposal_id", id, "error", err)
			continue
		}
		finalized++
	}
	return finalized, nil
}

// RunFinalizer activates and finalizes proposals on every tick until ctx is
// done.
func (s *GovernanceService) RunFinalizer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			if n, err := s.Activate(ctx, now); err != nil {
				slog.ErrorContext(ctx, "proposal activation failed", "error", err)
			} else if n > 0 {
				slog.InfoContext(ctx, "proposals activated", "count", n)
			}
			if _, err := s.FinalizeDue(ctx, now); err != nil {
				slog.ErrorContext(ctx, "proposal finalization failed", "error", err)
			}
		}
	}
}

func (s *GovernanceService) GetProposal(ctx context.Context, id int64) (*models.Proposal, error) {
	var p models.Proposal
	err := db.GetReadOnlyDB(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("proposal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GovernanceService) ListProposals(ctx context.Context, status models.ProposalStatus) ([]models.Proposal, error) {
	query := db.GetReadOnlyDB(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	proposals := []models.Proposal{}
	if err := query.Order("created_at DESC, id DESC").Find(&proposals).Error; err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return proposals, nil
}

// GetVote returns the voter's ballot on the proposal.
func (s *GovernanceService) GetVote(ctx context.Context, proposalID, voterID int64) (*models.Vote, error) {
	var v models.Vote
	err := db.GetReadOnlyDB(ctx).Where("proposal_id = ? AND voter_id = ?", proposalID, voterID).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
