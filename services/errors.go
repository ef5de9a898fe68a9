package services

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrNotParticipant     = errors.New("user is not a participant of the conversation")
	ErrSelfConversation   = errors.New("cannot start a conversation with yourself")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAlreadyVoted       = errors.New("already voted on this proposal")
	ErrVotingClosed       = errors.New("voting is closed")
	ErrVotingOpen         = errors.New("voting is still open")
	ErrForbidden          = errors.New("forbidden")
	ErrUnavailable        = errors.New("service is not configured")
)
