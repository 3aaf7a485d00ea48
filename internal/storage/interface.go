package storage

import (
	"context"

	"github.com/klubhuset/backend/internal/model"
)

// UserStore is the user directory consulted for identity resolution
// and account management.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) (model.UserID, error)
	GetUserByID(ctx context.Context, id model.UserID) (*model.User, error)
	// GetUserByUsername matches the username exactly
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateUsername enforces the one-time change flag
	UpdateUsername(ctx context.Context, id model.UserID, username string) error
	UpdatePassword(ctx context.Context, id model.UserID, passwordHash string) error
	DeleteUser(ctx context.Context, id model.UserID) error
}

// PollStore holds polls and their durable vote rows.
type PollStore interface {
	ActivePoll(ctx context.Context) (*model.Poll, error)
	GetPoll(ctx context.Context, id model.PollID) (*model.Poll, error)
	// Tally returns vote counts per option, equal to the count of vote
	// rows for that option
	Tally(ctx context.Context, id model.PollID) (map[string]int, error)
	// RecordVote atomically upserts one user's vote. Re-voting the same
	// option is an idempotent success; changing a vote moves exactly one
	// count from the old option to the new one.
	RecordVote(ctx context.Context, pollID model.PollID, userID model.UserID, option string) error
	UserVote(ctx context.Context, pollID model.PollID, userID model.UserID) (string, error)
	VotesByUser(ctx context.Context, userID model.UserID) ([]model.Vote, error)
	DeleteVotesForUser(ctx context.Context, userID model.UserID) error
}
