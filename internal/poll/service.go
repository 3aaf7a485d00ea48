package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/storage"
)

// Broadcaster pushes poll updates to every connected client
type Broadcaster interface {
	ToAll(event string, data any)
}

// Service answers poll queries and records votes. Counting is delegated
// to the store so concurrent votes stay consistent across processes.
type Service struct {
	store       storage.PollStore
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewService creates a new poll service
func NewService(store storage.PollStore, broadcaster Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "poll")),
	}
}

// Active returns the active poll with its current tally. Options nobody
// has voted for yet are present with a zero count.
func (s *Service) Active(ctx context.Context) (*model.PollView, error) {
	p, err := s.store.ActivePoll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active poll: %w", err)
	}
	return s.view(ctx, p)
}

// View returns the tallied view of a specific poll
func (s *Service) View(ctx context.Context, id model.PollID) (*model.PollView, error) {
	p, err := s.store.GetPoll(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll %d: %w", id, err)
	}
	return s.view(ctx, p)
}

func (s *Service) view(ctx context.Context, p *model.Poll) (*model.PollView, error) {
	tally, err := s.store.Tally(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally poll %d: %w", p.ID, err)
	}

	options := make(map[string]int, len(p.Options))
	for _, option := range p.Options {
		options[option] = tally[option]
	}
	return &model.PollView{
		ID:       p.ID,
		Question: p.Question,
		Options:  options,
	}, nil
}

// Vote records one vote for the active poll on behalf of a resolved
// identity and broadcasts the refreshed tally. Anonymous connections
// cannot vote.
func (s *Service) Vote(ctx context.Context, identity model.Identity, option string) (*model.PollView, error) {
	if !identity.Resolved {
		return nil, model.ErrAnonymousVote
	}

	p, err := s.store.ActivePoll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active poll: %w", err)
	}

	if err := s.store.RecordVote(ctx, p.ID, identity.ID, option); err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	s.logger.Info("vote recorded",
		slog.Int64("poll_id", int64(p.ID)),
		slog.Int64("user_id", int64(identity.ID)),
		slog.String("option", option))

	view, err := s.view(ctx, p)
	if err != nil {
		return nil, err
	}
	s.broadcaster.ToAll(model.EventPollUpdate, view)
	return view, nil
}

// BroadcastCurrent pushes the active poll's tally to everyone, typically
// after out-of-band changes such as account deletion pruning vote rows.
// With no active poll this is a no-op.
func (s *Service) BroadcastCurrent(ctx context.Context) {
	view, err := s.Active(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrNoActivePoll) {
			s.logger.Warn("failed to broadcast poll", slog.Any("error", err))
		}
		return
	}
	s.broadcaster.ToAll(model.EventPollUpdate, view)
}

// VotesByUser lists every vote a user has cast, for profile export
func (s *Service) VotesByUser(ctx context.Context, userID model.UserID) ([]model.Vote, error) {
	votes, err := s.store.VotesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes for user %d: %w", userID, err)
	}
	return votes, nil
}
