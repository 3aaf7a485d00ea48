package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/storage"
)

// Storage is an in-memory implementation of both store interfaces,
// used in tests and for local development.
type Storage struct {
	mu sync.RWMutex

	nextUserID    model.UserID
	users         map[model.UserID]*model.User
	usernameIndex map[string]model.UserID
	emailIndex    map[string]model.UserID

	polls map[model.PollID]*model.Poll
	votes map[voteKey]*model.Vote
}

type voteKey struct {
	pollID model.PollID
	userID model.UserID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		nextUserID:    1,
		users:         make(map[model.UserID]*model.User),
		usernameIndex: make(map[string]model.UserID),
		emailIndex:    make(map[string]model.UserID),
		polls:         make(map[model.PollID]*model.Poll),
		votes:         make(map[voteKey]*model.Vote),
	}
}

// Ensure Storage implements both interfaces
var (
	_ storage.UserStore = (*Storage)(nil)
	_ storage.PollStore = (*Storage)(nil)
)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) (model.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usernameIndex[user.Username]; ok {
		return 0, model.ErrUsernameExists
	}
	if _, ok := s.emailIndex[strings.ToLower(user.Email)]; ok {
		return 0, model.ErrEmailExists
	}

	id := s.nextUserID
	s.nextUserID++

	stored := *user
	stored.ID = id
	s.users[id] = &stored
	s.usernameIndex[stored.Username] = id
	s.emailIndex[strings.ToLower(stored.Email)] = id

	return id, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id model.UserID) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[strings.ToLower(email)]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	copied := *s.users[id]
	return &copied, nil
}

func (s *Storage) UpdateUsername(ctx context.Context, id model.UserID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	if user.UsernameChanged {
		return model.ErrUsernameAlreadyChanged
	}
	if existing, ok := s.usernameIndex[username]; ok && existing != id {
		return model.ErrUsernameExists
	}

	delete(s.usernameIndex, user.Username)
	user.Username = username
	user.UsernameChanged = true
	s.usernameIndex[username] = id
	return nil
}

func (s *Storage) UpdatePassword(ctx context.Context, id model.UserID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	delete(s.usernameIndex, user.Username)
	delete(s.emailIndex, strings.ToLower(user.Email))
	delete(s.users, id)
	return nil
}

// Poll operations

// SavePoll stores a poll directly; used to seed tests and development data
func (s *Storage) SavePoll(ctx context.Context, poll *model.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *poll
	s.polls[poll.ID] = &copied
	return nil
}

func (s *Storage) ActivePoll(ctx context.Context) (*model.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Poll
	for _, poll := range s.polls {
		if !poll.IsActive {
			continue
		}
		if latest == nil || poll.ID > latest.ID {
			latest = poll
		}
	}
	if latest == nil {
		return nil, model.ErrNoActivePoll
	}
	copied := *latest
	return &copied, nil
}

func (s *Storage) GetPoll(ctx context.Context, id model.PollID) (*model.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[id]
	if !ok {
		return nil, model.ErrPollNotFound
	}
	copied := *poll
	return &copied, nil
}

func (s *Storage) Tally(ctx context.Context, id model.PollID) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	poll, ok := s.polls[id]
	if !ok {
		return nil, model.ErrPollNotFound
	}

	tally := make(map[string]int, len(poll.Options))
	for _, option := range poll.Options {
		tally[option] = 0
	}
	for key, vote := range s.votes {
		if key.pollID == id {
			tally[vote.Option]++
		}
	}
	return tally, nil
}

func (s *Storage) RecordVote(ctx context.Context, pollID model.PollID, userID model.UserID, option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return model.ErrPollNotFound
	}

	valid := false
	for _, o := range poll.Options {
		if o == option {
			valid = true
			break
		}
	}
	if !valid {
		return model.ErrUnknownOption
	}

	username := ""
	if user, ok := s.users[userID]; ok {
		username = user.Username
	}

	key := voteKey{pollID: pollID, userID: userID}
	if existing, ok := s.votes[key]; ok {
		existing.Option = option
		return nil
	}
	s.votes[key] = &model.Vote{
		PollID:   pollID,
		UserID:   userID,
		Username: username,
		Option:   option,
	}
	return nil
}

func (s *Storage) UserVote(ctx context.Context, pollID model.PollID, userID model.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[voteKey{pollID: pollID, userID: userID}]
	if !ok {
		return "", nil
	}
	return vote.Option, nil
}

func (s *Storage) VotesByUser(ctx context.Context, userID model.UserID) ([]model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var votes []model.Vote
	for key, vote := range s.votes {
		if key.userID == userID {
			votes = append(votes, *vote)
		}
	}
	return votes, nil
}

func (s *Storage) DeleteVotesForUser(ctx context.Context, userID model.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.votes {
		if key.userID == userID {
			delete(s.votes, key)
		}
	}
	return nil
}
