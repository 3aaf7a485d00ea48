package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/storage"
)

// Account validation rules
const (
	MinUsernameLength = 3
	MinPasswordLength = 6
)

// Validation errors returned to clients verbatim
var (
	ErrUsernameTooShort = fmt.Errorf("username must be at least %d characters", MinUsernameLength)
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrEmailRequired    = errors.New("a valid email address is required")
)

// Service handles account management: registration, login, and the
// self-service profile operations.
type Service struct {
	users  storage.UserStore
	polls  storage.PollStore
	tokens *TokenService
	logger *slog.Logger
}

// NewService creates a new account service
func NewService(users storage.UserStore, polls storage.PollStore, tokens *TokenService, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		polls:  polls,
		tokens: tokens,
		logger: logger.With(slog.String("component", "accounts")),
	}
}

// HashPassword produces a bcrypt hash suitable for the user directory
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || !strings.Contains(email[at:], ".") {
		return ErrEmailRequired
	}
	return nil
}

// Register creates a new account with the User role and returns it
// together with a session token.
func (s *Service) Register(ctx context.Context, username, email, password string) (*model.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if len(username) < MinUsernameLength {
		return nil, "", ErrUsernameTooShort
	}
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if len(password) < MinPasswordLength {
		return nil, "", ErrPasswordTooShort
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, "", err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	id, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return nil, "", err
	}
	user.ID = id

	token, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("account registered",
		slog.Int64("user_id", int64(id)),
		slog.String("username", username))
	return user, token, nil
}

// Login verifies credentials and issues a session token. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, "", model.ErrInvalidCredentials
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", model.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("login", slog.String("username", user.Username))
	return user, token, nil
}

// UsernameAvailable reports whether no account holds the username
func (s *Service) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	_, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, model.ErrUserNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// EmailAvailable reports whether no account holds the email
func (s *Service) EmailAvailable(ctx context.Context, email string) (bool, error) {
	_, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, model.ErrUserNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// GetUser loads an account by username
func (s *Service) GetUser(ctx context.Context, username string) (*model.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}

// ChangeUsername renames an account. The one-time-change rule is
// enforced by the store. A fresh token for the new name is returned
// so the client stays logged in.
func (s *Service) ChangeUsername(ctx context.Context, user *model.User, newUsername string) (string, error) {
	newUsername = strings.TrimSpace(newUsername)
	if len(newUsername) < MinUsernameLength {
		return "", ErrUsernameTooShort
	}

	if err := s.users.UpdateUsername(ctx, user.ID, newUsername); err != nil {
		return "", err
	}

	s.logger.Info("username changed",
		slog.String("old", user.Username),
		slog.String("new", newUsername))
	return s.tokens.Issue(newUsername, user.Role)
}

// ChangePassword verifies the current password before storing a new one
func (s *Service) ChangePassword(ctx context.Context, user *model.User, currentPassword, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return model.ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.String("username", user.Username))
	return nil
}

// DeleteAccount removes an account and its votes
func (s *Service) DeleteAccount(ctx context.Context, user *model.User) error {
	if err := s.polls.DeleteVotesForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete votes for user %d: %w", user.ID, err)
	}
	if err := s.users.DeleteUser(ctx, user.ID); err != nil {
		return err
	}

	s.logger.Info("account deleted",
		slog.Int64("user_id", int64(user.ID)),
		slog.String("username", user.Username))
	return nil
}

// Export collects everything stored about an account, for download
func (s *Service) Export(ctx context.Context, user *model.User) ([]model.Vote, error) {
	votes, err := s.polls.VotesByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes for user %d: %w", user.ID, err)
	}
	return votes, nil
}
