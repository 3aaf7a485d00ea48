package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/storage"
)

// Storage is a Redis-backed implementation of the user directory
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.UserStore = (*Storage)(nil)

func (s *Storage) CreateUser(ctx context.Context, user *model.User) (model.UserID, error) {
	// Uniqueness checks on indexes
	if err := s.client.Get(ctx, usernameIndexKey(user.Username)).Err(); err == nil {
		return 0, model.ErrUsernameExists
	} else if !errors.Is(err, redis.Nil) {
		return 0, err
	}
	if err := s.client.Get(ctx, emailIndexKey(user.Email)).Err(); err == nil {
		return 0, model.ErrEmailExists
	} else if !errors.Is(err, redis.Nil) {
		return 0, err
	}

	id, err := s.client.Incr(ctx, nextUserIDKey()).Result()
	if err != nil {
		return 0, err
	}

	stored := *user
	stored.ID = model.UserID(id)

	data, err := json.Marshal(&stored)
	if err != nil {
		return 0, err
	}

	// Pipeline for atomic save + index updates
	pipe := s.client.Pipeline()
	pipe.Set(ctx, userKey(stored.ID), data, 0)
	pipe.Set(ctx, usernameIndexKey(stored.Username), strconv.FormatInt(id, 10), 0)
	pipe.Set(ctx, emailIndexKey(stored.Email), strconv.FormatInt(id, 10), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return stored.ID, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id model.UserID) (*model.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	idStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, model.UserID(id))
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	idStr, err := s.client.Get(ctx, emailIndexKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, model.UserID(id))
}

func (s *Storage) UpdateUsername(ctx context.Context, id model.UserID, username string) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.UsernameChanged {
		return model.ErrUsernameAlreadyChanged
	}

	if err := s.client.Get(ctx, usernameIndexKey(username)).Err(); err == nil {
		return model.ErrUsernameExists
	} else if !errors.Is(err, redis.Nil) {
		return err
	}

	oldUsername := user.Username
	user.Username = username
	user.UsernameChanged = true

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, userKey(id), data, 0)
	pipe.Del(ctx, usernameIndexKey(oldUsername))
	pipe.Set(ctx, usernameIndexKey(username), strconv.FormatInt(int64(id), 10), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) UpdatePassword(ctx context.Context, id model.UserID, passwordHash string) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	user.PasswordHash = passwordHash

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, userKey(id), data, 0).Err()
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, userKey(id))
	pipe.Del(ctx, usernameIndexKey(user.Username))
	pipe.Del(ctx, emailIndexKey(user.Email))
	_, err = pipe.Exec(ctx)
	return err
}
