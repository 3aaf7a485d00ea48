package postgres

import (
	"context"
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/storage"
)

// Storage is a Postgres-backed implementation of the user directory
// and the durable vote store.
type Storage struct {
	db *gorm.DB
}

// Open connects to Postgres and runs pending migrations.
func Open(dsn string) (*Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := Migrate(dsn); err != nil {
		return nil, err
	}
	return &Storage{db: db}, nil
}

// NewWithDB creates a Storage with an existing gorm connection (for testing)
func NewWithDB(db *gorm.DB) *Storage {
	return &Storage{db: db}
}

// Ensure Storage implements both interfaces
var (
	_ storage.UserStore = (*Storage)(nil)
	_ storage.PollStore = (*Storage)(nil)
)

// User operations

func (s *Storage) CreateUser(ctx context.Context, user *model.User) (model.UserID, error) {
	row := userRow{
		Username: user.Username,
		Email:    user.Email,
		Password: user.PasswordHash,
		Role:     string(user.Role),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&userRow{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return model.ErrUsernameExists
		}
		if err := tx.Model(&userRow{}).Where("LOWER(email) = LOWER(?)", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return model.ErrEmailExists
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return 0, err
	}
	return model.UserID(row.ID), nil
}

func (s *Storage) GetUserByID(ctx context.Context, id model.UserID) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, int64(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (s *Storage) UpdateUsername(ctx context.Context, id model.UserID, username string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, int64(id)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrUserNotFound
			}
			return err
		}
		if row.UsernameChanged {
			return model.ErrUsernameAlreadyChanged
		}

		var count int64
		if err := tx.Model(&userRow{}).Where("username = ? AND id <> ?", username, int64(id)).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return model.ErrUsernameExists
		}

		updates := map[string]any{"username": username, "username_changed": true}
		if err := tx.Model(&row).Updates(updates).Error; err != nil {
			return err
		}
		// Keep denormalized usernames on vote rows in sync
		return tx.Model(&userVoteRow{}).Where("user_id = ?", int64(id)).
			Update("username", username).Error
	})
}

func (s *Storage) UpdatePassword(ctx context.Context, id model.UserID, passwordHash string) error {
	result := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", int64(id)).
		Update("password", passwordHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, id model.UserID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteVotesForUser(tx, id); err != nil {
			return err
		}
		result := tx.Delete(&userRow{}, int64(id))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return model.ErrUserNotFound
		}
		return nil
	})
}

// Poll operations

func (s *Storage) ActivePoll(ctx context.Context) (*model.Poll, error) {
	var row pollRow
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrNoActivePoll
		}
		return nil, err
	}
	return s.loadPoll(ctx, row)
}

func (s *Storage) GetPoll(ctx context.Context, id model.PollID) (*model.Poll, error) {
	var row pollRow
	if err := s.db.WithContext(ctx).First(&row, int64(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrPollNotFound
		}
		return nil, err
	}
	return s.loadPoll(ctx, row)
}

func (s *Storage) loadPoll(ctx context.Context, row pollRow) (*model.Poll, error) {
	var options []pollOptionRow
	if err := s.db.WithContext(ctx).Where("poll_id = ?", row.ID).Order("id ASC").Find(&options).Error; err != nil {
		return nil, err
	}

	poll := &model.Poll{
		ID:       model.PollID(row.ID),
		Question: row.Question,
		IsActive: row.IsActive,
		Options:  make([]string, 0, len(options)),
	}
	for _, option := range options {
		poll.Options = append(poll.Options, option.OptionName)
	}
	return poll, nil
}

func (s *Storage) Tally(ctx context.Context, id model.PollID) (map[string]int, error) {
	poll, err := s.GetPoll(ctx, id)
	if err != nil {
		return nil, err
	}

	type optionCount struct {
		OptionName string
		Count      int
	}
	var counts []optionCount
	err = s.db.WithContext(ctx).Model(&userVoteRow{}).
		Select("option_name, COUNT(*) as count").
		Where("poll_id = ?", int64(id)).
		Group("option_name").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	tally := make(map[string]int, len(poll.Options))
	for _, option := range poll.Options {
		tally[option] = 0
	}
	for _, c := range counts {
		tally[c.OptionName] = c.Count
	}
	return tally, nil
}

// RecordVote upserts one user's vote inside a transaction. The caller's
// existing vote row is locked FOR UPDATE so a read-then-write for the same
// user cannot race; per-option counters stay equal to the vote row counts.
func (s *Storage) RecordVote(ctx context.Context, pollID model.PollID, userID model.UserID, option string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var optionRow pollOptionRow
		err := tx.Where("poll_id = ? AND option_name = ?", int64(pollID), option).First(&optionRow).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrUnknownOption
			}
			return err
		}

		username := ""
		var user userRow
		if err := tx.First(&user, int64(userID)).Error; err == nil {
			username = user.Username
		}

		var existing userVoteRow
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("poll_id = ? AND user_id = ?", int64(pollID), int64(userID)).
			First(&existing).Error

		switch {
		case err == nil:
			if existing.OptionName == option {
				// Same option, idempotent success
				return nil
			}
			if err := tx.Model(&pollOptionRow{}).
				Where("poll_id = ? AND option_name = ?", int64(pollID), existing.OptionName).
				Update("vote_count", gorm.Expr("vote_count - 1")).Error; err != nil {
				return err
			}
			if err := tx.Model(&pollOptionRow{}).
				Where("poll_id = ? AND option_name = ?", int64(pollID), option).
				Update("vote_count", gorm.Expr("vote_count + 1")).Error; err != nil {
				return err
			}
			return tx.Model(&existing).Update("option_name", option).Error

		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Model(&pollOptionRow{}).
				Where("poll_id = ? AND option_name = ?", int64(pollID), option).
				Update("vote_count", gorm.Expr("vote_count + 1")).Error; err != nil {
				return err
			}
			return tx.Create(&userVoteRow{
				PollID:     int64(pollID),
				UserID:     int64(userID),
				Username:   username,
				OptionName: option,
			}).Error

		default:
			return err
		}
	})
}

func (s *Storage) UserVote(ctx context.Context, pollID model.PollID, userID model.UserID) (string, error) {
	var row userVoteRow
	err := s.db.WithContext(ctx).
		Where("poll_id = ? AND user_id = ?", int64(pollID), int64(userID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return row.OptionName, nil
}

func (s *Storage) VotesByUser(ctx context.Context, userID model.UserID) ([]model.Vote, error) {
	var rows []userVoteRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", int64(userID)).Find(&rows).Error; err != nil {
		return nil, err
	}

	votes := make([]model.Vote, 0, len(rows))
	for _, row := range rows {
		votes = append(votes, model.Vote{
			PollID:   model.PollID(row.PollID),
			UserID:   model.UserID(row.UserID),
			Username: row.Username,
			Option:   row.OptionName,
		})
	}
	return votes, nil
}

func (s *Storage) DeleteVotesForUser(ctx context.Context, userID model.UserID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteVotesForUser(tx, userID)
	})
}

// deleteVotesForUser removes a user's vote rows and keeps the per-option
// counters equal to the remaining row counts.
func deleteVotesForUser(tx *gorm.DB, userID model.UserID) error {
	var rows []userVoteRow
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", int64(userID)).Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		if err := tx.Model(&pollOptionRow{}).
			Where("poll_id = ? AND option_name = ?", row.PollID, row.OptionName).
			Update("vote_count", gorm.Expr("vote_count - 1")).Error; err != nil {
			return err
		}
	}
	return tx.Where("user_id = ?", int64(userID)).Delete(&userVoteRow{}).Error
}
