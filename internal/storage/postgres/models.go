package postgres

import (
	"time"

	"github.com/klubhuset/backend/internal/model"
)

// gorm row types mirroring the relational schema in migrations/

type userRow struct {
	ID              int64     `gorm:"primaryKey"`
	Username        string    `gorm:"size:64;uniqueIndex;not null"`
	Email           string    `gorm:"size:255;uniqueIndex;not null"`
	Password        string    `gorm:"size:255;not null"`
	Role            string    `gorm:"size:32;not null;default:'User'"`
	UsernameChanged bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type pollRow struct {
	ID       int64  `gorm:"primaryKey"`
	Question string `gorm:"size:280;not null"`
	IsActive bool   `gorm:"not null;default:false"`
}

func (pollRow) TableName() string { return "polls" }

type pollOptionRow struct {
	ID         int64  `gorm:"primaryKey"`
	PollID     int64  `gorm:"index;not null;uniqueIndex:idx_poll_options_poll_name"`
	OptionName string `gorm:"size:140;not null;uniqueIndex:idx_poll_options_poll_name"`
	VoteCount  int    `gorm:"not null;default:0"`
}

func (pollOptionRow) TableName() string { return "poll_options" }

type userVoteRow struct {
	ID         int64  `gorm:"primaryKey"`
	PollID     int64  `gorm:"index;not null;uniqueIndex:idx_user_votes_poll_user"`
	UserID     int64  `gorm:"not null;uniqueIndex:idx_user_votes_poll_user"`
	Username   string `gorm:"size:64"`
	OptionName string `gorm:"size:140;not null"`
}

func (userVoteRow) TableName() string { return "user_votes" }

func (r *userRow) toModel() *model.User {
	return &model.User{
		ID:              model.UserID(r.ID),
		Username:        r.Username,
		Email:           r.Email,
		PasswordHash:    r.Password,
		Role:            model.Role(r.Role),
		UsernameChanged: r.UsernameChanged,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
