package response

import (
	"github.com/klubhuset/backend/internal/model"
)

// User represents an account in API responses
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	return User{
		ID:       int64(u.ID),
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
	}
}

// AuthResponse is the response for register and login
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Availability is the response for the check-username and check-email
// endpoints
type Availability struct {
	Available bool `json:"available"`
}

// Vote represents one recorded vote in a profile export
type Vote struct {
	PollID   int64  `json:"poll_id"`
	Username string `json:"username"`
	Option   string `json:"option"`
}

// VoteFromModel converts a model.Vote
func VoteFromModel(v model.Vote) Vote {
	return Vote{
		PollID:   int64(v.PollID),
		Username: v.Username,
		Option:   v.Option,
	}
}

// Profile is the authenticated user's own data, including everything
// stored about them, suitable for download.
type Profile struct {
	User  User   `json:"user"`
	Votes []Vote `json:"votes"`
}

// ProfileFromModel builds a Profile from an account and its votes
func ProfileFromModel(u *model.User, votes []model.Vote) Profile {
	out := make([]Vote, len(votes))
	for i, v := range votes {
		out[i] = VoteFromModel(v)
	}
	return Profile{
		User:  UserFromModel(u),
		Votes: out,
	}
}

// RenameResponse is returned after a username change; the fresh token
// keeps the client logged in under the new name.
type RenameResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Message is a plain informational response
type Message struct {
	Message string `json:"message"`
}
