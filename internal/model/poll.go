package model

// PollID identifies a poll
type PollID int64

// Poll is a question with an ordered list of options
type Poll struct {
	ID       PollID
	Question string
	Options  []string
	IsActive bool
}

// PollView is the client-facing poll projection with per-option counts
type PollView struct {
	ID       PollID         `json:"id"`
	Question string         `json:"question"`
	Options  map[string]int `json:"options"`
}

// Vote is one user's vote in one poll; at most one row per (poll, user)
type Vote struct {
	PollID   PollID
	UserID   UserID
	Username string
	Option   string
}
