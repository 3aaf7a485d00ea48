package model

import "errors"

// Common errors used across the application
var (
	// User directory errors
	ErrUserNotFound           = errors.New("user not found")
	ErrUsernameExists         = errors.New("username already exists")
	ErrEmailExists            = errors.New("email already exists")
	ErrUsernameAlreadyChanged = errors.New("username can only be changed once")

	// Hangman errors
	ErrRoomNotFound         = errors.New("room not found")
	ErrGameInactive         = errors.New("no active game in room")
	ErrInvalidWord          = errors.New("word must be alphabetic and at least 2 letters")
	ErrInvalidLetter        = errors.New("invalid letter")
	ErrLetterAlreadyGuessed = errors.New("the letter has already been guessed")
	ErrStarterCannotGuess   = errors.New("starter cannot guess in his own game")
	ErrNotRoomMember        = errors.New("not a member of this room")

	// Poll errors
	ErrNoActivePoll  = errors.New("no active poll")
	ErrPollNotFound  = errors.New("poll not found")
	ErrUnknownOption = errors.New("unknown poll option")
	ErrAnonymousVote = errors.New("vote requires a resolved user")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)
