package model

// RoomID is an opaque random token identifying a hangman room
type RoomID string

// RoomState represents a room's lifecycle explicitly, even though
// destroyed rooms are also dropped from the manager's collection.
type RoomState string

const (
	RoomStateActive    RoomState = "active"
	RoomStateDestroyed RoomState = "destroyed"
)

// RoomLeftReason explains to clients why a room went away
type RoomLeftReason string

const (
	ReasonCreatorLeft RoomLeftReason = "creator_left"
	ReasonRoomEmpty   RoomLeftReason = "room_empty"
	ReasonGameOver    RoomLeftReason = "game_over"
)

// ChatMessage is one entry in a room's chat log
type ChatMessage struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// GameView is the client-facing projection of a hangman game
type GameView struct {
	MaskedWord string   `json:"maskedWord"`
	Guessed    []string `json:"guessed"`
	Active     bool     `json:"active"`
}

// RoomSummary is one row of the global room listing
type RoomSummary struct {
	ID      RoomID   `json:"id"`
	Number  int      `json:"number"`
	Creator string   `json:"creator"`
	Users   []string `json:"users"`
}

// StatusView is the global hangman status broadcast
type StatusView struct {
	Active   bool          `json:"active"`
	Rooms    []RoomSummary `json:"rooms"`
	AllUsers []string      `json:"allUsers"`
}
