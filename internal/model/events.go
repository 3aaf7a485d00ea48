package model

import "encoding/json"

// Event names received from clients
const (
	EventRegisterUser  = "registerUser"
	EventSetName       = "setName"
	EventJoin          = "join"
	EventLeave         = "leave"
	EventLetter        = "letter"
	EventChat          = "chat"
	EventRequestStatus = "requestStatus"
	EventVote          = "vote"
	EventAdminOnline   = "adminOnline"
	EventClick         = "click"

	EventFind            = "find"
	EventPlaying         = "playing"
	EventRematch         = "rematch"
	EventRematchDeclined = "rematchDeclined"
)

// Event names sent to clients
const (
	EventStart              = "start"
	EventStarter            = "starter"
	EventJoined             = "joined"
	EventUsers              = "users"
	EventUserLeft           = "userLeft"
	EventCorrectLetter      = "correctLetter"
	EventWrongLetter        = "wrongLetter"
	EventDuplicateLetter    = "duplicateLetter"
	EventGameOver           = "gameOver"
	EventRoomLeft           = "roomLeft"
	EventStatus             = "status"
	EventAllUsers           = "allUsers"
	EventScore              = "score"
	EventPollUpdate         = "pollUpdate"
	EventAdminOnlineMessage = "adminOnlineMessage"
	EventAdminOnlineAck     = "adminOnlineAck"
	EventWinner             = "winner"
	EventNewRound           = "newRound"
	EventGameError          = "gameError"

	EventGameMessage      = "gameMessage"
	EventGameStart        = "gameStart"
	EventBoardUpdate      = "boardUpdate"
	EventRematchRequested = "rematchRequested"
	EventRematchStatus    = "rematchStatus"
	EventOpponentLeft     = "opponentLeft"
)

// Envelope is the wire format for both directions of the websocket channel
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads

type RegisterUserRequest struct {
	Username string `json:"username"`
}

type SetNameRequest struct {
	Name string `json:"name"`
}

type LetterRequest struct {
	Letter string `json:"letter"`
}

type JoinRequest struct {
	Name   string `json:"name,omitempty"`
	RoomID RoomID `json:"roomId,omitempty"`
	Word   string `json:"word,omitempty"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type VoteRequest struct {
	Option   string `json:"option"`
	Username string `json:"username,omitempty"`
}

type AdminOnlineRequest struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// ClickRequest is one color-button press in the reaction game
type ClickRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type FindRequest struct {
	Name string `json:"name"`
}

// PlayingRequest is one tic-tac-toe move
type PlayingRequest struct {
	GameID string `json:"gameId"`
	Index  int    `json:"index"`
	Symbol string `json:"symbol"`
}

type RematchRequest struct {
	GameID string `json:"gameId"`
}

type RematchDeclinedRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	GameID string `json:"gameId"`
}

// Outbound payloads

type StarterNotice struct {
	IsStarter bool `json:"isStarter"`
}

type JoinedNotice struct {
	RoomID RoomID `json:"roomId"`
}

// UserListChange carries a roster delta for a room
type UserListChange struct {
	Type  string   `json:"type"` // "add" or "remove"
	Users []string `json:"users"`
}

type UserLeftNotice struct {
	Username string `json:"username"`
}

// LetterOutcome accompanies correctLetter, wrongLetter and duplicateLetter
type LetterOutcome struct {
	Letter string   `json:"letter"`
	Game   GameView `json:"game"`
}

type GameOverNotice struct {
	Winner string `json:"winner,omitempty"`
	Answer string `json:"answer"`
	Won    bool   `json:"won"`
	Lost   bool   `json:"lost"`
}

type RoomLeftNotice struct {
	Reason RoomLeftReason `json:"reason"`
}

// AdminOnlineNotice is the public "how many staff are online" broadcast
type AdminOnlineNotice struct {
	Count   int      `json:"count"`
	Message string   `json:"message"`
	Admins  []string `json:"admins"`
}

type AdminOnlineAck struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

type GameErrorNotice struct {
	Message string `json:"message"`
}

type WinnerNotice struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type NewRoundNotice struct {
	Color string `json:"color"`
}

// Board is a tic-tac-toe grid in row-major order. Empty cells are the
// empty string internally and marshal as null, which is what the web
// client tests cells against.
type Board [9]string

func (b Board) MarshalJSON() ([]byte, error) {
	cells := make([]*string, len(b))
	for i := range b {
		if b[i] != "" {
			cells[i] = &b[i]
		}
	}
	return json.Marshal(cells)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var cells []*string
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	for i := range b {
		b[i] = ""
		if i < len(cells) && cells[i] != nil {
			b[i] = *cells[i]
		}
	}
	return nil
}

type MatchPlayer struct {
	Username string `json:"username"`
}

// MatchStart announces a freshly paired tic-tac-toe game to both players
type MatchStart struct {
	ID        string      `json:"id"`
	PlayerOne MatchPlayer `json:"playerOne"`
	PlayerTwo MatchPlayer `json:"playerTwo"`
	Board     Board       `json:"board"`
	Turn      string      `json:"turn"`
}

type BoardUpdate struct {
	ID    string `json:"id"`
	Board Board  `json:"board"`
	Turn  string `json:"turn"`
}

type MatchOverNotice struct {
	Winner string `json:"winner"`
}

type RematchRequestedNotice struct {
	From   string `json:"from"`
	GameID string `json:"gameId"`
}

type RematchStatusNotice struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
