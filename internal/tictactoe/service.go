package tictactoe

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/klubhuset/backend/internal/dependencies/random"
	"github.com/klubhuset/backend/internal/model"
)

const (
	symbolX = "X"
	symbolO = "O"
)

// drawWinner is what the board announces when nobody won
const drawWinner = "Ingen (uafgjort)"

const gameIDLength = 8

var winPatterns = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Broadcaster delivers match events to connections
type Broadcaster interface {
	ToConn(conn model.ConnectionID, event string, data any)
}

// Directory locates the live connection a display name is registered
// on. Rematch offers go through it because the opponent may be on a
// newer connection than the one the finished game recorded.
type Directory interface {
	FindByName(name string) (model.ConnectionID, bool)
}

type player struct {
	conn   model.ConnectionID
	name   string
	symbol string
}

type match struct {
	id        string
	board     model.Board
	playerOne player
	playerTwo player
	turn      string
	finished  bool
}

func (m *match) byConn(connID model.ConnectionID) (self, opponent *player, ok bool) {
	switch connID {
	case m.playerOne.conn:
		return &m.playerOne, &m.playerTwo, true
	case m.playerTwo.conn:
		return &m.playerTwo, &m.playerOne, true
	}
	return nil, nil, false
}

func (m *match) winnerName(symbol string) string {
	if symbol == symbolX {
		return m.playerOne.name
	}
	return m.playerTwo.name
}

// Service runs tic-tac-toe matchmaking and games. One player at a time
// can sit in the matchmaking slot; the next find pairs them.
type Service struct {
	mu      sync.Mutex
	waiting *player
	matches map[string]*match
	rematch map[string]map[model.ConnectionID]bool

	random      random.Random
	directory   Directory
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewService creates the tic-tac-toe service
func NewService(rnd random.Random, directory Directory, broadcaster Broadcaster, logger *slog.Logger) *Service {
	return &Service{
		matches:     make(map[string]*match),
		rematch:     make(map[string]map[model.ConnectionID]bool),
		random:      rnd,
		directory:   directory,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "tictactoe")),
	}
}

// Find puts the connection in the matchmaking slot, or starts a game
// against whoever is already waiting there.
func (s *Service) Find(connID model.ConnectionID, req model.FindRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.waiting == nil || s.waiting.conn == connID {
		s.waiting = &player{conn: connID, name: req.Name, symbol: symbolX}
		s.broadcaster.ToConn(connID, model.EventGameMessage, "Søger efter modstander...")
		return
	}

	one := *s.waiting
	s.waiting = nil
	s.startMatch(one, player{conn: connID, name: req.Name, symbol: symbolO})
}

// startMatch creates a game between the two players and announces it to
// both. X always opens. Caller holds the mutex.
func (s *Service) startMatch(one, two player) {
	m := &match{
		id:        s.random.Token(gameIDLength),
		playerOne: one,
		playerTwo: two,
		turn:      symbolX,
	}
	s.matches[m.id] = m

	start := model.MatchStart{
		ID:        m.id,
		PlayerOne: model.MatchPlayer{Username: one.name},
		PlayerTwo: model.MatchPlayer{Username: two.name},
		Board:     m.board,
		Turn:      m.turn,
	}
	s.broadcaster.ToConn(one.conn, model.EventGameStart, start)
	s.broadcaster.ToConn(two.conn, model.EventGameStart, start)

	s.logger.Info("match started",
		slog.String("game_id", m.id),
		slog.String("player_one", one.name),
		slog.String("player_two", two.name))
}

// Play applies one move. Moves out of turn, onto taken cells or into a
// finished game are silently ignored.
func (s *Service) Play(req model.PlayingRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[req.GameID]
	if !ok || m.finished {
		return
	}
	if m.turn != req.Symbol || req.Index < 0 || req.Index >= len(m.board) || m.board[req.Index] != "" {
		return
	}
	m.board[req.Index] = req.Symbol

	for _, pattern := range winPatterns {
		a, b, c := pattern[0], pattern[1], pattern[2]
		if m.board[a] != "" && m.board[a] == m.board[b] && m.board[a] == m.board[c] {
			s.finishMatch(m, m.winnerName(req.Symbol))
			return
		}
	}

	full := true
	for _, cell := range m.board {
		if cell == "" {
			full = false
			break
		}
	}
	if full {
		s.finishMatch(m, drawWinner)
		return
	}

	if req.Symbol == symbolX {
		m.turn = symbolO
	} else {
		m.turn = symbolX
	}
	update := model.BoardUpdate{ID: m.id, Board: m.board, Turn: m.turn}
	s.broadcaster.ToConn(m.playerOne.conn, model.EventBoardUpdate, update)
	s.broadcaster.ToConn(m.playerTwo.conn, model.EventBoardUpdate, update)
}

// finishMatch ends the game and tells both players who won. The match
// record stays around so a rematch can find it. Caller holds the mutex.
func (s *Service) finishMatch(m *match, winner string) {
	m.finished = true
	over := model.MatchOverNotice{Winner: winner}
	s.broadcaster.ToConn(m.playerOne.conn, model.EventGameOver, over)
	s.broadcaster.ToConn(m.playerTwo.conn, model.EventGameOver, over)

	s.logger.Info("match over",
		slog.String("game_id", m.id),
		slog.String("winner", winner))
}

// Rematch records that the connection wants to replay the given game.
// The first request notifies the opponent; once both sides have asked,
// a fresh game starts with the last requester opening as X.
func (s *Service) Rematch(connID model.ConnectionID, req model.RematchRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[req.GameID]
	if !ok {
		return
	}
	self, opponent, ok := m.byConn(connID)
	if !ok {
		return
	}

	oppConn, ok := s.directory.FindByName(opponent.name)
	if !ok {
		s.sendStatus(connID, "unavailable", fmt.Sprintf("%s er ikke tilgængelig.", opponent.name))
		return
	}
	if s.waiting != nil && s.waiting.conn == oppConn {
		s.sendStatus(connID, "unavailable", fmt.Sprintf("%s leder efter en ny modstander.", opponent.name))
		return
	}
	for id, other := range s.matches {
		if id == req.GameID || other.finished {
			continue
		}
		if other.playerOne.conn == oppConn || other.playerTwo.conn == oppConn {
			s.sendStatus(connID, "busy", fmt.Sprintf("%s spiller mod en anden.", opponent.name))
			return
		}
	}

	requests := s.rematch[req.GameID]
	if requests == nil {
		requests = make(map[model.ConnectionID]bool)
		s.rematch[req.GameID] = requests
	}
	first := !requests[connID]
	requests[connID] = true
	if first {
		s.broadcaster.ToConn(oppConn, model.EventRematchRequested,
			model.RematchRequestedNotice{From: self.name, GameID: req.GameID})
	}

	// The opponent may have accepted from a different connection than
	// the old game recorded
	if requests[opponent.conn] || requests[oppConn] {
		delete(s.rematch, req.GameID)
		s.startMatch(
			player{conn: connID, name: self.name, symbol: symbolX},
			player{conn: oppConn, name: opponent.name, symbol: symbolO},
		)
		return
	}

	s.sendStatus(connID, "waiting", fmt.Sprintf("Venter på at %s accepterer...", opponent.name))
}

// Decline tells the inviter their rematch offer was turned down and
// clears the pending request.
func (s *Service) Decline(req model.RematchDeclinedRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.directory.FindByName(req.To); ok {
		s.sendStatus(conn, "declined", fmt.Sprintf("%s har afvist", req.From))
	}
	delete(s.rematch, req.GameID)
}

// Disconnect clears the matchmaking slot if the leaver held it and
// forfeits any game they were in, notifying the opponent.
func (s *Service) Disconnect(connID model.ConnectionID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.waiting != nil && s.waiting.conn == connID {
		s.waiting = nil
	}

	for id, m := range s.matches {
		if m.finished {
			continue
		}
		_, opponent, ok := m.byConn(connID)
		if !ok {
			continue
		}
		s.broadcaster.ToConn(opponent.conn, model.EventOpponentLeft, nil)
		delete(s.matches, id)
		delete(s.rematch, id)
	}
}

func (s *Service) sendStatus(conn model.ConnectionID, status, message string) {
	s.broadcaster.ToConn(conn, model.EventRematchStatus,
		model.RematchStatusNotice{Status: status, Message: message})
}
