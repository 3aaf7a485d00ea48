package colorgame

import (
	"log/slog"
	"sync"
	"time"

	"github.com/klubhuset/backend/internal/dependencies/clock"
	"github.com/klubhuset/backend/internal/dependencies/random"
	"github.com/klubhuset/backend/internal/model"
)

// colors are the buttons shown to every player. The round's target is
// always one of these.
var colors = []string{
	"Red", "Blue", "Green", "Yellow", "Black",
	"Gold", "Pink", "Turquoise", "Purple", "Brown",
}

// nextRoundDelay is how long the winner stays on screen before a new
// target color is drawn
const nextRoundDelay = 2 * time.Second

// Broadcaster delivers reaction-game events to connections
type Broadcaster interface {
	ToAll(event string, data any)
	ToConn(conn model.ConnectionID, event string, data any)
}

// Service runs the shared color-reaction game. There is a single global
// round at any time; the first matching click wins it.
type Service struct {
	mu        sync.Mutex
	target    string
	roundOver bool

	random      random.Random
	clock       clock.Clock
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewService creates the reaction game service and draws the first
// target color.
func NewService(rnd random.Random, clk clock.Clock, broadcaster Broadcaster, logger *slog.Logger) *Service {
	s := &Service{
		random:      rnd,
		clock:       clk,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "colorgame")),
	}
	s.target = colors[s.random.Intn(len(colors))]
	return s
}

// Click handles one button press. A press on the wrong color, or any
// press between a win and the next round, is silently ignored.
func (s *Service) Click(connID model.ConnectionID, req model.ClickRequest) {
	s.mu.Lock()
	if s.roundOver || req.Color != s.target {
		s.mu.Unlock()
		return
	}
	s.roundOver = true
	target := s.target
	s.mu.Unlock()

	s.logger.Info("round won",
		slog.String("name", req.Name),
		slog.String("color", target))
	s.broadcaster.ToAll(model.EventWinner, model.WinnerNotice{Name: req.Name, Color: target})
	s.clock.AfterFunc(nextRoundDelay, s.nextRound)
}

func (s *Service) nextRound() {
	s.mu.Lock()
	s.target = colors[s.random.Intn(len(colors))]
	s.roundOver = false
	target := s.target
	s.mu.Unlock()

	s.broadcaster.ToAll(model.EventNewRound, model.NewRoundNotice{Color: target})
}

// SendCurrent tells a newly connected client which color is live so it
// can render the round in progress.
func (s *Service) SendCurrent(connID model.ConnectionID) {
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()

	s.broadcaster.ToConn(connID, model.EventNewRound, model.NewRoundNotice{Color: target})
}
