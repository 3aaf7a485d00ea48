package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/klubhuset/backend/internal/colorgame"
	"github.com/klubhuset/backend/internal/dependencies/random"
	"github.com/klubhuset/backend/internal/hangman"
	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/poll"
	"github.com/klubhuset/backend/internal/presence"
	"github.com/klubhuset/backend/internal/registry"
	"github.com/klubhuset/backend/internal/tictactoe"
)

const connIDLength = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The socket is open to the public site; identity is established
	// per-event, not at upgrade time
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway upgrades websocket connections and routes inbound envelopes
// to the feature services. Each connection has a single reader
// goroutine, so dispatch for one connection is strictly ordered.
type Gateway struct {
	hub       *Hub
	registry  *registry.Registry
	presence  *presence.Tracker
	hangman   *hangman.Manager
	poll      *poll.Service
	colorgame *colorgame.Service
	tictactoe *tictactoe.Service
	random    random.Random
	logger    *slog.Logger
}

// NewGateway creates a new websocket gateway
func NewGateway(
	hub *Hub,
	reg *registry.Registry,
	tracker *presence.Tracker,
	games *hangman.Manager,
	polls *poll.Service,
	colors *colorgame.Service,
	matches *tictactoe.Service,
	rnd random.Random,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		hub:       hub,
		registry:  reg,
		presence:  tracker,
		hangman:   games,
		poll:      polls,
		colorgame: colors,
		tictactoe: matches,
		random:    rnd,
		logger:    logger.With(slog.String("component", "gateway")),
	}
}

// ServeHTTP upgrades the request and starts the connection's pumps
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	connID := model.ConnectionID(g.random.Token(connIDLength))
	client := newClient(connID, conn, g.logger)

	g.hub.add(client)
	g.registry.OnConnect(connID)

	go client.writePump()
	g.sendWelcome(r.Context(), connID)
	go client.readPump(g.dispatch, g.disconnect)
}

// sendWelcome pushes the state a fresh client needs to render: the
// admin-online indicator, the active poll and the current color round.
func (g *Gateway) sendWelcome(ctx context.Context, connID model.ConnectionID) {
	g.hub.ToConn(connID, model.EventAdminOnlineMessage, g.presence.Notice())
	g.colorgame.SendCurrent(connID)

	view, err := g.poll.Active(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrNoActivePoll) {
			g.logger.Warn("failed to load poll for new client", slog.String("error", err.Error()))
		}
		return
	}
	g.hub.ToConn(connID, model.EventPollUpdate, view)
}

func (g *Gateway) disconnect(connID model.ConnectionID) {
	g.hub.remove(connID)
	g.hangman.Disconnect(connID)
	g.tictactoe.Disconnect(connID)
	if g.registry.OnDisconnect(connID) {
		g.presence.Broadcast()
	}
}

func (g *Gateway) dispatch(connID model.ConnectionID, envelope model.Envelope) {
	ctx := context.Background()

	switch envelope.Event {
	case model.EventRegisterUser:
		var req model.RegisterUserRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		identity := g.registry.OnRegister(ctx, connID, req.Username)
		if identity.Privileged {
			g.presence.Broadcast()
		}

	case model.EventSetName:
		var req model.SetNameRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.hangman.SetName(connID, req.Name)

	case model.EventJoin:
		var req model.JoinRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.hangman.Join(connID, req)

	case model.EventLeave:
		g.hangman.Leave(connID)

	case model.EventLetter:
		var req model.LetterRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.hangman.Guess(connID, req.Letter)

	case model.EventChat:
		var req model.ChatRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.hangman.Chat(connID, req.Message)

	case model.EventRequestStatus:
		g.hangman.SendStatus(connID)

	case model.EventVote:
		var req model.VoteRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.handleVote(ctx, connID, req)

	case model.EventAdminOnline:
		var req model.AdminOnlineRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.handleAdminOnline(ctx, connID, req)

	case model.EventClick:
		var req model.ClickRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.colorgame.Click(connID, req)

	case model.EventFind:
		var req model.FindRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.tictactoe.Find(connID, req)

	case model.EventPlaying:
		var req model.PlayingRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.tictactoe.Play(req)

	case model.EventRematch:
		var req model.RematchRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.tictactoe.Rematch(connID, req)

	case model.EventRematchDeclined:
		var req model.RematchDeclinedRequest
		if !g.decode(connID, envelope, &req) {
			return
		}
		g.tictactoe.Decline(req)

	default:
		g.logger.Warn("unknown event",
			slog.String("conn_id", string(connID)),
			slog.String("event", envelope.Event))
		g.hub.ToConn(connID, model.EventGameError,
			model.GameErrorNotice{Message: "unknown event: " + envelope.Event})
	}
}

func (g *Gateway) handleVote(ctx context.Context, connID model.ConnectionID, req model.VoteRequest) {
	identity, ok := g.registry.Identity(connID)
	if !ok && req.Username != "" {
		// Some clients vote before registering; resolve and attach now
		identity = g.registry.OnRegister(ctx, connID, req.Username)
	}

	if _, err := g.poll.Vote(ctx, identity, req.Option); err != nil {
		g.logger.Info("vote rejected",
			slog.String("conn_id", string(connID)),
			slog.String("option", req.Option),
			slog.String("error", err.Error()))
		g.hub.ToConn(connID, model.EventGameError, model.GameErrorNotice{Message: err.Error()})
	}
}

// handleAdminOnline flips one connection's contribution to the public
// admin-online indicator. Going online requires the claimed name to
// resolve to an admin account; going offline only detaches this
// connection, never the whole account.
func (g *Gateway) handleAdminOnline(ctx context.Context, connID model.ConnectionID, req model.AdminOnlineRequest) {
	ack := model.AdminOnlineAck{Username: req.Username, Online: req.Online}

	if req.Online {
		identity, ok := g.registry.Identity(connID)
		if !ok || !identity.Privileged {
			identity = g.registry.OnRegister(ctx, connID, req.Username)
		}
		ack.Success = identity.Privileged
		if identity.Privileged {
			g.presence.MarkPresent(identity, connID)
		}
	} else {
		g.presence.MarkAbsent(connID)
		ack.Success = true
	}

	g.hub.ToConn(connID, model.EventAdminOnlineAck, ack)
	g.presence.Broadcast()
}

func (g *Gateway) decode(connID model.ConnectionID, envelope model.Envelope, target any) bool {
	if len(envelope.Data) == 0 {
		g.hub.ToConn(connID, model.EventGameError,
			model.GameErrorNotice{Message: "missing payload for event: " + envelope.Event})
		return false
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		g.logger.Warn("malformed payload",
			slog.String("conn_id", string(connID)),
			slog.String("event", envelope.Event),
			slog.String("error", err.Error()))
		g.hub.ToConn(connID, model.EventGameError,
			model.GameErrorNotice{Message: "malformed payload for event: " + envelope.Event})
		return false
	}
	return true
}
