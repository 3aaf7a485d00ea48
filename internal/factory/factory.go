package factory

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/klubhuset/backend/internal/api"
	"github.com/klubhuset/backend/internal/auth"
	"github.com/klubhuset/backend/internal/colorgame"
	"github.com/klubhuset/backend/internal/dependencies/clock"
	"github.com/klubhuset/backend/internal/dependencies/random"
	"github.com/klubhuset/backend/internal/hangman"
	"github.com/klubhuset/backend/internal/identity"
	"github.com/klubhuset/backend/internal/poll"
	"github.com/klubhuset/backend/internal/presence"
	"github.com/klubhuset/backend/internal/registry"
	"github.com/klubhuset/backend/internal/storage"
	"github.com/klubhuset/backend/internal/storage/memory"
	"github.com/klubhuset/backend/internal/storage/postgres"
	redisstorage "github.com/klubhuset/backend/internal/storage/redis"
	"github.com/klubhuset/backend/internal/tictactoe"
	"github.com/klubhuset/backend/internal/ws"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Users storage.UserStore
	Polls storage.PollStore

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Live connection state
	Hub      *ws.Hub
	Presence *presence.Tracker
	Registry *registry.Registry
	Gateway  *ws.Gateway

	// Services
	Hangman     *hangman.Manager
	ColorGame   *colorgame.Service
	TicTacToe   *tictactoe.Service
	PollService *poll.Service
	Tokens      *auth.TokenService
	Accounts    *auth.Service

	// Handler is the full HTTP surface: /api plus the /ws upgrade
	Handler http.Handler

	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresDSN is the Postgres connection string (required if StorageType is "postgres")
	PostgresDSN string
	// JWTPrivateKeyPath and JWTPublicKeyPath locate the RS256 signing key pair
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()

	tokens, err := auth.NewTokenServiceFromFiles(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, clk, logger)
	if err != nil {
		return nil, err
	}

	var (
		users  storage.UserStore
		polls  storage.PollStore
		closer io.Closer
	)

	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store := memory.New()
		users, polls = store, store
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		// The redis backend only holds the user directory; polls and
		// votes stay in memory until an active poll needs to survive
		// a restart
		users, polls = redisStore, memory.New()
		closer = redisStore
	case StorageTypePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("PostgresDSN required when StorageType is postgres")
		}
		store, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		users, polls = store, store
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}

	app := newWithDependencies(users, polls, clk, rnd, tokens, logger)
	app.closer = closer
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	users storage.UserStore,
	polls storage.PollStore,
	clk clock.Clock,
	rnd random.Random,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *App {
	hub := ws.NewHub(logger)

	tracker := presence.New(hub, logger)
	resolver := identity.New(users, logger)
	reg := registry.New(resolver, tracker, logger)

	games := hangman.NewManager(rnd, hub, logger)
	colors := colorgame.NewService(rnd, clk, hub, logger)
	matches := tictactoe.NewService(rnd, reg, hub, logger)
	pollService := poll.NewService(polls, hub, logger)
	accounts := auth.NewService(users, polls, tokens, logger)

	gateway := ws.NewGateway(hub, reg, tracker, games, pollService, colors, matches, rnd, logger)

	handler := api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Accounts:  accounts,
		Tokens:    tokens,
		Polls:     pollService,
		Presence:  tracker,
		WSHandler: gateway,
	})

	return &App{
		Users:       users,
		Polls:       polls,
		Clock:       clk,
		Random:      rnd,
		Hub:         hub,
		Presence:    tracker,
		Registry:    reg,
		Gateway:     gateway,
		Hangman:     games,
		ColorGame:   colors,
		TicTacToe:   matches,
		PollService: pollService,
		Tokens:      tokens,
		Accounts:    accounts,
		Handler:     handler,
	}
}

// Close releases storage connections held by the app
func (a *App) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
