package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/klubhuset/backend/internal/api/handler"
	"github.com/klubhuset/backend/internal/api/middleware"
	"github.com/klubhuset/backend/internal/auth"
	"github.com/klubhuset/backend/internal/poll"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger    *slog.Logger
	Accounts  *auth.Service
	Tokens    *auth.TokenService
	Polls     *poll.Service
	Presence  handler.PresenceUpdater
	WSHandler http.Handler
}

// NewRouter creates a new router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(cfg.Accounts)
	meHandler := handler.NewMeHandler(cfg.Accounts, cfg.Presence, cfg.Polls)
	pollHandler := handler.NewPollHandler(cfg.Polls)

	authMiddleware := middleware.Auth(cfg.Accounts, cfg.Tokens)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// The websocket endpoint skips the logging middleware: its requests
	// live as long as the connection
	if cfg.WSHandler != nil {
		r.Handle("/ws", cfg.WSHandler)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Account routes (no auth required)
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/check-username", authHandler.CheckUsername).Methods(http.MethodGet)
	api.HandleFunc("/auth/check-email", authHandler.CheckEmail).Methods(http.MethodGet)

	// Poll snapshot (no auth; voting happens over the websocket)
	api.HandleFunc("/poll", pollHandler.GetActive).Methods(http.MethodGet)

	// Profile routes (all require auth)
	me := api.PathPrefix("/me").Subrouter()
	me.Use(authMiddleware)
	me.HandleFunc("", meHandler.Get).Methods(http.MethodGet)
	me.HandleFunc("", meHandler.Delete).Methods(http.MethodDelete)
	me.HandleFunc("/username", meHandler.ChangeUsername).Methods(http.MethodPut)
	me.HandleFunc("/password", meHandler.ChangePassword).Methods(http.MethodPut)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
