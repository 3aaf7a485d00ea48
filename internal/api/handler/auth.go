package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/klubhuset/backend/internal/api/apierr"
	"github.com/klubhuset/backend/internal/api/middleware"
	"github.com/klubhuset/backend/internal/api/request"
	"github.com/klubhuset/backend/internal/api/response"
	"github.com/klubhuset/backend/internal/auth"
)

// sessionCookieMaxAge matches the token lifetime
const sessionCookieMaxAge = 24 * time.Hour

// AuthHandler handles registration, login and availability checks
type AuthHandler struct {
	accounts *auth.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts *auth.Service) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

func setSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	user, token, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	setSessionCookie(w, token, sessionCookieMaxAge)
	response.JSON(w, http.StatusCreated, response.AuthResponse{
		User:  response.UserFromModel(user),
		Token: token,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("username and password are required"))
		return
	}

	user, token, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	setSessionCookie(w, token, sessionCookieMaxAge)
	response.JSON(w, http.StatusOK, response.AuthResponse{
		User:  response.UserFromModel(user),
		Token: token,
	})
}

// Logout handles POST /api/auth/logout by clearing the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	setSessionCookie(w, "", -time.Second)
	response.JSON(w, http.StatusOK, response.Message{Message: "Logged out"})
}

// CheckUsername handles GET /api/auth/check-username?username=...
func (h *AuthHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("username query parameter is required"))
		return
	}

	available, err := h.accounts.UsernameAvailable(r.Context(), username)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Availability{Available: available})
}

// CheckEmail handles GET /api/auth/check-email?email=...
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("email query parameter is required"))
		return
	}

	available, err := h.accounts.EmailAvailable(r.Context(), email)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.Availability{Available: available})
}
