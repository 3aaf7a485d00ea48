package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/klubhuset/backend/internal/auth"
	"github.com/klubhuset/backend/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeUsernameExists         = "USERNAME_EXISTS"
	CodeEmailExists            = "EMAIL_EXISTS"
	CodeUsernameAlreadyChanged = "USERNAME_ALREADY_CHANGED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeNoActivePoll           = "NO_ACTIVE_POLL"
	CodePollNotFound           = "POLL_NOT_FOUND"
	CodeUnknownOption          = "UNKNOWN_OPTION"
	CodeInternalError          = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrUserNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeUserNotFound, "User not found"}}
	case errors.Is(err, model.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{CodeUsernameExists, "Username is already taken"}}
	case errors.Is(err, model.ErrEmailExists):
		return &httpError{http.StatusConflict, APIError{CodeEmailExists, "Email er allerede i brug"}}
	case errors.Is(err, model.ErrUsernameAlreadyChanged):
		return &httpError{http.StatusConflict, APIError{CodeUsernameAlreadyChanged, "You have already changed username"}}
	case errors.Is(err, model.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredentials, "Invalid username or password"}}
	case errors.Is(err, model.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Invalid or expired token"}}
	case errors.Is(err, model.ErrNoActivePoll):
		return &httpError{http.StatusNotFound, APIError{CodeNoActivePoll, "No active poll"}}
	case errors.Is(err, model.ErrPollNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePollNotFound, "Poll not found"}}
	case errors.Is(err, model.ErrUnknownOption):
		return &httpError{http.StatusBadRequest, APIError{CodeUnknownOption, "Unknown poll option"}}

	// Validation failures carry their message through as-is
	case errors.Is(err, auth.ErrUsernameTooShort),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrEmailRequired):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, err.Error()}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) error {
	return &httpError{http.StatusForbidden, APIError{CodeForbidden, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
