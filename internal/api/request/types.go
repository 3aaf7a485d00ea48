package request

// RegisterRequest is the request body for creating an account
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangeUsernameRequest is the request body for the one-time rename
type ChangeUsernameRequest struct {
	NewUsername string `json:"new_username"`
}

// ChangePasswordRequest is the request body for changing password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// DeleteAccountRequest is the request body for account deletion
type DeleteAccountRequest struct {
	Confirm bool `json:"confirm"`
}
