package auth

// RecoverRequest is the body for POST /auth/recover. Exactly one field is set.
type RecoverRequest struct {
	Email          string `json:"email,omitempty"`
	Identification string `json:"identification,omitempty"`
}

// ResetPasswordRequest is the body for POST /auth/reset-password.
type ResetPasswordRequest struct {
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordRequest is the body for POST /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// RecoverResult carries the message plus any optional hints the backend sends.
type RecoverResult struct {
	Message    string `json:"message,omitempty"`
	ResetToken string `json:"reset_token,omitempty"`
	ExpiresIn  int64  `json:"expires_in,omitempty"`
	EmailHint  string `json:"email_hint,omitempty"`
}

// PasswordResult is returned by reset and change password.
type PasswordResult struct {
	Message         string `json:"message,omitempty"`
	ShouldClearAuth bool   `json:"should_clear_auth,omitempty"`
}
