package auth

// LogoutResult reports what was cleared locally. Remote is false when the
// backend call failed; local state is cleared either way.
type LogoutResult struct {
	Message string `json:"message,omitempty"`
	Remote  bool   `json:"remote"`
}
