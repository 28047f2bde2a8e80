package auth

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Identification string `json:"identification"`
	Password       string `json:"password"`
}

// LoginResult is what the session service returns after a successful login.
// AccessToken is empty when the backend only set an HTTP-only session cookie.
type LoginResult struct {
	AccessToken string `json:"access_token,omitempty"`
	Message     string `json:"message,omitempty"`
	User        *User  `json:"user,omitempty"`
	// CookieSession is true when no bearer token came back.
	CookieSession bool `json:"cookie_session,omitempty"`
	// Variant reports which response shape matched (flat, data, data.data, search).
	Variant string `json:"-"`
}
