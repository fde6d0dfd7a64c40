package models

// User represents a user whose bank statements are synchronized
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	// Credential is the provider token, encrypted at rest. Empty when never set.
	Credential   string `json:"-"`
	HomeCurrency int    `json:"home_currency"`
}

// HasCredential reports whether a provider credential was stored for the user
func (u User) HasCredential() bool {
	return u.Credential != ""
}
