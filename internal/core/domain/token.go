package domain

import "time"

// TokenRecord is an access/refresh token pair owned by the auth collaborator.
// The transport never persists it; it only asks for a currently valid token.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ValidFor reports whether the token stays valid for at least the given buffer.
func (t TokenRecord) ValidFor(buffer time.Duration) bool {
	return t.AccessToken != "" && time.Until(t.ExpiresAt) > buffer
}
