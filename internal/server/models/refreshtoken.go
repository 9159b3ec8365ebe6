package models

import "time"

// RefreshToken is one persisted session. Token holds the signed refresh JWT.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	CreatedAt time.Time
}

// Session is the listing view of a RefreshToken.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
