package models

import "time"

// Session rows back the session cookie. Login replaces all of a user's
// sessions with one fresh row; logout deletes exactly the presented token.
type Session struct {
	Token     string    `json:"-" db:"token"`
	UserID    int       `json:"userId" db:"user_id"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
