package domain

import "time"

type Session struct {
	Token         string    `json:"token"`
	UserID        int64     `json:"user_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	RememberToken string    `json:"remember_token,omitempty"`
}
