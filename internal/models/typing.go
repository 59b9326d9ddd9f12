package models

import "time"

// TypingState is a short-lived liveness signal. It is never persisted beyond
// its TTL and consumers must not assume delivery.
type TypingState struct {
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
