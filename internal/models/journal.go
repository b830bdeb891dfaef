package models

import "time"

// JournalRecord is one emitted protocol record persisted for audit.
type JournalRecord struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
