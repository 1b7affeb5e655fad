package domain

import "time"

// Subject is a named collection of notes. Every retrieval is scoped to exactly
// one subject so material from other subjects can never leak into an answer.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
