package domain

import "time"

// ConversationTurn is one question/answer pair inside a study session. Prior
// turns feed the non-factual context block of the prompt; they are never
// citable evidence.
type ConversationTurn struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	SubjectID      string         `json:"subject_id"`
	Query          string         `json:"query"`
	Answer         string         `json:"answer"`
	ConfidenceTier ConfidenceTier `json:"confidence_tier"`
	CreatedAt      time.Time      `json:"created_at"`
}
