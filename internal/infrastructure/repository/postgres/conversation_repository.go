package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/askmynotes/backend/internal/core/domain"
)

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) SaveTurn(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (id, session_id, subject_id, query, answer, confidence_tier, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, turn.ID, turn.SessionID, turn.SubjectID, turn.Query, turn.Answer, string(turn.ConfidenceTier), turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last turns of a session in chronological order.
func (r *ConversationRepository) RecentTurns(ctx context.Context, sessionID, subjectID string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, subject_id, query, answer, confidence_tier, created_at
FROM conversation_turns
WHERE session_id = $1 AND subject_id = $2
ORDER BY created_at DESC
LIMIT $3
`, sessionID, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, limit)
	for rows.Next() {
		var turn domain.ConversationTurn
		var tier string
		if err := rows.Scan(
			&turn.ID,
			&turn.SessionID,
			&turn.SubjectID,
			&turn.Query,
			&turn.Answer,
			&tier,
			&turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.ConfidenceTier = domain.ConfidenceTier(tier)
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// SQL returns newest first; reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
