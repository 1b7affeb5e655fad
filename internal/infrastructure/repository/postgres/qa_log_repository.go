package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/askmynotes/backend/internal/core/domain"
)

type QALogRepository struct {
	db *sql.DB
}

func NewQALogRepository(db *sql.DB) *QALogRepository {
	return &QALogRepository{db: db}
}

func (r *QALogRepository) SaveEntry(ctx context.Context, entry domain.QALogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	citations, err := marshalList(entry.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}
	snippets, err := marshalList(entry.EvidenceSnippets)
	if err != nil {
		return fmt.Errorf("marshal evidence snippets: %w", err)
	}
	chunkIDs, err := marshalList(entry.TopChunkIDs)
	if err != nil {
		return fmt.Errorf("marshal top chunk ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO qa_logs (id, session_id, subject_id, query, answer, confidence_tier, confidence_score,
	citations, evidence_snippets, top_chunk_ids, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		entry.ID,
		entry.SessionID,
		entry.SubjectID,
		entry.Query,
		entry.Answer,
		string(entry.ConfidenceTier),
		entry.ConfidenceScore,
		citations,
		snippets,
		chunkIDs,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert qa log: %w", err)
	}
	return nil
}

// SubjectCoverage counts how often each chunk was retrieved for answered
// questions in a subject, most-hit first. Refused questions carry no usable
// retrieval signal and are excluded.
func (r *QALogRepository) SubjectCoverage(ctx context.Context, subjectID string) ([]domain.CoverageBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT chunk_id, COUNT(*) AS frequency
FROM qa_logs, jsonb_array_elements_text(top_chunk_ids) AS chunk_id
WHERE subject_id = $1 AND confidence_tier <> $2
GROUP BY chunk_id
ORDER BY frequency DESC, chunk_id
`, subjectID, string(domain.TierNotFound))
	if err != nil {
		return nil, fmt.Errorf("aggregate coverage: %w", err)
	}
	defer rows.Close()

	var out []domain.CoverageBucket
	for rows.Next() {
		var bucket domain.CoverageBucket
		if err := rows.Scan(&bucket.ChunkID, &bucket.Frequency); err != nil {
			return nil, fmt.Errorf("scan coverage row: %w", err)
		}
		out = append(out, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coverage rows: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}

	// Rows are sorted by frequency, so the first one holds the maximum.
	maxFreq := float64(out[0].Frequency)
	for i := range out {
		out[i].CoverageScore = float64(out[i].Frequency) / maxFreq
		out[i].CoverageTier = domain.CoverageTierFor(out[i].CoverageScore)
	}
	return out, nil
}

// marshalList encodes a slice as a JSONB array, mapping nil to [] so array
// functions never see a JSON null.
func marshalList(v any) ([]byte, error) {
	switch list := v.(type) {
	case []domain.Citation:
		if list == nil {
			v = []domain.Citation{}
		}
	case []string:
		if list == nil {
			v = []string{}
		}
	}
	return json.Marshal(v)
}
