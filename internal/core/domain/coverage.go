package domain

import "time"

// QALogEntry is the full record of one answered question. Unlike a
// conversation turn it keeps the retrieval outcome (score, citations, top
// chunk ids), which the coverage heatmap aggregates.
type QALogEntry struct {
	ID               string         `json:"id"`
	SessionID        string         `json:"session_id"`
	SubjectID        string         `json:"subject_id"`
	Query            string         `json:"query"`
	Answer           string         `json:"answer"`
	ConfidenceTier   ConfidenceTier `json:"confidence_tier"`
	ConfidenceScore  float64        `json:"confidence_score"`
	Citations        []Citation     `json:"citations"`
	EvidenceSnippets []string       `json:"evidence_snippets"`
	TopChunkIDs      []string       `json:"top_chunk_ids"`
	CreatedAt        time.Time      `json:"created_at"`
}

type CoverageTier string

const (
	CoverageHot  CoverageTier = "HOT"
	CoverageWarm CoverageTier = "WARM"
	CoverageCool CoverageTier = "COOL"
)

// CoverageBucket reports how often one indexed chunk was retrieved for
// answered questions in a subject. The score is the hit count normalized
// against the subject's most-hit chunk.
type CoverageBucket struct {
	ChunkID       string       `json:"chunkId"`
	Frequency     int          `json:"frequency"`
	CoverageScore float64      `json:"coverageScore"`
	CoverageTier  CoverageTier `json:"coverageTier"`
}

// CoverageTierFor maps a normalized coverage score to its heat tier.
func CoverageTierFor(score float64) CoverageTier {
	switch {
	case score > 0.66:
		return CoverageHot
	case score > 0.33:
		return CoverageWarm
	default:
		return CoverageCool
	}
}
