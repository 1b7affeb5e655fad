package domain

type ConfidenceTier string

const (
	TierNotFound ConfidenceTier = "NOT_FOUND"
	TierLow      ConfidenceTier = "LOW"
	TierMedium   ConfidenceTier = "MEDIUM"
	TierHigh     ConfidenceTier = "HIGH"
)

// ConfidenceResult is the multi-factor confidence assessment for one query.
// Created once per question, read-only downstream.
type ConfidenceResult struct {
	Tier         ConfidenceTier `json:"tier"`
	Score        float64        `json:"score"`
	MaxScore     float64        `json:"maxScore"`
	AvgScore     float64        `json:"avgScore"`
	MinScore     float64        `json:"minScore"`
	Variance     float64        `json:"variance"`
	KeywordBonus float64        `json:"keywordBonus"`
}

// Citation resolves a [SOURCE: file, location] marker in the generated answer
// back to the chunk it came from.
type Citation struct {
	FileName     string       `json:"fileName"`
	LocationRef  string       `json:"locationRef"`
	ChunkID      string       `json:"chunkId"`
	SourceFormat SourceFormat `json:"sourceFormat"`
}

// Diagnostics carries intermediate pipeline state for logging and debugging.
type Diagnostics struct {
	QueryKeywords     []string         `json:"queryKeywords"`
	ExpandedQueries   []string         `json:"expandedQueries"`
	RetrievedChunks   int              `json:"retrievedChunks"`
	DedupedChunks     int              `json:"dedupedChunks"`
	RerankApplied     bool             `json:"rerankApplied"`
	GroundingEnforced bool             `json:"groundingEnforced"`
	Confidence        ConfidenceResult `json:"confidence"`
}

// AnswerResult is the terminal output of the answering pipeline.
//
// Invariant: tier NOT_FOUND or LOW means the answer is exactly the refusal
// template and the citation list is empty; a MEDIUM/HIGH answer always carries
// at least one validated citation.
type AnswerResult struct {
	Answer           string         `json:"answer"`
	ConfidenceTier   ConfidenceTier `json:"confidenceTier"`
	ConfidenceScore  float64        `json:"confidenceScore"`
	Citations        []Citation     `json:"citations"`
	EvidenceSnippets []string       `json:"evidenceSnippets"`
	TopChunkIDs      []string       `json:"topChunkIds"`
	Diagnostics      Diagnostics    `json:"diagnostics"`
}

// RefusalAnswer is the fixed template returned whenever the notes cannot
// support an answer. The exact wording is load-bearing: the system prompt
// instructs the model to emit it verbatim, and the grounding backstop emits it
// when citations fail to resolve.
func RefusalAnswer(subjectName string) string {
	return "Not found in your notes for " + subjectName
}
