package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/core/ports"
)

const (
	defaultTopK      = 5
	maxSearchResults = 8

	evidenceSnippetCount = 3
	evidenceSnippetChars = 300
)

// AskConfig tunes the answering pipeline. Zero values fall back to defaults.
type AskConfig struct {
	TopK    int
	Weights ConfidenceWeights
}

// AskUseCase is the RAG orchestration core. One instance serves all requests;
// it holds no per-request state. The primary generator runs under
// deterministic decoding settings, the auxiliary one is a fast model used for
// best-effort expansion and reranking.
type AskUseCase struct {
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	primary   ports.TextGenerator
	auxiliary ports.TextGenerator
	topK      int
	weights   ConfidenceWeights
}

func NewAskUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	primary ports.TextGenerator,
	auxiliary ports.TextGenerator,
	cfg AskConfig,
) *AskUseCase {
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > maxSearchResults {
		topK = maxSearchResults
	}
	return &AskUseCase{
		embedder:  embedder,
		vectorDB:  vectorDB,
		primary:   primary,
		auxiliary: auxiliary,
		topK:      topK,
		weights:   cfg.Weights.normalize(),
	}
}

// AnswerQuestion runs the full pipeline: preprocess, expand, retrieve, dedup,
// rerank, confidence gate, grounded generation, citation validation.
//
// Failure policy: bad input returns ErrInvalidInput before any external call;
// embedding, search, and primary generation failures return ErrPipeline with
// the stage name; expansion and reranking degrade silently. Insufficient
// grounding is not an error: it yields the fixed refusal answer.
func (uc *AskUseCase) AnswerQuestion(
	ctx context.Context,
	query, subjectID, subjectName string,
	history []domain.ConversationTurn,
) (*domain.AnswerResult, error) {
	cleaned, keywords, err := preprocessQuery(query)
	if err != nil {
		return nil, err
	}

	queries := uc.expandQuery(ctx, cleaned, subjectName)

	chunks, err := uc.retrieve(ctx, subjectID, queries)
	if err != nil {
		return nil, err
	}

	diag := domain.Diagnostics{
		QueryKeywords:   keywords,
		ExpandedQueries: queries,
		RetrievedChunks: len(chunks),
	}

	chunks = deduplicateChunks(chunks)
	diag.DedupedChunks = len(chunks)

	if len(chunks) == 0 {
		diag.Confidence = domain.ConfidenceResult{Tier: domain.TierNotFound}
		return refusalResult(subjectName, diag.Confidence, nil, diag), nil
	}

	chunks, diag.RerankApplied = uc.rerankChunks(ctx, cleaned, chunks)

	similarities := make([]float64, len(chunks))
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		similarities[i] = chunk.Similarity
		texts[i] = chunk.Text
	}
	confidence := computeConfidence(similarities, keywords, texts, uc.weights)
	diag.Confidence = confidence
	topIDs := chunkIDs(chunks)

	if confidence.Tier == domain.TierNotFound || confidence.Tier == domain.TierLow {
		slog.Info("confidence_gate_refusal",
			"subject_id", subjectID,
			"tier", confidence.Tier,
			"score", confidence.Score,
		)
		return refusalResult(subjectName, confidence, topIDs, diag), nil
	}

	prompt := buildPrompt(subjectName, confidence.Tier, chunks, cleaned, history)
	answer, err := uc.primary.Generate(ctx, prompt)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPipeline, "generate answer", err)
	}
	answer = strings.TrimSpace(answer)

	citations := extractCitations(answer, chunks)
	if len(citations) == 0 {
		// Grounding backstop: a generated answer with no resolvable citations
		// is treated as hallucinated and suppressed, whatever the model said.
		diag.GroundingEnforced = true
		slog.Warn("ungrounded_answer_suppressed",
			"subject_id", subjectID,
			"tier", confidence.Tier,
			"score", confidence.Score,
		)
		demoted := confidence
		demoted.Tier = domain.TierNotFound
		return refusalResult(subjectName, demoted, topIDs, diag), nil
	}

	return &domain.AnswerResult{
		Answer:           answer,
		ConfidenceTier:   confidence.Tier,
		ConfidenceScore:  confidence.Score,
		Citations:        citations,
		EvidenceSnippets: evidenceSnippets(chunks),
		TopChunkIDs:      topIDs,
		Diagnostics:      diag,
	}, nil
}

// retrieve runs one nearest-neighbor search per expanded query and flattens
// the results. Any embedding or search failure is infrastructure failure and
// aborts the pipeline.
func (uc *AskUseCase) retrieve(ctx context.Context, subjectID string, queries []string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for _, query := range queries {
		vector, err := uc.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, domain.WrapError(domain.ErrPipeline, "embed query", err)
		}
		hits, err := uc.vectorDB.Search(ctx, subjectID, vector, uc.topK)
		if err != nil {
			return nil, domain.WrapError(domain.ErrPipeline, "vector search", err)
		}
		for _, hit := range hits {
			out = append(out, domain.Chunk{
				ChunkID:      hit.ChunkID,
				Text:         hit.Text,
				FileName:     hit.FileName,
				SourceFormat: hit.SourceFormat,
				LocationRef:  hit.LocationRef,
				Similarity:   similarityFromDistance(hit.Distance),
			})
		}
	}
	return out, nil
}

// similarityFromDistance converts an L2 distance over normalized vectors
// (range [0,2]) into a [0,1] similarity.
func similarityFromDistance(d float64) float64 {
	s := 1 - d/2
	if s < 0 {
		return 0
	}
	return s
}

func refusalResult(
	subjectName string,
	confidence domain.ConfidenceResult,
	topIDs []string,
	diag domain.Diagnostics,
) *domain.AnswerResult {
	return &domain.AnswerResult{
		Answer:           domain.RefusalAnswer(subjectName),
		ConfidenceTier:   confidence.Tier,
		ConfidenceScore:  confidence.Score,
		Citations:        []domain.Citation{},
		EvidenceSnippets: []string{},
		TopChunkIDs:      topIDs,
		Diagnostics:      diag,
	}
}

func chunkIDs(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, chunk := range chunks {
		out[i] = chunk.ChunkID
	}
	return out
}

func evidenceSnippets(chunks []domain.Chunk) []string {
	n := evidenceSnippetCount
	if len(chunks) < n {
		n = len(chunks)
	}
	out := make([]string, 0, n)
	for _, chunk := range chunks[:n] {
		out = append(out, truncateRunes(chunk.Text, evidenceSnippetChars)+"...")
	}
	return out
}
