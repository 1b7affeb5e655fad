package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/askmynotes/backend/internal/core/domain"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeVectorStore struct {
	hits      []domain.SearchHit
	err       error
	searches  int
	lastLimit int
}

func (f *fakeVectorStore) IndexPassages(_ context.Context, _ *domain.Note, _ []domain.Passage, _ [][]float32) error {
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, _ string, _ []float32, limit int) ([]domain.SearchHit, error) {
	f.searches++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

// Auxiliary that always fails, degrading expansion and reranking to no-ops.
func failingAuxiliary() *fakeGenerator {
	return &fakeGenerator{err: errors.New("auxiliary unavailable")}
}

func highConfidenceHits() []domain.SearchHit {
	return []domain.SearchHit{
		{ChunkID: "c1", Text: "Chlorophyll absorbs light energy.", FileName: "notes.pdf", SourceFormat: domain.FormatPDF, LocationRef: "Page 1", Distance: 0.08},
		{ChunkID: "c2", Text: "Photosynthesis occurs in chloroplasts.", FileName: "notes.pdf", SourceFormat: domain.FormatPDF, LocationRef: "Page 2", Distance: 0.10},
	}
}

func TestAnswerQuestionRejectsInvalidInputBeforeExternalCalls(t *testing.T) {
	embedder := &fakeEmbedder{}
	vectorDB := &fakeVectorStore{}
	primary := &fakeGenerator{}
	uc := NewAskUseCase(embedder, vectorDB, primary, failingAuxiliary(), AskConfig{})

	for _, query := range []string{"", "   ", "?!?"} {
		_, err := uc.AnswerQuestion(context.Background(), query, "s1", "Biology", nil)
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("query %q: expected ErrInvalidInput, got %v", query, err)
		}
	}
	if embedder.calls != 0 {
		t.Fatalf("embedder must not be called for invalid input, got %d calls", embedder.calls)
	}
	if vectorDB.searches != 0 {
		t.Fatalf("vector store must not be called for invalid input, got %d searches", vectorDB.searches)
	}
	if len(primary.prompts) != 0 {
		t.Fatalf("generator must not be called for invalid input")
	}
}

func TestAnswerQuestionZeroChunksRefuses(t *testing.T) {
	uc := NewAskUseCase(&fakeEmbedder{}, &fakeVectorStore{}, &fakeGenerator{}, failingAuxiliary(), AskConfig{})

	result, err := uc.AnswerQuestion(context.Background(), "What is photosynthesis?", "s1", "Biology", nil)
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	if result.ConfidenceTier != domain.TierNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", result.ConfidenceTier)
	}
	if result.Answer != "Not found in your notes for Biology" {
		t.Fatalf("expected refusal template, got %q", result.Answer)
	}
	if result.Citations == nil || len(result.Citations) != 0 {
		t.Fatalf("expected empty non-nil citations, got %v", result.Citations)
	}
}

func TestAnswerQuestionLowSimilarityRefusesWithoutGenerating(t *testing.T) {
	// Distance 1.2 maps to similarity 0.4, well under the gate.
	vectorDB := &fakeVectorStore{hits: []domain.SearchHit{
		{ChunkID: "c1", Text: "unrelated", FileName: "notes.pdf", LocationRef: "Page 1", Distance: 1.2},
	}}
	primary := &fakeGenerator{response: "should never be used"}
	uc := NewAskUseCase(&fakeEmbedder{}, vectorDB, primary, failingAuxiliary(), AskConfig{})

	result, err := uc.AnswerQuestion(context.Background(), "What is photosynthesis?", "s1", "Biology", nil)
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	if result.ConfidenceTier != domain.TierNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", result.ConfidenceTier)
	}
	if result.Answer != domain.RefusalAnswer("Biology") {
		t.Fatalf("expected refusal template, got %q", result.Answer)
	}
	if len(primary.prompts) != 0 {
		t.Fatalf("primary generator must not run below the confidence gate")
	}
}

func TestAnswerQuestionGroundedAnswer(t *testing.T) {
	vectorDB := &fakeVectorStore{hits: highConfidenceHits()}
	primary := &fakeGenerator{response: "Chlorophyll absorbs light [SOURCE: notes.pdf, Page 1]."}
	uc := NewAskUseCase(&fakeEmbedder{}, vectorDB, primary, failingAuxiliary(), AskConfig{})

	result, err := uc.AnswerQuestion(context.Background(), "What absorbs light?", "s1", "Biology", nil)
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	if result.ConfidenceTier != domain.TierHigh {
		t.Fatalf("expected HIGH, got %s (score %f)", result.ConfidenceTier, result.ConfidenceScore)
	}
	if len(result.Citations) != 1 || result.Citations[0].ChunkID != "c1" {
		t.Fatalf("expected citation to c1, got %v", result.Citations)
	}
	if len(result.EvidenceSnippets) == 0 {
		t.Fatalf("expected evidence snippets")
	}
	if len(result.TopChunkIDs) != 2 {
		t.Fatalf("expected 2 top chunk ids, got %v", result.TopChunkIDs)
	}
	if len(primary.prompts) != 1 {
		t.Fatalf("expected single generation call, got %d", len(primary.prompts))
	}
	if !strings.Contains(primary.prompts[0], "[SOURCE 1]") {
		t.Fatalf("expected grounded prompt, got:\n%s", primary.prompts[0])
	}
}

func TestAnswerQuestionSuppressesUngroundedAnswer(t *testing.T) {
	vectorDB := &fakeVectorStore{hits: highConfidenceHits()}
	primary := &fakeGenerator{response: "A confident answer citing nothing at all."}
	uc := NewAskUseCase(&fakeEmbedder{}, vectorDB, primary, failingAuxiliary(), AskConfig{})

	result, err := uc.AnswerQuestion(context.Background(), "What absorbs light?", "s1", "Biology", nil)
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	if result.ConfidenceTier != domain.TierNotFound {
		t.Fatalf("expected demotion to NOT_FOUND, got %s", result.ConfidenceTier)
	}
	if result.Answer != domain.RefusalAnswer("Biology") {
		t.Fatalf("expected refusal template, got %q", result.Answer)
	}
	if !result.Diagnostics.GroundingEnforced {
		t.Fatalf("expected groundingEnforced diagnostic")
	}
	if len(result.Citations) != 0 {
		t.Fatalf("expected no citations, got %v", result.Citations)
	}
}

func TestAnswerQuestionEmbedFailureIsPipelineError(t *testing.T) {
	uc := NewAskUseCase(
		&fakeEmbedder{err: errors.New("embed down")},
		&fakeVectorStore{},
		&fakeGenerator{},
		failingAuxiliary(),
		AskConfig{},
	)

	_, err := uc.AnswerQuestion(context.Background(), "What is photosynthesis?", "s1", "Biology", nil)
	if !domain.IsKind(err, domain.ErrPipeline) {
		t.Fatalf("expected ErrPipeline, got %v", err)
	}
}

func TestAnswerQuestionSearchFailureIsPipelineError(t *testing.T) {
	uc := NewAskUseCase(
		&fakeEmbedder{},
		&fakeVectorStore{err: errors.New("vector db down")},
		&fakeGenerator{},
		failingAuxiliary(),
		AskConfig{},
	)

	_, err := uc.AnswerQuestion(context.Background(), "What is photosynthesis?", "s1", "Biology", nil)
	if !domain.IsKind(err, domain.ErrPipeline) {
		t.Fatalf("expected ErrPipeline, got %v", err)
	}
}

func TestAnswerQuestionGenerateFailureIsPipelineError(t *testing.T) {
	uc := NewAskUseCase(
		&fakeEmbedder{},
		&fakeVectorStore{hits: highConfidenceHits()},
		&fakeGenerator{err: errors.New("model down")},
		failingAuxiliary(),
		AskConfig{},
	)

	_, err := uc.AnswerQuestion(context.Background(), "What is photosynthesis?", "s1", "Biology", nil)
	if !domain.IsKind(err, domain.ErrPipeline) {
		t.Fatalf("expected ErrPipeline, got %v", err)
	}
}

func TestAnswerQuestionSearchesOncePerExpandedQuery(t *testing.T) {
	vectorDB := &fakeVectorStore{hits: highConfidenceHits()}
	auxiliary := &fakeGenerator{response: "How does light absorption work?\nWhat captures light in plants?"}
	primary := &fakeGenerator{response: "Answer [SOURCE: notes.pdf, Page 1]."}
	uc := NewAskUseCase(&fakeEmbedder{}, vectorDB, primary, auxiliary, AskConfig{TopK: 4})

	result, err := uc.AnswerQuestion(context.Background(), "What absorbs light?", "s1", "Biology", nil)
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	// Original plus two paraphrases.
	if vectorDB.searches != 3 {
		t.Fatalf("expected 3 searches, got %d", vectorDB.searches)
	}
	if vectorDB.lastLimit != 4 {
		t.Fatalf("expected per-query limit 4, got %d", vectorDB.lastLimit)
	}
	if len(result.Diagnostics.ExpandedQueries) != 3 {
		t.Fatalf("expected 3 expanded queries, got %v", result.Diagnostics.ExpandedQueries)
	}
	// Identical hits from every query collapse to the originals.
	if result.Diagnostics.DedupedChunks != 2 {
		t.Fatalf("expected 2 deduped chunks, got %d", result.Diagnostics.DedupedChunks)
	}
}

func TestAnswerQuestionIncludesHistoryInPrompt(t *testing.T) {
	primary := &fakeGenerator{response: "Answer [SOURCE: notes.pdf, Page 1]."}
	uc := NewAskUseCase(&fakeEmbedder{}, &fakeVectorStore{hits: highConfidenceHits()}, primary, failingAuxiliary(), AskConfig{})

	history := []domain.ConversationTurn{{Query: "What is chlorophyll?", Answer: "A pigment."}}
	_, err := uc.AnswerQuestion(context.Background(), "Where is it found?", "s1", "Biology", history)
	if err != nil {
		t.Fatalf("AnswerQuestion() error = %v", err)
	}
	if len(primary.prompts) != 1 || !strings.Contains(primary.prompts[0], "What is chlorophyll?") {
		t.Fatalf("expected history in prompt")
	}
}

func TestNewAskUseCaseClampsTopK(t *testing.T) {
	uc := NewAskUseCase(&fakeEmbedder{}, &fakeVectorStore{}, &fakeGenerator{}, failingAuxiliary(), AskConfig{TopK: 50})
	if uc.topK != maxSearchResults {
		t.Fatalf("expected topK clamped to %d, got %d", maxSearchResults, uc.topK)
	}
	uc = NewAskUseCase(&fakeEmbedder{}, &fakeVectorStore{}, &fakeGenerator{}, failingAuxiliary(), AskConfig{})
	if uc.topK != defaultTopK {
		t.Fatalf("expected default topK %d, got %d", defaultTopK, uc.topK)
	}
}

func TestSimilarityFromDistance(t *testing.T) {
	cases := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{1, 0.5},
		{2, 0},
		{3, 0},
	}
	for _, tc := range cases {
		if got := similarityFromDistance(tc.distance); got != tc.want {
			t.Fatalf("similarityFromDistance(%f) = %f, want %f", tc.distance, got, tc.want)
		}
	}
}

func TestEvidenceSnippetsKeepMultibyteRunesIntact(t *testing.T) {
	long := strings.Repeat("\u00e9", evidenceSnippetChars+50)

	snippets := evidenceSnippets([]domain.Chunk{{Text: long}})
	if len(snippets) != 1 {
		t.Fatalf("got %d snippets, want 1", len(snippets))
	}
	if !utf8.ValidString(snippets[0]) {
		t.Fatalf("snippet is not valid UTF-8")
	}

	trimmed := strings.TrimSuffix(snippets[0], "...")
	if utf8.RuneCountInString(trimmed) != evidenceSnippetChars {
		t.Fatalf("snippet has %d characters, want %d", utf8.RuneCountInString(trimmed), evidenceSnippetChars)
	}
}
