package ports

import (
	"context"
	"io"

	"github.com/askmynotes/backend/internal/core/domain"
)

// SubjectRepository persists subject metadata.
type SubjectRepository interface {
	Create(ctx context.Context, subject *domain.Subject) error
	GetByID(ctx context.Context, id string) (*domain.Subject, error)
	List(ctx context.Context) ([]domain.Subject, error)
}

// NoteRepository persists and reads note state.
type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	GetByID(ctx context.Context, id string) (*domain.Note, error)
	UpdateStatus(ctx context.Context, id string, status domain.NoteStatus, errMessage string) error
}

// ConversationStore persists question/answer turns per study session.
type ConversationStore interface {
	SaveTurn(ctx context.Context, turn domain.ConversationTurn) error
	RecentTurns(ctx context.Context, sessionID, subjectID string, limit int) ([]domain.ConversationTurn, error)
}

// QALogStore persists the full outcome of every answered question and
// aggregates per-chunk retrieval frequency for the coverage heatmap.
type QALogStore interface {
	SaveEntry(ctx context.Context, entry domain.QALogEntry) error
	SubjectCoverage(ctx context.Context, subjectID string) ([]domain.CoverageBucket, error)
}

// ObjectStorage stores uploaded note files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes note upload events.
type MessageQueue interface {
	PublishNoteUploaded(ctx context.Context, noteID string) error
	SubscribeNoteUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored note, injecting location
// markers ([Page N], [Sheet N]) that chunking turns into citation references.
type TextExtractor interface {
	Extract(ctx context.Context, note *domain.Note) (string, error)
}

// Chunker splits extracted text into passages with location references.
type Chunker interface {
	Split(text string, format domain.SourceFormat) []domain.Passage
}

// Embedder builds vectors for passages and query text. Implementations own
// their retry policy; a returned error is terminal.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes passages and performs subject-scoped nearest-neighbor
// search. Search reports raw distances; similarity conversion happens in the
// retriever.
type VectorStore interface {
	IndexPassages(ctx context.Context, note *domain.Note, passages []domain.Passage, vectors [][]float32) error
	Search(ctx context.Context, subjectID string, queryVector []float32, limit int) ([]domain.SearchHit, error)
}

// TextGenerator produces model completions for a fully assembled prompt. The
// answering pipeline holds two instances: the primary model under
// deterministic decoding settings, and a fast auxiliary model for query
// expansion and reranking.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
