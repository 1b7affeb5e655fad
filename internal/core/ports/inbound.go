package ports

import (
	"context"
	"io"

	"github.com/askmynotes/backend/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the RAG answering pipeline.
type QuestionAnswerer interface {
	AnswerQuestion(
		ctx context.Context,
		query, subjectID, subjectName string,
		history []domain.ConversationTurn,
	) (*domain.AnswerResult, error)
}

// NoteIngestor is the inbound contract for note upload orchestration.
type NoteIngestor interface {
	Upload(ctx context.Context, subjectID, filename, mimeType string, body io.Reader) (*domain.Note, error)
}

// NoteProcessor is the inbound contract for asynchronous note processing.
type NoteProcessor interface {
	ProcessByID(ctx context.Context, noteID string) error
}
