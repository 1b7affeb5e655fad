package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/core/ports"
)

type ProcessNoteUseCase struct {
	notes     ports.NoteRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
}

func NewProcessNoteUseCase(
	notes ports.NoteRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
) *ProcessNoteUseCase {
	return &ProcessNoteUseCase{
		notes:     notes,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		vectorDB:  vectorDB,
	}
}

// ProcessByID runs extract, chunk, embed, index for one uploaded note and
// tracks the status transitions, marking the note failed on any error.
func (uc *ProcessNoteUseCase) ProcessByID(ctx context.Context, noteID string) error {
	if err := uc.notes.UpdateStatus(ctx, noteID, domain.NoteProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, noteID); err != nil {
		if failErr := uc.notes.UpdateStatus(ctx, noteID, domain.NoteFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.notes.UpdateStatus(ctx, noteID, domain.NoteReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessNoteUseCase) processPipeline(ctx context.Context, noteID string) error {
	note, err := uc.notes.GetByID(ctx, noteID)
	if err != nil {
		return fmt.Errorf("fetch note by id: %w", err)
	}

	text, err := uc.extractor.Extract(ctx, note)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}

	passages := uc.chunker.Split(text, note.SourceFormat)
	if len(passages) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk note", errors.New("chunking produced zero passages"))
	}

	texts := make([]string, len(passages))
	for i, passage := range passages {
		texts[i] = passage.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed passages",
			fmt.Errorf("vectors/passages mismatch: %d/%d", len(vectors), len(passages)),
		)
	}

	if err := uc.vectorDB.IndexPassages(ctx, note, passages, vectors); err != nil {
		return fmt.Errorf("index passages in vector db: %w", err)
	}
	return nil
}
