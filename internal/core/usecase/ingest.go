package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/core/ports"
)

type IngestNoteUseCase struct {
	subjects ports.SubjectRepository
	notes    ports.NoteRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
}

func NewIngestNoteUseCase(
	subjects ports.SubjectRepository,
	notes ports.NoteRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestNoteUseCase {
	return &IngestNoteUseCase{
		subjects: subjects,
		notes:    notes,
		storage:  storage,
		queue:    queue,
	}
}

// Upload stores the raw note, records its metadata, and publishes the event
// that triggers asynchronous processing. The subject must already exist.
func (uc *IngestNoteUseCase) Upload(
	ctx context.Context,
	subjectID, filename, mimeType string,
	body io.Reader,
) (*domain.Note, error) {
	if _, err := uc.subjects.GetByID(ctx, subjectID); err != nil {
		return nil, fmt.Errorf("resolve subject: %w", err)
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	note := &domain.Note{
		ID:           id,
		SubjectID:    subjectID,
		Filename:     filename,
		MimeType:     mimeType,
		SourceFormat: domain.FormatFromFilename(filename),
		StoragePath:  storageKey,
		Status:       domain.NoteUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.notes.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("create note metadata: %w", err)
	}

	if err := uc.queue.PublishNoteUploaded(ctx, note.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return note, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "note.bin"
	}
	return base
}
