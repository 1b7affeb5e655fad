package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/askmynotes/backend/internal/core/domain"
)

type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) Create(ctx context.Context, note *domain.Note) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO notes (
	id, subject_id, filename, mime_type, source_format, storage_path, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		note.ID, note.SubjectID, note.Filename, note.MimeType, string(note.SourceFormat),
		note.StoragePath, string(note.Status), note.Error, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (r *NoteRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, subject_id, filename, mime_type, source_format, storage_path, status, COALESCE(error_message, ''), created_at, updated_at
FROM notes
WHERE id = $1
`, id)

	var note domain.Note
	var format, status string
	err := row.Scan(
		&note.ID, &note.SubjectID, &note.Filename, &note.MimeType, &format,
		&note.StoragePath, &status, &note.Error, &note.CreatedAt, &note.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get note", fmt.Errorf("note %s", id))
		}
		return nil, fmt.Errorf("scan note: %w", err)
	}
	note.SourceFormat = domain.SourceFormat(format)
	note.Status = domain.NoteStatus(status)
	return &note, nil
}

func (r *NoteRepository) UpdateStatus(ctx context.Context, id string, status domain.NoteStatus, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE notes
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update note status: %w", err)
	}
	return nil
}
