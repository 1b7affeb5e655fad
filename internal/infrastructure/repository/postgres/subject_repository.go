package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/askmynotes/backend/internal/core/domain"
)

type SubjectRepository struct {
	db *sql.DB
}

func NewSubjectRepository(db *sql.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

func (r *SubjectRepository) Create(ctx context.Context, subject *domain.Subject) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO subjects (id, name, created_at)
VALUES ($1, $2, $3)
`, subject.ID, subject.Name, subject.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*domain.Subject, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, created_at
FROM subjects
WHERE id = $1
`, id)

	var subject domain.Subject
	if err := row.Scan(&subject.ID, &subject.Name, &subject.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get subject", fmt.Errorf("subject %s", id))
		}
		return nil, fmt.Errorf("scan subject: %w", err)
	}
	return &subject, nil
}

func (r *SubjectRepository) List(ctx context.Context) ([]domain.Subject, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, created_at
FROM subjects
ORDER BY created_at ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Subject, 0)
	for rows.Next() {
		var subject domain.Subject
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject row: %w", err)
		}
		out = append(out, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subjects: %w", err)
	}
	return out, nil
}
