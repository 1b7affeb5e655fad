package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/core/ports"
)

// Extractor reads txt and markdown notes verbatim. No location markers are
// injected; chunking falls back to section references.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, note *domain.Note) (string, error) {
	reader, err := e.storage.Open(ctx, note.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open note file: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read note file: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("file is not valid utf-8 text: %s", note.Filename)
	}
	return strings.TrimSpace(string(raw)), nil
}
