package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/core/ports"
	"github.com/askmynotes/backend/internal/infrastructure/extractor/pdf"
	"github.com/askmynotes/backend/internal/infrastructure/extractor/plaintext"
	"github.com/askmynotes/backend/internal/infrastructure/extractor/xlsx"
)

// Dispatcher routes a note to the extractor for its source format.
type Dispatcher struct {
	plaintext ports.TextExtractor
	pdf       ports.TextExtractor
	xlsx      ports.TextExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	return &Dispatcher{
		plaintext: plaintext.NewExtractor(storage),
		pdf:       pdf.NewExtractor(storage),
		xlsx:      xlsx.NewExtractor(storage),
	}
}

func (d *Dispatcher) Extract(ctx context.Context, note *domain.Note) (string, error) {
	switch note.SourceFormat {
	case domain.FormatPDF:
		return d.pdf.Extract(ctx, note)
	case domain.FormatXLSX:
		return d.xlsx.Extract(ctx, note)
	case domain.FormatTXT, domain.FormatMD:
		return d.plaintext.Extract(ctx, note)
	default:
		return "", domain.WrapError(
			domain.ErrInvalidInput,
			"extract text",
			errors.New(unsupportedMessage(note)),
		)
	}
}

func unsupportedMessage(note *domain.Note) string {
	return fmt.Sprintf("unsupported source format %q for %s", note.SourceFormat, note.Filename)
}
