package xlsx

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/askmynotes/backend/internal/core/domain"
	"github.com/askmynotes/backend/internal/core/ports"
)

// Extractor flattens spreadsheet notes into text, one [Sheet N] marker per
// worksheet, rows joined with tabs.
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

	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return "", fmt.Errorf("parse xlsx %s: %w", note.Filename, err)
	}
	defer workbook.Close()

	var b strings.Builder
	for i, sheet := range workbook.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		var sheetText strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			sheetText.WriteString(line)
			sheetText.WriteString("\n")
		}
		if sheetText.Len() == 0 {
			continue
		}
		fmt.Fprintf(&b, "[Sheet %d] %s: %s\n", i+1, sheet, sheetText.String())
	}
	return strings.TrimSpace(b.String()), nil
}
