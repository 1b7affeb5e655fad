package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type NoteStatus string

const (
	NoteUploaded   NoteStatus = "uploaded"
	NoteProcessing NoteStatus = "processing"
	NoteReady      NoteStatus = "ready"
	NoteFailed     NoteStatus = "failed"
)

type SourceFormat string

const (
	FormatPDF     SourceFormat = "pdf"
	FormatTXT     SourceFormat = "txt"
	FormatMD      SourceFormat = "md"
	FormatXLSX    SourceFormat = "xlsx"
	FormatDOCX    SourceFormat = "docx"
	FormatPPTX    SourceFormat = "pptx"
	FormatUnknown SourceFormat = "unknown"
)

// FormatFromFilename maps a file extension to its source format.
func FormatFromFilename(name string) SourceFormat {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "pdf":
		return FormatPDF
	case "txt":
		return FormatTXT
	case "md", "markdown":
		return FormatMD
	case "xlsx":
		return FormatXLSX
	case "docx":
		return FormatDOCX
	case "pptx":
		return FormatPPTX
	default:
		return FormatUnknown
	}
}

// Note is one uploaded study document belonging to a subject.
type Note struct {
	ID           string       `json:"id"`
	SubjectID    string       `json:"subject_id"`
	Filename     string       `json:"filename"`
	MimeType     string       `json:"mime_type"`
	SourceFormat SourceFormat `json:"source_format"`
	StoragePath  string       `json:"storage_path"`
	Status       NoteStatus   `json:"status"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Passage is one chunk of extracted note text, ready for embedding. The
// location reference is the human-readable citation target (Page 3, Slide 2,
// Sheet 1, Section 4).
type Passage struct {
	Text        string
	LocationRef string
	Index       int
}
