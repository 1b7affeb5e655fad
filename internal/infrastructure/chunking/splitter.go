package chunking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/askmynotes/backend/internal/core/domain"
)

// Extractors inject location markers into the text stream; the splitter turns
// them into citation references on each passage.
var locationMarker = regexp.MustCompile(`\[(Page|Slide|Sheet) (\d+)\]`)

// Splitter cuts extracted text into overlapping passages. Chunk size adapts to
// the source format: dense formats get smaller windows so one passage stays
// within a single citable location.
type Splitter struct {
	chunkSize int
	overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 600
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

func (s *Splitter) sizeFor(format domain.SourceFormat) int {
	switch format {
	case domain.FormatPDF:
		return 500
	case domain.FormatPPTX:
		return 400
	case domain.FormatDOCX:
		return 550
	default:
		return s.chunkSize
	}
}

func (s *Splitter) Split(text string, format domain.SourceFormat) []domain.Passage {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	size := s.sizeFor(format)
	overlap := s.overlap
	if overlap >= size {
		overlap = size / 4
	}

	out := make([]domain.Passage, 0)
	section := 0
	for _, segment := range splitByMarkers(text) {
		for _, chunk := range window(segment.text, size, overlap) {
			ref := segment.ref
			if ref == "" {
				section++
				ref = fmt.Sprintf("Section %d", section)
			}
			out = append(out, domain.Passage{
				Text:        chunk,
				LocationRef: ref,
				Index:       len(out),
			})
		}
	}
	return out
}

type segment struct {
	ref  string
	text string
}

// splitByMarkers cuts the text at every location marker. Text before the first
// marker becomes an unmarked segment.
func splitByMarkers(text string) []segment {
	matches := locationMarker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return []segment{{text: text}}
	}

	out := make([]segment, 0, len(matches)+1)
	if head := text[:matches[0][0]]; strings.TrimSpace(head) != "" {
		out = append(out, segment{text: head})
	}
	for i, match := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		kind := text[match[2]:match[3]]
		number := text[match[4]:match[5]]
		out = append(out, segment{
			ref:  kind + " " + number,
			text: text[match[1]:end],
		})
	}
	return out
}

func window(text string, size, overlap int) []string {
	runes := []rune(text)
	step := size - overlap
	if step <= 0 {
		step = size
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
