package usecase

import (
	"regexp"
	"strings"

	"github.com/askmynotes/backend/internal/core/domain"
)

var citationPattern = regexp.MustCompile(`\[SOURCE:\s*(.*?),\s*(.*?)\]`)

// extractCitations parses [SOURCE: file, location] markers out of the
// generated answer and resolves each against the chunks that built the
// prompt. A chunk matches when its location reference equals the captured
// location exactly and its file name equals or ends with the captured name
// (path-prefixed file names). First match wins; duplicate markers collapse to
// one citation; unresolvable markers are dropped.
func extractCitations(answer string, chunks []domain.Chunk) []domain.Citation {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}

	citations := make([]domain.Citation, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		name := strings.TrimSpace(match[1])
		location := strings.TrimSpace(match[2])
		sig := name + "\x00" + location
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}

		for _, chunk := range chunks {
			if chunk.LocationRef != location {
				continue
			}
			if chunk.FileName != name && !strings.HasSuffix(chunk.FileName, name) {
				continue
			}
			citations = append(citations, domain.Citation{
				FileName:     chunk.FileName,
				LocationRef:  chunk.LocationRef,
				ChunkID:      chunk.ChunkID,
				SourceFormat: chunk.SourceFormat,
			})
			break
		}
	}
	return citations
}
