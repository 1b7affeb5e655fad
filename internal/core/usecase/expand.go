package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Number of paraphrases requested from the auxiliary model.
const expansionCount = 3

// expandQuery widens retrieval recall by asking the fast auxiliary model for
// alternative phrasings of the question. Expansion is best-effort: any failure
// degrades to the original query alone and never surfaces to the caller.
func (uc *AskUseCase) expandQuery(ctx context.Context, query, subjectName string) []string {
	raw, err := uc.auxiliary.Generate(ctx, buildExpansionPrompt(query, subjectName))
	if err != nil {
		slog.Warn("query_expansion_failed", "error", err)
		return []string{query}
	}

	out := make([]string, 0, expansionCount+1)
	out = append(out, query)
	seen := map[string]struct{}{query: {}}
	for _, alt := range parseExpansionLines(raw, expansionCount) {
		if _, dup := seen[alt]; dup {
			continue
		}
		seen[alt] = struct{}{}
		out = append(out, alt)
	}
	return out
}

func buildExpansionPrompt(query, subjectName string) string {
	return fmt.Sprintf(`You rephrase study questions to improve search recall.
Produce exactly %d alternative phrasings of the student's question about %s.
One phrasing per line. No numbering, no bullets, no explanations.

Question: %s`, expansionCount, subjectName, query)
}

func parseExpansionLines(raw string, limit int) []string {
	out := make([]string, 0, limit)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}
