package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/askmynotes/backend/internal/core/domain"
)

const rerankSnippetChars = 300

// rerankChunks asks the auxiliary model to reorder chunks by relevance to the
// question. Chunks the model omits are appended in their original order so
// reranking never loses recall. Best-effort: on any failure the input order is
// returned unchanged. The second return reports whether a reorder happened.
func (uc *AskUseCase) rerankChunks(ctx context.Context, query string, chunks []domain.Chunk) ([]domain.Chunk, bool) {
	if len(chunks) <= 2 {
		return chunks, false
	}

	raw, err := uc.auxiliary.Generate(ctx, buildRerankPrompt(query, chunks))
	if err != nil {
		slog.Warn("rerank_failed", "error", err)
		return chunks, false
	}

	order := parseRerankIndices(raw, len(chunks))
	if len(order) == 0 {
		slog.Warn("rerank_unparseable", "response", raw)
		return chunks, false
	}

	reordered := make([]domain.Chunk, 0, len(chunks))
	used := make([]bool, len(chunks))
	for _, idx := range order {
		reordered = append(reordered, chunks[idx])
		used[idx] = true
	}
	for i, chunk := range chunks {
		if !used[i] {
			reordered = append(reordered, chunk)
		}
	}
	return reordered, true
}

func buildRerankPrompt(query string, chunks []domain.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You rank study note excerpts by relevance to a question.

Question: %s

Excerpts:
`, query)
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, chunkSnippet(chunk.Text))
	}
	b.WriteString(`
Return the excerpt numbers ordered from most to least relevant, separated by
commas. Omit excerpts that are irrelevant. Output only numbers and commas.`)
	return b.String()
}

// chunkSnippet flattens newlines and truncates the text for the rerank prompt.
func chunkSnippet(text string) string {
	return truncateRunes(strings.Join(strings.Fields(text), " "), rerankSnippetChars)
}

// parseRerankIndices extracts 1-based indices from a comma-separated model
// response, dropping duplicates and out-of-range values. Returns 0-based
// indices.
func parseRerankIndices(raw string, n int) []int {
	out := make([]int, 0, n)
	used := make([]bool, n)
	for _, field := range strings.Split(strings.TrimSpace(raw), ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			continue
		}
		idx--
		if idx < 0 || idx >= n || used[idx] {
			continue
		}
		used[idx] = true
		out = append(out, idx)
	}
	return out
}
