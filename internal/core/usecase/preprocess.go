package usecase

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/askmynotes/backend/internal/core/domain"
)

const minKeywordLength = 3

const keywordBoundaryCutset = ".,?!:;()[]{}"

// Articles, common auxiliaries, and prepositions. Tokens in this set carry no
// retrieval signal and are dropped from the keyword list.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "am": {},
	"be": {}, "been": {}, "being": {},
	"do": {}, "does": {}, "did": {},
	"have": {}, "has": {}, "had": {},
	"will": {}, "would": {}, "shall": {}, "should": {},
	"can": {}, "could": {}, "may": {}, "might": {}, "must": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "to": {},
	"for": {}, "with": {}, "from": {}, "by": {}, "about": {},
	"into": {}, "over": {}, "under": {},
}

// preprocessQuery normalizes the raw question and extracts its keywords.
// Internal whitespace collapses to single spaces, a leading run of ?/! is
// stripped, and keywords are lower-cased tokens with boundary punctuation
// removed, stop words and short tokens dropped, first-occurrence order kept.
func preprocessQuery(raw string) (string, []string, error) {
	cleaned := strings.Join(strings.Fields(raw), " ")
	cleaned = strings.TrimSpace(strings.TrimLeft(cleaned, "?!"))
	if cleaned == "" {
		return "", nil, domain.WrapError(
			domain.ErrInvalidInput,
			"preprocess query",
			errors.New("query must be a non-empty string"),
		)
	}

	tokens := strings.Fields(strings.ToLower(cleaned))
	keywords := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		token = strings.Trim(token, keywordBoundaryCutset)
		if utf8.RuneCountInString(token) < minKeywordLength {
			continue
		}
		if _, stop := stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
	}

	return cleaned, keywords, nil
}

// truncateRunes cuts text after n characters. Slicing by rune keeps multibyte
// characters intact in snippets and prompts.
func truncateRunes(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
