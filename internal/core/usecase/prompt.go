package usecase

import (
	"fmt"
	"strings"

	"github.com/askmynotes/backend/internal/core/domain"
)

const (
	contextTurns        = 3
	contextAnswerChars  = 200
	sourceBlockDivider  = "\n---\n"
	systemPromptPattern = `You are AskMyNotes, a strict study assistant. You ONLY answer questions using the
source material provided below in [SOURCE] blocks.

RULES, you MUST follow ALL of them without exception:
1. NEVER use any knowledge outside the [SOURCE] blocks below.
2. If the [SOURCE] blocks do not contain enough information, respond EXACTLY:
   "Not found in your notes for %[1]s"
   Do NOT attempt to answer from memory. Do NOT guess. Do NOT fill gaps.
3. Every factual claim in your answer MUST cite its source using:
   [SOURCE: {filename}, {location_ref}]
4. Do NOT rephrase, embellish, or add context not present in the sources.
5. If sources partially answer the question, answer only the supported part
   and clearly state what could not be found.
6. Confidence is pre-computed; your answer must match the confidence tier: %[2]s
   - HIGH: answer fully from sources
   - MEDIUM: answer but note uncertainty
   - LOW: answer fragments only and warn the student
%[3]s
SOURCES:
%[4]s

---
Student's Question: %[5]s`
)

// buildPrompt assembles the grounded system prompt: strict source-only rules,
// the refusal wording for this subject, optional conversation context, one
// [SOURCE n] block per chunk, and the question itself.
func buildPrompt(
	subjectName string,
	tier domain.ConfidenceTier,
	chunks []domain.Chunk,
	query string,
	history []domain.ConversationTurn,
) string {
	return fmt.Sprintf(
		systemPromptPattern,
		subjectName,
		tier,
		buildConversationContext(history),
		buildSourcesBlock(chunks),
		query,
	)
}

func buildSourcesBlock(chunks []domain.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		parts = append(parts, fmt.Sprintf(
			"[SOURCE %d]\nFile: %s\nLocation: %s\nFormat: %s\nContent:\n%s\n",
			i+1,
			chunk.FileName,
			chunk.LocationRef,
			strings.ToUpper(string(chunk.SourceFormat)),
			chunk.Text,
		))
	}
	return strings.Join(parts, sourceBlockDivider)
}

// buildConversationContext renders up to the last contextTurns prior turns.
// The block is labeled non-factual: it exists so the model can resolve
// pronouns and references, never as citable evidence.
func buildConversationContext(history []domain.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > contextTurns {
		history = history[len(history)-contextTurns:]
	}

	var b strings.Builder
	b.WriteString("\nCONVERSATION CONTEXT (for resolving pronouns and references ONLY, never citable evidence):\n")
	for i, turn := range history {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", i+1, turn.Query, i+1, truncateAnswer(turn.Answer))
	}
	return b.String()
}

func truncateAnswer(answer string) string {
	flat := strings.Join(strings.Fields(answer), " ")
	if truncated := truncateRunes(flat, contextAnswerChars); len(truncated) < len(flat) {
		return truncated + "..."
	}
	return flat
}
