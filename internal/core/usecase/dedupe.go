package usecase

import (
	"crypto/sha256"

	"github.com/askmynotes/backend/internal/core/domain"
)

// deduplicateChunks keeps the first chunk per content fingerprint, preserving
// relative order. Fingerprint equality (SHA-256 of the exact text) is treated
// as text equality; at this data volume the collision risk is accepted.
func deduplicateChunks(chunks []domain.Chunk) []domain.Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	seen := make(map[[sha256.Size]byte]struct{}, len(chunks))
	out := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		fingerprint := sha256.Sum256([]byte(chunk.Text))
		if _, dup := seen[fingerprint]; dup {
			continue
		}
		seen[fingerprint] = struct{}{}
		out = append(out, chunk)
	}
	return out
}
