package usecase

import (
	"math"
	"strings"

	"github.com/askmynotes/backend/internal/core/domain"
)

// Tier thresholds on the combined score, ascending.
const (
	thresholdLow    = 0.60
	thresholdMedium = 0.75
	thresholdHigh   = 0.90
)

// ConfidenceWeights are the coefficients of the combined confidence score.
// The linear combination is Max*max + Avg*avg + keywordBonus -
// SpreadPenalty*stddev, clamped to [0,1].
type ConfidenceWeights struct {
	Max           float64
	Avg           float64
	SpreadPenalty float64
	KeywordCap    float64
}

// DefaultConfidenceWeights rewards a strong best match while requiring
// consistency across results. Max and Avg sum to 1.0 so uniformly excellent
// retrievals score as excellent; the spread penalty works on the standard
// deviation, which keeps a single lucky hit among noise from outscoring a
// consistently relevant result set.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Max:           0.70,
		Avg:           0.30,
		SpreadPenalty: 0.15,
		KeywordCap:    0.05,
	}
}

func (w ConfidenceWeights) normalize() ConfidenceWeights {
	def := DefaultConfidenceWeights()
	out := w
	if out.Max <= 0 {
		out.Max = def.Max
	}
	if out.Avg <= 0 {
		out.Avg = def.Avg
	}
	if out.SpreadPenalty < 0 {
		out.SpreadPenalty = def.SpreadPenalty
	}
	if out.KeywordCap <= 0 {
		out.KeywordCap = def.KeywordCap
	}
	return out
}

// computeConfidence scores one retrieval result set. Empty input fails closed
// to NOT_FOUND. Keywords and chunkTexts are optional; when both are present,
// each case-insensitive keyword occurrence in a chunk counts toward a bonus of
// min(cap, hits/chunks*0.10).
func computeConfidence(
	similarities []float64,
	keywords []string,
	chunkTexts []string,
	weights ConfidenceWeights,
) domain.ConfidenceResult {
	if len(similarities) == 0 {
		return domain.ConfidenceResult{Tier: domain.TierNotFound}
	}
	weights = weights.normalize()

	maxScore := similarities[0]
	minScore := similarities[0]
	sum := 0.0
	for _, s := range similarities {
		if s > maxScore {
			maxScore = s
		}
		if s < minScore {
			minScore = s
		}
		sum += s
	}
	avgScore := sum / float64(len(similarities))

	variance := 0.0
	for _, s := range similarities {
		diff := s - avgScore
		variance += diff * diff
	}
	variance /= float64(len(similarities))
	stdDev := math.Sqrt(variance)

	keywordBonus := 0.0
	if len(keywords) > 0 && len(chunkTexts) > 0 {
		hits := 0
		for _, text := range chunkTexts {
			lower := strings.ToLower(text)
			for _, keyword := range keywords {
				if strings.Contains(lower, keyword) {
					hits++
				}
			}
		}
		keywordBonus = math.Min(weights.KeywordCap, float64(hits)/float64(len(chunkTexts))*0.10)
	}

	score := weights.Max*maxScore + weights.Avg*avgScore + keywordBonus - weights.SpreadPenalty*stdDev
	score = math.Max(0, math.Min(1, score))

	return domain.ConfidenceResult{
		Tier:         tierForScore(score),
		Score:        score,
		MaxScore:     maxScore,
		AvgScore:     avgScore,
		MinScore:     minScore,
		Variance:     variance,
		KeywordBonus: keywordBonus,
	}
}

func tierForScore(score float64) domain.ConfidenceTier {
	switch {
	case score < thresholdLow:
		return domain.TierNotFound
	case score < thresholdMedium:
		return domain.TierLow
	case score < thresholdHigh:
		return domain.TierMedium
	default:
		return domain.TierHigh
	}
}
