package usecase

import (
	"testing"

	"github.com/askmynotes/backend/internal/core/domain"
)

func TestComputeConfidenceEmptyFailsClosed(t *testing.T) {
	result := computeConfidence(nil, nil, nil, DefaultConfidenceWeights())
	if result.Tier != domain.TierNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", result.Tier)
	}
	if result.Score != 0 {
		t.Fatalf("expected score 0, got %f", result.Score)
	}
}

func TestComputeConfidenceUniformlyHighIsHigh(t *testing.T) {
	for _, similarities := range [][]float64{
		{0.95, 0.95},
		{0.95, 0.93, 0.91, 0.92},
		{0.99, 0.98, 0.97},
	} {
		result := computeConfidence(similarities, nil, nil, DefaultConfidenceWeights())
		if result.Tier != domain.TierHigh {
			t.Fatalf("expected HIGH for %v, got %s (score %f)", similarities, result.Tier, result.Score)
		}
	}
}

func TestComputeConfidenceUniformlyLowIsNotFound(t *testing.T) {
	for _, similarities := range [][]float64{
		{0.55, 0.55},
		{0.55, 0.50, 0.52},
		{0.10, 0.05},
	} {
		result := computeConfidence(similarities, nil, nil, DefaultConfidenceWeights())
		if result.Tier != domain.TierNotFound {
			t.Fatalf("expected NOT_FOUND for %v, got %s (score %f)", similarities, result.Tier, result.Score)
		}
	}
}

// A single strong hit among noise must score strictly below a consistently
// relevant result set, even though its maximum similarity is higher. A
// max-only scorer would invert this ordering.
func TestComputeConfidenceSpreadPenaltyOrdering(t *testing.T) {
	weights := DefaultConfidenceWeights()
	inconsistent := computeConfidence([]float64{0.95, 0.40, 0.35}, nil, nil, weights)
	consistent := computeConfidence([]float64{0.80, 0.81, 0.79}, nil, nil, weights)

	if inconsistent.Score >= consistent.Score {
		t.Fatalf("expected inconsistent %f < consistent %f", inconsistent.Score, consistent.Score)
	}
	if inconsistent.Tier == domain.TierHigh {
		t.Fatalf("single outlier must not reach HIGH, got %s", inconsistent.Tier)
	}
}

func TestComputeConfidenceKeywordBonus(t *testing.T) {
	similarities := []float64{0.75, 0.73, 0.74}
	texts := []string{
		"This discusses photosynthesis extensively",
		"Photosynthesis is the process",
		"More on photosynthesis",
	}
	keywords := []string{"photosynthesis"}

	with := computeConfidence(similarities, keywords, texts, DefaultConfidenceWeights())
	without := computeConfidence(similarities, nil, nil, DefaultConfidenceWeights())

	if with.KeywordBonus <= 0 {
		t.Fatalf("expected positive keyword bonus, got %f", with.KeywordBonus)
	}
	if with.KeywordBonus > 0.05 {
		t.Fatalf("keyword bonus must be capped at 0.05, got %f", with.KeywordBonus)
	}
	if with.Score <= without.Score {
		t.Fatalf("expected keyword bonus to raise the score: %f vs %f", with.Score, without.Score)
	}
}

func TestComputeConfidenceKeywordMatchIsCaseInsensitive(t *testing.T) {
	result := computeConfidence(
		[]float64{0.80},
		[]string{"photosynthesis"},
		[]string{"PHOTOSYNTHESIS overview"},
		DefaultConfidenceWeights(),
	)
	if result.KeywordBonus <= 0 {
		t.Fatalf("expected case-insensitive keyword hit, got bonus %f", result.KeywordBonus)
	}
}

func TestComputeConfidenceReportsDiagnostics(t *testing.T) {
	result := computeConfidence([]float64{0.85, 0.83}, nil, nil, DefaultConfidenceWeights())
	if result.MaxScore != 0.85 {
		t.Fatalf("expected maxScore 0.85, got %f", result.MaxScore)
	}
	if result.MinScore != 0.83 {
		t.Fatalf("expected minScore 0.83, got %f", result.MinScore)
	}
	if result.AvgScore <= 0.83 || result.AvgScore >= 0.85 {
		t.Fatalf("expected avg between min and max, got %f", result.AvgScore)
	}
	if result.Variance < 0 {
		t.Fatalf("variance must be non-negative, got %f", result.Variance)
	}
}

func TestComputeConfidenceScoreClamped(t *testing.T) {
	result := computeConfidence([]float64{1.0, 1.0, 1.0}, []string{"x"}, []string{"x", "x", "x"}, DefaultConfidenceWeights())
	if result.Score > 1.0 {
		t.Fatalf("score must be clamped to 1, got %f", result.Score)
	}
}

func TestConfidenceWeightsZeroValueFallsBackToDefaults(t *testing.T) {
	result := computeConfidence([]float64{0.95, 0.95}, nil, nil, ConfidenceWeights{})
	if result.Tier != domain.TierHigh {
		t.Fatalf("expected defaults applied, got %s (score %f)", result.Tier, result.Score)
	}
}
