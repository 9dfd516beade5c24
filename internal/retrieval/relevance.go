package retrieval

import (
	"fmt"
	"math"

	"github.com/hyperjump/copilot/internal/models"
)

// Relevance converts a raw inner product between unit vectors into a relevance score.
type Relevance func(innerProduct float64) models.Score

// Relevance function names accepted by ParseRelevance.
const (
	RelevanceEuclidean = "euclidean"
	RelevanceCosine    = "cosine"
	RelevanceNone      = "none"
)

// Euclidean maps the squared L2 distance between unit vectors, d² = 2 - 2·ip, to
// 1 - d²/sqrt(2). Identical vectors score 1, orthogonal ones about -0.41; a score of
// 0.35 needs an inner product of roughly 0.54.
func Euclidean(ip float64) models.Score {
	ip = clamp(ip, -1, 1)
	d2 := 2 - 2*ip
	return models.ScoreOf(1 - d2/math.Sqrt2)
}

// Cosine uses the inner product itself, clamped to [0, 1].
func Cosine(ip float64) models.Score {
	return models.ScoreOf(clamp(ip, 0, 1))
}

// None discards the score; results keep their order but carry no calibration.
func None(float64) models.Score {
	return models.NoScore
}

// ParseRelevance returns the relevance function with the given name. Empty selects Euclidean.
func ParseRelevance(name string) (Relevance, error) {
	switch name {
	case RelevanceEuclidean, "":
		return Euclidean, nil
	case RelevanceCosine:
		return Cosine, nil
	case RelevanceNone:
		return None, nil
	default:
		return nil, fmt.Errorf("unknown relevance function: %s (supported: euclidean, cosine, none)", name)
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
