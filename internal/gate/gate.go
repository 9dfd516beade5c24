// Package gate decides from retrieval scores whether the pipeline may call the generator.
package gate

import "github.com/hyperjump/copilot/internal/models"

// DefaultThreshold is the minimum best relevance score needed to answer.
const DefaultThreshold = 0.35

// Reason explains a gate decision.
type Reason string

const (
	ReasonEmpty          Reason = "empty"
	ReasonUnscored       Reason = "unscored"
	ReasonAboveThreshold Reason = "above_threshold"
	ReasonBelowThreshold Reason = "below_threshold"
)

// Decision is the outcome of evaluating a retrieval result.
type Decision struct {
	Allow     bool
	Reason    Reason
	BestScore models.Score
}

// Gate compares the single best score against Threshold. An average is never used.
type Gate struct {
	Threshold float64
}

// New returns a gate with the given threshold.
func New(threshold float64) *Gate {
	return &Gate{Threshold: threshold}
}

// Evaluate refuses an empty result, allows a result with no scores at all, and otherwise
// allows only when the best present score reaches the threshold.
func (g *Gate) Evaluate(result models.RetrievalResult) Decision {
	if len(result) == 0 {
		return Decision{Reason: ReasonEmpty, BestScore: models.NoScore}
	}

	best := models.NoScore
	for _, sp := range result {
		v, ok := sp.Score.Value()
		if !ok {
			continue
		}
		if b, has := best.Value(); !has || v > b {
			best = models.ScoreOf(v)
		}
	}

	v, ok := best.Value()
	switch {
	case !ok:
		return Decision{Allow: true, Reason: ReasonUnscored, BestScore: best}
	case v >= g.Threshold:
		return Decision{Allow: true, Reason: ReasonAboveThreshold, BestScore: best}
	default:
		return Decision{Reason: ReasonBelowThreshold, BestScore: best}
	}
}
