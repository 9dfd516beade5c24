package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Score is a relevance score that may be absent. Stores that cannot produce a calibrated
// score return NoScore; it is never coerced to zero.
type Score struct {
	value   float64
	present bool
}

// NoScore marks a passage whose store produced no calibrated score.
var NoScore = Score{}

// ScoreOf returns a present score with value v.
func ScoreOf(v float64) Score {
	return Score{value: v, present: true}
}

// Value returns the score and whether it is present.
func (s Score) Value() (float64, bool) {
	return s.value, s.present
}

// Present reports whether the score carries a value.
func (s Score) Present() bool {
	return s.present
}

func (s Score) String() string {
	if !s.present {
		return "none"
	}
	return strconv.FormatFloat(s.value, 'f', 4, 64)
}

// MarshalJSON encodes an absent score as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.present {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON decodes null as NoScore.
func (s *Score) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = NoScore
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = ScoreOf(v)
	return nil
}

// Passage is a unit of corpus content returned by retrieval.
type Passage struct {
	ChunkID string `json:"chunk_id,omitempty"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

// ScoredPassage pairs a passage with its (possibly absent) relevance score.
type ScoredPassage struct {
	Passage Passage
	Score   Score
}

// RetrievalResult is ordered by descending relevance when scores exist.
type RetrievalResult []ScoredPassage

// Passages returns the passages in retrieval order.
func (r RetrievalResult) Passages() []Passage {
	out := make([]Passage, len(r))
	for i, sp := range r {
		out[i] = sp.Passage
	}
	return out
}

// Sources returns the distinct source identifiers in first-seen order.
func (r RetrievalResult) Sources() []string {
	seen := make(map[string]struct{}, len(r))
	out := make([]string, 0, len(r))
	for _, sp := range r {
		if _, ok := seen[sp.Passage.Source]; ok {
			continue
		}
		seen[sp.Passage.Source] = struct{}{}
		out = append(out, sp.Passage.Source)
	}
	return out
}
