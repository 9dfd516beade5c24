package models

import (
	"fmt"
	"strings"
)

// AskRequest is the body of POST /ask and POST /ask_llm.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate rejects an empty question and clamps TopK into 1..maxK, using defaultK when unset.
func (r *AskRequest) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.TopK <= 0 {
		r.TopK = defaultK
	}
	if maxK > 0 && r.TopK > maxK {
		r.TopK = maxK
	}
	return nil
}

// ScoredPreview is a retrieved passage as shown by the retrieval-only endpoint.
type ScoredPreview struct {
	Source  string `json:"source"`
	Score   Score  `json:"score"`
	Content string `json:"content"`
}

// RetrievalResponse is the body returned by POST /ask.
type RetrievalResponse struct {
	Question  string          `json:"question"`
	Retrieved []ScoredPreview `json:"retrieved"`
}

// Preview is a retrieved passage as shown alongside a generated answer.
type Preview struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Outcome names the terminal branch a request ended in.
type Outcome string

const (
	OutcomeRefused      Outcome = "refused"
	OutcomeInsufficient Outcome = "insufficient"
	OutcomeGrounded     Outcome = "grounded"
)

// Response is the body returned by POST /ask_llm.
// When Citations is empty, Answer is always the fixed insufficiency sentence.
type Response struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Citations []string  `json:"citations"`
	Retrieved []Preview `json:"retrieved"`
	// PartialCitations is set when the model cited at least one source that was not
	// retrieved and the remaining citations were kept.
	PartialCitations bool    `json:"partial_citations,omitempty"`
	Outcome          Outcome `json:"-"`
}
