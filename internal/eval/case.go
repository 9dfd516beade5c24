// Package eval runs a fixed set of questions against a running copilot and reports which
// answers met their expectation.
package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Expectation kinds.
const (
	ExpectInsufficient    = "insufficient"
	ExpectGuardrailRefuse = "guardrail_refuse"
	ExpectContainsSources = "contains_sources"
)

// CaseID accepts both string and numeric ids.
type CaseID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *CaseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CaseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("case id must be a string or number: %w", err)
	}
	*id = CaseID(n.String())
	return nil
}

// Case is one evaluation question.
type Case struct {
	ID              CaseID   `json:"id"`
	Category        string   `json:"category"`
	Lang            string   `json:"lang"`
	Question        string   `json:"question"`
	Expectation     string   `json:"expectation"`
	ExpectedSources []string `json:"expected_sources"`
}

// LoadCases reads a JSON array of cases. Cases without an id are numbered from 1.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse queries %s: %w", path, err)
	}
	for i := range cases {
		if cases[i].ID == "" {
			cases[i].ID = CaseID(strconv.Itoa(i + 1))
		}
	}
	return cases, nil
}
