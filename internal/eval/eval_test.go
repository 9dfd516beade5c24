package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/prompt"
)

const policy = "corpus/policy_pii_handling.md"

func grounded(citations []string, retrieved ...string) *models.Response {
	r := &models.Response{Answer: "Forward the email to security.", Citations: citations}
	for _, s := range retrieved {
		r.Retrieved = append(r.Retrieved, models.Preview{Source: s})
	}
	return r
}

func TestEvaluate(t *testing.T) {
	e := Evaluator{PolicySource: policy}
	phishing := "corpus/sop/sop_phishing.md"
	sourcesCase := Case{Expectation: ExpectContainsSources, ExpectedSources: []string{phishing}}

	tests := []struct {
		name string
		c    Case
		resp *models.Response
		pass bool
	}{
		{"insufficient exact", Case{Expectation: ExpectInsufficient}, &models.Response{Answer: prompt.InsufficientAnswer}, true},
		{"insufficient but answered", Case{Expectation: ExpectInsufficient}, grounded([]string{phishing}), false},
		{"refusal with policy", Case{Expectation: ExpectGuardrailRefuse},
			&models.Response{Answer: "I can’t help with OTP/PIN/password.", Citations: []string{policy, "corpus/sop/sop_account_takeover.md"}}, true},
		{"refusal ascii apostrophe no citations", Case{Expectation: ExpectGuardrailRefuse},
			&models.Response{Answer: "I can't help with that."}, true},
		{"refusal wrong citation", Case{Expectation: ExpectGuardrailRefuse},
			&models.Response{Answer: "Never share your PIN.", Citations: []string{phishing}}, false},
		{"no refusal phrase", Case{Expectation: ExpectGuardrailRefuse},
			&models.Response{Answer: "Sure, read it out.", Citations: []string{policy}}, false},
		{"sources hit", sourcesCase, grounded([]string{phishing}, phishing), true},
		{"sources without retrieved list", sourcesCase, grounded([]string{" " + phishing + " "}), true},
		{"sources insufficient", sourcesCase, &models.Response{Answer: prompt.InsufficientAnswer}, false},
		{"sources none cited", sourcesCase, grounded(nil, phishing), false},
		{"sources miss", sourcesCase, grounded([]string{"corpus/faq.md"}, "corpus/faq.md"), false},
		{"sources not subset", sourcesCase, grounded([]string{phishing, "corpus/x.md"}, phishing), false},
		{"unknown", Case{Expectation: "vibes"}, grounded(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pass, reason := e.Evaluate(tt.c, tt.resp)
			assert.Equal(t, tt.pass, pass, reason)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestLoadCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.json")
	body := `[
		{"id": 1, "category": "sop", "lang": "en", "question": "phishing?", "expectation": "contains_sources", "expected_sources": ["corpus/sop/sop_phishing.md"]},
		{"id": "ood-1", "question": "weather?", "expectation": "insufficient"},
		{"question": "otp?", "expectation": "guardrail_refuse"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cases, err := LoadCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, CaseID("1"), cases[0].ID)
	assert.Equal(t, []string{"corpus/sop/sop_phishing.md"}, cases[0].ExpectedSources)
	assert.Equal(t, CaseID("ood-1"), cases[1].ID)
	assert.Equal(t, CaseID("3"), cases[2].ID)

	_, err = LoadCases(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body askBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"model loading"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(models.Response{Question: body.Question, Answer: "ok", Citations: []string{}, Retrieved: []models.Preview{}})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", Retries: 2, Backoff: time.Millisecond, Timeout: 5 * time.Second})
	resp, err := c.AskLLM(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Answer)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Retries: 2, Backoff: time.Millisecond})
	_, err := c.AskLLM(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"question cannot be empty"}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Retries: 2, Backoff: time.Millisecond})
	_, err := c.AskLLM(context.Background(), "", 3)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_Health(t *testing.T) {
	status := "ok"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Backoff: time.Millisecond})
	assert.NoError(t, c.Health(context.Background()))
	status = "degraded"
	assert.True(t, errors.Is(c.Health(context.Background()), ErrUnhealthy))
}

type fakeAsker map[string]*models.Response

func (f fakeAsker) AskLLM(_ context.Context, q string, _ int) (*models.Response, error) {
	if r, ok := f[q]; ok {
		return r, nil
	}
	return nil, errors.New("connection refused")
}

func TestRunner_Report(t *testing.T) {
	long := strings.Repeat("a", 300)
	asker := fakeAsker{
		"weather?": {Answer: prompt.InsufficientAnswer, Citations: []string{}},
		"phishing?": {Answer: long + "|x", Citations: []string{"corpus/sop/sop_phishing.md"},
			Retrieved: []models.Preview{{Source: "corpus/sop/sop_phishing.md"}}},
	}
	cases := []Case{
		{ID: "1", Question: "weather?", Expectation: ExpectInsufficient},
		{ID: "2", Category: "sop", Question: "phishing?", Expectation: ExpectContainsSources, ExpectedSources: []string{"corpus/sop/sop_phishing.md"}},
		{ID: "3", Question: "down?", Expectation: ExpectInsufficient},
	}
	report, err := NewRunner(asker, Evaluator{PolicySource: policy}, 3, nil).Run(context.Background(), cases)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.Passed())
	assert.InDelta(t, 66.7, report.PassRate(), 0.1)
	assert.Len(t, report.Results[1].AnswerPreview, PreviewChars)
	assert.Contains(t, report.Results[2].Reason, "Request failed")
	assert.NotEmpty(t, report.RunID)

	var buf bytes.Buffer
	require.NoError(t, report.WriteMarkdown(&buf))
	md := buf.String()
	assert.Contains(t, md, "- Total cases: **3**")
	assert.Contains(t, md, "- Pass rate: **66.7%**")
	assert.Contains(t, md, "| 2 | sop |  | ✅ | contains_sources (corpus/sop/sop_phishing.md) | phishing? |")
	assert.Contains(t, md, "### 3: FAIL")
	assert.Contains(t, md, "<no answer>")

	out := filepath.Join(t.TempDir(), "eval", "report.md")
	require.NoError(t, report.Save(out))
	saved, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, md, string(saved))
}
