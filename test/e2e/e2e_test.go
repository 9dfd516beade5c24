package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/copilot/internal/embedding"
	"github.com/hyperjump/copilot/internal/eval"
	"github.com/hyperjump/copilot/internal/gate"
	"github.com/hyperjump/copilot/internal/indexer"
	"github.com/hyperjump/copilot/internal/keyword"
	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/pipeline"
	"github.com/hyperjump/copilot/internal/retrieval"
	"github.com/hyperjump/copilot/internal/server"
	"github.com/hyperjump/copilot/internal/storage"
	"github.com/hyperjump/copilot/internal/vector"
)

const (
	e2eDimensions = 1024
	e2eThreshold  = 0.2
	e2eTopK       = 4
)

var firstSource = regexp.MustCompile(`(?m)^\[Doc 1\] SOURCE: (\S+)$`)

// citingGenerator answers with the first passage's source as its only citation,
// the way a well-behaved model would.
type citingGenerator struct{}

func (citingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m := firstSource.FindStringSubmatch(prompt)
	if m == nil {
		return "Insufficient information in the provided documents.", nil
	}
	return "Answer:\n- Follow the documented procedure.\n\nCitations:\n- " + m[1], nil
}

// newStack indexes the corpus and serves it with the given retrieval backend.
func newStack(t *testing.T, backend string) (*httptest.Server, *Corpus) {
	t.Helper()
	dir := t.TempDir()
	corpus := BuildCorpus()
	corpusDir, err := corpus.Write(dir)
	require.NoError(t, err)

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "copilot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	embedder, manifest, err := embedding.New(embedding.Config{Provider: embedding.ProviderMock, Model: "hash", Dimensions: e2eDimensions})
	require.NoError(t, err)
	t.Cleanup(func() { _ = embedder.Close() })

	vecIndex, err := vector.NewMemoryIndex(e2eDimensions)
	require.NoError(t, err)
	kwIndex, err := keyword.NewMemBleveIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = kwIndex.Close() })

	idx := indexer.NewIndexer(store, embedder, manifest, vecIndex, kwIndex,
		indexer.WithVectorPath(filepath.Join(dir, "vectors.bin")))
	report, err := idx.Build(context.Background(), corpusDir, SupportedFileExtensions)
	require.NoError(t, err)
	require.Equal(t, len(corpus.Documents), report.Documents, "skipped: %v", report.Skipped)

	var r retrieval.Retriever
	if backend == "keyword" {
		r = retrieval.NewKeywordRetriever(kwIndex, store)
	} else {
		r = retrieval.NewVectorRetriever(embedder, vecIndex, store, retrieval.Cosine)
	}
	p := pipeline.New(r, gate.New(e2eThreshold), citingGenerator{})
	reporter := &server.IndexReporter{Storage: store, Index: vecIndex, Manifest: manifest, Backend: backend}
	srv := httptest.NewServer(server.NewServer(p, reporter, nil, server.Config{}, nil).Router())
	t.Cleanup(srv.Close)
	return srv, corpus
}

func TestE2E_EvaluationCasesPass(t *testing.T) {
	srv, corpus := newStack(t, "vector")

	client := eval.NewClient(eval.ClientConfig{BaseURL: srv.URL, Timeout: 10 * time.Second, Retries: 1, Backoff: time.Millisecond})
	ctx := context.Background()
	require.NoError(t, client.Health(ctx))

	runner := eval.NewRunner(client, eval.Evaluator{PolicySource: pipeline.PolicyPIISource}, e2eTopK, nil)
	report, err := runner.Run(ctx, corpus.Cases)
	require.NoError(t, err)
	require.Len(t, report.Results, len(corpus.Cases))

	for _, res := range report.Results {
		assert.Truef(t, res.Pass, "case %s (%s) %q: %s", res.Case.ID, res.Case.Category, res.Case.Question, res.Reason)
	}
	assert.Equal(t, 100.0, report.PassRate())

	var md strings.Builder
	require.NoError(t, report.WriteMarkdown(&md))
	assert.Contains(t, md.String(), "statement copies archive fee")
}

func TestE2E_RetrievedTextIsMasked(t *testing.T) {
	srv, _ := newStack(t, "vector")

	resp := postJSON(t, srv.URL+"/ask", `{"question":"account numbers shown masked"}`)
	var body models.RetrievalResponse
	require.NoError(t, json.Unmarshal(resp, &body))
	require.NotEmpty(t, body.Retrieved)
	assert.Equal(t, pipeline.PolicyPIISource, body.Retrieved[0].Source)
	for _, p := range body.Retrieved {
		assert.NotContains(t, p.Content, "123456789012")
	}
	assert.Contains(t, body.Retrieved[0].Content, "****9012")
}

func TestE2E_KeywordBackend(t *testing.T) {
	srv, _ := newStack(t, "keyword")

	resp := postJSON(t, srv.URL+"/ask", `{"question":"chargeback","top_k":2}`)
	var raw struct {
		Retrieved []map[string]any `json:"retrieved"`
	}
	require.NoError(t, json.Unmarshal(resp, &raw))
	require.NotEmpty(t, raw.Retrieved)
	assert.Equal(t, "corpus/faq/card_dispute.docx", raw.Retrieved[0]["source"])
	score, present := raw.Retrieved[0]["score"]
	assert.True(t, present, "score key must be present")
	assert.Nil(t, score, "keyword scores are null")

	// Unscored results always pass the gate.
	resp = postJSON(t, srv.URL+"/ask_llm", `{"question":"chargeback disputes"}`)
	var answer models.Response
	require.NoError(t, json.Unmarshal(resp, &answer))
	assert.Equal(t, []string{"corpus/faq/card_dispute.docx"}, answer.Citations)
}

func TestE2E_Status(t *testing.T) {
	srv, corpus := newStack(t, "vector")

	res, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var st server.Status
	require.NoError(t, json.NewDecoder(res.Body).Decode(&st))
	assert.Equal(t, int64(len(corpus.Documents)), st.Documents)
	assert.Equal(t, st.Chunks, int64(st.VectorIndexSize))
	require.NotNil(t, st.IndexedWith)
	assert.Equal(t, "mock", st.IndexedWith.Provider)
}

func postJSON(t *testing.T, url, body string) []byte {
	t.Helper()
	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var buf strings.Builder
	_, err = io.Copy(&buf, res.Body)
	require.NoError(t, err)
	return []byte(buf.String())
}
