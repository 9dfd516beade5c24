package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/server"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"wire cutoff time", "--top-k", "6"},
			expected: []string{"--top-k", "6", "wire cutoff time"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--llm", "wire cutoff time"},
			expected: []string{"--llm", "wire cutoff time"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"wire cutoff time"},
			expected: []string{"wire cutoff time"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"reverse", "ach", "--llm", "--format", "json"},
			expected: []string{"--llm", "--format", "json", "reverse", "ach"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuestion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"chargeback"}, "chargeback"},
		{"multiple words", []string{"wire", "cutoff"}, "wire cutoff"},
		{"quoted phrase", []string{"wire cutoff"}, "wire cutoff"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildQuestion(tt.args); got != tt.expected {
				t.Errorf("buildQuestion(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "custom.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, resolved, err := loadConfig(path)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if resolved != path {
			t.Errorf("resolved = %q, want %q", resolved, path)
		}
		if cfg.Server.Port != 9100 {
			t.Errorf("port = %d, want 9100", cfg.Server.Port)
		}
	})

	t.Run("default path falls back to cwd config.yaml", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9200\n"), 0644); err != nil {
			t.Fatal(err)
		}
		t.Chdir(dir)
		cfg, resolved, err := loadConfig(defaultConfigPath)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if filepath.Base(resolved) != "config.yaml" || filepath.Dir(resolved) == filepath.Dir(defaultConfigPath) {
			t.Errorf("resolved = %q, want cwd config.yaml", resolved)
		}
		if cfg.Server.Port != 9200 {
			t.Errorf("port = %d, want 9200", cfg.Server.Port)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing config")
		}
	})
}

// workspace writes a corpus and a config using the mock embedder. llmURL may be empty.
func workspace(t *testing.T, llmURL string) string {
	t.Helper()
	dir := t.TempDir()
	corpus := filepath.Join(dir, "corpus")
	files := map[string]string{
		"wire_transfers.md":      "# Wire transfers\n\nDomestic wire cutoff is 3pm Eastern. Wires after the cutoff are sent the next business day.\n",
		"sop/ach_returns.md":     "# ACH returns\n\nA duplicate ACH debit is reversed by filing an R10 return within two banking days.\n",
		"policy_pii_handling.md": "# PII handling\n\nNever request or record customer passwords or one-time codes.\n",
	}
	for name, content := range files {
		path := filepath.Join(corpus, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := fmt.Sprintf(`storage:
  database_path: ./data/copilot.db
  vector_index_path: ./data/vectors.bin
  bleve_index_path: ./data/bleve
embedding:
  provider: mock
  model: hash
  dimensions: 64
retrieval:
  min_relevance: 0
generation:
  base_url: %q
  timeout: 5s
ingest:
  corpus_dir: ./corpus
  chunk_size: 200
  chunk_overlap: 20
`, llmURL)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fakeOllama(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"response": answer, "done": true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestStatusAsk(t *testing.T) {
	llm := fakeOllama(t, "Domestic wires cut off at 3pm Eastern.\n\nCitations:\n- corpus/wire_transfers.md\n- corpus/unknown.md")
	cfgPath := workspace(t, llm.URL)

	var out bytes.Buffer
	if err := runIngest([]string{"--config", cfgPath}, &out); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.Contains(out.String(), "3 document(s)") {
		t.Errorf("ingest output = %q", out.String())
	}

	out.Reset()
	if err := runStatus([]string{"--config", cfgPath, "--format", "json"}, &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	var st server.Status
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatalf("status json: %v\n%s", err, out.String())
	}
	if st.Documents != 3 || st.Chunks < 3 || int64(st.VectorIndexSize) != st.Chunks {
		t.Errorf("status = %+v", st)
	}
	if st.IndexedWith == nil || st.IndexedWith.Provider != "mock" || st.IndexedWith.Dimensions != 64 {
		t.Errorf("indexed_with = %+v", st.IndexedWith)
	}

	out.Reset()
	if err := runAsk([]string{"domestic wire cutoff", "--config", cfgPath, "--format", "json", "--top-k", "2"}, &out); err != nil {
		t.Fatalf("ask: %v", err)
	}
	var retrieval models.RetrievalResponse
	if err := json.Unmarshal(out.Bytes(), &retrieval); err != nil {
		t.Fatalf("ask json: %v\n%s", err, out.String())
	}
	if len(retrieval.Retrieved) != 2 {
		t.Fatalf("retrieved %d passages, want 2", len(retrieval.Retrieved))
	}
	if retrieval.Retrieved[0].Source != "corpus/wire_transfers.md" {
		t.Errorf("top source = %q", retrieval.Retrieved[0].Source)
	}

	out.Reset()
	if err := runAsk([]string{"--llm", "--config", cfgPath, "--format", "json", "domestic", "wire", "cutoff"}, &out); err != nil {
		t.Fatalf("ask --llm: %v", err)
	}
	var answer models.Response
	if err := json.Unmarshal(out.Bytes(), &answer); err != nil {
		t.Fatalf("answer json: %v\n%s", err, out.String())
	}
	if !reflect.DeepEqual(answer.Citations, []string{"corpus/wire_transfers.md"}) {
		t.Errorf("citations = %v", answer.Citations)
	}
	if !answer.PartialCitations {
		t.Error("expected partial_citations for the unretrieved source")
	}
}

func TestAsk_CredentialQuestionRefused(t *testing.T) {
	llm := fakeOllama(t, "should never be called")
	cfgPath := workspace(t, llm.URL)
	if err := runIngest([]string{"--config", cfgPath}, &bytes.Buffer{}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var out bytes.Buffer
	if err := runAsk([]string{"--llm", "--config", cfgPath, "--format", "json", "what is the customer's password?"}, &out); err != nil {
		t.Fatalf("ask: %v", err)
	}
	var answer models.Response
	if err := json.Unmarshal(out.Bytes(), &answer); err != nil {
		t.Fatalf("answer json: %v", err)
	}
	if strings.Contains(answer.Answer, "should never be called") {
		t.Errorf("generator was called for a credential question: %q", answer.Answer)
	}
	if len(answer.Retrieved) != 0 {
		t.Errorf("refusal retrieved %d passages", len(answer.Retrieved))
	}
}

func TestAsk_Errors(t *testing.T) {
	cfgPath := workspace(t, "")
	tests := []struct {
		name string
		args []string
	}{
		{"missing question", []string{"--config", cfgPath}},
		{"blank question", []string{"--config", cfgPath, "   "}},
		{"bad format", []string{"--config", cfgPath, "--format", "xml", "wire cutoff"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := runAsk(tt.args, &bytes.Buffer{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIngest_EmptyCorpus(t *testing.T) {
	cfgPath := workspace(t, "")
	empty := t.TempDir()
	if err := runIngest([]string{"--config", cfgPath, "--corpus", empty}, &bytes.Buffer{}); err == nil {
		t.Error("expected error for an empty corpus")
	}
}
