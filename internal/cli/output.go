// Package cli renders copilot results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/copilot/internal/indexer"
	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/server"
	"github.com/hyperjump/copilot/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is the same JSON the HTTP API returns.
	OutputJSON OutputFormat = "json"
)

const (
	rule           = "─────────────────────────────────────────────────────────"
	previewDisplay = 200
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("invalid format %q (use text or json)", s)
}

// WriteAnswer writes an /ask_llm response.
func WriteAnswer(w io.Writer, resp *models.Response, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Fprintln(w, "Sources:")
		for _, c := range resp.Citations {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
	if resp.PartialCitations {
		fmt.Fprintln(w, "  (some cited sources were not among the retrieved passages and were removed)")
	}
	if len(resp.Retrieved) > 0 {
		fmt.Fprintf(w, "\nRetrieved %d passage(s):\n", len(resp.Retrieved))
		for _, p := range resp.Retrieved {
			fmt.Fprintln(w, rule)
			fmt.Fprintf(w, "%s\n%s\n", p.Source, utils.Truncate(oneLine(p.Content), previewDisplay))
		}
	}
	fmt.Fprintln(w)
	return nil
}

// WriteRetrieval writes an /ask response.
func WriteRetrieval(w io.Writer, resp *models.RetrievalResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nRetrieved %d passage(s) for %q\n\n", len(resp.Retrieved), resp.Question)
	for i, p := range resp.Retrieved {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "[%d] %s | Score: %s\n", i+1, p.Source, p.Score)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(oneLine(p.Content), previewDisplay))
	}
	return nil
}

// WriteStatus writes the index status.
func WriteStatus(w io.Writer, st *server.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Documents:        %d\n", st.Documents)
	fmt.Fprintf(w, "Chunks:           %d\n", st.Chunks)
	fmt.Fprintf(w, "Vector index:     %d vectors\n", st.VectorIndexSize)
	fmt.Fprintf(w, "Backend:          %s (%s relevance, min %.2f)\n", st.Backend, st.Relevance, st.Threshold)
	fmt.Fprintf(w, "Embedding:        %s/%s (%d dims)\n", st.Embedding.Provider, st.Embedding.Model, st.Embedding.Dimensions)
	if st.IndexedWith != nil {
		fmt.Fprintf(w, "Indexed with:     %s/%s (%d dims)\n", st.IndexedWith.Provider, st.IndexedWith.Model, st.IndexedWith.Dimensions)
		if msg := st.Embedding.Mismatch(*st.IndexedWith); msg != "" {
			fmt.Fprintf(w, "WARNING:          %s\n", msg)
		}
	} else {
		fmt.Fprintln(w, "Indexed with:     (no index built yet)")
	}
	if st.Generator != "" {
		fmt.Fprintf(w, "Generation model: %s\n", st.Generator)
	}
	fmt.Fprintf(w, "Disk usage:       %s\n", FormatBytes(st.Disk.Total))
	return nil
}

// WriteBuildReport writes the summary of an ingestion run.
func WriteBuildReport(w io.Writer, r *indexer.Report) {
	fmt.Fprintf(w, "Indexed %d document(s), %d chunk(s) in %s\n", r.Documents, r.Chunks, r.Elapsed.Round(time.Millisecond))
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  skipped: %s\n", s)
	}
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
