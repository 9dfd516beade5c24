package eval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Report is the outcome of one evaluation run.
type Report struct {
	RunID    string
	BaseURL  string
	Started  time.Time
	Duration time.Duration
	Results  []Result
}

// Passed returns the number of passing cases.
func (r *Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Pass {
			n++
		}
	}
	return n
}

// PassRate returns the passing share in percent.
func (r *Report) PassRate() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Passed()) / float64(len(r.Results)) * 100
}

// Save writes the Markdown report to path, creating parent directories.
func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := r.WriteMarkdown(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// WriteMarkdown renders the summary, the results table and the answer previews.
func (r *Report) WriteMarkdown(w io.Writer) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { fmt.Fprintf(bw, format+"\n", args...) }

	total := len(r.Results)
	p("# Evaluation Report: Banking Operations Copilot\n")
	p("- Run: `%s`", r.RunID)
	p("- Generated: `%s`", r.Started.Format(time.RFC3339))
	if r.BaseURL != "" {
		p("- Base URL: `%s`", r.BaseURL)
	}
	p("- Total cases: **%d**", total)
	p("- Passed: **%d**", r.Passed())
	p("- Failed: **%d**", total-r.Passed())
	p("- Pass rate: **%.1f%%**", r.PassRate())
	p("- Duration: **%.1fs**\n", r.Duration.Seconds())

	p("## Results\n")
	p("| ID | Category | Lang | PASS | Expected | Question | Citations | Reason |")
	p("|---:|---|:---:|:---:|---|---|---|---|")
	for _, res := range r.Results {
		expected := res.Case.Expectation
		if len(res.Case.ExpectedSources) > 0 {
			expected += " (" + strings.Join(res.Case.ExpectedSources, ", ") + ")"
		}
		p("| %s | %s | %s | %s | %s | %s | %s | %s |",
			mdEscape(string(res.Case.ID)), mdEscape(res.Case.Category), mdEscape(res.Case.Lang),
			passMark(res.Pass), mdEscape(expected), mdEscape(res.Case.Question),
			mdEscape(joinOrDash(res.Citations)), mdEscape(res.Reason))
	}

	p("\n## Answer Previews (first %d chars)\n", PreviewChars)
	for _, res := range r.Results {
		status := "FAIL"
		if res.Pass {
			status = "PASS"
		}
		preview := res.AnswerPreview
		if preview == "" {
			preview = "<no answer>"
		}
		p("### %s: %s", res.Case.ID, status)
		p("- Question: %s", res.Case.Question)
		p("- Citations: %s", joinOrDash(res.Citations))
		p("```text")
		p("%s", preview)
		p("```\n")
	}
	return bw.Flush()
}

func passMark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func joinOrDash(xs []string) string {
	if len(xs) == 0 {
		return "-"
	}
	return strings.Join(xs, ", ")
}

func mdEscape(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", `\|`))
}
