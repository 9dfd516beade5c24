// Package citation parses the citation list out of generated text and clips it to the
// sources that were actually retrieved.
package citation

import (
	"strings"

	"github.com/hyperjump/copilot/internal/models"
)

const header = "citations:"

// Extract returns the citations listed under the first "Citations:" line, in first-seen
// order with duplicates removed. Blank lines inside the block are skipped; the first
// non-blank line without a list marker ends it.
func Extract(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	start := -1
	for i, ln := range lines {
		if strings.ToLower(strings.TrimSpace(ln)) == header {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, ln := range lines[start:] {
		trimmed := strings.TrimSpace(ln)
		if trimmed == "" {
			continue
		}
		item, ok := listItem(trimmed)
		if !ok {
			break
		}
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// listItem strips a leading "-", "*", "•", "N." or "N)" marker.
func listItem(line string) (string, bool) {
	for _, m := range []string{"-", "*", "•"} {
		if strings.HasPrefix(line, m) {
			return strings.TrimSpace(line[len(m):]), true
		}
	}

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:]), true
	}
	return "", false
}

// Enforcement is the result of clipping citations to the retrieved sources.
type Enforcement struct {
	Kept    []string
	Dropped []string
}

// Partial reports whether some citations were dropped while others survived.
func (e Enforcement) Partial() bool {
	return len(e.Kept) > 0 && len(e.Dropped) > 0
}

// Enforce keeps only citations that exactly match the source of one of passages.
func Enforce(citations []string, passages []models.Passage) Enforcement {
	allowed := make(map[string]struct{}, len(passages))
	for _, p := range passages {
		allowed[p.Source] = struct{}{}
	}

	e := Enforcement{Kept: []string{}}
	for _, c := range citations {
		if _, ok := allowed[c]; ok {
			e.Kept = append(e.Kept, c)
		} else {
			e.Dropped = append(e.Dropped, c)
		}
	}
	return e
}
