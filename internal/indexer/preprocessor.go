package indexer

import (
	"strings"
)

// Preprocess normalizes extracted text for chunking: LF line endings, no trailing spaces,
// at most one blank line between paragraphs. Line structure is kept because the splitter
// breaks on it.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
