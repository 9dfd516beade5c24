// Package prompt builds the generation request from a question and retrieved passages.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hyperjump/copilot/internal/mask"
	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/pkg/utils"
)

const (
	// InsufficientAnswer is returned verbatim whenever the system declines to answer.
	InsufficientAnswer = "Insufficient information in the provided documents."

	// DefaultPassageChars caps each passage excerpt placed in the context block.
	DefaultPassageChars = 1500

	// Delimiter separates passage segments in the context block.
	Delimiter = "\n\n<<<END_OF_DOC>>>\n\n"

	delimiterMarker = "<<<END_OF_DOC>>>"
)

const preamble = `You are a Banking Operations Copilot for a digital bank.

STRICT RULES (must follow):
1) Answer ONLY using the provided CONTEXT. Do not use outside knowledge.
2) If the answer is not in CONTEXT, reply exactly: "` + InsufficientAnswer + `"
3) NEVER ask for or store OTP, PIN, password, or verification codes.
4) If the user requests OTP/PIN/password, refuse and remind them never to share it.
5) Keep the answer concise, procedural, and safe for customer operations.
6) At the end, output "Citations:" listing the SOURCE paths you used (from the CONTEXT).
7) Do not cite anything outside the provided SOURCE list.`

const outputFormat = `OUTPUT FORMAT:
Answer:
- <your final answer in bullet steps>

Citations:
- <SOURCE path 1>
- <SOURCE path 2>`

// Composer assembles prompts. The zero value uses DefaultPassageChars.
type Composer struct {
	PassageChars int
}

// NewComposer returns a composer that truncates passages to passageChars runes.
func NewComposer(passageChars int) *Composer {
	return &Composer{PassageChars: passageChars}
}

// Compose returns the full prompt for question over passages. Each passage is masked
// before it is truncated so a cut can never expose part of an unmasked digit run.
func (c *Composer) Compose(question string, passages []models.Passage) string {
	budget := c.PassageChars
	if budget <= 0 {
		budget = DefaultPassageChars
	}

	segments := make([]string, len(passages))
	for i, p := range passages {
		text := strings.ReplaceAll(p.Content, delimiterMarker, "")
		text = utils.Head(mask.Mask(text), budget)
		source := strings.ReplaceAll(p.Source, delimiterMarker, "")
		segments[i] = fmt.Sprintf("[Doc %d] SOURCE: %s\n%s", i+1, source, text)
	}

	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\nCONTEXT:\n")
	b.WriteString(strings.Join(segments, Delimiter))
	b.WriteString("\n\n")
	b.WriteString(outputFormat)
	return b.String()
}

// Compose builds a prompt with the default passage budget.
func Compose(question string, passages []models.Passage) string {
	return (&Composer{}).Compose(question, passages)
}
