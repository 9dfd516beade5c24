// Package extract turns corpus files into plain text for chunking.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnsupported is returned for file extensions no extractor handles.
var ErrUnsupported = errors.New("unsupported document format")

type extractFunc func(content []byte) (string, error)

var formats = map[string]extractFunc{
	".md":   extractPlain,
	".txt":  extractPlain,
	".rst":  extractPlain,
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".xlsx": extractExcel,
}

// Extractor extracts plain text from corpus files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func (e *Extractor) Supported(ext string) bool {
	_, ok := formats[strings.ToLower(ext)]
	return ok
}

// Extensions lists the supported extensions in sorted order.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(formats))
	for ext := range formats {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and returns its text with LF line endings.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on ext, which includes the leading dot.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	fn, ok := formats[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	text, err := fn(content)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n"), nil
}
