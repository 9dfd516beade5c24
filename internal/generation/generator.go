// Package generation calls the local language model that writes grounded answers.
package generation

import (
	"context"
	"errors"
)

// ErrBackend means the generation backend was unreachable, timed out or returned a
// non-success status.
var ErrBackend = errors.New("generation backend failed")

// Generator returns the full generated text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
