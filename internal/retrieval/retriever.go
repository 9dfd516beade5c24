// Package retrieval fetches the top-k corpus passages for a question.
package retrieval

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/models"
)

// ErrUnavailable means the index is missing, empty or unreachable. It is never returned
// as an empty result, which would read as "nothing relevant".
var ErrUnavailable = errors.New("retrieval unavailable")

const (
	DefaultTopK = 4
	MaxTopK     = 20
)

// Retriever returns up to k passages ordered by descending relevance.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (models.RetrievalResult, error)
}

// Option configures a retriever.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	defaultK int
	maxK     int
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTopK sets the k used when the caller passes k <= 0, and the cap on k.
func WithTopK(defaultK, maxK int) Option {
	return func(o *options) {
		if defaultK > 0 {
			o.defaultK = defaultK
		}
		if maxK > 0 {
			o.maxK = maxK
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), defaultK: DefaultTopK, maxK: MaxTopK}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) clampK(k int) int {
	if k <= 0 {
		k = o.defaultK
	}
	if k > o.maxK {
		k = o.maxK
	}
	return k
}
