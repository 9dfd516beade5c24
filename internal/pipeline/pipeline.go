// Package pipeline runs the fixed answer sequence: mask, credential guard, retrieve,
// relevance gate, prompt, generate, citation enforcement.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/citation"
	"github.com/hyperjump/copilot/internal/gate"
	"github.com/hyperjump/copilot/internal/generation"
	"github.com/hyperjump/copilot/internal/guard"
	"github.com/hyperjump/copilot/internal/mask"
	"github.com/hyperjump/copilot/internal/metrics"
	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/prompt"
	"github.com/hyperjump/copilot/internal/retrieval"
	"github.com/hyperjump/copilot/pkg/utils"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question cannot be empty")

// RefusalAnswer is returned for every credential request.
const RefusalAnswer = "I can’t help with OTP/PIN/password or verification codes. " +
	"Never share them with anyone. If you suspect account compromise, " +
	"follow the suspected account takeover (ATO) SOP and escalate to the risk/fraud team."

// Default refusal citations. Both documents must exist in the corpus.
const (
	PolicyPIISource = "corpus/policy_pii_handling.md"
	SOPATOSource    = "corpus/sop/sop_account_takeover.md"
)

// DefaultPreviewChars bounds the passage previews returned to callers.
const DefaultPreviewChars = 600

// Pipeline answers banking-operations questions from the retrieved corpus. It holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	detector  *guard.Detector
	retriever retrieval.Retriever
	gate      *gate.Gate
	composer  *prompt.Composer
	generator generation.Generator

	logger           *zap.Logger
	metrics          *metrics.Metrics
	refusalCitations []string
	previewChars     int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = utils.OrNop(l) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRefusalCitations replaces the citations attached to credential refusals.
func WithRefusalCitations(sources ...string) Option {
	return func(p *Pipeline) {
		if len(sources) > 0 {
			p.refusalCitations = append([]string(nil), sources...)
		}
	}
}

// WithPreviewChars sets the preview length in characters.
func WithPreviewChars(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.previewChars = n
		}
	}
}

// WithDetector replaces the default credential detector.
func WithDetector(d *guard.Detector) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.detector = d
		}
	}
}

// WithComposer replaces the default prompt composer.
func WithComposer(c *prompt.Composer) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.composer = c
		}
	}
}

// New wires a pipeline. A nil gate uses gate.DefaultThreshold.
func New(r retrieval.Retriever, g *gate.Gate, gen generation.Generator, opts ...Option) *Pipeline {
	if g == nil {
		g = gate.New(gate.DefaultThreshold)
	}
	p := &Pipeline{
		detector:         guard.NewDetector(),
		retriever:        r,
		gate:             g,
		composer:         prompt.NewComposer(prompt.DefaultPassageChars),
		generator:        gen,
		logger:           zap.NewNop(),
		refusalCitations: []string{PolicyPIISource, SOPATOSource},
		previewChars:     DefaultPreviewChars,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer runs the full pipeline. Policy branches (refusal, insufficiency) are responses,
// not errors; errors are returned only for operational failures.
func (p *Pipeline) Answer(ctx context.Context, question string, topK int) (*models.Response, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	start := time.Now()
	tr := newTracer(p.logger)

	q := mask.Mask(question)
	log := p.logger.With(zap.String("question", q))
	tr.enter(StateMasked)

	tr.enter(StateCredentialCheck)
	if det := p.detector.Detect(q); det.Matched {
		tr.enter(StateRefused)
		log.Info("credential request refused",
			zap.String("keyword", det.Keyword),
			zap.String("lang", det.Lang),
		)
		return p.finish(log, start, p.refused(q)), nil
	}

	result, err := p.retriever.Retrieve(ctx, q, topK)
	if err != nil {
		p.metrics.ObserveFailure()
		log.Error("retrieval failed", zap.Error(err))
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	tr.enter(StateRetrieved)

	decision := p.gate.Evaluate(result)
	p.metrics.ObserveBestScore(decision.BestScore)
	log.Debug("relevance gate",
		zap.Int("passages", len(result)),
		zap.Stringer("best_score", decision.BestScore),
		zap.String("reason", string(decision.Reason)),
		zap.Bool("allow", decision.Allow),
	)
	if !decision.Allow {
		tr.enter(StateInsufficientContext)
		return p.finish(log, start, p.insufficient(q)), nil
	}

	passages := result.Passages()
	promptText := p.composer.Compose(q, passages)
	tr.enter(StatePromptBuilt)

	genStart := time.Now()
	raw, err := p.generator.Generate(ctx, promptText)
	p.metrics.ObserveGeneration(time.Since(genStart))
	if err != nil {
		p.metrics.ObserveFailure()
		log.Error("generation failed", zap.Error(err))
		return nil, fmt.Errorf("generate: %w", err)
	}
	tr.enter(StateGenerated)

	enf := citation.Enforce(citation.Extract(raw), passages)
	tr.enter(StateCitationsEnforced)
	if len(enf.Dropped) > 0 {
		p.metrics.ObserveDropped(len(enf.Dropped))
		log.Warn("dropped citations not in retrieved sources",
			zap.Strings("dropped", enf.Dropped),
			zap.Int("kept", len(enf.Kept)),
		)
	}
	if len(enf.Kept) == 0 {
		tr.enter(StateInsufficientContext)
		return p.finish(log, start, p.insufficient(q)), nil
	}

	tr.enter(StateDone)
	resp := &models.Response{
		Question:         q,
		Answer:           mask.Mask(raw),
		Citations:        enf.Kept,
		Retrieved:        p.previews(passages),
		PartialCitations: enf.Partial(),
		Outcome:          models.OutcomeGrounded,
	}
	return p.finish(log, start, resp), nil
}

// Retrieve runs the retrieval-only path: mask, retrieve, preview. It never gates and
// never generates.
func (p *Pipeline) Retrieve(ctx context.Context, question string, topK int) (*models.RetrievalResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	q := mask.Mask(question)

	result, err := p.retriever.Retrieve(ctx, q, topK)
	if err != nil {
		p.logger.Error("retrieval failed", zap.String("question", q), zap.Error(err))
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	previews := make([]models.ScoredPreview, len(result))
	for i, sp := range result {
		previews[i] = models.ScoredPreview{
			Source:  sp.Passage.Source,
			Score:   sp.Score,
			Content: p.preview(sp.Passage.Content),
		}
	}
	return &models.RetrievalResponse{Question: q, Retrieved: previews}, nil
}

func (p *Pipeline) refused(q string) *models.Response {
	return &models.Response{
		Question:  q,
		Answer:    RefusalAnswer,
		Citations: append([]string(nil), p.refusalCitations...),
		Retrieved: []models.Preview{},
		Outcome:   models.OutcomeRefused,
	}
}

func (p *Pipeline) insufficient(q string) *models.Response {
	return &models.Response{
		Question:  q,
		Answer:    prompt.InsufficientAnswer,
		Citations: []string{},
		Retrieved: []models.Preview{},
		Outcome:   models.OutcomeInsufficient,
	}
}

func (p *Pipeline) previews(passages []models.Passage) []models.Preview {
	out := make([]models.Preview, len(passages))
	for i, ps := range passages {
		out[i] = models.Preview{Source: ps.Source, Content: p.preview(ps.Content)}
	}
	return out
}

// preview masks before cutting so a digit run straddling the cut is still masked.
func (p *Pipeline) preview(content string) string {
	return utils.Head(mask.Mask(content), p.previewChars)
}

func (p *Pipeline) finish(log *zap.Logger, start time.Time, resp *models.Response) *models.Response {
	p.metrics.ObserveOutcome(resp.Outcome)
	log.Info("answer completed",
		zap.String("outcome", string(resp.Outcome)),
		zap.Int("citations", len(resp.Citations)),
		zap.Bool("partial_citations", resp.PartialCitations),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp
}

type tracer struct {
	logger *zap.Logger
	state  State
}

func newTracer(l *zap.Logger) *tracer {
	return &tracer{logger: l, state: StateStart}
}

func (t *tracer) enter(next State) {
	t.logger.Debug("pipeline transition",
		zap.Stringer("from", t.state),
		zap.Stringer("to", next),
	)
	t.state = next
}
