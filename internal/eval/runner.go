package eval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/pkg/utils"
)

// PreviewChars is the answer preview length in reports.
const PreviewChars = 240

// Asker answers a question the way POST /ask_llm does.
type Asker interface {
	AskLLM(ctx context.Context, question string, topK int) (*models.Response, error)
}

// Result is the outcome of one case.
type Result struct {
	Case          Case
	Pass          bool
	Reason        string
	AnswerPreview string
	Citations     []string
}

// Runner evaluates cases one at a time.
type Runner struct {
	asker     Asker
	evaluator Evaluator
	topK      int
	logger    *zap.Logger
}

// NewRunner creates a runner that sends topK with every question.
func NewRunner(asker Asker, evaluator Evaluator, topK int, logger *zap.Logger) *Runner {
	return &Runner{asker: asker, evaluator: evaluator, topK: topK, logger: utils.OrNop(logger)}
}

// Run evaluates every case. A failed request fails its case and the run continues.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), Started: time.Now()}
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := Result{Case: c}
		resp, err := r.asker.AskLLM(ctx, c.Question, r.topK)
		if err != nil {
			res.Reason = "Request failed: " + err.Error()
		} else {
			res.Pass, res.Reason = r.evaluator.Evaluate(c, resp)
			res.AnswerPreview = utils.Head(resp.Answer, PreviewChars)
			res.Citations = normalizeCitations(resp.Citations)
		}
		report.Results = append(report.Results, res)
		r.logger.Info("eval case",
			zap.String("id", string(c.ID)),
			zap.Bool("pass", res.Pass),
			zap.String("reason", res.Reason),
		)
	}
	report.Duration = time.Since(report.Started)
	return report, nil
}
