// Package eval scores a translation provider against the built-in prompt
// suite: every prompt must survive the full parse and validation path and
// lead with the action its category expects.
package eval

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/skygateai/skygate/pkg/domain"
	"github.com/skygateai/skygate/pkg/dsl"
	"github.com/skygateai/skygate/pkg/safety"
	"github.com/skygateai/skygate/pkg/translate"
)

// Outcome classifies one evaluated prompt.
type Outcome string

const (
	// OutcomePass means the script parsed, validated, and led with an
	// expected action.
	OutcomePass Outcome = "pass"
	// OutcomeMismatch means the mission was flyable but led with the wrong
	// action.
	OutcomeMismatch Outcome = "mismatch"
	// OutcomeSafety means the generated mission violated safety limits.
	OutcomeSafety Outcome = "safety_violation"
	// OutcomeNoSteps means nothing parseable was generated.
	OutcomeNoSteps Outcome = "no_steps"
	// OutcomeError means the provider call itself failed.
	OutcomeError Outcome = "error"
)

// Result is the verdict for a single prompt.
type Result struct {
	Category domain.Action `json:"category"`
	Prompt   string        `json:"prompt"`
	Outcome  Outcome       `json:"outcome"`
	Action   domain.Action `json:"action,omitempty"`
	Script   string        `json:"script,omitempty"`
	Err      string        `json:"error,omitempty"`
}

// Passed reports whether the prompt scored as a pass.
func (r Result) Passed() bool { return r.Outcome == OutcomePass }

// CategoryScore aggregates one category's results.
type CategoryScore struct {
	Category domain.Action `json:"category"`
	Passed   int           `json:"passed"`
	Total    int           `json:"total"`
}

// Summary is the final score across the suite.
type Summary struct {
	Total      int             `json:"total"`
	Passed     int             `json:"passed"`
	Failed     int             `json:"failed"`
	Categories []CategoryScore `json:"categories"`
}

// Runner evaluates prompts concurrently with a bounded worker count.
type Runner struct {
	translator *translate.Translator
	parser     *dsl.Parser
	validator  *safety.Validator
	dataset    []Category
	workers    int
	delay      time.Duration
	logger     zerolog.Logger
}

// Option adjusts a Runner.
type Option func(*Runner)

// WithDataset replaces the built-in suite.
func WithDataset(dataset []Category) Option {
	return func(r *Runner) { r.dataset = dataset }
}

// WithWorkers sets the number of concurrent provider calls.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithDelay inserts a pause before each provider call, for rate limits.
func WithDelay(d time.Duration) Option {
	return func(r *Runner) { r.delay = d }
}

func NewRunner(translator *translate.Translator, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		translator: translator,
		parser:     dsl.NewParser(logger),
		validator:  safety.NewValidator(logger),
		dataset:    Dataset(),
		workers:    2,
		logger:     logger.With().Str("component", "eval").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates the whole suite. Results keep dataset order regardless of
// completion order. Only context cancellation aborts the run; provider
// failures score as OutcomeError and the suite continues.
func (r *Runner) Run(ctx context.Context) ([]Result, Summary, error) {
	type job struct {
		index    int
		category domain.Action
		prompt   string
	}

	var jobs []job
	for _, category := range r.dataset {
		for _, prompt := range category.Prompts {
			jobs = append(jobs, job{index: len(jobs), category: category.Action, prompt: prompt})
		}
	}

	results := make([]Result, len(jobs))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(r.workers)

	for _, j := range jobs {
		j := j // per-iteration copy: module builds with go < 1.22 loopvar semantics
		group.Go(func() error {
			if r.delay > 0 {
				select {
				case <-time.After(r.delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			results[j.index] = r.evaluate(ctx, j.category, j.prompt)
			return ctx.Err()
		})
	}

	if err := group.Wait(); err != nil {
		return nil, Summary{}, err
	}
	return results, Summarize(results), nil
}

func (r *Runner) evaluate(ctx context.Context, category domain.Action, prompt string) Result {
	result := Result{Category: category, Prompt: prompt}

	script, err := r.translator.Translate(ctx, prompt)
	if err != nil {
		result.Outcome = OutcomeError
		result.Err = err.Error()
		return result
	}
	result.Script = script

	mission, _ := r.parser.Parse(script)
	report := r.validator.Validate(mission)
	if !report.Passed() {
		result.Outcome = OutcomeSafety
		result.Err = strings.Join(report.IssueMessages(), "; ")
		return result
	}
	if len(mission.Steps) == 0 {
		result.Outcome = OutcomeNoSteps
		return result
	}

	result.Action = mission.Steps[0].Action
	for _, expected := range expectedActions(category) {
		if result.Action == expected {
			result.Outcome = OutcomePass
			r.logger.Debug().Str("prompt", prompt).Str("action", result.Action.String()).Msg("pass")
			return result
		}
	}

	result.Outcome = OutcomeMismatch
	r.logger.Debug().Str("prompt", prompt).
		Str("expected", category.String()).Str("got", result.Action.String()).Msg("mismatch")
	return result
}

// Summarize folds results into a scoreboard, keeping first-seen category
// order.
func Summarize(results []Result) Summary {
	summary := Summary{Total: len(results)}
	index := map[domain.Action]int{}

	for _, result := range results {
		i, ok := index[result.Category]
		if !ok {
			i = len(summary.Categories)
			index[result.Category] = i
			summary.Categories = append(summary.Categories, CategoryScore{Category: result.Category})
		}
		summary.Categories[i].Total++
		if result.Passed() {
			summary.Categories[i].Passed++
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}
