// Package pipeline chains translation, parsing, validation, and composition
// into one mission run with tracing and metrics at each stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/skygateai/skygate/pkg/domain"
	"github.com/skygateai/skygate/pkg/dsl"
	"github.com/skygateai/skygate/pkg/geo"
	"github.com/skygateai/skygate/pkg/mavlink"
	"github.com/skygateai/skygate/pkg/safety"
	"github.com/skygateai/skygate/pkg/telemetry"
	"github.com/skygateai/skygate/pkg/translate"
)

// maxRepairAttempts bounds the generate-parse-repair loop for prompts.
const maxRepairAttempts = 3

const tracerName = "skygate.pipeline"

// Options assembles a Runner.
type Options struct {
	// MissionID overrides the parser's default mission id when set.
	MissionID string
	// Limits is the regulatory envelope. Zero value means defaults.
	Limits safety.Limits
	// SharedPosition selects the legacy single position track.
	SharedPosition bool
	// Routing maps drone ids to MAVLink addresses. Required for composition.
	Routing mavlink.Routing
	// Transports carries per-drone links for dispatch. Optional.
	Transports map[string]mavlink.Transport
	// Send dispatches composed frames over the transports.
	Send bool
	// Origin localizes GOTO waypoints when set.
	Origin geo.Origin
	// Translator enables RunPrompt. Optional.
	Translator *translate.Translator
	Logger     zerolog.Logger
}

// Result is the accumulated output of a mission run. Stages that did not
// execute leave their fields empty, so a rejected mission still carries its
// report and diagnostics.
type Result struct {
	MissionID   string               `json:"mission_id"`
	Prompt      string               `json:"prompt,omitempty"`
	Script      string               `json:"script"`
	Repairs     int                  `json:"repairs,omitempty"`
	Diagnostics []dsl.Diagnostic     `json:"diagnostics,omitempty"`
	Mission     domain.Mission       `json:"mission"`
	Report      *safety.Report       `json:"report,omitempty"`
	Descriptors []mavlink.Descriptor `json:"descriptors,omitempty"`
}

// Runner drives missions through the full pipeline.
type Runner struct {
	parser     *dsl.Parser
	validator  *safety.Validator
	composer   *mavlink.Composer
	translator *translate.Translator
	routing    mavlink.Routing
	transports map[string]mavlink.Transport
	origin     geo.Origin
	send       bool
	logger     zerolog.Logger
}

func NewRunner(opts Options) *Runner {
	logger := opts.Logger.With().Str("component", "pipeline").Logger()

	parserOpts := []dsl.Option{}
	if opts.MissionID != "" {
		parserOpts = append(parserOpts, dsl.WithMissionID(opts.MissionID))
	}

	validatorOpts := []safety.Option{}
	if opts.Limits != (safety.Limits{}) {
		validatorOpts = append(validatorOpts, safety.WithLimits(opts.Limits))
	}
	if opts.SharedPosition {
		validatorOpts = append(validatorOpts, safety.WithSharedPosition())
	}

	return &Runner{
		parser:     dsl.NewParser(opts.Logger, parserOpts...),
		validator:  safety.NewValidator(opts.Logger, validatorOpts...),
		composer:   mavlink.NewComposer(opts.Logger),
		translator: opts.Translator,
		routing:    opts.Routing,
		transports: opts.Transports,
		origin:     opts.Origin,
		send:       opts.Send,
		logger:     logger,
	}
}

// RunScript parses, validates, and composes a mission script. The returned
// Result is never nil: rejected or partially composed missions come back
// alongside the error describing why the run stopped.
func (r *Runner) RunScript(ctx context.Context, script string) (*Result, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.source", "script")))
	defer span.End()

	result := &Result{Script: script}
	mission, diags := r.parseStage(ctx, script)
	result.Diagnostics = diags
	result.Mission = mission
	result.MissionID = mission.MissionID

	if len(mission.Steps) == 0 {
		err := fmt.Errorf("script produced no steps: %w", domain.ErrNoSteps)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	return r.finish(ctx, span, result, mission)
}

// RunPrompt translates a natural language request and runs the result. When
// the generated script parses to zero steps the parser diagnostics are fed
// back to the model for repair, up to maxRepairAttempts.
func (r *Runner) RunPrompt(ctx context.Context, prompt string) (*Result, error) {
	if r.translator == nil {
		return &Result{}, fmt.Errorf("prompt translation requires an llm provider: %w", domain.ErrProviderNotConfigured)
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.source", "prompt")))
	defer span.End()

	result := &Result{Prompt: prompt}

	script, err := r.translateStage(ctx, prompt)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	var mission domain.Mission
	for attempt := 0; ; attempt++ {
		result.Script = script
		mission, result.Diagnostics = r.parseStage(ctx, script)
		if len(mission.Steps) > 0 {
			break
		}
		if attempt == maxRepairAttempts-1 {
			err := fmt.Errorf("no steps after %d repair attempts: %w", result.Repairs, domain.ErrNoSteps)
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}

		reason := diagnosticSummary(result.Diagnostics)
		r.logger.Warn().Str("reason", reason).Int("attempt", attempt+1).Msg("repairing generated script")
		script, err = r.repairStage(ctx, script, reason)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return result, err
		}
		result.Repairs++
	}

	result.Mission = mission
	result.MissionID = mission.MissionID
	return r.finish(ctx, span, result, mission)
}

// finish runs the stages shared by script and prompt runs.
func (r *Runner) finish(ctx context.Context, span trace.Span, result *Result, mission domain.Mission) (*Result, error) {
	if !r.origin.IsZero() {
		mission = geo.Localize(mission, r.origin)
		result.Mission = mission
	}

	report := r.validateStage(ctx, mission)
	result.Report = &report
	if !report.Passed() {
		err := fmt.Errorf("%d safety issues: %w", len(report.Issues), domain.ErrMissionRejected)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	descriptors, err := r.composeStage(ctx, mission)
	result.Descriptors = descriptors
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	return result, nil
}

func (r *Runner) translateStage(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.translate")
	defer span.End()
	start := time.Now()

	script, err := r.translator.Translate(ctx, prompt)

	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = telemetry.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	telemetry.RecordStageMetrics(ctx, telemetry.StageMetrics{
		Stage:    telemetry.StageTranslate,
		Provider: r.translator.Provider().Name(),
		Outcome:  outcome,
		Duration: time.Since(start),
	})
	return script, err
}

func (r *Runner) repairStage(ctx context.Context, script, reason string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.repair")
	defer span.End()
	start := time.Now()

	fixed, err := r.translator.Repair(ctx, script, reason)

	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = telemetry.OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	telemetry.RecordStageMetrics(ctx, telemetry.StageMetrics{
		Stage:    telemetry.StageTranslate,
		Provider: r.translator.Provider().Name(),
		Outcome:  outcome,
		Repairs:  1,
		Duration: time.Since(start),
	})
	return fixed, err
}

func (r *Runner) parseStage(ctx context.Context, script string) (domain.Mission, []dsl.Diagnostic) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.parse")
	defer span.End()
	start := time.Now()

	mission, diags := r.parser.Parse(script)

	span.SetAttributes(
		attribute.String("mission.id", mission.MissionID),
		attribute.Int("mission.steps", len(mission.Steps)),
		attribute.Int("parse.dropped", len(diags)),
	)
	telemetry.RecordStageMetrics(ctx, telemetry.StageMetrics{
		MissionID: mission.MissionID,
		Stage:     telemetry.StageParse,
		Outcome:   telemetry.OutcomeOK,
		Steps:     len(mission.Steps),
		Dropped:   len(diags),
		Duration:  time.Since(start),
	})
	return mission, diags
}

func (r *Runner) validateStage(ctx context.Context, mission domain.Mission) safety.Report {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.validate",
		trace.WithAttributes(attribute.String("mission.id", mission.MissionID)))
	defer span.End()
	start := time.Now()

	report := r.validator.Validate(mission)

	telemetry.RecordSafetyVerdict(span, report.Passed(), len(report.Issues), len(mission.Steps))
	outcome := telemetry.OutcomeOK
	if !report.Passed() {
		outcome = telemetry.OutcomeRejected
	}
	telemetry.RecordStageMetrics(ctx, telemetry.StageMetrics{
		MissionID:  mission.MissionID,
		Stage:      telemetry.StageValidate,
		Outcome:    outcome,
		Steps:      len(mission.Steps),
		Violations: len(report.Issues),
		Duration:   time.Since(start),
	})
	return report
}

func (r *Runner) composeStage(ctx context.Context, mission domain.Mission) ([]mavlink.Descriptor, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.compose",
		trace.WithAttributes(attribute.String("mission.id", mission.MissionID)))
	defer span.End()
	start := time.Now()

	descriptors, err := r.composer.Compose(ctx, mavlink.Request{
		Mission:    mission,
		Routing:    r.routing,
		Transports: r.transports,
		Send:       r.send,
	})

	outcome := telemetry.OutcomeOK
	unrouted := 0
	if err != nil {
		outcome = telemetry.OutcomeError
		if errors.Is(err, domain.ErrDroneNotRouted) {
			unrouted = 1
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.Int("compose.descriptors", len(descriptors)))
	telemetry.RecordStageMetrics(ctx, telemetry.StageMetrics{
		MissionID: mission.MissionID,
		Stage:     telemetry.StageCompose,
		Outcome:   outcome,
		Steps:     len(descriptors),
		Unrouted:  unrouted,
		Duration:  time.Since(start),
	})
	return descriptors, err
}

func diagnosticSummary(diags []dsl.Diagnostic) string {
	if len(diags) == 0 {
		return "No steps."
	}
	parts := make([]string, 0, len(diags))
	for _, d := range diags {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}
