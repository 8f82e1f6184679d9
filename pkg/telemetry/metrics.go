package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Pipeline stage names used to partition stage metrics.
const (
	StageTranslate = "translate"
	StageParse     = "parse"
	StageValidate  = "validate"
	StageCompose   = "compose"
)

// Stage outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	metricsOnce           sync.Once
	metricsInitErr        error
	stageExecutionCounter metric.Int64Counter
	droppedLineCounter    metric.Int64Counter
	violationCounter      metric.Int64Counter
	unroutedCounter       metric.Int64Counter
	repairCounter         metric.Int64Counter
	stageLatencyHistogram metric.Float64Histogram
)

// StageMetrics captures the fields needed to record one pipeline stage run.
type StageMetrics struct {
	MissionID  string
	Stage      string
	Provider   string
	Outcome    string
	Steps      int
	Dropped    int
	Violations int
	Unrouted   int
	Repairs    int
	Duration   time.Duration
}

// RecordStageMetrics emits the counters and histograms that describe a stage run.
func RecordStageMetrics(ctx context.Context, metrics StageMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("mission.id", metrics.MissionID),
		attribute.String("stage.name", metrics.Stage),
		attribute.String("stage.outcome", metrics.Outcome),
		attribute.Int("mission.steps", metrics.Steps),
	}
	if metrics.Provider != "" {
		attrs = append(attrs, attribute.String("llm.provider", metrics.Provider))
	}

	stageExecutionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if metrics.Duration > 0 {
		stageLatencyHistogram.Record(ctx, float64(metrics.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if metrics.Dropped > 0 {
		droppedLineCounter.Add(ctx, int64(metrics.Dropped), metric.WithAttributes(attrs...))
	}
	if metrics.Violations > 0 {
		violationCounter.Add(ctx, int64(metrics.Violations), metric.WithAttributes(attrs...))
	}
	if metrics.Unrouted > 0 {
		unroutedCounter.Add(ctx, int64(metrics.Unrouted), metric.WithAttributes(attrs...))
	}
	if metrics.Repairs > 0 {
		repairCounter.Add(ctx, int64(metrics.Repairs), metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("skygate.pipeline")

		stageExecutionCounter, metricsInitErr = meter.Int64Counter(
			"skygate.stage.executions_total",
			metric.WithDescription("Pipeline stage runs partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		droppedLineCounter, metricsInitErr = meter.Int64Counter(
			"skygate.parse.dropped_total",
			metric.WithDescription("Script instructions dropped during parsing"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		violationCounter, metricsInitErr = meter.Int64Counter(
			"skygate.safety.violations_total",
			metric.WithDescription("Safety violations raised during mission validation"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		unroutedCounter, metricsInitErr = meter.Int64Counter(
			"skygate.compose.unrouted_total",
			metric.WithDescription("Composition aborts caused by drones missing from the routing table"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		repairCounter, metricsInitErr = meter.Int64Counter(
			"skygate.translate.repairs_total",
			metric.WithDescription("Repair attempts performed on generated scripts"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		stageLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"skygate.stage.duration_ms",
			metric.WithDescription("Observed pipeline stage latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}

// RecordSafetyVerdict attaches the validation outcome to the provided span.
// Only counts are recorded; issue texts stay in the report.
func RecordSafetyVerdict(span trace.Span, passed bool, issues int, steps int) {
	if span == nil || !span.IsRecording() {
		return
	}

	span.AddEvent("safety.verdict", trace.WithAttributes(
		attribute.Bool("safety.passed", passed),
		attribute.Int("safety.issues.count", issues),
		attribute.Int("mission.steps", steps),
	))
}
