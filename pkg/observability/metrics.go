// Package observability provides the engine-owned metrics recorder: an
// OpenTelemetry meter backed by a Prometheus exporter. The engine holds
// the provider and registry itself; nothing registers globally, so two
// engines in one process never collide.
package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/kadirpekel/graphmind"

// Recorder records engine-level measurements. Call sites stay
// unconditional; disabling metrics swaps in the noop implementation.
type Recorder interface {
	// RecordQuestion tracks one answered question end to end.
	RecordQuestion(ctx context.Context, elapsed time.Duration, fallback, cancelled bool)

	// RecordTask tracks one scheduler task by kind and terminal state.
	RecordTask(ctx context.Context, kind, state string, elapsed time.Duration)

	// RecordSearch tracks one entity search.
	RecordSearch(ctx context.Context, engine string, hits int, elapsed time.Duration)

	// RecordLLMCall tracks one LLM generation attempt.
	RecordLLMCall(ctx context.Context, elapsed time.Duration, err error)

	// Shutdown flushes and releases the meter provider.
	Shutdown(ctx context.Context) error
}

// NewRecorder returns the Prometheus-backed recorder when enabled, the
// noop recorder otherwise.
func NewRecorder(enabled bool) (Recorder, error) {
	if !enabled {
		return Noop{}, nil
	}
	return NewMetrics()
}

// Metrics is the Prometheus-backed Recorder.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry

	questions    metric.Int64Counter
	questionTime metric.Float64Histogram
	tasks        metric.Int64Counter
	taskTime     metric.Float64Histogram
	searchHits   metric.Int64Histogram
	searchTime   metric.Float64Histogram
	llmCalls     metric.Int64Counter
	llmTime      metric.Float64Histogram
}

func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	m := &Metrics{provider: provider, registry: registry}

	var errs []error
	instrument := func(build func() error) {
		if err := build(); err != nil {
			errs = append(errs, err)
		}
	}
	instrument(func() (err error) {
		m.questions, err = meter.Int64Counter("graphmind.questions",
			metric.WithDescription("Questions answered"))
		return
	})
	instrument(func() (err error) {
		m.questionTime, err = meter.Float64Histogram("graphmind.question.duration",
			metric.WithDescription("Question latency"), metric.WithUnit("s"))
		return
	})
	instrument(func() (err error) {
		m.tasks, err = meter.Int64Counter("graphmind.tasks",
			metric.WithDescription("Scheduler tasks by kind and state"))
		return
	})
	instrument(func() (err error) {
		m.taskTime, err = meter.Float64Histogram("graphmind.task.duration",
			metric.WithDescription("Task run time"), metric.WithUnit("s"))
		return
	})
	instrument(func() (err error) {
		m.searchHits, err = meter.Int64Histogram("graphmind.search.hits",
			metric.WithDescription("Entities returned per search"))
		return
	})
	instrument(func() (err error) {
		m.searchTime, err = meter.Float64Histogram("graphmind.search.duration",
			metric.WithDescription("Search latency"), metric.WithUnit("s"))
		return
	})
	instrument(func() (err error) {
		m.llmCalls, err = meter.Int64Counter("graphmind.llm.calls",
			metric.WithDescription("LLM generation attempts"))
		return
	})
	instrument(func() (err error) {
		m.llmTime, err = meter.Float64Histogram("graphmind.llm.duration",
			metric.WithDescription("LLM call latency"), metric.WithUnit("s"))
		return
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to create instruments: %v", errs)
	}
	return m, nil
}

// Registry exposes the backing Prometheus registry for HTTP serving.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordQuestion(ctx context.Context, elapsed time.Duration, fallback, cancelled bool) {
	attrs := metric.WithAttributes(
		attribute.Bool("fallback", fallback),
		attribute.Bool("cancelled", cancelled),
	)
	m.questions.Add(ctx, 1, attrs)
	m.questionTime.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordTask(ctx context.Context, kind, state string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("state", state),
	)
	m.tasks.Add(ctx, 1, attrs)
	m.taskTime.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordSearch(ctx context.Context, engine string, hits int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("engine", engine))
	m.searchHits.Record(ctx, int64(hits), attrs)
	m.searchTime.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) RecordLLMCall(ctx context.Context, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.llmCalls.Add(ctx, 1, attrs)
	m.llmTime.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) RecordQuestion(context.Context, time.Duration, bool, bool) {}
func (Noop) RecordTask(context.Context, string, string, time.Duration) {}
func (Noop) RecordSearch(context.Context, string, int, time.Duration)  {}
func (Noop) RecordLLMCall(context.Context, time.Duration, error)       {}
func (Noop) Shutdown(context.Context) error                            { return nil }

// Interface checks.
var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = Noop{}
)
