package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/beads-ui/internal/supervisor"
)

const runnerScopeName = "github.com/steveyegge/beads-ui/supervisor"

// InstrumentedRunner wraps a supervisor.Runner with OTel tracing and
// metrics. Every Execute gets a span and is counted in bdui.exec.* metrics.
// Use WrapRunner to create one; it returns the original runner unchanged
// when telemetry is disabled.
type InstrumentedRunner struct {
	inner  supervisor.Runner
	tracer trace.Tracer
	execs  metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapRunner returns r decorated with OTel instrumentation.
// When telemetry is disabled, r is returned as-is with zero overhead.
func WrapRunner(r supervisor.Runner) supervisor.Runner {
	if !Enabled() {
		return r
	}
	m := Meter(runnerScopeName)
	execs, _ := m.Int64Counter("bdui.exec.invocations",
		metric.WithDescription("Total external command invocations"),
	)
	dur, _ := m.Float64Histogram("bdui.exec.duration",
		metric.WithDescription("External command duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("bdui.exec.failures",
		metric.WithDescription("Total failed invocations by kind"),
	)
	return &InstrumentedRunner{
		inner:  r,
		tracer: Tracer(runnerScopeName),
		execs:  execs,
		dur:    dur,
		errs:   errs,
	}
}

func (r *InstrumentedRunner) Execute(ctx context.Context, command string, args []string, opts ...supervisor.CallOption) (*supervisor.Result, error) {
	attrs := []attribute.KeyValue{attribute.String("bdui.command", command)}
	ctx, span := r.tracer.Start(ctx, "exec."+command,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	r.execs.Add(ctx, 1, metric.WithAttributes(attrs...))
	start := time.Now()

	res, err := r.inner.Execute(ctx, command, args, opts...)

	ms := float64(time.Since(start).Milliseconds())
	r.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.errs.Add(ctx, 1, metric.WithAttributes(
			append(attrs, attribute.String("bdui.failure", FailureKind(err)))...,
		))
	} else {
		span.SetAttributes(attribute.Int("bdui.exit_code", res.ExitCode))
	}
	span.End()
	return res, err
}

// FailureKind classifies a supervisor error for metric labels and API
// payloads. Unclassified errors report "internal".
func FailureKind(err error) string {
	var (
		openErr    *supervisor.CircuitOpenError
		timeoutErr *supervisor.TimeoutError
		exitErr    *supervisor.ExitError
		spawnErr   *supervisor.SpawnError
	)
	switch {
	case errors.As(err, &openErr):
		return "circuit_open"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &exitErr):
		return "exit"
	case errors.As(err, &spawnErr):
		return "spawn"
	default:
		return "internal"
	}
}
