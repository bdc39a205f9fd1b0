package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UseCaseEvent describes one finished rule mutation.
type UseCaseEvent struct {
	Name      string
	Duration  time.Duration
	Success   bool
	Err       error
	Fields    map[string]any
	StartedAt time.Time
}

type UseCaseObserver interface {
	ObserveUseCase(ctx context.Context, event UseCaseEvent)
}

// NoopUseCaseObserver ignores all events.
type NoopUseCaseObserver struct{}

func (NoopUseCaseObserver) ObserveUseCase(context.Context, UseCaseEvent) {}

type logUseCaseObserver struct {
	logger zerolog.Logger
}

// NewLogUseCaseObserver logs one "service_use_case" line per event, at error
// level when the use case failed.
func NewLogUseCaseObserver(logger zerolog.Logger) UseCaseObserver {
	return &logUseCaseObserver{logger: logger}
}

func (o *logUseCaseObserver) ObserveUseCase(_ context.Context, event UseCaseEvent) {
	ev := o.logger.Info()
	if event.Err != nil {
		ev = o.logger.Error().Str("error", event.Err.Error())
	}
	ev.Str("use_case", event.Name).
		Int64("duration_ms", event.Duration.Milliseconds()).
		Bool("success", event.Success).
		Fields(event.Fields).
		Msg("service_use_case")
}

type traceUseCaseObserver struct {
	tracer trace.Tracer
}

// NewTraceUseCaseObserver records each event as a span on the global tracer
// provider, backdated to the event's start. With no provider installed the
// spans are dropped.
func NewTraceUseCaseObserver() UseCaseObserver {
	return newTraceUseCaseObserver(otel.Tracer("github.com/alexanderramin/recur/internal/service"))
}

func newTraceUseCaseObserver(tracer trace.Tracer) UseCaseObserver {
	return &traceUseCaseObserver{tracer: tracer}
}

func (o *traceUseCaseObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	_, span := o.tracer.Start(ctx, event.Name, trace.WithTimestamp(event.StartedAt))
	attrs := make([]attribute.KeyValue, 0, len(event.Fields))
	for k, v := range event.Fields {
		attrs = append(attrs, attribute.String(k, fmt.Sprint(v)))
	}
	span.SetAttributes(attrs...)
	if event.Err != nil {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	}
	span.End(trace.WithTimestamp(event.StartedAt.Add(event.Duration)))
}

type multiUseCaseObserver []UseCaseObserver

func (m multiUseCaseObserver) ObserveUseCase(ctx context.Context, event UseCaseEvent) {
	for _, obs := range m {
		obs.ObserveUseCase(ctx, event)
	}
}

// useCaseObserverOrNoop fans events out to every non-nil observer.
func useCaseObserverOrNoop(observers []UseCaseObserver) UseCaseObserver {
	var live multiUseCaseObserver
	for _, obs := range observers {
		if obs != nil {
			live = append(live, obs)
		}
	}
	switch len(live) {
	case 0:
		return NoopUseCaseObserver{}
	case 1:
		return live[0]
	}
	return live
}
