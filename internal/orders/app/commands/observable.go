package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/metrics"
	"github.com/dejobratic/coursepay/internal/telemetry"
)

// Handler executes one command.
type Handler[C, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type attributer interface {
	Attributes() []attribute.KeyValue
}

// ObservableHandler wraps a Handler with a span, a log line and duration metrics.
type ObservableHandler[C, R any] struct {
	name    string
	handler Handler[C, R]
	logger  *slog.Logger
	metrics *metrics.Metrics
	onDone  func(ctx context.Context, result R, err error)
}

func NewObservableHandler[C, R any](
	name string,
	handler Handler[C, R],
	logger *slog.Logger,
	metrics *metrics.Metrics,
	onDone func(ctx context.Context, result R, err error),
) *ObservableHandler[C, R] {
	return &ObservableHandler[C, R]{
		name:    name,
		handler: handler,
		logger:  logger,
		metrics: metrics,
		onDone:  onDone,
	}
}

func (o *ObservableHandler[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	ctx, span := telemetry.StartSpan(ctx, o.name+".Handle")
	defer span.End()

	cmdAttrs := attributesOf(cmd)
	telemetry.AddSpanAttributes(span, cmdAttrs...)

	start := time.Now()
	result, err := o.handler.Handle(ctx, cmd)

	o.metrics.RecordCommandDuration(ctx, o.name, time.Since(start).Seconds(), domain.Kind(err))
	if o.onDone != nil {
		o.onDone(ctx, result, err)
	}

	if err != nil {
		telemetry.RecordSpanError(span, err)
		level := slog.LevelError
		if kind := domain.Kind(err); kind == "validation" || kind == "not_found" || kind == "conflict" {
			level = slog.LevelWarn
		}
		o.logger.Log(ctx, level, o.name+" failed", append(logArgs(cmdAttrs), "error", err)...)
		return result, err
	}

	resAttrs := attributesOf(result)
	telemetry.AddSpanAttributes(span, resAttrs...)
	telemetry.SetSpanSuccess(span)

	o.logger.InfoContext(ctx, o.name+" completed", logArgs(append(cmdAttrs, resAttrs...))...)
	return result, nil
}

func attributesOf(v any) []attribute.KeyValue {
	if a, ok := v.(attributer); ok {
		return a.Attributes()
	}
	return nil
}

func logArgs(attrs []attribute.KeyValue) []any {
	args := make([]any, 0, len(attrs))
	for _, kv := range attrs {
		args = append(args, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	return args
}
