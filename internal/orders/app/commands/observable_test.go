package commands_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/dejobratic/coursepay/internal/orders/app/commands"
	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/metrics"
)

type stubHandler struct {
	result *commands.CreatedOrder
	err    error
}

func (s stubHandler) Handle(context.Context, commands.CreateOrderCommand) (*commands.CreatedOrder, error) {
	return s.result, s.err
}

func newObservable(t *testing.T, inner stubHandler, onDone func(context.Context, *commands.CreatedOrder, error)) (*commands.ObservableHandler[commands.CreateOrderCommand, *commands.CreatedOrder], *bytes.Buffer, *sdkmetric.ManualReader) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	reader := sdkmetric.NewManualReader()
	m, err := metrics.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	return commands.NewObservableHandler[commands.CreateOrderCommand, *commands.CreatedOrder]("CreateOrder", inner, logger, m, onDone), &buf, reader
}

func durationStatuses(t *testing.T, reader *sdkmetric.ManualReader) []string {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	var statuses []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "command_duration_seconds" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Histogram[float64]).DataPoints {
				v, _ := dp.Attributes.Value("status")
				statuses = append(statuses, v.AsString())
			}
		}
	}
	return statuses
}

func TestObservableHandler(t *testing.T) {
	t.Run("logs completion and records success", func(t *testing.T) {
		var called bool
		inner := stubHandler{result: &commands.CreatedOrder{Order: domain.Order{ID: 7}}}
		handler, buf, reader := newObservable(t, inner, func(_ context.Context, r *commands.CreatedOrder, err error) {
			called = err == nil && r.Order.ID == 7
		})

		if _, err := handler.Handle(context.Background(), commands.CreateOrderCommand{UserID: 1}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !called {
			t.Error("expected onDone to see the result")
		}
		if !strings.Contains(buf.String(), "CreateOrder completed") || !strings.Contains(buf.String(), `"order.id":7`) {
			t.Errorf("expected completion log with order id, got %s", buf.String())
		}
		if got := durationStatuses(t, reader); len(got) != 1 || got[0] != "success" {
			t.Errorf("expected success duration, got %v", got)
		}
	})

	t.Run("logs client errors as warnings", func(t *testing.T) {
		handler, buf, reader := newObservable(t, stubHandler{err: domain.Validationf("phone is required")}, nil)

		_, err := handler.Handle(context.Background(), commands.CreateOrderCommand{})

		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if !strings.Contains(buf.String(), `"level":"WARN"`) {
			t.Errorf("expected WARN log, got %s", buf.String())
		}
		if got := durationStatuses(t, reader); len(got) != 1 || got[0] != "validation" {
			t.Errorf("expected validation duration, got %v", got)
		}
	})

	t.Run("logs infrastructure errors as errors", func(t *testing.T) {
		handler, buf, _ := newObservable(t, stubHandler{err: domain.Persistence("insert order", errors.New("boom"))}, nil)

		_, _ = handler.Handle(context.Background(), commands.CreateOrderCommand{})

		if !strings.Contains(buf.String(), `"level":"ERROR"`) {
			t.Errorf("expected ERROR log, got %s", buf.String())
		}
	})
}
