package dispatcher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/sporewatch/sightingmap/internal/dispatcher"

type metrics struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
}

// newMetrics registers the dispatcher instruments. queued is polled for the
// per-event queue size gauge.
func newMetrics(queued func() map[string]int) (*metrics, error) {
	m := otel.Meter(instrumentationName)
	out := &metrics{}

	gauge, err := m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in a handler queue"))
	if err != nil {
		return nil, fmt.Errorf("queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for name, n := range queued() {
			o.ObserveInt64(gauge, int64(n), metric.WithAttributes(eventAttr(name)))
		}
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("queue size callback: %w", err)
	}

	if out.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events handled by a buffered worker")); err != nil {
		return nil, fmt.Errorf("processed counter: %w", err)
	}
	if out.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events dropped on a full queue")); err != nil {
		return nil, fmt.Errorf("dropped counter: %w", err)
	}
	if out.duration, err = m.Float64Histogram("dispatcher.event.duration",
		metric.WithDescription("Time a buffered worker spent on one event"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("duration histogram: %w", err)
	}
	return out, nil
}

func eventAttr(name string) attribute.KeyValue {
	return attribute.String("event", name)
}

func (m *metrics) handled(name string, took time.Duration) {
	attrs := metric.WithAttributes(eventAttr(name))
	m.processed.Add(context.Background(), 1, attrs)
	m.duration.Record(context.Background(), float64(took.Microseconds())/1000, attrs)
}

func (m *metrics) drop(name string) {
	m.dropped.Add(context.Background(), 1, metric.WithAttributes(eventAttr(name)))
}
