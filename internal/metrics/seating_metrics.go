package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

// Значения метки result.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// SeatingMetrics содержит метрики операций над бронями и столиками.
type SeatingMetrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	duration   *prometheus.HistogramVec

	lockWait     prometheus.Histogram
	outboxEvents prometheus.Counter
}

// NewSeatingMetrics создаёт метрики в DefaultRegisterer.
func NewSeatingMetrics() *SeatingMetrics {
	return NewSeatingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSeatingMetricsWithRegisterer создаёт метрики в заданном registry (удобно для тестов).
func NewSeatingMetricsWithRegisterer(registerer prometheus.Registerer) *SeatingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SeatingMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "seating_operations_total",
			Help: "Total number of reservation and table operations by result",
		}, []string{"operation", "result"}),
		rejections: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "seating_rejections_total",
			Help: "Total number of operations rejected by validation or business rules",
		}, []string{"operation", "kind"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "seating_operation_duration_seconds",
			Help:    "Duration of reservation and table operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		lockWait: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "seating_table_lock_wait_seconds",
			Help:    "Time spent waiting for a per-table lock",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "seating_outbox_events_total",
			Help: "Total number of events written to the outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOperation фиксирует итог операции: успех, отказ по правилу или внутреннюю ошибку.
// Безопасен для nil-получателя.
func (m *SeatingMetrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())

	switch kind := domain.KindOf(err); kind {
	case "":
		m.operations.WithLabelValues(operation, ResultSuccess).Inc()
	case domain.KindInternal:
		m.operations.WithLabelValues(operation, ResultError).Inc()
	default:
		m.operations.WithLabelValues(operation, ResultRejected).Inc()
		m.rejections.WithLabelValues(operation, string(kind)).Inc()
	}
}

// RecordLockWait записывает время ожидания блокировки столика.
func (m *SeatingMetrics) RecordLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий, записанных в outbox.
func (m *SeatingMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}
