package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

func TestNewSeatingMetrics(t *testing.T) {
	metrics := NewSeatingMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("NewSeatingMetricsWithRegisterer should not return nil")
	}
	if metrics.operations == nil {
		t.Error("operations counter vec should not be nil")
	}
	if metrics.rejections == nil {
		t.Error("rejections counter vec should not be nil")
	}
	if metrics.duration == nil {
		t.Error("duration histogram vec should not be nil")
	}
	if metrics.lockWait == nil {
		t.Error("lockWait histogram should not be nil")
	}
	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}
}

func TestNewSeatingMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewSeatingMetricsWithRegisterer(reg)
	second := NewSeatingMetricsWithRegisterer(reg)

	first.RecordOutboxEvent()
	second.RecordOutboxEvent()

	if got := testutil.ToFloat64(first.outboxEvents); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestRecordOperation(t *testing.T) {
	metrics := NewSeatingMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOperation(domain.OpSeat, nil, 10*time.Millisecond)
	metrics.RecordOperation(domain.OpSeat, domain.NewError(domain.ErrTableOccupied, "Table is occupied."), time.Millisecond)
	metrics.RecordOperation(domain.OpSeat, domain.TableNotFound("1"), time.Millisecond)
	metrics.RecordOperation(domain.OpSeat, errors.New("db down"), time.Millisecond)

	if got := testutil.ToFloat64(metrics.operations.WithLabelValues(domain.OpSeat, ResultSuccess)); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.operations.WithLabelValues(domain.OpSeat, ResultRejected)); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.operations.WithLabelValues(domain.OpSeat, ResultError)); got != 1 {
		t.Errorf("error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.rejections.WithLabelValues(domain.OpSeat, string(domain.KindBusinessRule))); got != 1 {
		t.Errorf("business rule rejections = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.rejections.WithLabelValues(domain.OpSeat, string(domain.KindNotFound))); got != 1 {
		t.Errorf("not found rejections = %v, want 1", got)
	}

	metric := &dto.Metric{}
	observer, err := metrics.duration.GetMetricWithLabelValues(domain.OpSeat)
	if err != nil {
		t.Fatalf("get histogram: %v", err)
	}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 4 {
		t.Errorf("expected 4 duration samples, got %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestRecordLockWait(t *testing.T) {
	metrics := NewSeatingMetricsWithRegisterer(prometheus.NewRegistry())
	metrics.RecordLockWait(3 * time.Millisecond)

	metric := &dto.Metric{}
	if err := metrics.lockWait.Write(metric); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 1 {
		t.Errorf("expected 1 sample, got %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var metrics *SeatingMetrics

	metrics.RecordOperation(domain.OpFinish, nil, time.Millisecond)
	metrics.RecordLockWait(time.Millisecond)
	metrics.RecordOutboxEvent()
}
