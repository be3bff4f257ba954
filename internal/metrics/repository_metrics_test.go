package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRepositoryMetrics(t *testing.T) {
	metrics := NewRepositoryMetrics()

	if metrics == nil {
		t.Fatal("NewRepositoryMetrics should not return nil")
	}
	if metrics.operations == nil {
		t.Error("operations counter vec should not be nil")
	}
	if metrics.duration == nil {
		t.Error("duration histogram vec should not be nil")
	}
	if metrics.records == nil {
		t.Error("records gauge vec should not be nil")
	}
	if metrics.eventsPublished == nil {
		t.Error("eventsPublished counter vec should not be nil")
	}
}

func TestNewRepositoryMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewRepositoryMetricsWithRegisterer(reg)
	second := NewRepositoryMetricsWithRegisterer(reg)

	if first.operations != second.operations {
		t.Error("expected operations collector to be reused")
	}
	if first.duration != second.duration {
		t.Error("expected duration collector to be reused")
	}
}

func TestRecordOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRepositoryMetricsWithRegisterer(reg)

	metrics.RecordOperation("order", "save", 2*time.Millisecond, nil)
	metrics.RecordOperation("order", "save", 3*time.Millisecond, nil)
	metrics.RecordOperation("order", "save", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(metrics.operations.WithLabelValues("order", "save", ResultOK)); got != 2 {
		t.Errorf("expected 2 ok operations, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.operations.WithLabelValues("order", "save", ResultError)); got != 1 {
		t.Errorf("expected 1 failed operation, got %f", got)
	}

	observer, err := metrics.duration.GetMetricWithLabelValues("order", "save")
	if err != nil {
		t.Fatalf("get histogram: %v", err)
	}
	metric := &dto.Metric{}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestSetRecords(t *testing.T) {
	metrics := NewRepositoryMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.SetRecords("product", 7)
	metrics.SetRecords("product", 5)

	if got := testutil.ToFloat64(metrics.records.WithLabelValues("product")); got != 5 {
		t.Errorf("expected records gauge 5, got %f", got)
	}
}

func TestRecordEventPublished(t *testing.T) {
	metrics := NewRepositoryMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordEventPublished("order", "order.saved", nil)
	metrics.RecordEventPublished("order", "order.saved", errors.New("broker down"))

	if got := testutil.ToFloat64(metrics.eventsPublished.WithLabelValues("order", "order.saved", ResultOK)); got != 1 {
		t.Errorf("expected 1 published event, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.eventsPublished.WithLabelValues("order", "order.saved", ResultError)); got != 1 {
		t.Errorf("expected 1 failed event, got %f", got)
	}
}
