package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// RepositoryMetrics содержит метрики операций репозиториев и публикации событий.
type RepositoryMetrics struct {
	// Счётчик операций по сущности, операции и результату
	operations *prometheus.CounterVec
	// Время выполнения операций
	duration *prometheus.HistogramVec
	// Последнее известное количество записей (обновляется по Count)
	records *prometheus.GaugeVec
	// Публикация событий об изменениях
	eventsPublished *prometheus.CounterVec
}

// NewRepositoryMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewRepositoryMetrics() *RepositoryMetrics {
	return NewRepositoryMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewRepositoryMetricsWithRegisterer регистрирует метрики в указанном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewRepositoryMetricsWithRegisterer(registerer prometheus.Registerer) *RepositoryMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &RepositoryMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_repository_operations_total",
			Help: "Total number of repository operations",
		}, []string{"entity", "operation", "result"}),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "shop_repository_operation_duration_seconds",
			Help:    "Duration of repository operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"entity", "operation"}),
		records: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "shop_repository_records",
			Help: "Number of stored records observed by the last Count call",
		}, []string{"entity"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_entity_events_published_total",
			Help: "Total number of entity change events sent to Kafka",
		}, []string{"entity", "event", "result"}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
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

func registerGaugeVec(registerer prometheus.Registerer, opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	collector := prometheus.NewGaugeVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.GaugeVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
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

// RecordOperation учитывает операцию репозитория и её длительность.
func (m *RepositoryMetrics) RecordOperation(entity, operation string, duration time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(entity, operation, result).Inc()
	m.duration.WithLabelValues(entity, operation).Observe(duration.Seconds())
}

// SetRecords обновляет gauge количества записей.
func (m *RepositoryMetrics) SetRecords(entity string, count int64) {
	m.records.WithLabelValues(entity).Set(float64(count))
}

// RecordEventPublished учитывает попытку публикации события.
func (m *RepositoryMetrics) RecordEventPublished(entity, event string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.eventsPublished.WithLabelValues(entity, event, result).Inc()
}
