package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_ingested_total",
		Help: "Принятые входящие сообщения по типу",
	}, []string{"kind"})

	DedupSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_dedup_skipped_total",
		Help: "Сообщения, пропущенные как дубликаты",
	})

	AlbumFlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_album_flushes_total",
		Help: "Сброшенные буферы альбомов",
	})

	PublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_publish_total",
		Help: "Публикации по результату",
	}, []string{"status"})

	QueuePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_queue_pending",
		Help: "Количество записей очереди в статусе pending",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		IngestedTotal,
		DedupSkippedTotal,
		AlbumFlushesTotal,
		PublishTotal,
		QueuePending,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
