// Package metrics provides Prometheus metrics for realtime polling.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all metrics, registered on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	FeedFetchesTotal   *prometheus.CounterVec
	FeedFetchDuration  *prometheus.HistogramVec
	FeedUpdates        *prometheus.GaugeVec
	PollCyclesTotal    *prometheus.CounterVec
	RealtimeStaleness  prometheus.Gauge
	NextFetchSeconds   prometheus.Gauge
	SessionWritesTotal *prometheus.CounterVec
}

// New creates and registers all metrics with a new registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	feedFetchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetable_feed_fetches_total",
			Help: "Realtime feed fetches, by feed and outcome",
		},
		[]string{"feed", "status"},
	)

	feedFetchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timetable_feed_fetch_duration_seconds",
			Help:    "Realtime feed fetch and decode latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	feedUpdates := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timetable_feed_updates",
			Help: "Records extracted from the most recent fetch of each feed",
		},
		[]string{"feed"},
	)

	pollCyclesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetable_poll_cycles_total",
			Help: "Completed polling cycles, by outcome",
		},
		[]string{"status"},
	)

	realtimeStaleness := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_realtime_staleness_seconds",
		Help: "Age of the most recently merged realtime batch",
	})

	nextFetchSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_next_fetch_seconds",
		Help: "Delay until the next scheduled fetch, as of when it was armed",
	})

	sessionWritesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timetable_session_writes_total",
			Help: "Persisted session writes, by outcome",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		feedFetchesTotal,
		feedFetchDuration,
		feedUpdates,
		pollCyclesTotal,
		realtimeStaleness,
		nextFetchSeconds,
		sessionWritesTotal,
	)

	return &Metrics{
		Registry:           registry,
		FeedFetchesTotal:   feedFetchesTotal,
		FeedFetchDuration:  feedFetchDuration,
		FeedUpdates:        feedUpdates,
		PollCyclesTotal:    pollCyclesTotal,
		RealtimeStaleness:  realtimeStaleness,
		NextFetchSeconds:   nextFetchSeconds,
		SessionWritesTotal: sessionWritesTotal,
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveFetch records one feed fetch. Safe on a nil receiver.
func (m *Metrics) ObserveFetch(feed string, took time.Duration, records int, err error) {
	if m == nil {
		return
	}
	m.FeedFetchesTotal.WithLabelValues(feed, status(err)).Inc()
	m.FeedFetchDuration.WithLabelValues(feed).Observe(took.Seconds())
	if err == nil {
		m.FeedUpdates.WithLabelValues(feed).Set(float64(records))
	}
}

// ObserveCycle records a completed polling cycle and the delay until
// the next one. Safe on a nil receiver.
func (m *Metrics) ObserveCycle(err error, next time.Duration) {
	if m == nil {
		return
	}
	m.PollCyclesTotal.WithLabelValues(status(err)).Inc()
	m.NextFetchSeconds.Set(next.Seconds())
}

// SetStaleness is safe on a nil receiver.
func (m *Metrics) SetStaleness(age time.Duration) {
	if m == nil {
		return
	}
	m.RealtimeStaleness.Set(age.Seconds())
}

// ObserveSessionWrite is safe on a nil receiver.
func (m *Metrics) ObserveSessionWrite(err error) {
	if m == nil {
		return
	}
	m.SessionWritesTotal.WithLabelValues(status(err)).Inc()
}
