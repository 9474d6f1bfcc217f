// Package metrics exposes Prometheus collectors for the HTTP API, the session
// synchronizer and the collection store.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/SscSPs/kiosc_finance_app/internal/core/domain"
	portssvc "github.com/SscSPs/kiosc_finance_app/internal/core/ports/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kiosc"

// Recorder owns a private registry so tests and multiple servers do not share state.
type Recorder struct {
	registry     *prometheus.Registry
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	loads        *prometheus.CounterVec
	saves        *prometheus.CounterVec
	savedBytes   prometheus.Gauge
	mutations    *prometheus.CounterVec
}

var (
	_ portssvc.SyncListener     = (*Recorder)(nil)
	_ portssvc.MutationListener = (*Recorder)(nil)
)

// New creates a Recorder with the Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "loads_total",
			Help: "Workbook loads by outcome and data source.",
		}, []string{"outcome", "source"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "saves_total",
			Help: "Workbook saves by outcome.",
		}, []string{"outcome"}),
		savedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "last_saved_bytes",
			Help: "Size of the last successfully saved workbook.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "mutations_total",
			Help: "Collection store mutations by action, collection and outcome.",
		}, []string{"action", "collection", "outcome"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests, r.httpDuration, r.loads, r.saves, r.savedBytes, r.mutations,
	)
	return r
}

// WatchSession publishes the synchronizer state as gauges read at scrape time.
func (r *Recorder) WatchSession(sync portssvc.SessionSynchronizerSvc) {
	r.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "unsaved_changes",
			Help: "1 when the in-memory data differs from the last load or save.",
		}, func() float64 {
			return boolFloat(sync.HasUnsavedChanges())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "ready",
			Help: "1 when a dataset is loaded and no load or save is running.",
		}, func() float64 {
			return boolFloat(sync.State() == portssvc.StateReady)
		}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveRequest records one served HTTP request. route is the matched route pattern.
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// OnLoad implements SyncListener.
func (r *Recorder) OnLoad(_ context.Context, result portssvc.LoadResult, err error) {
	r.loads.WithLabelValues(outcome(err), string(result.Source)).Inc()
}

// OnSave implements SyncListener.
func (r *Recorder) OnSave(_ context.Context, result portssvc.SaveResult, err error) {
	r.saves.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		r.savedBytes.Set(float64(result.Bytes))
	}
}

// OnMutation implements MutationListener.
func (r *Recorder) OnMutation(_ context.Context, collection string, action domain.AuditAction, err error) {
	r.mutations.WithLabelValues(string(action), collection, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
