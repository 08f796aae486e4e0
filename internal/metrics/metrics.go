package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiod",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of successful service starts.",
		}, []string{"service"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiod",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of requested service stops.",
		}, []string{"service"},
	)
	launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiod",
			Subsystem: "service",
			Name:      "launch_failures_total",
			Help:      "Number of starts where every candidate command failed to spawn.",
		}, []string{"service"},
	)
	serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "studiod",
			Subsystem: "service",
			Name:      "up",
			Help:      "Whether the last health probe of the service succeeded (1) or not (0).",
		}, []string{"service"},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studiod",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Health probe round-trip time per target URL.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target", "ok"},
	)
	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studiod",
			Subsystem: "hub",
			Name:      "clients",
			Help:      "Currently connected realtime clients.",
		},
	)
	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiod",
			Subsystem: "hub",
			Name:      "broadcasts_total",
			Help:      "Realtime events fanned out to clients, by event type.",
		}, []string{"event"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceStarts, serviceStops, launchFailures, serviceUp, probeDuration, wsClients, broadcasts}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(service string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(service).Inc()
	}
}

func IncStop(service string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(service).Inc()
	}
}

func IncLaunchFailure(service string) {
	if regOK.Load() {
		launchFailures.WithLabelValues(service).Inc()
	}
}

func SetServiceUp(service string, up bool) {
	if regOK.Load() {
		v := 0.0
		if up {
			v = 1.0
		}
		serviceUp.WithLabelValues(service).Set(v)
	}
}

func ObserveProbe(target string, seconds float64, ok bool) {
	if regOK.Load() {
		lbl := "false"
		if ok {
			lbl = "true"
		}
		probeDuration.WithLabelValues(target, lbl).Observe(seconds)
	}
}

func SetClients(n int) {
	if regOK.Load() {
		wsClients.Set(float64(n))
	}
}

func IncBroadcast(event string) {
	if regOK.Load() {
		broadcasts.WithLabelValues(event).Inc()
	}
}
