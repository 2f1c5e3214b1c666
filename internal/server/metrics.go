package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webforum-dev/webforum/shared/logger"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_requests_total",
			Help: "Total number of control-channel requests processed",
		},
		[]string{"action", "status"},
	)

	requestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "forum_requests_in_flight",
			Help: "Number of requests currently held by workers",
		},
	)

	workerPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forum_worker_panics_total",
			Help: "Total number of recovered worker panics",
		},
	)

	transfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_transfers_total",
			Help: "Total number of bulk transfers by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	transferBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forum_transfer_bytes_total",
			Help: "Total bytes moved over the data channel",
		},
		[]string{"direction"},
	)
)

// ServeMetrics exposes /metrics and /healthz on the given address. An empty
// address disables the listener.
func ServeMetrics(addr string) {
	if addr == "" {
		return
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	go func() {
		if err := http.ListenAndServe(addr, r); err != nil {
			logger.Log.Error("metrics listener stopped", "addr", addr, "error", err)
		}
	}()
}
