// Package metrics holds the Prometheus collectors for the relay. Label sets
// are kept small: operation names and fixed result/reason enums only, never
// hub, channel or user ids.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	// Deliveries counts per-target webhook calls by operation
	// (broadcast/edit/delete/reaction) and result.
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubnet_deliveries_total",
			Help: "Per-target webhook operations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// FanoutDuration records how long one whole fan-out took.
	FanoutDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hubnet_fanout_duration_seconds",
			Help:    "Duration of a complete fan-out across all batches.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// Rejections counts messages stopped by the moderation gate.
	Rejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubnet_moderation_rejections_total",
			Help: "Messages rejected by the moderation gate by reason.",
		},
		[]string{"reason"},
	)

	// PooledWebhooks gauges the live webhook clients.
	PooledWebhooks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hubnet_webhook_pool_clients",
			Help: "Webhook clients currently held by the pool.",
		},
	)

	// SweptRecords counts rows removed or revoked by the scheduled sweeps.
	SweptRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubnet_swept_records_total",
			Help: "Records handled by scheduled sweeps by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(Deliveries, FanoutDuration, Rejections, PooledWebhooks, SweptRecords)
}

// ObserveDelivery records one per-target result.
func ObserveDelivery(operation string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	Deliveries.WithLabelValues(operation, result).Inc()
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}
