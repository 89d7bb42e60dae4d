// Package metrics exposes the Prometheus-compatible metrics named in
// SPEC_FULL.md §6.5: counters for order lifecycle events, gauges for
// inventory/exposure/spread/profit, and histograms for cycle duration and
// ack latency. Grounded on the teacher's dashboard HTTP server
// (internal/api/server.go, http.Server + http.ServeMux) and on
// anywhy-bbgo's xmaker/metrics.go GaugeVec + init()/MustRegister pattern.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// Registry holds every metric this bot publishes. No metric carries a
// market_id label, since the process only ever runs one market per
// SPEC_FULL.md §4.7's narrowing.
type Registry struct {
	ordersPlaced    *prometheus.CounterVec
	ordersFilled    *prometheus.CounterVec
	ordersCancelled prometheus.Counter
	bookResync      prometheus.Counter

	inventory  *prometheus.GaugeVec
	exposure   prometheus.Gauge
	spreadBps  prometheus.Gauge
	profitUSD  prometheus.Gauge

	quoteCycleDuration prometheus.Histogram
	orderAckLatency    prometheus.Histogram

	server *http.Server
}

// New builds every metric and registers it with the Prometheus default
// registry, the one Serve exposes through promhttp.Handler. A second call
// in the same process panics on duplicate registration.
func New() *Registry {
	reg := &Registry{
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total orders submitted to the venue, by side and outcome.",
		}, []string{"side", "outcome"}),
		ordersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_filled_total",
			Help: "Total orders that reached a filled state, by side and outcome.",
		}, []string{"side", "outcome"}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Total orders cancelled, aged out or replaced.",
		}),
		bookResync: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "book_resync_total",
			Help: "Total REST snapshot requests after the book was found stale, gapped, or empty.",
		}),
		inventory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inventory",
			Help: "Current position size, by outcome (yes/no).",
		}, []string{"type"}),
		exposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "exposure_usd",
			Help: "Current total notional exposure in USD.",
		}),
		spreadBps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spread_bps",
			Help: "Most recently observed book spread in basis points.",
		}),
		profitUSD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "profit_usd",
			Help: "Realized plus unrealized profit in USD.",
		}),
		quoteCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quote_cycle_duration_seconds",
			Help:    "Duration of one cancel-replace cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		orderAckLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_ack_latency_seconds",
			Help:    "Time from order submission to venue acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		reg.ordersPlaced,
		reg.ordersFilled,
		reg.ordersCancelled,
		reg.bookResync,
		reg.inventory,
		reg.exposure,
		reg.spreadBps,
		reg.profitUSD,
		reg.quoteCycleDuration,
		reg.orderAckLatency,
	)

	return reg
}

// Serve starts the /metrics HTTP endpoint on host:port and blocks until ctx
// is cancelled, then shuts down gracefully.
func (r *Registry) Serve(ctx context.Context, host string, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// IncOrdersPlaced records one order submission.
func (r *Registry) IncOrdersPlaced(side types.Side, outcome types.Outcome) {
	r.ordersPlaced.WithLabelValues(string(side), string(outcome)).Inc()
}

// IncOrdersFilled records one order reaching Filled.
func (r *Registry) IncOrdersFilled(side types.Side, outcome types.Outcome) {
	r.ordersFilled.WithLabelValues(string(side), string(outcome)).Inc()
}

// IncOrdersCancelled records one order cancellation.
func (r *Registry) IncOrdersCancelled() { r.ordersCancelled.Inc() }

// IncBookResync records one REST snapshot request after the book was found
// stale, gapped, or empty.
func (r *Registry) IncBookResync() { r.bookResync.Inc() }

// SetInventory publishes the current position size for one outcome.
func (r *Registry) SetInventory(outcome types.Outcome, size float64) {
	r.inventory.WithLabelValues(string(outcome)).Set(size)
}

// SetExposureUSD publishes current total notional exposure.
func (r *Registry) SetExposureUSD(usd float64) { r.exposure.Set(usd) }

// SetSpreadBps publishes the most recently observed spread.
func (r *Registry) SetSpreadBps(bps float64) { r.spreadBps.Set(bps) }

// SetProfitUSD publishes realized+unrealized profit.
func (r *Registry) SetProfitUSD(usd float64) { r.profitUSD.Set(usd) }

// ObserveQuoteCycleDuration records one cancel-replace cycle's wall time.
func (r *Registry) ObserveQuoteCycleDuration(d time.Duration) {
	r.quoteCycleDuration.Observe(d.Seconds())
}

// ObserveOrderAckLatency records time-to-acknowledgement for one order.
func (r *Registry) ObserveOrderAckLatency(d time.Duration) {
	r.orderAckLatency.Observe(d.Seconds())
}
