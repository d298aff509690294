package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/voucherauction/core"
)

// Settlement outcomes recorded in settlementsTotal.
const (
	outcomeSettled         = "settled"
	outcomeNoClearingPrice = "no_clearing_price"
	outcomeInvalidInput    = "invalid_input"
	outcomeError           = "error"
)

var (
	settlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "settlements_total", Help: "Settlement requests by outcome"},
		[]string{"outcome"},
	)
	vouchersEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "vouchers_emitted_total", Help: "Aggregated vouchers handed to the custody layer"},
		[]string{"operation", "locked"},
	)
	settlementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_processing_seconds",
			Help:    "Time spent settling an auction including attestation",
			Buckets: prometheus.DefBuckets,
		},
	)
	rejectedConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rejected_connections_total", Help: "Connections rejected because the worker pool was full"},
	)
)

func init() {
	prometheus.MustRegister(settlementsTotal, vouchersEmittedTotal, settlementDuration, rejectedConnectionsTotal)
}

func observeSettlement(outcome string, elapsed time.Duration) {
	settlementsTotal.WithLabelValues(outcome).Inc()
	settlementDuration.Observe(elapsed.Seconds())
}

func observeVouchers(vouchers []core.Voucher) {
	for _, v := range vouchers {
		vouchersEmittedTotal.WithLabelValues(v.Operation.String(), strconv.FormatBool(v.Locked)).Inc()
	}
}

// serveMetrics exposes /metrics on addr in the background.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}
