package service

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"team-visualizer/internal/domain"
)

var (
	ledgerAdjustTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ledger_adjustments_total", Help: "Ledger adjustments by result"},
		[]string{"result"},
	)
	ledgerHoursTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ledger_hours_total", Help: "Absolute hours moved by committed adjustments"},
		[]string{"direction"},
	)
	ledgerAdjustLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_adjust_duration_seconds",
		Help:    "Latency of the balance+ledger transaction",
		Buckets: prometheus.DefBuckets,
	})
)

func init() { prometheus.MustRegister(ledgerAdjustTotal, ledgerHoursTotal, ledgerAdjustLatency) }

func adjustResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "internal"
	}
}

func observeAdjust(err error, amount decimal.Decimal, d time.Duration) {
	ledgerAdjustTotal.WithLabelValues(adjustResult(err)).Inc()
	if err != nil {
		return
	}
	ledgerAdjustLatency.Observe(d.Seconds())
	dir := "credit"
	if amount.IsNegative() {
		dir = "debit"
	}
	f, _ := amount.Abs().Float64()
	ledgerHoursTotal.WithLabelValues(dir).Add(f)
}
