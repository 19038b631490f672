package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

var (
	paymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_payments_total",
		Help: "Outgoing payments by settlement method and outcome",
	}, []string{"settlement", "outcome"})

	sendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_payment_duration_seconds",
		Help:    "Time spent executing an outgoing payment",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"settlement"})

	reversalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_onchain_reversals_total",
		Help: "Journals reverted after a rejected on-chain broadcast",
	}, []string{"reason"})

	bestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_best_effort_failures_total",
		Help: "Post-commit side effects that failed without affecting the payment",
	}, []string{"hook"})

	balanceNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_balance_notifications_total",
		Help: "Default wallet balance notifications by outcome",
	}, []string{"outcome"})

	httpRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObservePayment records one finished send attempt.
func ObservePayment(settlement domain.SettlementMethod, err error, seconds float64) {
	paymentsTotal.WithLabelValues(string(settlement), Outcome(err)).Inc()
	sendDuration.WithLabelValues(string(settlement)).Observe(seconds)
}

func IncReversal(reason error) {
	reversalsTotal.WithLabelValues(Outcome(reason)).Inc()
}

func IncBestEffortFailure(hook string) {
	bestEffortFailures.WithLabelValues(hook).Inc()
}

func IncBalanceNotification(err error) {
	balanceNotifications.WithLabelValues(Outcome(err)).Inc()
}

// ObserveHTTPRequest records a served request. route is the mux pattern so
// that path parameters do not explode the label set.
func ObserveHTTPRequest(method, route string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}

// Outcome maps an error to a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrInsufficientOnChainFunds):
		return "insufficient_onchain_funds"
	case errors.Is(err, domain.ErrCPFPAncestorLimitReached):
		return "cpfp_ancestor_limit"
	case errors.Is(err, domain.ErrLimitsExceeded):
		return "limits_exceeded"
	case errors.Is(err, domain.ErrResourceExpiredLock):
		return "lock_expired"
	case errors.Is(err, domain.ErrLockAcquireTimeout):
		return "lock_timeout"
	case errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidTargetConfirmations),
		errors.Is(err, domain.ErrLessThanDustThreshold),
		errors.Is(err, domain.ErrSelfPayment),
		errors.Is(err, domain.ErrInvalidRequest):
		return "invalid"
	}
	return "error"
}
