package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health   *HealthHandler
	Payments *PaymentHandler
	Accounts *AccountHandler
	FX       *FXHandler

	// PaymentMiddleware wraps the payment route after the mux has resolved
	// its path values. Nil leaves the route unwrapped.
	PaymentMiddleware func(http.Handler) http.Handler
}

func NewRouter(h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health.Liveness)
	mux.HandleFunc("GET /health/ready", h.Health.Readiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/prices", h.FX.GetPrice)
	mux.HandleFunc("GET /v1/accounts/{accountID}/wallets", h.Accounts.Wallets)
	mux.HandleFunc("GET /v1/accounts/{accountID}/transactions", h.Accounts.Transactions)
	var pay http.Handler = http.HandlerFunc(h.Payments.PayOnChain)
	if h.PaymentMiddleware != nil {
		pay = h.PaymentMiddleware(pay)
	}
	mux.Handle("POST /v1/accounts/{accountID}/wallets/{walletID}/onchain-payments", pay)

	return mux
}
