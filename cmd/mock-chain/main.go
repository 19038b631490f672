// Command mock-chain stands in for the hot-wallet and price services in local
// and docker-compose runs.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
)

type mockConfig struct {
	Port           int             `env:"PORT" envDefault:"8081"`
	AppEnv         string          `env:"APP_ENV" envDefault:"development"`
	HotWalletSats  uint64          `env:"MOCK_HOT_WALLET_SATS" envDefault:"1000000000"`
	FeeSatsPerVB   uint64          `env:"MOCK_FEE_SATS_PER_VBYTE" envDefault:"10"`
	MaxUnconfirmed int             `env:"MOCK_MAX_UNCONFIRMED_PAYOUTS" envDefault:"25"`
	PriceBtcUsd    decimal.Decimal `env:"MOCK_PRICE_BTC_USD" envDefault:"50000"`
	PriceBtcEur    decimal.Decimal `env:"MOCK_PRICE_BTC_EUR" envDefault:"46000"`
	PriceBtcGbp    decimal.Decimal `env:"MOCK_PRICE_BTC_GBP" envDefault:"39500"`
}

// A payout is modelled as one input, two outputs.
const payoutVBytes = 141

type incomingOut struct {
	Sats    uint64 `json:"sats"`
	Address string `json:"address"`
}

type incomingTx struct {
	TxHash    string        `json:"tx_hash"`
	CreatedAt time.Time     `json:"created_at"`
	Outs      []incomingOut `json:"outs"`
}

type hotWallet struct {
	mu          sync.Mutex
	cfg         mockConfig
	balance     uint64
	unconfirmed int
	fees        map[string]uint64
	incoming    []incomingTx
}

func (h *hotWallet) fee(targetConfs int) uint64 {
	rate := h.cfg.FeeSatsPerVB
	// Slower targets get a cheaper rate, down to 1 sat/vB.
	if targetConfs > 1 {
		rate = max(1, rate/uint64(min(targetConfs, 10)))
	}
	return rate * payoutVBytes
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func (h *hotWallet) handleBalance(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]uint64{"sats": h.balance})
}

func (h *hotWallet) handleFeeEstimate(w http.ResponseWriter, r *http.Request) {
	confs, err := strconv.Atoi(r.URL.Query().Get("target_confirmations"))
	if err != nil || confs < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "invalid_request", "message": "target_confirmations"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"fee_sats": h.fee(confs)})
}

func (h *hotWallet) handlePayout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address             string `json:"address"`
		Sats                uint64 `json:"sats"`
		TargetConfirmations int    `json:"target_confirmations"`
		Description         string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" || req.Sats == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "invalid_request", "message": "invalid payout"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	fee := h.fee(req.TargetConfirmations)
	if h.balance < req.Sats+fee {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"code":    "insufficient_funds",
			"message": fmt.Sprintf("hot wallet holds %d sats", h.balance),
		})
		return
	}
	if h.unconfirmed >= h.cfg.MaxUnconfirmed {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"code":    "cpfp_ancestor_limit",
			"message": "too many unconfirmed payouts",
		})
		return
	}

	sum := sha256.Sum256([]byte(req.Description + uuid.NewString()))
	txHash := hex.EncodeToString(sum[:])

	h.balance -= req.Sats + fee
	h.unconfirmed++
	h.fees[txHash] = fee

	slog.Info("payout broadcast",
		"tx_hash", txHash,
		"sats", req.Sats,
		"fee_sats", fee,
		"description", req.Description,
	)
	writeJSON(w, http.StatusCreated, map[string]string{"tx_hash": txHash})
}

func (h *hotWallet) handleTxFee(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fee, ok := h.fees[r.PathValue("hash")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "not_found", "message": "unknown transaction"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"fee_sats": fee})
}

func (h *hotWallet) handleListIncoming(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"transactions": h.incoming})
}

// handleAddIncoming lets a test harness simulate an unconfirmed deposit.
func (h *hotWallet) handleAddIncoming(w http.ResponseWriter, r *http.Request) {
	var tx incomingTx
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil || len(tx.Outs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "invalid_request", "message": "outs required"})
		return
	}
	if tx.TxHash == "" {
		sum := sha256.Sum256([]byte(uuid.NewString()))
		tx.TxHash = hex.EncodeToString(sum[:])
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	h.mu.Lock()
	h.incoming = append(h.incoming, tx)
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, tx)
}

// handleMine confirms everything pending: incoming deposits disappear from
// the mempool view and payouts stop counting toward the ancestor limit.
func (h *hotWallet) handleMine(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.incoming = nil
	h.unconfirmed = 0
	w.WriteHeader(http.StatusNoContent)
}

func (h *hotWallet) handlePrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"prices": map[string]decimal.Decimal{
			"USD": h.cfg.PriceBtcUsd,
			"EUR": h.cfg.PriceBtcEur,
			"GBP": h.cfg.PriceBtcGbp,
		},
		"timestamp": time.Now().UTC(),
	})
}

func main() {
	cfg, err := env.ParseAs[mockConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("mock-chain", "info", cfg.AppEnv)

	wallet := &hotWallet{cfg: cfg, balance: cfg.HotWalletSats, fees: map[string]uint64{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /v1/balance", wallet.handleBalance)
	mux.HandleFunc("GET /v1/fee-estimate", wallet.handleFeeEstimate)
	mux.HandleFunc("POST /v1/payouts", wallet.handlePayout)
	mux.HandleFunc("GET /v1/transactions/{hash}/fee", wallet.handleTxFee)
	mux.HandleFunc("GET /v1/incoming", wallet.handleListIncoming)
	mux.HandleFunc("POST /v1/incoming", wallet.handleAddIncoming)
	mux.HandleFunc("POST /v1/mine", wallet.handleMine)
	mux.HandleFunc("GET /v1/prices/btc", wallet.handlePrices)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("mock chain started", "addr", addr, "hot_wallet_sats", cfg.HotWalletSats)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
