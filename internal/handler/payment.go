package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
	"github.com/josh-kwaku/btc-wallet-core/internal/service/payment"
)

type paymentService interface {
	PayOnChainByWalletID(ctx context.Context, req payment.PayOnChainRequest, amountCurrency domain.WalletCurrency) (domain.PaymentSendStatus, error)
	PayOnChainByWalletIDForBtcWallet(ctx context.Context, req payment.PayOnChainRequest) (domain.PaymentSendStatus, error)
	PayOnChainByWalletIDForUsdWallet(ctx context.Context, req payment.PayOnChainRequest) (domain.PaymentSendStatus, error)
	PayOnChainByWalletIDForUsdWalletAndBtcAmount(ctx context.Context, req payment.PayOnChainRequest) (domain.PaymentSendStatus, error)
	PayAllOnChainByWalletID(ctx context.Context, req payment.PayOnChainRequest) (domain.PaymentSendStatus, error)
}

type PaymentHandler struct {
	payments paymentService
	accounts accountLookup
	wallets  walletLookup
}

func NewPaymentHandler(payments paymentService, accounts accountLookup, wallets walletLookup) *PaymentHandler {
	return &PaymentHandler{payments: payments, accounts: accounts, wallets: wallets}
}

type onChainPaymentRequest struct {
	Address             string `json:"address"`
	Amount              uint64 `json:"amount"`
	AmountCurrency      string `json:"amount_currency"`
	SendAll             bool   `json:"send_all"`
	TargetConfirmations int    `json:"target_confirmations"`
	Memo                string `json:"memo"`
}

func (r onChainPaymentRequest) Validate() []FieldError {
	var errs []FieldError

	if r.Address == "" {
		errs = append(errs, FieldError{Field: "address", Message: "required"})
	}

	if r.SendAll {
		return errs
	}

	if r.Amount == 0 {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	}

	if r.AmountCurrency != "" && !domain.WalletCurrency(r.AmountCurrency).IsValid() {
		errs = append(errs, FieldError{Field: "amount_currency", Message: "must be BTC or USD"})
	}

	return errs
}

type onChainPaymentResponse struct {
	Status domain.PaymentSendStatus `json:"status"`
}

func (h *PaymentHandler) PayOnChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountID, appErr := pathUUID(r, "accountID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	walletID, appErr := pathUUID(r, "walletID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req onChainPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	account, wallet, err := ownedWallet(ctx, h.accounts, h.wallets, accountID, walletID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	ctx = logging.With(ctx, "account_id", account.ID, "wallet_id", wallet.ID)
	log := logging.FromContext(ctx)

	payReq := payment.PayOnChainRequest{
		SenderWalletID:      wallet.ID,
		SenderAccount:       *account,
		Address:             req.Address,
		Amount:              req.Amount,
		TargetConfirmations: req.TargetConfirmations,
		Memo:                req.Memo,
	}

	amountCurrency := domain.WalletCurrency(req.AmountCurrency)
	if amountCurrency == "" {
		amountCurrency = wallet.Currency
	}

	var status domain.PaymentSendStatus
	switch {
	case req.SendAll:
		status, err = h.payments.PayAllOnChainByWalletID(ctx, payReq)
	case wallet.Currency == domain.WalletCurrencyBTC && amountCurrency == domain.WalletCurrencyBTC:
		status, err = h.payments.PayOnChainByWalletIDForBtcWallet(ctx, payReq)
	case wallet.Currency == domain.WalletCurrencyUSD && amountCurrency == domain.WalletCurrencyUSD:
		status, err = h.payments.PayOnChainByWalletIDForUsdWallet(ctx, payReq)
	case wallet.Currency == domain.WalletCurrencyUSD && amountCurrency == domain.WalletCurrencyBTC:
		status, err = h.payments.PayOnChainByWalletIDForUsdWalletAndBtcAmount(ctx, payReq)
	default:
		status, err = h.payments.PayOnChainByWalletID(ctx, payReq, amountCurrency)
	}
	if err != nil {
		log.WarnContext(ctx, "on-chain payment failed", "status", status, "error", err)
		RespondDomainError(w, err)
		return
	}

	log.InfoContext(ctx, "on-chain payment sent", "status", status)
	RespondSuccess(w, http.StatusOK, onChainPaymentResponse{Status: status})
}
