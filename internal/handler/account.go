package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
)

type historyService interface {
	TransactionsForWallets(ctx context.Context, wallets []domain.Wallet, displayCurrency domain.DisplayCurrency) ([]domain.WalletTransaction, error)
}

type AccountHandler struct {
	accounts accountLookup
	wallets  walletLookup
	history  historyService
}

func NewAccountHandler(accounts accountLookup, wallets walletLookup, history historyService) *AccountHandler {
	return &AccountHandler{accounts: accounts, wallets: wallets, history: history}
}

type walletDTO struct {
	ID               uuid.UUID `json:"id"`
	Currency         string    `json:"currency"`
	Type             string    `json:"type"`
	OnChainAddresses []string  `json:"onchain_addresses"`
	IsDefault        bool      `json:"is_default"`
	CreatedAt        time.Time `json:"created_at"`
}

type initiationDTO struct {
	Method               string     `json:"method"`
	Address              string     `json:"address,omitempty"`
	PaymentHash          string     `json:"payment_hash,omitempty"`
	PubKey               string     `json:"pub_key,omitempty"`
	CounterPartyWalletID *uuid.UUID `json:"counter_party_wallet_id,omitempty"`
	CounterPartyUsername string     `json:"counter_party_username,omitempty"`
}

type settlementDTO struct {
	Method               string     `json:"method"`
	TransactionHash      string     `json:"transaction_hash,omitempty"`
	RevealedPreImage     string     `json:"revealed_pre_image,omitempty"`
	CounterPartyWalletID *uuid.UUID `json:"counter_party_wallet_id,omitempty"`
	CounterPartyUsername string     `json:"counter_party_username,omitempty"`
}

type displayPriceDTO struct {
	Base            int64  `json:"base"`
	Offset          int32  `json:"offset"`
	DisplayCurrency string `json:"display_currency"`
	WalletCurrency  string `json:"wallet_currency"`
}

type transactionDTO struct {
	ID                      string          `json:"id"`
	WalletID                *uuid.UUID      `json:"wallet_id"`
	Status                  string          `json:"status"`
	Memo                    *string         `json:"memo"`
	SettlementAmount        int64           `json:"settlement_amount"`
	SettlementFee           int64           `json:"settlement_fee"`
	SettlementCurrency      string          `json:"settlement_currency"`
	SettlementDisplayAmount string          `json:"settlement_display_amount"`
	SettlementDisplayFee    string          `json:"settlement_display_fee"`
	SettlementDisplayPrice  displayPriceDTO `json:"settlement_display_price"`
	InitiationVia           initiationDTO   `json:"initiation_via"`
	SettlementVia           settlementDTO   `json:"settlement_via"`
	CreatedAt               time.Time       `json:"created_at"`
}

func toTransactionDTO(tx domain.WalletTransaction) transactionDTO {
	dto := transactionDTO{
		ID:                      tx.ID,
		WalletID:                tx.WalletID,
		Status:                  string(tx.Status),
		Memo:                    tx.Memo,
		SettlementAmount:        tx.SettlementAmount,
		SettlementFee:           tx.SettlementFee,
		SettlementCurrency:      string(tx.SettlementCurrency),
		SettlementDisplayAmount: tx.SettlementDisplayAmount,
		SettlementDisplayFee:    tx.SettlementDisplayFee,
		SettlementDisplayPrice: displayPriceDTO{
			Base:            tx.SettlementDisplayPrice.Base,
			Offset:          tx.SettlementDisplayPrice.Offset,
			DisplayCurrency: string(tx.SettlementDisplayPrice.DisplayCurrency),
			WalletCurrency:  string(tx.SettlementDisplayPrice.WalletCurrency),
		},
		CreatedAt: tx.CreatedAt,
	}

	switch via := tx.InitiationVia.(type) {
	case domain.InitiationViaOnChain:
		dto.InitiationVia = initiationDTO{Method: string(via.Method()), Address: via.Address}
	case domain.InitiationViaLightning:
		dto.InitiationVia = initiationDTO{Method: string(via.Method()), PaymentHash: via.PaymentHash, PubKey: via.PubKey}
	case domain.InitiationViaIntraLedger:
		dto.InitiationVia = initiationDTO{
			Method:               string(via.Method()),
			CounterPartyWalletID: via.CounterPartyWalletID,
			CounterPartyUsername: via.CounterPartyUsername,
		}
	}

	switch via := tx.SettlementVia.(type) {
	case domain.SettlementViaOnChain:
		dto.SettlementVia = settlementDTO{Method: string(via.Method()), TransactionHash: via.TransactionHash}
	case domain.SettlementViaLightning:
		dto.SettlementVia = settlementDTO{Method: string(via.Method()), RevealedPreImage: via.RevealedPreImage}
	case domain.SettlementViaIntraLedger:
		dto.SettlementVia = settlementDTO{
			Method:               string(via.Method()),
			CounterPartyWalletID: via.CounterPartyWalletID,
			CounterPartyUsername: via.CounterPartyUsername,
		}
	}

	return dto
}

func (h *AccountHandler) loadAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, []domain.Wallet, bool) {
	accountID, appErr := pathUUID(r, "accountID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return nil, nil, false
	}

	account, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		RespondDomainError(w, err)
		return nil, nil, false
	}

	wallets, err := h.wallets.ListByAccountID(r.Context(), account.ID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list wallets", "account_id", account.ID, "error", err)
		RespondDomainError(w, err)
		return nil, nil, false
	}

	return account, wallets, true
}

func (h *AccountHandler) Wallets(w http.ResponseWriter, r *http.Request) {
	account, wallets, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	dtos := make([]walletDTO, len(wallets))
	for i, wallet := range wallets {
		dtos[i] = walletDTO{
			ID:               wallet.ID,
			Currency:         string(wallet.Currency),
			Type:             string(wallet.Type),
			OnChainAddresses: wallet.OnChainAddresses,
			IsDefault:        wallet.ID == account.DefaultWalletID,
			CreatedAt:        wallet.CreatedAt,
		}
	}

	RespondSuccess(w, http.StatusOK, dtos)
}

// Transactions lists confirmed and pending history across every wallet of
// the account. display_currency overrides the account's own.
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	account, wallets, ok := h.loadAccount(w, r)
	if !ok {
		return
	}

	displayCurrency := account.DisplayCurrency
	if q := r.URL.Query().Get("display_currency"); q != "" {
		displayCurrency = domain.DisplayCurrency(q)
		if !displayCurrency.IsValid() {
			RespondValidationError(w, []FieldError{{Field: "display_currency", Message: "must be USD, EUR, or GBP"}})
			return
		}
	}

	txs, err := h.history.TransactionsForWallets(r.Context(), wallets, displayCurrency)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to load transactions", "account_id", account.ID, "error", err)
		RespondDomainError(w, err)
		return
	}

	dtos := make([]transactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}

	RespondSuccess(w, http.StatusOK, dtos)
}
