package history

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
)

type fakeLedger struct {
	rows     []domain.LedgerTransaction
	err      error
	askedFor []uuid.UUID
}

func (f *fakeLedger) ListWalletTransactions(_ context.Context, ids []uuid.UUID) ([]domain.LedgerTransaction, error) {
	f.askedFor = ids
	return f.rows, f.err
}

type fakeIncoming struct {
	txs       []domain.IncomingOnChainTransaction
	err       error
	scanDepth int
}

func (f *fakeIncoming) ListIncomingTransactions(_ context.Context, scanDepth int) ([]domain.IncomingOnChainTransaction, error) {
	f.scanDepth = scanDepth
	return f.txs, f.err
}

type fakePrices struct {
	midErr  error
	midHits int
}

func (f *fakePrices) MidPriceRatio(context.Context) (fx.WalletPriceRatio, error) {
	f.midHits++
	if f.midErr != nil {
		return fx.WalletPriceRatio{}, f.midErr
	}
	return fx.NewWalletPriceRatio(domain.Cents(5_000), domain.Sats(100_000))
}

func (f *fakePrices) DisplayPriceRatio(_ context.Context, currency domain.DisplayCurrency) (fx.DisplayPriceRatio, error) {
	return fx.NewDisplayPriceRatio(decimal.RequireFromString("0.05"), currency)
}

type historyHarness struct {
	svc     *Service
	ledger  *fakeLedger
	chain   *fakeIncoming
	prices  *fakePrices
	btc     domain.Wallet
	usd     domain.Wallet
	wallets []domain.Wallet
}

func newHistoryHarness() *historyHarness {
	accountID := uuid.New()
	btc := domain.Wallet{ID: uuid.New(), AccountID: accountID, Currency: domain.WalletCurrencyBTC, OnChainAddresses: []string{"addr-btc"}}
	usd := domain.Wallet{ID: uuid.New(), AccountID: accountID, Currency: domain.WalletCurrencyUSD, OnChainAddresses: []string{"addr-usd"}}

	h := &historyHarness{
		ledger:  &fakeLedger{rows: []domain.LedgerTransaction{onChainPaymentRow(btc.ID)}},
		chain:   &fakeIncoming{},
		prices:  &fakePrices{},
		btc:     btc,
		usd:     usd,
		wallets: []domain.Wallet{btc, usd},
	}
	h.svc = NewService(testTranslator(), h.ledger, h.chain, h.prices, ServiceConfig{
		DepositFeeRatio:   decimal.Zero,
		ScanDepthIncoming: 360,
	})
	return h
}

func TestService_TransactionsForWallets(t *testing.T) {
	h := newHistoryHarness()
	h.chain.txs = []domain.IncomingOnChainTransaction{
		{TxHash: "tx-usd", Outs: []domain.TxOut{{Sats: 20_000, Address: "addr-usd"}}},
		{TxHash: "tx-btc", Outs: []domain.TxOut{{Sats: 1_000, Address: "addr-btc"}}},
	}

	got, err := h.svc.TransactionsForWallets(context.Background(), h.wallets, domain.DisplayCurrencyEUR)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []uuid.UUID{h.btc.ID, h.usd.ID}, h.ledger.askedFor)
	assert.Equal(t, 360, h.chain.scanDepth)

	assert.Equal(t, "tx-usd", got[0].ID)
	assert.Equal(t, int64(1_000), got[0].SettlementAmount)
	assert.Equal(t, domain.DisplayCurrencyEUR, got[0].SettlementDisplayPrice.DisplayCurrency)
	assert.Equal(t, "tx-btc", got[1].ID)
	assert.Equal(t, int64(1_000), got[1].SettlementAmount)
	assert.Equal(t, domain.TxStatusPending, got[1].Status)
	assert.Equal(t, h.ledger.rows[0].ID.String(), got[2].ID)
	assert.Equal(t, 1, h.prices.midHits)
}

func TestService_PendingFailuresKeepConfirmedHistory(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*historyHarness)
	}{
		{
			name:   "chain unavailable",
			mutate: func(h *historyHarness) { h.chain.err = errors.New("connection refused") },
		},
		{
			name:   "mid price unavailable",
			mutate: func(h *historyHarness) { h.prices.midErr = domain.ErrPriceUnavailable },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHistoryHarness()
			h.chain.txs = []domain.IncomingOnChainTransaction{
				{TxHash: "tx-btc", Outs: []domain.TxOut{{Sats: 1_000, Address: "addr-btc"}}},
			}
			tt.mutate(h)

			got, err := h.svc.TransactionsForWallets(context.Background(), h.wallets, domain.DisplayCurrencyUSD)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, h.ledger.rows[0].ID.String(), got[0].ID)
		})
	}
}

func TestService_LedgerFailureIsReturned(t *testing.T) {
	h := newHistoryHarness()
	h.ledger.err = errors.New("db down")

	_, err := h.svc.TransactionsForWallets(context.Background(), h.wallets, domain.DisplayCurrencyUSD)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestService_NoWallets(t *testing.T) {
	h := newHistoryHarness()

	got, err := h.svc.TransactionsForWallets(context.Background(), nil, domain.DisplayCurrencyUSD)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Nil(t, h.ledger.askedFor)
}

func TestService_BtcOnlySkipsMidPrice(t *testing.T) {
	h := newHistoryHarness()

	_, err := h.svc.TransactionsForWallets(context.Background(), []domain.Wallet{h.btc}, domain.DisplayCurrencyUSD)
	require.NoError(t, err)
	assert.Zero(t, h.prices.midHits)
}
