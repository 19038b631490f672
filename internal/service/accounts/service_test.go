package accounts

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/notification"
)

type fakeAccounts struct {
	accounts []domain.Account
	err      error
}

func (f *fakeAccounts) Unlocked(context.Context) iter.Seq2[domain.Account, error] {
	return func(yield func(domain.Account, error) bool) {
		for _, a := range f.accounts {
			if !yield(a, nil) {
				return
			}
		}
		if f.err != nil {
			yield(domain.Account{}, f.err)
		}
	}
}

type fakeWallets struct {
	byID      map[uuid.UUID]domain.Wallet
	byAccount map[uuid.UUID][]domain.Wallet
	listErr   map[uuid.UUID]error
}

func (f *fakeWallets) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return &w, nil
}

func (f *fakeWallets) ListByAccountID(_ context.Context, accountID uuid.UUID) ([]domain.Wallet, error) {
	if err := f.listErr[accountID]; err != nil {
		return nil, err
	}
	return f.byAccount[accountID], nil
}

type fakeUsers map[uuid.UUID]domain.User

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

type fakeBalances map[uuid.UUID]domain.WalletAmount

func (f fakeBalances) GetWalletBalance(_ context.Context, w domain.WalletDescriptor) (domain.WalletAmount, error) {
	b, ok := f[w.ID]
	if !ok {
		return domain.WalletAmount{}, errors.New("balance unavailable")
	}
	return b, nil
}

// fakeActivity marks the accounts whose wallets it was told about as active.
type fakeActivity struct {
	active map[uuid.UUID]bool
	err    error
}

func (f *fakeActivity) AreRecentlyActive(_ context.Context, wallets []domain.Wallet, _ fx.WalletPriceRatio) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, w := range wallets {
		if f.active[w.AccountID] {
			return true, nil
		}
	}
	return false, nil
}

type fakePrices struct {
	midErr     error
	displayErr error
}

func (f *fakePrices) MidPriceRatio(context.Context) (fx.WalletPriceRatio, error) {
	if f.midErr != nil {
		return fx.WalletPriceRatio{}, f.midErr
	}
	return fx.NewWalletPriceRatio(domain.Cents(5_000), domain.Sats(100_000))
}

func (f *fakePrices) DisplayPriceRatio(_ context.Context, currency domain.DisplayCurrency) (fx.DisplayPriceRatio, error) {
	if f.displayErr != nil {
		return fx.DisplayPriceRatio{}, f.displayErr
	}
	return fx.NewDisplayPriceRatio(decimal.RequireFromString("0.05"), currency)
}

type fakePublisher struct {
	sent []notification.BalanceArgs
	err  error
}

func (f *fakePublisher) SendBalance(_ context.Context, args notification.BalanceArgs) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, args)
	return nil
}

type accountsHarness struct {
	svc       *Service
	accounts  *fakeAccounts
	wallets   *fakeWallets
	users     fakeUsers
	balances  fakeBalances
	activity  *fakeActivity
	prices    *fakePrices
	publisher *fakePublisher
}

func newAccountsHarness() *accountsHarness {
	h := &accountsHarness{
		accounts:  &fakeAccounts{},
		wallets:   &fakeWallets{byID: map[uuid.UUID]domain.Wallet{}, byAccount: map[uuid.UUID][]domain.Wallet{}, listErr: map[uuid.UUID]error{}},
		users:     fakeUsers{},
		balances:  fakeBalances{},
		activity:  &fakeActivity{active: map[uuid.UUID]bool{}},
		prices:    &fakePrices{},
		publisher: &fakePublisher{},
	}
	h.svc = NewService(Deps{
		Accounts: h.accounts,
		Wallets:  h.wallets,
		Users:    h.users,
		Ledger:   h.balances,
		Activity: h.activity,
		Prices:   h.prices,
		Notifier: h.publisher,
	})
	return h
}

// addAccount seeds an account whose default wallet is in currency and holds
// balance.
func (h *accountsHarness) addAccount(currency domain.WalletCurrency, balance uint64, active bool, deviceTokens ...string) domain.Account {
	user := domain.User{ID: uuid.New(), Language: "fr", DeviceTokens: deviceTokens}
	account := domain.Account{
		ID:              uuid.New(),
		UserID:          user.ID,
		Status:          domain.AccountStatusActive,
		DisplayCurrency: domain.DisplayCurrencyEUR,
	}
	wallet := domain.Wallet{ID: uuid.New(), AccountID: account.ID, Currency: currency}
	account.DefaultWalletID = wallet.ID

	h.users[user.ID] = user
	h.wallets.byID[wallet.ID] = wallet
	h.wallets.byAccount[account.ID] = []domain.Wallet{wallet}
	h.balances[wallet.ID] = domain.WalletAmount{Amount: balance, Currency: currency}
	h.activity.active[account.ID] = active
	h.accounts.accounts = append(h.accounts.accounts, account)
	return account
}

func collect(t *testing.T, seq iter.Seq2[domain.Account, error]) ([]uuid.UUID, error) {
	t.Helper()
	var ids []uuid.UUID
	for a, err := range seq {
		if err != nil {
			return ids, err
		}
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func TestRecentlyActiveAccounts(t *testing.T) {
	h := newAccountsHarness()
	first := h.addAccount(domain.WalletCurrencyBTC, 0, true)
	h.addAccount(domain.WalletCurrencyBTC, 0, false)
	broken := h.addAccount(domain.WalletCurrencyBTC, 0, true)
	h.wallets.listErr[broken.ID] = errors.New("db timeout")
	last := h.addAccount(domain.WalletCurrencyUSD, 0, true)

	ids, err := collect(t, h.svc.RecentlyActiveAccounts(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, last.ID}, ids)
}

func TestRecentlyActiveAccounts_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*accountsHarness)
		wantIDs int
		wantErr error
	}{
		{
			name:    "no price",
			mutate:  func(h *accountsHarness) { h.prices.midErr = domain.ErrPriceUnavailable },
			wantIDs: 0,
			wantErr: domain.ErrPriceUnavailable,
		},
		{
			name:    "account listing fails midway",
			mutate:  func(h *accountsHarness) { h.accounts.err = domain.ErrNotFound },
			wantIDs: 1,
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "activity check fails for every account",
			mutate:  func(h *accountsHarness) { h.activity.err = errors.New("volume query failed") },
			wantIDs: 0,
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAccountsHarness()
			h.addAccount(domain.WalletCurrencyBTC, 0, true)
			tt.mutate(h)

			ids, err := collect(t, h.svc.RecentlyActiveAccounts(context.Background()))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, ids, tt.wantIDs)
		})
	}
}

func TestRecentlyActiveAccounts_StopsWhenConsumerStops(t *testing.T) {
	h := newAccountsHarness()
	h.addAccount(domain.WalletCurrencyBTC, 0, true)
	h.addAccount(domain.WalletCurrencyBTC, 0, true)

	var seen int
	for _, err := range h.svc.RecentlyActiveAccounts(context.Background()) {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestSendDefaultWalletBalance(t *testing.T) {
	h := newAccountsHarness()
	btcAccount := h.addAccount(domain.WalletCurrencyBTC, 100_000, true, "device-a")
	usdAccount := h.addAccount(domain.WalletCurrencyUSD, 1_000, true, "device-b")
	h.addAccount(domain.WalletCurrencyBTC, 5_000, true)
	h.addAccount(domain.WalletCurrencyBTC, 5_000, false, "device-d")

	sent, err := h.svc.SendDefaultWalletBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, h.publisher.sent, 2)

	btc := h.publisher.sent[0]
	assert.Equal(t, btcAccount.ID, btc.AccountID)
	assert.Equal(t, btcAccount.DefaultWalletID, btc.WalletID)
	assert.Equal(t, domain.WalletAmount{Amount: 100_000, Currency: domain.WalletCurrencyBTC}, btc.Balance)
	assert.Equal(t, "50.00", btc.DisplayAmount.DisplayInMajor)
	assert.Equal(t, domain.DisplayCurrencyEUR, btc.DisplayAmount.Currency)
	assert.Equal(t, []string{"device-a"}, btc.DeviceTokens)
	assert.Equal(t, "fr", btc.Language)

	// 1_000 cents is 20_000 sats at the mid price, priced at 0.05 each.
	usd := h.publisher.sent[1]
	assert.Equal(t, usdAccount.ID, usd.AccountID)
	assert.Equal(t, domain.WalletAmount{Amount: 1_000, Currency: domain.WalletCurrencyUSD}, usd.Balance)
	assert.Equal(t, int64(1_000), usd.DisplayAmount.AmountInMinor)
}

func TestSendDefaultWalletBalance_SkipsFailingAccounts(t *testing.T) {
	h := newAccountsHarness()
	broken := h.addAccount(domain.WalletCurrencyBTC, 100, true, "device-a")
	delete(h.balances, broken.DefaultWalletID)
	ok := h.addAccount(domain.WalletCurrencyBTC, 100, true, "device-b")

	sent, err := h.svc.SendDefaultWalletBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, h.publisher.sent, 1)
	assert.Equal(t, ok.ID, h.publisher.sent[0].AccountID)
}

func TestSendDefaultWalletBalance_WithoutDisplayPrice(t *testing.T) {
	h := newAccountsHarness()
	h.addAccount(domain.WalletCurrencyBTC, 100, true, "device-a")
	h.prices.displayErr = domain.ErrPriceUnavailable

	sent, err := h.svc.SendDefaultWalletBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, domain.DisplayAmount{}, h.publisher.sent[0].DisplayAmount)
}

func TestSendDefaultWalletBalance_PublishFailure(t *testing.T) {
	h := newAccountsHarness()
	h.addAccount(domain.WalletCurrencyBTC, 100, true, "device-a")
	h.publisher.err = errors.New("broker unreachable")

	sent, err := h.svc.SendDefaultWalletBalance(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSendDefaultWalletBalance_NoPrice(t *testing.T) {
	h := newAccountsHarness()
	h.addAccount(domain.WalletCurrencyBTC, 100, true, "device-a")
	h.prices.midErr = domain.ErrPriceUnavailable

	_, err := h.svc.SendDefaultWalletBalance(context.Background())
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
	assert.Empty(t, h.publisher.sent)
}

type countingSender struct {
	runs atomic.Int32
}

func (c *countingSender) SendDefaultWalletBalance(context.Context) (int, error) {
	c.runs.Add(1)
	return 0, nil
}

func TestBalanceNotifier_RunsUntilCancelled(t *testing.T) {
	sender := &countingSender{}
	n := NewBalanceNotifier(sender, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sender.runs.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop after cancel")
	}
}
