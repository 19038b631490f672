package limits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
)

type stubWallets struct {
	wallets []domain.Wallet
	err     error
}

func (s stubWallets) ListByAccountID(_ context.Context, _ uuid.UUID) ([]domain.Wallet, error) {
	return s.wallets, s.err
}

// stubVolumes returns the same per-wallet volume for every query kind and
// records which kind was asked for.
type stubVolumes struct {
	byWallet map[uuid.UUID]domain.TxBaseVolume
	asked    []string
	err      error
}

func (s *stubVolumes) get(kind string, w domain.WalletDescriptor) (domain.TxBaseVolume, error) {
	s.asked = append(s.asked, kind)
	if s.err != nil {
		return domain.TxBaseVolume{}, s.err
	}
	v := s.byWallet[w.ID]
	v.Currency = w.Currency
	return v, nil
}

func (s *stubVolumes) ExternalPaymentVolumeSince(_ context.Context, w domain.WalletDescriptor, _ time.Time) (domain.TxBaseVolume, error) {
	return s.get("external", w)
}

func (s *stubVolumes) IntraledgerTxBaseVolumeSince(_ context.Context, w domain.WalletDescriptor, _ time.Time) (domain.TxBaseVolume, error) {
	return s.get("intraledger", w)
}

func (s *stubVolumes) TradeIntraAccountTxBaseVolumeSince(_ context.Context, w domain.WalletDescriptor, _ time.Time) (domain.TxBaseVolume, error) {
	return s.get("trade", w)
}

func (s *stubVolumes) AllTxBaseVolumeSince(_ context.Context, w domain.WalletDescriptor, _ time.Time) (domain.TxBaseVolume, error) {
	return s.get("all", w)
}

func testWallets(accountID uuid.UUID) (domain.Wallet, domain.Wallet) {
	btc := domain.Wallet{ID: uuid.New(), AccountID: accountID, Currency: domain.WalletCurrencyBTC}
	usd := domain.Wallet{ID: uuid.New(), AccountID: accountID, Currency: domain.WalletCurrencyUSD}
	return btc, usd
}

func midRatio(t *testing.T) fx.WalletPriceRatio {
	t.Helper()
	// 60,000.00 USD per BTC
	r, err := fx.NewWalletPriceRatio(domain.Cents(6_000_000), domain.Sats(100_000_000))
	require.NoError(t, err)
	return r
}

func TestChecker_Check(t *testing.T) {
	accountID := uuid.New()
	btc, usd := testWallets(accountID)
	cfg := Config{
		Withdrawal:        domain.Cents(10_000),
		Intraledger:       domain.Cents(50_000),
		TradeIntraAccount: domain.Cents(5_000),
	}

	tests := []struct {
		name          string
		category      domain.LimitCategory
		btcOut        uint64
		usdOut        uint64
		amount        uint64
		wantErr       bool
		wantRemaining uint64
		wantKind      string
	}{
		{
			name:     "withdrawal within limit",
			category: domain.LimitCategoryWithdrawal,
			btcOut:   100_000, usdOut: 2_000, amount: 1_000,
			wantKind: "external",
		},
		{
			name:     "withdrawal exactly at limit",
			category: domain.LimitCategoryWithdrawal,
			btcOut:   100_000, usdOut: 2_000, amount: 2_000,
			wantKind: "external",
		},
		{
			name:     "withdrawal one cent over",
			category: domain.LimitCategoryWithdrawal,
			// 100_000 sats = 60 USD = 6_000 cents, plus 2_000 cents used
			btcOut: 100_000, usdOut: 2_000, amount: 2_001,
			wantErr: true, wantRemaining: 2_000, wantKind: "external",
		},
		{
			name:     "volume already past limit",
			category: domain.LimitCategoryWithdrawal,
			btcOut:   1_000_000, usdOut: 0, amount: 1,
			wantErr: true, wantRemaining: 0, wantKind: "external",
		},
		{
			name:     "intraledger",
			category: domain.LimitCategoryIntraledger,
			btcOut:   0, usdOut: 49_000, amount: 1_500,
			wantErr: true, wantRemaining: 1_000, wantKind: "intraledger",
		},
		{
			name:     "trade intra account",
			category: domain.LimitCategoryTradeIntraAccount,
			btcOut:   0, usdOut: 0, amount: 5_000,
			wantKind: "trade",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vols := &stubVolumes{byWallet: map[uuid.UUID]domain.TxBaseVolume{
				btc.ID: {Outgoing: tc.btcOut, Incoming: 999_999_999},
				usd.ID: {Outgoing: tc.usdOut, Incoming: 999_999_999},
			}}
			checker := NewChecker(cfg, stubWallets{wallets: []domain.Wallet{btc, usd}}, vols)

			err := checker.Check(context.Background(), tc.category, accountID, domain.Cents(tc.amount), midRatio(t))
			assert.Equal(t, []string{tc.wantKind, tc.wantKind}, vols.asked)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, domain.ErrLimitsExceeded)
			var limitErr *domain.LimitsExceededError
			require.ErrorAs(t, err, &limitErr)
			assert.Equal(t, tc.category, limitErr.Category)
			assert.Equal(t, tc.wantRemaining, limitErr.Remaining.Amount)
		})
	}
}

func TestChecker_UnknownCategory(t *testing.T) {
	checker := NewChecker(Config{}, stubWallets{}, &stubVolumes{})
	err := checker.Check(context.Background(), domain.LimitCategory("bogus"), uuid.New(), domain.Cents(1), midRatio(t))
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestChecker_PropagatesErrors(t *testing.T) {
	accountID := uuid.New()
	btc, _ := testWallets(accountID)

	t.Run("wallet lookup", func(t *testing.T) {
		dbErr := errors.New("wallets unavailable")
		checker := NewChecker(Config{Withdrawal: domain.Cents(1)}, stubWallets{err: dbErr}, &stubVolumes{})
		err := checker.CheckWithdrawal(context.Background(), accountID, domain.Cents(1), midRatio(t))
		require.ErrorIs(t, err, dbErr)
	})

	t.Run("volume lookup", func(t *testing.T) {
		dbErr := errors.New("ledger unavailable")
		checker := NewChecker(Config{Intraledger: domain.Cents(1)}, stubWallets{wallets: []domain.Wallet{btc}}, &stubVolumes{err: dbErr})
		err := checker.CheckIntraledger(context.Background(), accountID, domain.Cents(1), midRatio(t))
		require.ErrorIs(t, err, dbErr)
	})
}

func TestChecker_DefaultWindow(t *testing.T) {
	checker := NewChecker(Config{}, stubWallets{}, &stubVolumes{})
	assert.Equal(t, DefaultWindow, checker.cfg.Window)
}

func TestActivityChecker(t *testing.T) {
	accountID := uuid.New()
	btc, usd := testWallets(accountID)

	tests := []struct {
		name      string
		btc, usd  domain.TxBaseVolume
		threshold uint64
		want      bool
	}{
		{
			name:      "no volume",
			threshold: 0,
			want:      false,
		},
		{
			name: "in and out both count",
			// 50_000 sats = 3_000 cents each way
			btc:       domain.TxBaseVolume{Outgoing: 50_000, Incoming: 50_000},
			usd:       domain.TxBaseVolume{Outgoing: 100, Incoming: 0},
			threshold: 6_000,
			want:      true,
		},
		{
			name:      "equal to threshold is not active",
			btc:       domain.TxBaseVolume{Outgoing: 50_000, Incoming: 50_000},
			threshold: 6_000,
			want:      false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vols := &stubVolumes{byWallet: map[uuid.UUID]domain.TxBaseVolume{btc.ID: tc.btc, usd.ID: tc.usd}}
			checker := NewActivityChecker(domain.Cents(tc.threshold), vols)

			got, err := checker.AreRecentlyActive(context.Background(), []domain.Wallet{btc, usd}, midRatio(t))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, []string{"all", "all"}, vols.asked)
		})
	}
}
