package fees

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

func TestOnChainDepositFee(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		ratio  string
		want   uint64
	}{
		{name: "zero ratio", amount: 100_000, ratio: "0", want: 0},
		{name: "half percent", amount: 100_000, ratio: "0.005", want: 500},
		{name: "rounds down", amount: 1_999, ratio: "0.001", want: 1},
		{name: "tiny amount", amount: 10, ratio: "0.003", want: 0},
		{name: "negative ratio treated as zero", amount: 1_000, ratio: "-0.1", want: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := OnChainDepositFee(tc.amount, decimal.RequireFromString(tc.ratio))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIntraledgerFees_Zero(t *testing.T) {
	f := IntraledgerFees()
	assert.True(t, f.Btc.IsZero())
	assert.True(t, f.Usd.IsZero())
	assert.Zero(t, LightningDepositFee())
}

func TestWithdrawalFee(t *testing.T) {
	proportional := WithdrawalConfig{
		Method:             WithdrawalFeeMethodProportionalOnImbalance,
		MinBankFee:         domain.Sats(2_000),
		RatioBasisPoints:   50,
		ThresholdImbalance: domain.Sats(1_000_000),
	}
	flat := proportional
	flat.Method = WithdrawalFeeMethodFlat

	tests := []struct {
		name        string
		cfg         WithdrawalConfig
		minerFee    uint64
		amount      uint64
		imbalance   int64
		minBankFee  uint64
		wantBankFee uint64
		wantTotal   uint64
	}{
		{
			name:     "flat ignores imbalance",
			cfg:      flat,
			minerFee: 300, amount: 5_000_000, imbalance: 10_000_000, minBankFee: 2_000,
			wantBankFee: 2_000, wantTotal: 2_300,
		},
		{
			name:     "under threshold uses min bank fee",
			cfg:      proportional,
			minerFee: 300, amount: 100_000, imbalance: 0, minBankFee: 2_000,
			wantBankFee: 2_000, wantTotal: 2_300,
		},
		{
			name:     "partly over threshold",
			cfg:      proportional,
			minerFee: 300, amount: 1_000_000, imbalance: 600_000, minBankFee: 2_000,
			// base = 1_000_000 + 600_000 - 1_000_000 = 600_000, 50bps = 3_000
			wantBankFee: 3_000, wantTotal: 3_300,
		},
		{
			name:     "base clamped to amount",
			cfg:      proportional,
			minerFee: 0, amount: 1_000_000, imbalance: 5_000_000, minBankFee: 0,
			wantBankFee: 5_000, wantTotal: 5_000,
		},
		{
			name:     "negative imbalance",
			cfg:      proportional,
			minerFee: 100, amount: 1_000_000, imbalance: -2_000_000, minBankFee: 500,
			wantBankFee: 500, wantTotal: 600,
		},
		{
			name:     "rounds bps fee up",
			cfg:      proportional,
			minerFee: 0, amount: 1_000_001, imbalance: 1_000_000, minBankFee: 0,
			// base = 1_000_001, 50bps = 5000.005
			wantBankFee: 5_001, wantTotal: 5_001,
		},
		{
			name:     "account override above computed fee",
			cfg:      proportional,
			minerFee: 0, amount: 1_000_000, imbalance: 600_000, minBankFee: 10_000,
			wantBankFee: 10_000, wantTotal: 10_000,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calc := NewWithdrawalFeeCalculator(tc.cfg)
			got, err := calc.WithdrawalFee(domain.Sats(tc.minerFee), domain.Sats(tc.amount), tc.imbalance, domain.Sats(tc.minBankFee))
			require.NoError(t, err)
			assert.Equal(t, tc.wantBankFee, got.BankFee.Amount)
			assert.Equal(t, tc.wantTotal, got.TotalFee.Amount)
		})
	}
}

type fakeVolumes struct {
	ln, onChain domain.TxBaseVolume
	err         error
	since       []time.Time
}

func (f *fakeVolumes) LightningTxBaseVolumeSince(_ context.Context, _ domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error) {
	f.since = append(f.since, since)
	return f.ln, f.err
}

func (f *fakeVolumes) OnChainTxBaseVolumeSince(_ context.Context, _ domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error) {
	f.since = append(f.since, since)
	return f.onChain, f.err
}

func TestImbalanceCalculator_SwapOutImbalance(t *testing.T) {
	wallet := domain.WalletDescriptor{ID: uuid.New(), Currency: domain.WalletCurrencyBTC, AccountID: uuid.New()}
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("flat method skips the ledger", func(t *testing.T) {
		vols := &fakeVolumes{err: errors.New("should not be called")}
		calc := NewImbalanceCalculator(WithdrawalConfig{Method: WithdrawalFeeMethodFlat, DaysLookback: 30}, vols)

		got, err := calc.SwapOutImbalance(context.Background(), wallet)
		require.NoError(t, err)
		assert.Zero(t, got)
		assert.Empty(t, vols.since)
	})

	t.Run("lightning in minus on-chain in", func(t *testing.T) {
		vols := &fakeVolumes{
			ln:      domain.TxBaseVolume{Incoming: 900_000, Outgoing: 100_000},
			onChain: domain.TxBaseVolume{Incoming: 50_000, Outgoing: 400_000},
		}
		calc := NewImbalanceCalculator(WithdrawalConfig{Method: WithdrawalFeeMethodProportionalOnImbalance, DaysLookback: 7}, vols)
		calc.now = func() time.Time { return now }

		got, err := calc.SwapOutImbalance(context.Background(), wallet)
		require.NoError(t, err)
		assert.Equal(t, int64(800_000-(-350_000)), got)
		require.Len(t, vols.since, 2)
		assert.Equal(t, now.Add(-7*24*time.Hour), vols.since[0])
	})

	t.Run("volume error", func(t *testing.T) {
		vols := &fakeVolumes{err: errors.New("db down")}
		calc := NewImbalanceCalculator(WithdrawalConfig{Method: WithdrawalFeeMethodProportionalOnImbalance, DaysLookback: 7}, vols)

		_, err := calc.SwapOutImbalance(context.Background(), wallet)
		require.Error(t, err)
	})
}
