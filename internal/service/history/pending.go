package history

import (
	"math"
	"slices"

	"github.com/ccoveille/go-safecast"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fees"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
)

// PendingWallet is a wallet whose receive addresses are matched against
// unconfirmed outputs. PriceRatio is only read for USD wallets.
type PendingWallet struct {
	ID              uuid.UUID
	Currency        domain.WalletCurrency
	Addresses       []string
	PriceRatio      *fx.WalletPriceRatio
	DepositFeeRatio decimal.Decimal
	DisplayRatio    fx.DisplayPriceRatio
}

// AddPendingIncoming prepends one pending transaction per output and wallet
// that owns the output's address. An address listed by two wallets shows up
// in both.
func (h ConfirmedHistory) AddPendingIncoming(pending []domain.IncomingOnChainTransaction, wallets []PendingWallet) []domain.WalletTransaction {
	var incoming []domain.WalletTransaction
	for _, tx := range pending {
		for _, out := range tx.Outs {
			for _, w := range wallets {
				if slices.Contains(w.Addresses, out.Address) {
					incoming = append(incoming, pendingTransaction(tx, out, w))
				}
			}
		}
	}

	all := make([]domain.WalletTransaction, 0, len(incoming)+len(h.Transactions))
	all = append(all, incoming...)
	return append(all, h.Transactions...)
}

func pendingTransaction(tx domain.IncomingOnChainTransaction, out domain.TxOut, w PendingWallet) domain.WalletTransaction {
	fee := min(fees.OnChainDepositFee(out.Sats, w.DepositFeeRatio), out.Sats)
	btcAmount := domain.Sats(out.Sats - fee)
	btcFee := domain.Sats(fee)

	amount, feeAmount := btcAmount.Amount, btcFee.Amount
	if w.Currency == domain.WalletCurrencyUSD {
		amount, feeAmount = 0, 0
		if w.PriceRatio != nil {
			amount = w.PriceRatio.ConvertFromBtc(btcAmount).Amount
			feeAmount = w.PriceRatio.ConvertFromBtcToCeil(btcFee).Amount
		}
	}

	walletID := w.ID
	return domain.WalletTransaction{
		ID:                      tx.TxHash,
		WalletID:                &walletID,
		SettlementAmount:        clampInt64(amount),
		SettlementFee:           clampInt64(feeAmount),
		SettlementCurrency:      w.Currency,
		SettlementDisplayAmount: w.DisplayRatio.ConvertFromWallet(btcAmount).DisplayInMajor,
		SettlementDisplayFee:    w.DisplayRatio.ConvertFromWalletToCeil(btcFee).DisplayInMajor,
		SettlementDisplayPrice: domain.NewWalletMinorUnitDisplayPrice(
			w.DisplayRatio.DisplayMinorUnitPerWalletUnit(),
			w.DisplayRatio.DisplayCurrency(),
			w.Currency,
		),
		Status:        domain.TxStatusPending,
		CreatedAt:     tx.CreatedAt,
		InitiationVia: domain.InitiationViaOnChain{Address: out.Address},
		SettlementVia: domain.SettlementViaOnChain{TransactionHash: tx.TxHash},
	}
}

// clampInt64 caps an output value at the int64 range. Bitcoin's supply is
// far below it so the cap is never reached by a real output.
func clampInt64(n uint64) int64 {
	v, err := safecast.ToInt64(n)
	if err != nil {
		return math.MaxInt64
	}
	return v
}
