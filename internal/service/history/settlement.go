package history

import (
	"fmt"

	"github.com/ccoveille/go-safecast"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

var centsPerDollar = decimal.NewFromInt(100)

// SettlementAmounts is what a ledger row did to its wallet, in the row's
// posting currency. Amount is negative for debits. DisplayAmount carries the
// same sign; DisplayFee is never negative.
type SettlementAmounts struct {
	Amount        int64
	Fee           int64
	DisplayAmount domain.DisplayAmount
	DisplayFee    domain.DisplayAmount
}

// SettlementAmountsFromTxn reads the settlement of one row. Admin rows
// predate the display columns and take their display values from the legacy
// usd and fee_usd fields.
func SettlementAmountsFromTxn(txn domain.LedgerTransaction) (SettlementAmounts, error) {
	credit, err := safecast.ToInt64(txn.Credit)
	if err != nil {
		return SettlementAmounts{}, fmt.Errorf("SettlementAmountsFromTxn: credit: %w", err)
	}
	debit, err := safecast.ToInt64(txn.Debit)
	if err != nil {
		return SettlementAmounts{}, fmt.Errorf("SettlementAmountsFromTxn: debit: %w", err)
	}
	amount := credit - debit

	fields := displayFieldsOf(txn)
	fee, err := safecast.ToInt64(fields.walletFee(txn.Currency))
	if err != nil {
		return SettlementAmounts{}, fmt.Errorf("SettlementAmountsFromTxn: fee: %w", err)
	}

	displayAmount := fields.displayAmount
	if amount < 0 && displayAmount > 0 {
		displayAmount = -displayAmount
	}
	displayFee := fields.displayFee
	if displayFee < 0 {
		displayFee = -displayFee
	}

	return SettlementAmounts{
		Amount:        amount,
		Fee:           fee,
		DisplayAmount: domain.NewDisplayAmount(displayAmount, fields.displayCurrency),
		DisplayFee:    domain.NewDisplayAmount(displayFee, fields.displayCurrency),
	}, nil
}

// displayFields are the amount columns of a row after the admin fallback.
type displayFields struct {
	satsAmount      uint64
	satsFee         uint64
	centsAmount     uint64
	centsFee        uint64
	displayAmount   int64
	displayFee      int64
	displayCurrency domain.DisplayCurrency
}

func displayFieldsOf(txn domain.LedgerTransaction) displayFields {
	f := displayFields{
		satsAmount:      txn.SatsAmount,
		satsFee:         txn.SatsFee,
		centsAmount:     txn.CentsAmount,
		centsFee:        txn.CentsFee,
		displayAmount:   txn.DisplayAmount,
		displayFee:      txn.DisplayFee,
		displayCurrency: txn.DisplayCurrency,
	}
	if f.displayCurrency == "" {
		f.displayCurrency = domain.DisplayCurrencyUSD
	}
	if !txn.Type.IsAdmin() {
		return f
	}

	f.displayAmount = legacyCents(txn.Usd)
	f.displayFee = legacyCents(txn.FeeUsd)
	if txn.Debit > txn.Credit {
		f.satsAmount = txn.Debit - txn.Credit
	} else {
		f.satsAmount = txn.Credit - txn.Debit
	}
	f.satsFee = txn.Fee
	f.centsAmount = absUint(f.displayAmount)
	f.centsFee = absUint(f.displayFee)
	f.displayCurrency = domain.DisplayCurrencyUSD
	return f
}

func (f displayFields) walletAmount(c domain.WalletCurrency) uint64 {
	if c == domain.WalletCurrencyBTC {
		return f.satsAmount
	}
	return f.centsAmount
}

func (f displayFields) walletFee(c domain.WalletCurrency) uint64 {
	if c == domain.WalletCurrencyBTC {
		return f.satsFee
	}
	return f.centsFee
}

// legacyCents turns a dollar float column into whole cents, half away from
// zero.
func legacyCents(usd decimal.NullDecimal) int64 {
	if !usd.Valid {
		return 0
	}
	return usd.Decimal.Mul(centsPerDollar).Round(0).IntPart()
}

func absUint(n int64) uint64 {
	if n < 0 {
		return uint64(-n)
	}
	return uint64(n)
}
