package payment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
)

// RecipientDetails identifies the ledger wallet an internal address maps to.
type RecipientDetails struct {
	Wallet   domain.WalletDescriptor
	UserID   uuid.UUID
	Username string
}

// PaymentFlow is a fully priced send. Both currency representations of the
// amount and of the fee are populated and agree with Ratio. It is passed by
// value and never modified after the builder returns it.
type PaymentFlow struct {
	SenderWallet  domain.WalletDescriptor
	SenderAccount domain.Account
	Recipient     *RecipientDetails
	Address       string
	Settlement    domain.SettlementMethod
	SendAll       bool

	InputAmount domain.WalletAmount

	BtcPaymentAmount domain.BtcPaymentAmount
	UsdPaymentAmount domain.UsdPaymentAmount

	BtcProtocolAndBankFee domain.BtcPaymentAmount
	UsdProtocolAndBankFee domain.UsdPaymentAmount
	BtcBankFee            domain.BtcPaymentAmount
	UsdBankFee            domain.UsdPaymentAmount
	BtcMinerFee           domain.BtcPaymentAmount

	Ratio fx.WalletPriceRatio
}

func (f PaymentFlow) PaymentAmounts() domain.PaymentAmounts {
	return domain.PaymentAmounts{Btc: f.BtcPaymentAmount, Usd: f.UsdPaymentAmount}
}

func (f PaymentFlow) ProtocolAndBankFee() domain.PaymentAmounts {
	return domain.PaymentAmounts{Btc: f.BtcProtocolAndBankFee, Usd: f.UsdProtocolAndBankFee}
}

func (f PaymentFlow) BankFees() domain.PaymentAmounts {
	return domain.PaymentAmounts{Btc: f.BtcBankFee, Usd: f.UsdBankFee}
}

// TotalDebit is what leaves the sender wallet: amount plus every fee.
func (f PaymentFlow) TotalDebit() domain.PaymentAmounts {
	return f.PaymentAmounts().Add(f.ProtocolAndBankFee())
}

func (f PaymentFlow) IsIntraLedger() bool {
	return f.Settlement == domain.SettlementMethodIntraLedger
}

// IsTradeIntraAccount reports a move between two wallets of the same account.
func (f PaymentFlow) IsTradeIntraAccount() bool {
	return f.Recipient != nil && f.Recipient.Wallet.AccountID == f.SenderWallet.AccountID
}

// CheckBalanceForSend compares the sender balance with amount plus fee in
// the sender wallet currency.
func (f PaymentFlow) CheckBalanceForSend(balance domain.WalletAmount) error {
	if balance.Currency != f.SenderWallet.Currency {
		return fmt.Errorf("CheckBalanceForSend: balance in %s for %s wallet: %w", balance.Currency, f.SenderWallet.Currency, domain.ErrInvalidCurrency)
	}
	required := f.TotalDebit().In(f.SenderWallet.Currency)
	if balance.Amount < required.Amount {
		return fmt.Errorf("CheckBalanceForSend: %w", &domain.InsufficientBalanceError{Balance: balance, Required: required})
	}
	return nil
}

// CheckOnChainAvailableBalanceForSend makes sure the hot wallet can cover the
// payout and its miner fee.
func (f PaymentFlow) CheckOnChainAvailableBalanceForSend(available domain.BtcPaymentAmount) error {
	needed := f.BtcPaymentAmount.Add(f.BtcMinerFee)
	if available.LessThan(needed) {
		return fmt.Errorf("CheckOnChainAvailableBalanceForSend: need %s, have %s: %w", needed, available, domain.ErrInsufficientOnChainFunds)
	}
	return nil
}
