package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LedgerTransactionType string

const (
	LedgerTransactionTypeInvoice                   LedgerTransactionType = "invoice"
	LedgerTransactionTypePayment                   LedgerTransactionType = "payment"
	LedgerTransactionTypeIntraLedger               LedgerTransactionType = "on_us"
	LedgerTransactionTypeLnIntraLedger             LedgerTransactionType = "ln_on_us"
	LedgerTransactionTypeOnchainIntraLedger        LedgerTransactionType = "onchain_on_us"
	LedgerTransactionTypeWalletIDTradeIntraAccount LedgerTransactionType = "self_trade"
	LedgerTransactionTypeLnTradeIntraAccount       LedgerTransactionType = "ln_self_trade"
	LedgerTransactionTypeOnChainTradeIntraAccount  LedgerTransactionType = "onchain_self_trade"
	LedgerTransactionTypeOnchainReceipt            LedgerTransactionType = "onchain_receipt"
	LedgerTransactionTypeOnchainPayment            LedgerTransactionType = "onchain_payment"

	// admin types
	LedgerTransactionTypeFee            LedgerTransactionType = "fee"
	LedgerTransactionTypeEscrow         LedgerTransactionType = "escrow"
	LedgerTransactionTypeRoutingRevenue LedgerTransactionType = "routing_fee"
	LedgerTransactionTypeToColdStorage  LedgerTransactionType = "to_cold_storage"
	LedgerTransactionTypeToHotWallet    LedgerTransactionType = "to_hot_wallet"
)

func (t LedgerTransactionType) IsAdmin() bool {
	switch t {
	case LedgerTransactionTypeFee,
		LedgerTransactionTypeEscrow,
		LedgerTransactionTypeRoutingRevenue,
		LedgerTransactionTypeToColdStorage,
		LedgerTransactionTypeToHotWallet:
		return true
	}
	return false
}

var (
	LightningTxTypes = []LedgerTransactionType{
		LedgerTransactionTypeInvoice,
		LedgerTransactionTypePayment,
	}
	OnChainTxTypes = []LedgerTransactionType{
		LedgerTransactionTypeOnchainReceipt,
		LedgerTransactionTypeOnchainPayment,
	}
	ExternalPaymentTxTypes = []LedgerTransactionType{
		LedgerTransactionTypePayment,
		LedgerTransactionTypeOnchainPayment,
	}
	IntraledgerTxTypes = []LedgerTransactionType{
		LedgerTransactionTypeIntraLedger,
		LedgerTransactionTypeLnIntraLedger,
		LedgerTransactionTypeOnchainIntraLedger,
	}
	TradeIntraAccountTxTypes = []LedgerTransactionType{
		LedgerTransactionTypeWalletIDTradeIntraAccount,
		LedgerTransactionTypeLnTradeIntraAccount,
		LedgerTransactionTypeOnChainTradeIntraAccount,
	}
)

// LedgerTransaction is one posted row of a journal, as seen from the
// wallet it belongs to. Debit and Credit are in Currency base units.
type LedgerTransaction struct {
	ID        uuid.UUID
	JournalID uuid.UUID
	WalletID  *uuid.UUID
	Type      LedgerTransactionType
	Debit     uint64
	Credit    uint64
	Currency  WalletCurrency

	SatsAmount      uint64
	SatsFee         uint64
	CentsAmount     uint64
	CentsFee        uint64
	DisplayAmount   int64
	DisplayFee      int64
	DisplayCurrency DisplayCurrency

	LnMemo            string
	MemoFromPayer     string
	Username          string
	RecipientWalletID *uuid.UUID
	PaymentHash       string
	PubKey            string
	TxHash            string
	Address           string

	PendingConfirmation bool
	FeeKnownInAdvance   bool

	// legacy fields still present on admin rows
	Fee    uint64
	Usd    decimal.NullDecimal
	FeeUsd decimal.NullDecimal

	Timestamp time.Time
}

// LedgerMetadata is attached to every row a journal writes for one side of
// a payment.
type LedgerMetadata struct {
	Type                LedgerTransactionType
	PendingConfirmation bool
	SatsAmount          uint64
	SatsFee             uint64
	CentsAmount         uint64
	CentsFee            uint64
	DisplayAmount       int64
	DisplayFee          int64
	DisplayCurrency     DisplayCurrency
	MemoFromPayer       string
	Username            string
	RecipientWalletID   *uuid.UUID
	Address             string
	TxHash              string
	SendAll             bool
}

type RecordIntraledgerArgs struct {
	Description    string
	Amount         PaymentAmounts
	Sender         WalletDescriptor
	Recipient      WalletDescriptor
	DebitMetadata  LedgerMetadata
	CreditMetadata LedgerMetadata
}

type RecordSendArgs struct {
	Description         string
	AmountToDebitSender PaymentAmounts
	BankFee             PaymentAmounts
	Sender              WalletDescriptor
	Metadata            LedgerMetadata
}

type LedgerJournal struct {
	ID          uuid.UUID
	Description string
	Voided      bool
	CreatedAt   time.Time
}

// TxBaseVolume sums debits and credits of a wallet in its own currency.
type TxBaseVolume struct {
	Outgoing uint64
	Incoming uint64
	Currency WalletCurrency
}
