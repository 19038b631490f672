package history

import (
	"fmt"
	"math/big"

	"github.com/ccoveille/go-safecast"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
)

// Config controls memo disclosure. A memo on a credit below the threshold
// for its currency is hidden unless it is one of the onboarding keys.
type Config struct {
	MemoSharingSatsThreshold  uint64
	MemoSharingCentsThreshold uint64
	OnboardingMemoKeys        []string
}

// Translator turns ledger rows into wallet transactions. It holds no state
// besides its configuration and is safe for concurrent use.
type Translator struct {
	cfg        Config
	onboarding map[string]struct{}
	nonEndUser map[uuid.UUID]struct{}
}

func NewTranslator(cfg Config, nonEndUserWalletIDs []uuid.UUID) *Translator {
	t := &Translator{
		cfg:        cfg,
		onboarding: make(map[string]struct{}, len(cfg.OnboardingMemoKeys)),
		nonEndUser: make(map[uuid.UUID]struct{}, len(nonEndUserWalletIDs)),
	}
	for _, k := range cfg.OnboardingMemoKeys {
		t.onboarding[k] = struct{}{}
	}
	for _, id := range nonEndUserWalletIDs {
		t.nonEndUser[id] = struct{}{}
	}
	return t
}

type MemoArgs struct {
	MemoFromPayer string
	LnMemo        string
	Credit        uint64
	Currency      domain.WalletCurrency
	WalletID      *uuid.UUID
	JournalID     uuid.UUID
}

// TranslateMemo decides what memo, if any, a row shows. Rows of internal
// wallets never show their memo and point at the journal instead.
func (t *Translator) TranslateMemo(a MemoArgs) *string {
	if a.WalletID != nil {
		if _, ok := t.nonEndUser[*a.WalletID]; ok {
			ref := "JournalId:" + a.JournalID.String()
			return &ref
		}
	}

	memo := a.MemoFromPayer
	if memo == "" {
		memo = a.LnMemo
	}
	if memo == "" || !t.shouldDisplayMemo(memo, a.Credit, a.Currency) {
		return nil
	}
	return &memo
}

func (t *Translator) shouldDisplayMemo(memo string, credit uint64, currency domain.WalletCurrency) bool {
	if _, ok := t.onboarding[memo]; ok || credit == 0 {
		return true
	}
	if currency == domain.WalletCurrencyBTC {
		return credit >= t.cfg.MemoSharingSatsThreshold
	}
	return credit >= t.cfg.MemoSharingCentsThreshold
}

// ConfirmedHistory is the translated ledger history, newest first as the
// rows were given.
type ConfirmedHistory struct {
	Transactions []domain.WalletTransaction
}

// FromLedger translates rows in order. walletCurrencies maps each wallet to
// its own currency; rows of wallets missing from it keep their posting
// currency.
func (t *Translator) FromLedger(rows []domain.LedgerTransaction, walletCurrencies map[uuid.UUID]domain.WalletCurrency) (ConfirmedHistory, error) {
	txs := make([]domain.WalletTransaction, 0, len(rows))
	for i := range rows {
		walletCurrency := rows[i].Currency
		if rows[i].WalletID != nil {
			if c, ok := walletCurrencies[*rows[i].WalletID]; ok {
				walletCurrency = c
			}
		}
		tx, err := t.translate(rows[i], walletCurrency)
		if err != nil {
			return ConfirmedHistory{}, fmt.Errorf("FromLedger: row %s: %w", rows[i].ID, err)
		}
		txs = append(txs, tx)
	}
	return ConfirmedHistory{Transactions: txs}, nil
}

func (t *Translator) translate(txn domain.LedgerTransaction, walletCurrency domain.WalletCurrency) (domain.WalletTransaction, error) {
	settlement, err := SettlementAmountsFromTxn(txn)
	if err != nil {
		return domain.WalletTransaction{}, err
	}
	fields := displayFieldsOf(txn)

	amount, fee, err := inWalletCurrency(settlement, fields, txn.Currency, walletCurrency)
	if err != nil {
		return domain.WalletTransaction{}, err
	}

	status := domain.TxStatusSuccess
	if txn.PendingConfirmation {
		status = domain.TxStatusPending
	}

	tx := domain.WalletTransaction{
		ID:                      txn.ID.String(),
		WalletID:                txn.WalletID,
		SettlementAmount:        amount,
		SettlementFee:           fee,
		SettlementCurrency:      walletCurrency,
		SettlementDisplayAmount: settlement.DisplayAmount.DisplayInMajor,
		SettlementDisplayFee:    settlement.DisplayFee.DisplayInMajor,
		SettlementDisplayPrice:  displayPrice(fields, walletCurrency),
		Status:                  status,
		Memo: t.TranslateMemo(MemoArgs{
			MemoFromPayer: txn.MemoFromPayer,
			LnMemo:        txn.LnMemo,
			Credit:        txn.Credit,
			Currency:      txn.Currency,
			WalletID:      txn.WalletID,
			JournalID:     txn.JournalID,
		}),
		CreatedAt: txn.Timestamp,
	}
	tx.InitiationVia, tx.SettlementVia = shapeOf(txn)
	return tx, nil
}

// shapeOf maps the row type to how the payment was initiated and settled.
// Unknown and admin types read as intraledger.
func shapeOf(txn domain.LedgerTransaction) (domain.InitiationVia, domain.SettlementVia) {
	txType := txn.Type
	if txType == domain.LedgerTransactionTypeIntraLedger && txn.PaymentHash != "" {
		txType = domain.LedgerTransactionTypeLnIntraLedger
	}

	intraSettlement := domain.SettlementViaIntraLedger{
		CounterPartyWalletID: txn.RecipientWalletID,
		CounterPartyUsername: txn.Username,
	}
	lnInitiation := domain.InitiationViaLightning{PaymentHash: txn.PaymentHash, PubKey: txn.PubKey}

	switch txType {
	case domain.LedgerTransactionTypeOnchainIntraLedger, domain.LedgerTransactionTypeOnChainTradeIntraAccount:
		return domain.InitiationViaOnChain{Address: txn.Address}, intraSettlement
	case domain.LedgerTransactionTypeOnchainPayment, domain.LedgerTransactionTypeOnchainReceipt:
		return domain.InitiationViaOnChain{Address: txn.Address}, domain.SettlementViaOnChain{TransactionHash: txn.TxHash}
	case domain.LedgerTransactionTypeLnIntraLedger, domain.LedgerTransactionTypeLnTradeIntraAccount:
		return lnInitiation, intraSettlement
	case domain.LedgerTransactionTypePayment, domain.LedgerTransactionTypeInvoice:
		return lnInitiation, domain.SettlementViaLightning{}
	default:
		return domain.InitiationViaIntraLedger{
			CounterPartyWalletID: txn.RecipientWalletID,
			CounterPartyUsername: txn.Username,
		}, intraSettlement
	}
}

// inWalletCurrency converts a settlement posted in one currency into the
// wallet's. The ratio is the one frozen on the row itself: floor for the
// amount, ceil for the fee. A row without sats cannot be priced and reads
// as zero.
func inWalletCurrency(s SettlementAmounts, f displayFields, posted, wallet domain.WalletCurrency) (amount, fee int64, err error) {
	if posted == wallet {
		return s.Amount, s.Fee, nil
	}
	ratio, err := fx.NewWalletPriceRatio(domain.Cents(f.centsAmount), domain.Sats(f.satsAmount))
	if err != nil {
		return 0, 0, nil
	}

	abs := absUint(s.Amount)
	feeAbs := absUint(s.Fee)
	var convAmount, convFee uint64
	if wallet == domain.WalletCurrencyUSD {
		convAmount = ratio.ConvertFromBtc(domain.Sats(abs)).Amount
		convFee = ratio.ConvertFromBtcToCeil(domain.Sats(feeAbs)).Amount
	} else {
		convAmount = ratio.ConvertFromUsd(domain.Cents(abs)).Amount
		convFee = ratio.ConvertFromUsdToCeil(domain.Cents(feeAbs)).Amount
	}

	amount, err = safecast.ToInt64(convAmount)
	if err != nil {
		return 0, 0, fmt.Errorf("inWalletCurrency: %w", err)
	}
	fee, err = safecast.ToInt64(convFee)
	if err != nil {
		return 0, 0, fmt.Errorf("inWalletCurrency: %w", err)
	}
	if s.Amount < 0 {
		amount = -amount
	}
	return amount, fee, nil
}

// displayPrice is the display minor units paid per wallet base unit on the
// row, zero when the row moved nothing in the wallet's currency.
func displayPrice(f displayFields, wallet domain.WalletCurrency) domain.WalletMinorUnitDisplayPrice {
	base := f.walletAmount(wallet)
	price := decimal.Zero
	if base != 0 {
		display := decimal.NewFromInt(f.displayAmount).Abs()
		price = display.Div(decimal.NewFromBigInt(new(big.Int).SetUint64(base), 0))
	}
	return domain.NewWalletMinorUnitDisplayPrice(price, f.displayCurrency, wallet)
}
