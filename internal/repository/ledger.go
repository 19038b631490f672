package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

// AccountPathOnChain is the asset account that backs funds held on-chain by
// the hot wallet. Its rows have no wallet id.
const AccountPathOnChain = "assets:onchain"

func walletAccountPath(id uuid.UUID) string { return "liabilities:wallet:" + id.String() }

const ledgerColumns = `id, journal_id, wallet_id, type, debit, credit, currency,
	sats_amount, sats_fee, cents_amount, cents_fee,
	display_amount, display_fee, display_currency,
	ln_memo, memo_from_payer, username, recipient_wallet_id,
	payment_hash, pub_key, tx_hash, address,
	pending_confirmation, fee_known_in_advance,
	fee, usd, fee_usd, created_at`

type LedgerRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db, now: time.Now}
}

type posting struct {
	accountPath string
	walletID    *uuid.UUID
	debit       uint64
	credit      uint64
	currency    domain.WalletCurrency
	meta        domain.LedgerMetadata
}

func walletDebit(id uuid.UUID, amount domain.WalletAmount, meta domain.LedgerMetadata) posting {
	return posting{accountPath: walletAccountPath(id), walletID: &id, debit: amount.Amount, currency: amount.Currency, meta: meta}
}

func walletCredit(id uuid.UUID, amount domain.WalletAmount, meta domain.LedgerMetadata) posting {
	return posting{accountPath: walletAccountPath(id), walletID: &id, credit: amount.Amount, currency: amount.Currency, meta: meta}
}

// RecordIntraledger moves Amount from Sender to Recipient in one journal.
// When the wallets differ in currency the dealer wallets take the other side
// of each leg.
func (r *LedgerRepository) RecordIntraledger(ctx context.Context, args domain.RecordIntraledgerArgs) (uuid.UUID, error) {
	if args.Sender.ID == args.Recipient.ID {
		return uuid.Nil, fmt.Errorf("RecordIntraledger: %w", domain.ErrSelfPayment)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("RecordIntraledger: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockWallets(ctx, tx, args.Sender, args.Recipient); err != nil {
		return uuid.Nil, fmt.Errorf("RecordIntraledger: %w", err)
	}

	debit := args.Amount.In(args.Sender.Currency)
	credit := args.Amount.In(args.Recipient.Currency)
	if err := requireBalance(ctx, tx, args.Sender, debit); err != nil {
		return uuid.Nil, fmt.Errorf("RecordIntraledger: %w", err)
	}

	postings := []posting{walletDebit(args.Sender.ID, debit, args.DebitMetadata)}
	if args.Sender.Currency != args.Recipient.Currency {
		postings = append(postings,
			walletCredit(dealerWalletID(args.Sender.Currency), debit, args.DebitMetadata),
			walletDebit(dealerWalletID(args.Recipient.Currency), credit, args.CreditMetadata),
		)
	}
	postings = append(postings, walletCredit(args.Recipient.ID, credit, args.CreditMetadata))

	journalID, err := r.insertJournal(ctx, tx, args.Description, postings)
	if err != nil {
		return uuid.Nil, fmt.Errorf("RecordIntraledger: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("RecordIntraledger: commit: %w", err)
	}
	return journalID, nil
}

// RecordSend debits the sender for an outgoing on-chain payment. The bank
// fee goes to the bank owner wallet and the rest leaves through the on-chain
// asset account. USD senders are converted through the dealer wallets.
func (r *LedgerRepository) RecordSend(ctx context.Context, args domain.RecordSendArgs) (uuid.UUID, error) {
	total := args.AmountToDebitSender
	remainder, err := total.Btc.Sub(args.BankFee.Btc)
	if err != nil {
		return uuid.Nil, fmt.Errorf("RecordSend: bank fee above total: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("RecordSend: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := lockWallets(ctx, tx, args.Sender); err != nil {
		return uuid.Nil, fmt.Errorf("RecordSend: %w", err)
	}

	debit := total.In(args.Sender.Currency)
	if err := requireBalance(ctx, tx, args.Sender, debit); err != nil {
		return uuid.Nil, fmt.Errorf("RecordSend: %w", err)
	}

	meta := args.Metadata
	postings := []posting{walletDebit(args.Sender.ID, debit, meta)}
	if args.Sender.Currency == domain.WalletCurrencyUSD {
		postings = append(postings,
			walletCredit(domain.DealerUsdWalletID, total.Usd.Wallet(), meta),
			walletDebit(domain.DealerBtcWalletID, total.Btc.Wallet(), meta),
		)
	}
	if !args.BankFee.Btc.IsZero() {
		postings = append(postings, walletCredit(domain.BankOwnerWalletID, args.BankFee.Btc.Wallet(), meta))
	}
	postings = append(postings, posting{
		accountPath: AccountPathOnChain,
		credit:      remainder.Amount,
		currency:    domain.WalletCurrencyBTC,
		meta:        meta,
	})

	journalID, err := r.insertJournal(ctx, tx, args.Description, postings)
	if err != nil {
		return uuid.Nil, fmt.Errorf("RecordSend: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("RecordSend: commit: %w", err)
	}
	return journalID, nil
}

// RevertOnChainPayment posts the mirror of every row of the journal and
// voids both, so the payment disappears from history and volumes while
// balances return to their previous value.
func (r *LedgerRepository) RevertOnChainPayment(ctx context.Context, journalID uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("RevertOnChainPayment: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var voided bool
	err = tx.QueryRowContext(ctx,
		`SELECT voided FROM ledger_journals WHERE id = $1 FOR UPDATE`, journalID,
	).Scan(&voided)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("RevertOnChainPayment: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("RevertOnChainPayment: %w", err)
	}
	if voided {
		return fmt.Errorf("RevertOnChainPayment: %w", domain.ErrJournalAlreadyReverted)
	}

	now := r.now().UTC()
	reversalID := uuid.New()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_journals (id, description, voided, reverses_journal_id, created_at)
		VALUES ($1, $2, true, $3, $4)`,
		reversalID, "reversal of "+journalID.String(), journalID, now,
	)
	if err != nil {
		return fmt.Errorf("RevertOnChainPayment: insert journal: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_transactions (
			id, journal_id, account_path, wallet_id, type, debit, credit, currency,
			sats_amount, sats_fee, cents_amount, cents_fee,
			display_amount, display_fee, display_currency,
			ln_memo, memo_from_payer, username, recipient_wallet_id,
			payment_hash, pub_key, tx_hash, address,
			pending_confirmation, fee_known_in_advance, send_all,
			fee, usd, fee_usd, voided, created_at
		)
		SELECT
			gen_random_uuid(), $1, account_path, wallet_id, type, credit, debit, currency,
			sats_amount, sats_fee, cents_amount, cents_fee,
			display_amount, display_fee, display_currency,
			ln_memo, memo_from_payer, username, recipient_wallet_id,
			payment_hash, pub_key, tx_hash, address,
			pending_confirmation, fee_known_in_advance, send_all,
			fee, usd, fee_usd, true, $3
		FROM ledger_transactions WHERE journal_id = $2`,
		reversalID, journalID, now,
	)
	if err != nil {
		return fmt.Errorf("RevertOnChainPayment: mirror rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE ledger_transactions SET voided = true WHERE journal_id = $1`, journalID,
	); err != nil {
		return fmt.Errorf("RevertOnChainPayment: void rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ledger_journals SET voided = true WHERE id = $1`, journalID,
	); err != nil {
		return fmt.Errorf("RevertOnChainPayment: void journal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("RevertOnChainPayment: commit: %w", err)
	}
	return nil
}

func (r *LedgerRepository) SetOnChainTxSendHash(ctx context.Context, journalID uuid.UUID, txHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE ledger_transactions SET tx_hash = $1 WHERE journal_id = $2`, txHash, journalID,
	)
	if err != nil {
		return fmt.Errorf("SetOnChainTxSendHash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetOnChainTxSendHash: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("SetOnChainTxSendHash: %w", domain.ErrNotFound)
	}
	return nil
}

// GetWalletBalance sums credits minus debits. Wallets that are allowed to
// go negative (dealer) report zero.
func (r *LedgerRepository) GetWalletBalance(ctx context.Context, wallet domain.WalletDescriptor) (domain.WalletAmount, error) {
	balance, err := walletBalance(ctx, r.db, wallet.ID)
	if err != nil {
		return domain.WalletAmount{}, fmt.Errorf("GetWalletBalance: %w", err)
	}
	return domain.WalletAmount{Amount: balance, Currency: wallet.Currency}, nil
}

func (r *LedgerRepository) LightningTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error) {
	return r.volumeSince(ctx, "LightningTxBaseVolumeSince", wallet, since, domain.LightningTxTypes)
}

func (r *LedgerRepository) OnChainTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error) {
	return r.volumeSince(ctx, "OnChainTxBaseVolumeSince", wallet, since, domain.OnChainTxTypes)
}

func (r *LedgerRepository) ExternalPaymentVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error) {
	return r.volumeSince(ctx, "ExternalPaymentVolumeSince", wallet, since, domain.ExternalPaymentTxTypes)
}

func (r *LedgerRepository) IntraledgerTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error) {
	return r.volumeSince(ctx, "IntraledgerTxBaseVolumeSince", wallet, since, domain.IntraledgerTxTypes)
}

func (r *LedgerRepository) TradeIntraAccountTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error) {
	return r.volumeSince(ctx, "TradeIntraAccountTxBaseVolumeSince", wallet, since, domain.TradeIntraAccountTxTypes)
}

func (r *LedgerRepository) AllTxBaseVolumeSince(ctx context.Context, wallet domain.WalletDescriptor, since time.Time) (domain.TxBaseVolume, error) {
	return r.volumeSince(ctx, "AllTxBaseVolumeSince", wallet, since, nil)
}

// volumeSince aggregates non-voided rows of the wallet. A nil types slice
// means every type.
func (r *LedgerRepository) volumeSince(ctx context.Context, op string, wallet domain.WalletDescriptor, since time.Time, types []domain.LedgerTransactionType) (domain.TxBaseVolume, error) {
	query := `SELECT COALESCE(SUM(debit), 0)::BIGINT, COALESCE(SUM(credit), 0)::BIGINT
		FROM ledger_transactions
		WHERE wallet_id = $1 AND created_at >= $2 AND NOT voided`
	params := []any{wallet.ID, since}
	if types != nil {
		query += ` AND type = ANY($3)`
		params = append(params, pq.Array(typeStrings(types)))
	}

	var out, in int64
	if err := r.db.QueryRowContext(ctx, query, params...).Scan(&out, &in); err != nil {
		return domain.TxBaseVolume{}, fmt.Errorf("%s: %w", op, err)
	}

	outgoing, err := safecast.ToUint64(out)
	if err != nil {
		return domain.TxBaseVolume{}, fmt.Errorf("%s: %w", op, err)
	}
	incoming, err := safecast.ToUint64(in)
	if err != nil {
		return domain.TxBaseVolume{}, fmt.Errorf("%s: %w", op, err)
	}
	return domain.TxBaseVolume{Outgoing: outgoing, Incoming: incoming, Currency: wallet.Currency}, nil
}

// ListWalletTransactions returns the non-voided rows of the wallets, newest
// first.
func (r *LedgerRepository) ListWalletTransactions(ctx context.Context, walletIDs []uuid.UUID) ([]domain.LedgerTransaction, error) {
	ids := make([]string, len(walletIDs))
	for i, id := range walletIDs {
		ids[i] = id.String()
	}
	return r.queryTransactions(ctx, "ListWalletTransactions",
		`SELECT `+ledgerColumns+` FROM ledger_transactions
		WHERE wallet_id = ANY($1::uuid[]) AND NOT voided
		ORDER BY created_at DESC, id`,
		pq.Array(ids),
	)
}

// ListJournalTransactions returns every row of a journal, voided or not.
func (r *LedgerRepository) ListJournalTransactions(ctx context.Context, journalID uuid.UUID) ([]domain.LedgerTransaction, error) {
	return r.queryTransactions(ctx, "ListJournalTransactions",
		`SELECT `+ledgerColumns+` FROM ledger_transactions
		WHERE journal_id = $1 ORDER BY created_at, id`,
		journalID,
	)
}

func (r *LedgerRepository) GetJournal(ctx context.Context, id uuid.UUID) (*domain.LedgerJournal, error) {
	var j domain.LedgerJournal
	err := r.db.QueryRowContext(ctx,
		`SELECT id, description, voided, created_at FROM ledger_journals WHERE id = $1`, id,
	).Scan(&j.ID, &j.Description, &j.Voided, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetJournal: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetJournal: %w", err)
	}
	return &j, nil
}

func (r *LedgerRepository) queryTransactions(ctx context.Context, op, query string, args ...any) ([]domain.LedgerTransaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var txs []domain.LedgerTransaction
	for rows.Next() {
		t, err := scanLedgerTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return txs, nil
}

func (r *LedgerRepository) insertJournal(ctx context.Context, tx *sql.Tx, description string, postings []posting) (uuid.UUID, error) {
	if err := checkBalanced(postings); err != nil {
		return uuid.Nil, err
	}

	now := r.now().UTC()
	journalID := uuid.New()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_journals (id, description, created_at) VALUES ($1, $2, $3)`,
		journalID, description, now,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert journal: %w", err)
	}

	for _, p := range postings {
		if err := insertPosting(ctx, tx, journalID, p, now); err != nil {
			return uuid.Nil, fmt.Errorf("insert posting %s: %w", p.accountPath, err)
		}
	}
	return journalID, nil
}

func insertPosting(ctx context.Context, tx *sql.Tx, journalID uuid.UUID, p posting, createdAt time.Time) error {
	m := p.meta
	n, err := toInt64s(p.debit, p.credit, m.SatsAmount, m.SatsFee, m.CentsAmount, m.CentsFee)
	if err != nil {
		return err
	}

	var walletID, recipientWalletID uuid.NullUUID
	if p.walletID != nil {
		walletID = uuid.NullUUID{UUID: *p.walletID, Valid: true}
	}
	if m.RecipientWalletID != nil {
		recipientWalletID = uuid.NullUUID{UUID: *m.RecipientWalletID, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_transactions (
			id, journal_id, account_path, wallet_id, type, debit, credit, currency,
			sats_amount, sats_fee, cents_amount, cents_fee,
			display_amount, display_fee, display_currency,
			memo_from_payer, username, recipient_wallet_id, tx_hash, address,
			pending_confirmation, send_all, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23)`,
		uuid.New(), journalID, p.accountPath, walletID, m.Type, n[0], n[1], p.currency,
		n[2], n[3], n[4], n[5],
		m.DisplayAmount, m.DisplayFee, m.DisplayCurrency,
		m.MemoFromPayer, m.Username, recipientWalletID, m.TxHash, m.Address,
		m.PendingConfirmation, m.SendAll, createdAt,
	)
	return err
}

func checkBalanced(postings []posting) error {
	type sums struct{ debit, credit uint64 }
	byCurrency := map[domain.WalletCurrency]*sums{}
	for _, p := range postings {
		s, ok := byCurrency[p.currency]
		if !ok {
			s = &sums{}
			byCurrency[p.currency] = s
		}
		s.debit += p.debit
		s.credit += p.credit
	}
	for currency, s := range byCurrency {
		if s.debit != s.credit {
			return fmt.Errorf("%s debits %d credits %d: %w", currency, s.debit, s.credit, domain.ErrUnbalancedJournal)
		}
	}
	return nil
}

// lockWallets takes row locks on the given wallets in id order and checks
// that each descriptor's currency matches the stored wallet.
func lockWallets(ctx context.Context, tx *sql.Tx, wallets ...domain.WalletDescriptor) error {
	sorted := slices.Clone(wallets)
	slices.SortFunc(sorted, func(a, b domain.WalletDescriptor) int {
		return slices.Compare(a.ID[:], b.ID[:])
	})

	for _, w := range sorted {
		var currency domain.WalletCurrency
		err := tx.QueryRowContext(ctx,
			`SELECT currency FROM wallets WHERE id = $1 FOR UPDATE`, w.ID,
		).Scan(&currency)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("lock wallet %s: %w", w.ID, domain.ErrWalletNotFound)
			}
			return fmt.Errorf("lock wallet %s: %w", w.ID, err)
		}
		if currency != w.Currency {
			return fmt.Errorf("wallet %s is %s, not %s: %w", w.ID, currency, w.Currency, domain.ErrInvalidCurrency)
		}
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func walletBalance(ctx context.Context, db queryRower, walletID uuid.UUID) (uint64, error) {
	var balance int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(credit) - SUM(debit), 0)::BIGINT
		FROM ledger_transactions WHERE wallet_id = $1`, walletID,
	).Scan(&balance)
	if err != nil {
		return 0, err
	}
	if balance < 0 {
		return 0, nil
	}
	return uint64(balance), nil
}

func requireBalance(ctx context.Context, tx *sql.Tx, wallet domain.WalletDescriptor, required domain.WalletAmount) error {
	balance, err := walletBalance(ctx, tx, wallet.ID)
	if err != nil {
		return fmt.Errorf("balance of %s: %w", wallet.ID, err)
	}
	if balance < required.Amount {
		return &domain.InsufficientBalanceError{
			Balance:  domain.WalletAmount{Amount: balance, Currency: wallet.Currency},
			Required: required,
		}
	}
	return nil
}

func dealerWalletID(currency domain.WalletCurrency) uuid.UUID {
	if currency == domain.WalletCurrencyUSD {
		return domain.DealerUsdWalletID
	}
	return domain.DealerBtcWalletID
}

func typeStrings(types []domain.LedgerTransactionType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func toInt64s(vals ...uint64) ([]int64, error) {
	out := make([]int64, len(vals))
	for i, v := range vals {
		n, err := safecast.ToInt64(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func toUint64s(vals ...int64) ([]uint64, error) {
	out := make([]uint64, len(vals))
	for i, v := range vals {
		n, err := safecast.ToUint64(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func scanLedgerTransaction(s scanner) (*domain.LedgerTransaction, error) {
	var (
		t                                               domain.LedgerTransaction
		walletID, recipientWalletID                     uuid.NullUUID
		debit, credit, satsAmount, satsFee, centsAmount int64
		centsFee, fee                                   int64
	)
	err := s.Scan(
		&t.ID, &t.JournalID, &walletID, &t.Type, &debit, &credit, &t.Currency,
		&satsAmount, &satsFee, &centsAmount, &centsFee,
		&t.DisplayAmount, &t.DisplayFee, &t.DisplayCurrency,
		&t.LnMemo, &t.MemoFromPayer, &t.Username, &recipientWalletID,
		&t.PaymentHash, &t.PubKey, &t.TxHash, &t.Address,
		&t.PendingConfirmation, &t.FeeKnownInAdvance,
		&fee, &t.Usd, &t.FeeUsd, &t.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	n, err := toUint64s(debit, credit, satsAmount, satsFee, centsAmount, centsFee, fee)
	if err != nil {
		return nil, err
	}
	t.Debit, t.Credit = n[0], n[1]
	t.SatsAmount, t.SatsFee, t.CentsAmount, t.CentsFee = n[2], n[3], n[4], n[5]
	t.Fee = n[6]

	if walletID.Valid {
		id := walletID.UUID
		t.WalletID = &id
	}
	if recipientWalletID.Valid {
		id := recipientWalletID.UUID
		t.RecipientWalletID = &id
	}
	return &t, nil
}
