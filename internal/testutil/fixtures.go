package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

// TestAccount is an end-user account seeded with one BTC and one USD wallet.
type TestAccount struct {
	User    *domain.User
	Account *domain.Account
	Btc     *domain.Wallet
	Usd     *domain.Wallet
}

func SeedTestUser(t *testing.T, db *sql.DB, deviceTokens ...string) *domain.User {
	t.Helper()

	u := &domain.User{
		ID:           uuid.New(),
		Language:     "en",
		DeviceTokens: deviceTokens,
		CreatedAt:    time.Now().UTC(),
	}
	if u.DeviceTokens == nil {
		u.DeviceTokens = []string{}
	}
	_, err := db.Exec(
		`INSERT INTO users (id, language, device_tokens, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Language, pq.Array(u.DeviceTokens), u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user: %v", err)
	}
	return u
}

// SeedTestAccount creates a user, an active account and its BTC and USD
// wallets. The BTC wallet is the default and owns address when it is set.
func SeedTestAccount(t *testing.T, db *sql.DB, username, address string) *TestAccount {
	t.Helper()

	user := SeedTestUser(t, db, "device-"+username)
	now := time.Now().UTC()
	acct := &domain.Account{
		ID:              uuid.New(),
		UserID:          user.ID,
		Username:        username,
		Role:            domain.AccountRoleUser,
		Status:          domain.AccountStatusActive,
		DisplayCurrency: domain.DisplayCurrencyUSD,
		CreatedAt:       now,
	}
	btc := &domain.Wallet{ID: uuid.New(), AccountID: acct.ID, Type: domain.WalletTypeChecking, Currency: domain.WalletCurrencyBTC, CreatedAt: now}
	usd := &domain.Wallet{ID: uuid.New(), AccountID: acct.ID, Type: domain.WalletTypeChecking, Currency: domain.WalletCurrencyUSD, CreatedAt: now.Add(time.Millisecond)}
	acct.DefaultWalletID = btc.ID

	_, err := db.Exec(
		`INSERT INTO accounts (id, user_id, username, role, status, display_currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		acct.ID, acct.UserID, acct.Username, acct.Role, acct.Status, acct.DisplayCurrency, acct.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", username, err)
	}
	for _, w := range []*domain.Wallet{btc, usd} {
		_, err := db.Exec(
			`INSERT INTO wallets (id, account_id, type, currency, created_at) VALUES ($1, $2, $3, $4, $5)`,
			w.ID, w.AccountID, w.Type, w.Currency, w.CreatedAt,
		)
		if err != nil {
			t.Fatalf("seed %s wallet for %s: %v", w.Currency, username, err)
		}
	}
	if _, err := db.Exec(`UPDATE accounts SET default_wallet_id = $1 WHERE id = $2`, btc.ID, acct.ID); err != nil {
		t.Fatalf("set default wallet for %s: %v", username, err)
	}
	if address != "" {
		if _, err := db.Exec(`INSERT INTO wallet_addresses (address, wallet_id) VALUES ($1, $2)`, address, btc.ID); err != nil {
			t.Fatalf("seed address for %s: %v", username, err)
		}
		btc.OnChainAddresses = []string{address}
	}

	return &TestAccount{User: user, Account: acct, Btc: btc, Usd: usd}
}

// FundWallet posts an on-chain receipt of amount into the wallet, balanced
// against the on-chain asset account.
func FundWallet(t *testing.T, db *sql.DB, wallet *domain.Wallet, amount uint64) {
	t.Helper()

	journalID := uuid.New()
	if _, err := db.Exec(
		`INSERT INTO ledger_journals (id, description) VALUES ($1, $2)`,
		journalID, "test funding",
	); err != nil {
		t.Fatalf("fund wallet journal: %v", err)
	}

	_, err := db.Exec(
		`INSERT INTO ledger_transactions (id, journal_id, account_path, wallet_id, type, debit, credit, currency)
		VALUES ($1, $2, $3, $4, 'onchain_receipt', 0, $5, $6),
		       ($7, $2, $8, NULL, 'onchain_receipt', $5, 0, $6)`,
		uuid.New(), journalID, "liabilities:wallet:"+wallet.ID.String(), wallet.ID, int64(amount), wallet.Currency,
		uuid.New(), "assets:funding",
	)
	if err != nil {
		t.Fatalf("fund wallet %s: %v", wallet.ID, err)
	}
}

func GetWalletBalance(t *testing.T, db *sql.DB, walletID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(
		`SELECT COALESCE(SUM(credit) - SUM(debit), 0)::BIGINT FROM ledger_transactions WHERE wallet_id = $1`,
		walletID,
	).Scan(&balance)
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", walletID, err)
	}
	return balance
}

func CountJournalRows(t *testing.T, db *sql.DB, journalID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_transactions WHERE journal_id = $1`, journalID).Scan(&count)
	if err != nil {
		t.Fatalf("count rows for journal %s: %v", journalID, err)
	}
	return count
}
