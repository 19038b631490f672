package payment_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fees"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/limits"
	"github.com/josh-kwaku/btc-wallet-core/internal/lock"
	"github.com/josh-kwaku/btc-wallet-core/internal/onchain"
	"github.com/josh-kwaku/btc-wallet-core/internal/repository"
	"github.com/josh-kwaku/btc-wallet-core/internal/service/payment"
	"github.com/josh-kwaku/btc-wallet-core/internal/testutil"
)

const (
	bobAddress      = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	externalAddress = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
)

type stubChain struct {
	mu       sync.Mutex
	minerFee domain.BtcPaymentAmount
	payErr   error
	payouts  []onchain.PayToAddressArgs
}

func (c *stubChain) GetBalanceAmount(context.Context) (domain.BtcPaymentAmount, error) {
	return domain.Sats(21_000_000 * 100_000_000), nil
}

func (c *stubChain) GetOnChainFeeEstimate(context.Context, string, domain.BtcPaymentAmount, int) (domain.BtcPaymentAmount, error) {
	return c.minerFee, nil
}

func (c *stubChain) PayToAddress(_ context.Context, args onchain.PayToAddressArgs) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payouts = append(c.payouts, args)
	if c.payErr != nil {
		return "", c.payErr
	}
	return "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16", nil
}

func (c *stubChain) LookupOnChainFee(context.Context, string, int) (domain.BtcPaymentAmount, error) {
	return c.minerFee, nil
}

// journalOf recovers the journal id the payout was tagged with.
func (c *stubChain) journalOf(t *testing.T, i int) uuid.UUID {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Greater(t, len(c.payouts), i)
	id, err := uuid.Parse(strings.TrimPrefix(c.payouts[i].Description, "journal-"))
	require.NoError(t, err)
	return id
}

type setup struct {
	svc    *payment.Service
	ledger *repository.LedgerRepository
	chain  *stubChain
}

func setupPaymentService(t *testing.T, db *sql.DB, bankFee uint64, limitCfg limits.Config) setup {
	t.Helper()

	wallets := repository.NewWalletRepository(db)
	ledger := repository.NewLedgerRepository(db)
	chain := &stubChain{minerFee: domain.Sats(1_000)}
	if bankFee == 0 {
		chain.minerFee = domain.ZeroSats
	}
	if limitCfg == (limits.Config{}) {
		limitCfg = limits.Config{
			Withdrawal:        domain.Cents(10_000_000),
			Intraledger:       domain.Cents(10_000_000),
			TradeIntraAccount: domain.Cents(10_000_000),
		}
	}
	feeCfg := fees.WithdrawalConfig{Method: fees.WithdrawalFeeMethodFlat, MinBankFee: domain.Sats(bankFee)}

	svc := payment.NewService(payment.Deps{
		Wallets:   wallets,
		Accounts:  repository.NewAccountRepository(db),
		Users:     repository.NewUserRepository(db),
		Ledger:    ledger,
		Chain:     chain,
		Locks:     lock.NewService(lock.NewMemoryBackend(), lock.Config{}),
		Prices:    fx.NewRateService(fx.StaticPrices{domain.DisplayCurrencyUSD: decimal.NewFromInt(50_000)}, 0.005),
		Limits:    limits.NewChecker(limitCfg, wallets, ledger),
		Fees:      fees.NewWithdrawalFeeCalculator(feeCfg),
		Imbalance: fees.NewImbalanceCalculator(feeCfg, ledger),
	}, payment.Config{
		Network:       onchain.NetworkMainnet,
		DustThreshold: domain.Sats(546),
	})
	return setup{svc: svc, ledger: ledger, chain: chain}
}

func sendRequest(from *testutil.TestAccount, wallet *domain.Wallet, address string, amount uint64) payment.PayOnChainRequest {
	return payment.PayOnChainRequest{
		SenderWalletID: wallet.ID,
		SenderAccount:  *from.Account,
		Address:        address,
		Amount:         amount,
		Memo:           "integration",
	}
}

func TestPayOnChain_External_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupPaymentService(t, db, 2_000, limits.Config{})
	ctx := context.Background()

	alice := testutil.SeedTestAccount(t, db, "alice", "")
	testutil.FundWallet(t, db, alice.Btc, 200_000)

	status, err := s.svc.PayOnChainByWalletIDForBtcWallet(ctx, sendRequest(alice, alice.Btc, externalAddress, 100_000))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSendStatusSuccess, status)

	assert.Equal(t, int64(97_000), testutil.GetWalletBalance(t, db, alice.Btc.ID))
	assert.Equal(t, int64(2_000), testutil.GetWalletBalance(t, db, domain.BankOwnerWalletID))

	journalID := s.chain.journalOf(t, 0)
	assert.Equal(t, 3, testutil.CountJournalRows(t, db, journalID))

	rows, err := s.ledger.ListJournalTransactions(ctx, journalID)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, "f4184fc596403b9d638783cf57adfe4c75c605f6356fbc91338530e9831e9e16", r.TxHash)
		assert.Equal(t, domain.LedgerTransactionTypeOnchainPayment, r.Type)
	}

	journal, err := s.ledger.GetJournal(ctx, journalID)
	require.NoError(t, err)
	assert.Equal(t, "integration", journal.Description)
	assert.False(t, journal.Voided)
}

func TestPayOnChain_RejectedBroadcastRestoresBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupPaymentService(t, db, 2_000, limits.Config{})
	s.chain.payErr = domain.ErrInsufficientOnChainFunds
	ctx := context.Background()

	alice := testutil.SeedTestAccount(t, db, "alice", "")
	testutil.FundWallet(t, db, alice.Btc, 200_000)

	_, err := s.svc.PayOnChainByWalletIDForBtcWallet(ctx, sendRequest(alice, alice.Btc, externalAddress, 100_000))
	require.ErrorIs(t, err, domain.ErrInsufficientOnChainFunds)

	assert.Equal(t, int64(200_000), testutil.GetWalletBalance(t, db, alice.Btc.ID))
	assert.Equal(t, int64(0), testutil.GetWalletBalance(t, db, domain.BankOwnerWalletID))

	journal, err := s.ledger.GetJournal(ctx, s.chain.journalOf(t, 0))
	require.NoError(t, err)
	assert.True(t, journal.Voided)
}

func TestPayOnChain_Intraledger(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupPaymentService(t, db, 2_000, limits.Config{})
	ctx := context.Background()

	alice := testutil.SeedTestAccount(t, db, "alice", "")
	bob := testutil.SeedTestAccount(t, db, "bob", bobAddress)
	testutil.FundWallet(t, db, alice.Btc, 50_000)
	testutil.FundWallet(t, db, alice.Usd, 10_000)

	_, err := s.svc.PayOnChainByWalletIDForBtcWallet(ctx, sendRequest(alice, alice.Btc, bobAddress, 10_000))
	require.NoError(t, err)

	assert.Equal(t, int64(40_000), testutil.GetWalletBalance(t, db, alice.Btc.ID))
	assert.Equal(t, int64(10_000), testutil.GetWalletBalance(t, db, bob.Btc.ID))

	// USD wallet to a BTC address: the dealer sells the sats.
	_, err = s.svc.PayOnChainByWalletIDForUsdWallet(ctx, sendRequest(alice, alice.Usd, bobAddress, 500))
	require.NoError(t, err)

	assert.Equal(t, int64(9_500), testutil.GetWalletBalance(t, db, alice.Usd.ID))
	bobSats := testutil.GetWalletBalance(t, db, bob.Btc.ID) - 10_000
	assert.Positive(t, bobSats)
	assert.Equal(t, -bobSats, testutil.GetWalletBalance(t, db, domain.DealerBtcWalletID))
	assert.Equal(t, int64(500), testutil.GetWalletBalance(t, db, domain.DealerUsdWalletID))

	assert.Empty(t, s.chain.payouts)
	assert.Zero(t, testutil.GetWalletBalance(t, db, domain.BankOwnerWalletID))
}

func TestPayOnChain_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupPaymentService(t, db, 0, limits.Config{})
	ctx := context.Background()

	alice := testutil.SeedTestAccount(t, db, "alice", "")
	testutil.FundWallet(t, db, alice.Btc, 1_000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.PayOnChainByWalletIDForBtcWallet(ctx, sendRequest(alice, alice.Btc, externalAddress, 700))
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInsufficientBalance), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(300), testutil.GetWalletBalance(t, db, alice.Btc.ID))
}

func TestPayOnChain_WithdrawalLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupPaymentService(t, db, 2_000, limits.Config{
		Withdrawal:        domain.Cents(6_000),
		Intraledger:       domain.Cents(6_000),
		TradeIntraAccount: domain.Cents(6_000),
	})
	ctx := context.Background()

	alice := testutil.SeedTestAccount(t, db, "alice", "")
	testutil.FundWallet(t, db, alice.Btc, 1_000_000)

	// 100_000 sats is about 5_000 cents; the second send crosses the limit.
	_, err := s.svc.PayOnChainByWalletIDForBtcWallet(ctx, sendRequest(alice, alice.Btc, externalAddress, 100_000))
	require.NoError(t, err)

	_, err = s.svc.PayOnChainByWalletIDForBtcWallet(ctx, sendRequest(alice, alice.Btc, externalAddress, 100_000))
	var limitErr *domain.LimitsExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, domain.LimitCategoryWithdrawal, limitErr.Category)
	assert.Len(t, s.chain.payouts, 1)
}
