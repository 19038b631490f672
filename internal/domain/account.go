package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatus string

const (
	AccountStatusPending AccountStatus = "pending"
	AccountStatusActive  AccountStatus = "active"
	AccountStatusLocked  AccountStatus = "locked"
	AccountStatusClosed  AccountStatus = "closed"
)

type AccountRole string

const (
	AccountRoleUser      AccountRole = "user"
	AccountRoleBankOwner AccountRole = "bank_owner"
	AccountRoleDealer    AccountRole = "dealer"
	AccountRoleFunder    AccountRole = "funder"
)

type Account struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Username        string
	Role            AccountRole
	Status          AccountStatus
	DefaultWalletID uuid.UUID
	DisplayCurrency DisplayCurrency
	// WithdrawFee overrides the configured minimum bank fee when set.
	WithdrawFee *uint64
	CreatedAt   time.Time
}

func (a *Account) IsActive() bool { return a.Status == AccountStatusActive }

func (a *Account) IsEndUser() bool { return a.Role == AccountRoleUser }

type WalletType string

const (
	WalletTypeChecking WalletType = "checking"
)

type Wallet struct {
	ID               uuid.UUID
	AccountID        uuid.UUID
	Type             WalletType
	Currency         WalletCurrency
	OnChainAddresses []string
	CreatedAt        time.Time
}

func (w *Wallet) Descriptor() WalletDescriptor {
	return WalletDescriptor{ID: w.ID, Currency: w.Currency, AccountID: w.AccountID}
}

// WalletDescriptor identifies a wallet without its balance.
type WalletDescriptor struct {
	ID        uuid.UUID
	Currency  WalletCurrency
	AccountID uuid.UUID
}

// System accounts and wallets seeded by migrations. Their ledger rows never
// belong to an end user.
var (
	BankOwnerAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	DealerAccountID    = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	BankOwnerWalletID = uuid.MustParse("00000000-0000-0000-0001-000000000001")
	DealerBtcWalletID = uuid.MustParse("00000000-0000-0000-0001-000000000002")
	DealerUsdWalletID = uuid.MustParse("00000000-0000-0000-0001-000000000003")
)

func NonEndUserWalletIDs() []uuid.UUID {
	return []uuid.UUID{BankOwnerWalletID, DealerBtcWalletID, DealerUsdWalletID}
}
