package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                   = errors.New("not found")
	ErrWalletNotFound             = errors.New("wallet not found")
	ErrAccountNotFound            = errors.New("account not found")
	ErrUserNotFound               = errors.New("user not found")
	ErrRecipientNotFound          = errors.New("recipient not found")
	ErrInvalidCurrency            = errors.New("invalid currency")
	ErrInvalidAmount              = errors.New("amount must be greater than zero")
	ErrNegativeAmount             = errors.New("amount would be negative")
	ErrInvalidAddress             = errors.New("invalid on-chain address")
	ErrInvalidTargetConfirmations = errors.New("invalid target confirmations")
	ErrLessThanDustThreshold      = errors.New("amount below dust threshold")
	ErrSelfPayment                = errors.New("cannot pay to the sending wallet")
	ErrInactiveAccount            = errors.New("account is not active")
	ErrInvalidRequest             = errors.New("invalid request")
	ErrInvalidPaymentFlowState    = errors.New("invalid payment flow state")
	ErrInvalidZeroAmountRatio     = errors.New("price ratio requires a non-zero btc amount")
	ErrInsufficientBalance        = errors.New("insufficient balance")
	ErrInsufficientOnChainFunds   = errors.New("insufficient on-chain funds")
	ErrCPFPAncestorLimitReached   = errors.New("cpfp ancestor limit reached")
	ErrLimitsExceeded             = errors.New("limits exceeded")
	ErrResourceExpiredLock        = errors.New("wallet lock expired")
	ErrLockAcquireTimeout         = errors.New("timed out acquiring wallet lock")
	ErrPriceUnavailable           = errors.New("price unavailable")
	ErrJournalAlreadyReverted     = errors.New("journal already reverted")
	ErrUnbalancedJournal          = errors.New("journal entries do not balance")
)

type LimitCategory string

const (
	LimitCategoryWithdrawal        LimitCategory = "withdrawal"
	LimitCategoryIntraledger       LimitCategory = "intraledger"
	LimitCategoryTradeIntraAccount LimitCategory = "trade_intra_account"
)

// LimitsExceededError reports the remaining allowance in USD cents for the
// rolling window of Category.
type LimitsExceededError struct {
	Category  LimitCategory
	Limit     UsdPaymentAmount
	Remaining UsdPaymentAmount
}

func (e *LimitsExceededError) Error() string {
	return fmt.Sprintf("%s limit of %d cents exceeded, %d cents remaining", e.Category, e.Limit.Amount, e.Remaining.Amount)
}

func (e *LimitsExceededError) Unwrap() error { return ErrLimitsExceeded }

type InsufficientBalanceError struct {
	Balance  WalletAmount
	Required WalletAmount
}

func (e *InsufficientBalanceError) Error() string {
	if e.Balance.Amount == 0 && e.Required.Amount == 0 {
		return "no balance left to send"
	}
	return fmt.Sprintf("payment amount %d %s exceeds balance %d", e.Required.Amount, e.Required.Currency, e.Balance.Amount)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
