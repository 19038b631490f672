package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrIdempotencyConflict = &AppError{http.StatusConflict, "IDEMPOTENCY_CONFLICT", "Idempotency key reused with a different request"}

	ErrInvalidAmount              = &AppError{http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero"}
	ErrInvalidCurrency            = &AppError{http.StatusBadRequest, "INVALID_CURRENCY", "Invalid currency"}
	ErrInvalidAddress             = &AppError{http.StatusBadRequest, "INVALID_ADDRESS", "Invalid on-chain address"}
	ErrInvalidTargetConfirmations = &AppError{http.StatusBadRequest, "INVALID_TARGET_CONFIRMATIONS", "Target confirmations must be between 1 and 1008"}
	ErrDustAmount                 = &AppError{http.StatusUnprocessableEntity, "LESS_THAN_DUST_THRESHOLD", "Amount is below the dust threshold"}
	ErrSelfPayment                = &AppError{http.StatusUnprocessableEntity, "SELF_PAYMENT_NOT_ALLOWED", "Cannot pay to the sending wallet"}
	ErrInactiveAccount            = &AppError{http.StatusUnprocessableEntity, "INACTIVE_ACCOUNT", "Account is not active"}
	ErrInsufficientBalance        = &AppError{http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Insufficient balance"}
	ErrInsufficientOnChainFunds   = &AppError{http.StatusServiceUnavailable, "INSUFFICIENT_ONCHAIN_FUNDS", "On-chain payouts are temporarily unavailable"}
	ErrRebroadcastLimit           = &AppError{http.StatusServiceUnavailable, "CPFP_ANCESTOR_LIMIT", "Too many unconfirmed payouts, retry later"}
	ErrLimitsExceeded             = &AppError{http.StatusUnprocessableEntity, "LIMITS_EXCEEDED", "Transaction limit exceeded"}
	ErrWalletBusy                 = &AppError{http.StatusConflict, "WALLET_BUSY", "Wallet is busy, please retry"}
	ErrPriceUnavailable           = &AppError{http.StatusServiceUnavailable, "PRICE_UNAVAILABLE", "Price is unavailable"}
)
