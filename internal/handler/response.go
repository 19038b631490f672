package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

type limitDetails struct {
	Category       string `json:"category"`
	LimitCents     uint64 `json:"limit_cents"`
	RemainingCents uint64 `json:"remaining_cents"`
}

func RespondDomainError(w http.ResponseWriter, err error) {
	var limitErr *domain.LimitsExceededError
	if errors.As(err, &limitErr) {
		RespondAppError(w, ErrLimitsExceeded, limitDetails{
			Category:       string(limitErr.Category),
			LimitCents:     limitErr.Limit.Amount,
			RemainingCents: limitErr.Remaining.Amount,
		})
		return
	}

	var appErr *AppError
	switch {
	case errors.Is(err, domain.ErrWalletNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrRecipientNotFound),
		errors.Is(err, domain.ErrNotFound):
		appErr = ErrResourceNotFound
	case errors.Is(err, domain.ErrInsufficientBalance):
		appErr = ErrInsufficientBalance
	case errors.Is(err, domain.ErrInsufficientOnChainFunds):
		appErr = ErrInsufficientOnChainFunds
	case errors.Is(err, domain.ErrCPFPAncestorLimitReached):
		appErr = ErrRebroadcastLimit
	case errors.Is(err, domain.ErrInvalidAddress):
		appErr = ErrInvalidAddress
	case errors.Is(err, domain.ErrInvalidTargetConfirmations):
		appErr = ErrInvalidTargetConfirmations
	case errors.Is(err, domain.ErrLessThanDustThreshold):
		appErr = ErrDustAmount
	case errors.Is(err, domain.ErrSelfPayment):
		appErr = ErrSelfPayment
	case errors.Is(err, domain.ErrInactiveAccount):
		appErr = ErrInactiveAccount
	case errors.Is(err, domain.ErrInvalidAmount):
		appErr = ErrInvalidAmount
	case errors.Is(err, domain.ErrInvalidCurrency):
		appErr = ErrInvalidCurrency
	case errors.Is(err, domain.ErrLockAcquireTimeout),
		errors.Is(err, domain.ErrResourceExpiredLock):
		appErr = ErrWalletBusy
	case errors.Is(err, domain.ErrPriceUnavailable):
		appErr = ErrPriceUnavailable
	case errors.Is(err, domain.ErrInvalidRequest):
		appErr = ErrInvalidRequest
	default:
		slog.Error("unhandled domain error", "error", err)
		appErr = ErrInternalError
	}

	RespondAppError(w, appErr, nil)
}
