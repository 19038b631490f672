package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "success"},
		{err: &domain.InsufficientBalanceError{}, want: "insufficient_balance"},
		{err: fmt.Errorf("PayToAddress: %w", domain.ErrInsufficientOnChainFunds), want: "insufficient_onchain_funds"},
		{err: &domain.LimitsExceededError{Category: domain.LimitCategoryWithdrawal}, want: "limits_exceeded"},
		{err: fmt.Errorf("wrapped: %w", domain.ErrResourceExpiredLock), want: "lock_expired"},
		{err: domain.ErrLessThanDustThreshold, want: "invalid"},
		{err: errors.New("something else"), want: "error"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, Outcome(tc.err))
	}
}

func TestObservePayment(t *testing.T) {
	before := testutil.ToFloat64(paymentsTotal.WithLabelValues("onchain", "success"))
	ObservePayment(domain.SettlementMethodOnChain, nil, 0.2)
	after := testutil.ToFloat64(paymentsTotal.WithLabelValues("onchain", "success"))
	assert.Equal(t, before+1, after)
}

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.CollectAndCount(httpRequests)
	ObserveHTTPRequest("GET", "", 404, 0.01)
	ObserveHTTPRequest("GET", "", 404, 0.02)
	assert.Equal(t, before+1, testutil.CollectAndCount(httpRequests))
}
