package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

func TestPriceClient_BtcPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/prices/btc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prices":{"USD":"60000.50","EUR":55000},"timestamp":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	client := NewPriceClient(srv.URL)
	ctx := context.Background()

	price, err := client.BtcPrice(ctx, domain.DisplayCurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, "60000.5", price.String())

	price, err = client.BtcPrice(ctx, domain.DisplayCurrencyEUR)
	require.NoError(t, err)
	assert.Equal(t, "55000", price.String())

	_, err = client.BtcPrice(ctx, domain.DisplayCurrencyGBP)
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestPriceClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "feed down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewPriceClient(srv.URL).BtcPrice(context.Background(), domain.DisplayCurrencyUSD)
	require.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestRateService_WithPriceClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prices":{"USD":"60000"}}`))
	}))
	defer srv.Close()

	svc := NewRateService(NewPriceClient(srv.URL), 0)
	cents, err := svc.Mid().UsdFromBtc(context.Background(), domain.Sats(1000))
	require.NoError(t, err)
	assert.Equal(t, uint64(60), cents.Amount)
}
