package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
)

// PriceClient reads BTC mid prices from the price service over HTTP.
type PriceClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewPriceClient(baseURL string) *PriceClient {
	return &PriceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type pricesResponse struct {
	Prices    map[string]decimal.Decimal `json:"prices"`
	Timestamp time.Time                  `json:"timestamp"`
}

func (c *PriceClient) BtcPrice(ctx context.Context, currency domain.DisplayCurrency) (decimal.Decimal, error) {
	log := logging.FromContext(ctx)

	url := c.baseURL + "/v1/prices/btc"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("BtcPrice: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("BtcPrice: send: %w", err)
	}
	defer resp.Body.Close()

	log.Debug("price service response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("BtcPrice: unexpected status %d: %s: %w", resp.StatusCode, string(body), domain.ErrPriceUnavailable)
	}

	var payload pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("BtcPrice: decode: %w", err)
	}

	price, ok := payload.Prices[string(currency)]
	if !ok {
		return decimal.Zero, fmt.Errorf("BtcPrice: %s: %w", currency, domain.ErrPriceUnavailable)
	}
	return price, nil
}
