package onchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
)

// Error codes the wallet service returns with a 422 on payout.
const (
	codeInsufficientFunds = "insufficient_funds"
	codeAncestorLimit     = "cpfp_ancestor_limit"
)

// Client talks to the hot-wallet service that holds the on-chain funds.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type balanceResponse struct {
	Sats uint64 `json:"sats"`
}

type payoutRequest struct {
	Address             string `json:"address"`
	Sats                uint64 `json:"sats"`
	TargetConfirmations int    `json:"target_confirmations"`
	Description         string `json:"description"`
}

type payoutResponse struct {
	TxHash string `json:"tx_hash"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type feeResponse struct {
	FeeSats uint64 `json:"fee_sats"`
}

type incomingResponse struct {
	Transactions []struct {
		TxHash    string    `json:"tx_hash"`
		CreatedAt time.Time `json:"created_at"`
		Outs      []struct {
			Sats    uint64 `json:"sats"`
			Address string `json:"address"`
		} `json:"outs"`
	} `json:"transactions"`
}

func (c *Client) GetBalanceAmount(ctx context.Context) (domain.BtcPaymentAmount, error) {
	var out balanceResponse
	if err := c.get(ctx, "/v1/balance", nil, &out); err != nil {
		return domain.ZeroSats, fmt.Errorf("GetBalanceAmount: %w", err)
	}
	return domain.Sats(out.Sats), nil
}

func (c *Client) PayToAddress(ctx context.Context, args PayToAddressArgs) (string, error) {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(payoutRequest{
		Address:             args.Address,
		Sats:                args.Amount.Amount,
		TargetConfirmations: args.TargetConfirmations,
		Description:         args.Description,
	})
	if err != nil {
		return "", fmt.Errorf("PayToAddress: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payouts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("PayToAddress: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("PayToAddress: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("wallet service payout response",
		"status", resp.StatusCode,
		"description", args.Description,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var out payoutResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", fmt.Errorf("PayToAddress: decode: %w", err)
		}
		return out.TxHash, nil
	case http.StatusUnprocessableEntity:
		var e errorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e); err != nil {
			return "", fmt.Errorf("PayToAddress: decode error: %w", err)
		}
		switch e.Code {
		case codeInsufficientFunds:
			return "", fmt.Errorf("PayToAddress: %s: %w", e.Message, domain.ErrInsufficientOnChainFunds)
		case codeAncestorLimit:
			return "", fmt.Errorf("PayToAddress: %s: %w", e.Message, domain.ErrCPFPAncestorLimitReached)
		}
		return "", fmt.Errorf("PayToAddress: rejected %s: %s", e.Code, e.Message)
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return "", fmt.Errorf("PayToAddress: unexpected status %d: %s", resp.StatusCode, string(respBody))
}

// GetOnChainFeeEstimate asks the wallet service what mining a payout of
// amount to address would cost at the given confirmation target.
func (c *Client) GetOnChainFeeEstimate(ctx context.Context, address string, amount domain.BtcPaymentAmount, targetConfirmations int) (domain.BtcPaymentAmount, error) {
	q := url.Values{
		"address":              {address},
		"sats":                 {strconv.FormatUint(amount.Amount, 10)},
		"target_confirmations": {strconv.Itoa(targetConfirmations)},
	}
	var out feeResponse
	if err := c.get(ctx, "/v1/fee-estimate", q, &out); err != nil {
		return domain.ZeroSats, fmt.Errorf("GetOnChainFeeEstimate: %w", err)
	}
	return domain.Sats(out.FeeSats), nil
}

func (c *Client) LookupOnChainFee(ctx context.Context, txHash string, scanDepth int) (domain.BtcPaymentAmount, error) {
	q := url.Values{"scan_depth": {strconv.Itoa(scanDepth)}}
	var out feeResponse
	if err := c.get(ctx, "/v1/transactions/"+url.PathEscape(txHash)+"/fee", q, &out); err != nil {
		return domain.ZeroSats, fmt.Errorf("LookupOnChainFee: %w", err)
	}
	return domain.Sats(out.FeeSats), nil
}

// ListIncomingTransactions returns unconfirmed incoming transactions seen
// within scanDepth blocks.
func (c *Client) ListIncomingTransactions(ctx context.Context, scanDepth int) ([]domain.IncomingOnChainTransaction, error) {
	q := url.Values{"scan_depth": {strconv.Itoa(scanDepth)}}
	var out incomingResponse
	if err := c.get(ctx, "/v1/incoming", q, &out); err != nil {
		return nil, fmt.Errorf("ListIncomingTransactions: %w", err)
	}

	txs := make([]domain.IncomingOnChainTransaction, 0, len(out.Transactions))
	for _, t := range out.Transactions {
		tx := domain.IncomingOnChainTransaction{TxHash: t.TxHash, CreatedAt: t.CreatedAt}
		for _, o := range t.Outs {
			tx.Outs = append(tx.Outs, domain.TxOut{Sats: o.Sats, Address: o.Address})
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
