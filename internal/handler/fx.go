package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
	"github.com/josh-kwaku/btc-wallet-core/internal/fx"
	"github.com/josh-kwaku/btc-wallet-core/internal/logging"
)

type rateService interface {
	DisplayPriceRatio(ctx context.Context, currency domain.DisplayCurrency) (fx.DisplayPriceRatio, error)
	Mid() fx.Converter
	HedgeBuyUsd() fx.Converter
	HedgeSellUsd() fx.Converter
}

type FXHandler struct {
	rates rateService
}

func NewFXHandler(rates rateService) *FXHandler {
	return &FXHandler{rates: rates}
}

type priceResponse struct {
	DisplayCurrency        string `json:"display_currency"`
	DisplayMinorUnitPerSat string `json:"display_minor_unit_per_sat"`
	BtcDisplayPrice        string `json:"btc_display_price"`
	MidCentsPerBtc         uint64 `json:"mid_cents_per_btc"`
	DealerBuyUsdCents      uint64 `json:"dealer_buy_usd_cents_per_btc"`
	DealerSellUsdCents     uint64 `json:"dealer_sell_usd_cents_per_btc"`
	Timestamp              string `json:"timestamp"`
}

var oneBtc = domain.Sats(100_000_000)

// GetPrice quotes one bitcoin in the requested display currency along with
// the dealer's USD quotes on both sides.
func (h *FXHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	currency := domain.DisplayCurrency(r.URL.Query().Get("display_currency"))
	if currency == "" {
		currency = domain.DisplayCurrencyUSD
	}
	if !currency.IsValid() {
		RespondValidationError(w, []FieldError{{Field: "display_currency", Message: "must be USD, EUR, or GBP"}})
		return
	}

	display, err := h.rates.DisplayPriceRatio(ctx, currency)
	if err != nil {
		logging.FromContext(ctx).Warn("price lookup failed", "display_currency", currency, "error", err)
		RespondDomainError(w, err)
		return
	}

	resp := priceResponse{
		DisplayCurrency:        string(currency),
		DisplayMinorUnitPerSat: display.DisplayMinorUnitPerWalletUnit().String(),
		BtcDisplayPrice:        display.ConvertFromWallet(oneBtc).DisplayInMajor,
		Timestamp:              time.Now().UTC().Format(time.RFC3339),
	}

	for _, q := range []struct {
		conv fx.Converter
		dst  *uint64
	}{
		{h.rates.Mid(), &resp.MidCentsPerBtc},
		{h.rates.HedgeBuyUsd(), &resp.DealerBuyUsdCents},
		{h.rates.HedgeSellUsd(), &resp.DealerSellUsdCents},
	} {
		usd, err := q.conv.UsdFromBtc(ctx, oneBtc)
		if err != nil {
			logging.FromContext(ctx).Warn("usd quote failed", "error", err)
			RespondDomainError(w, err)
			return
		}
		*q.dst = usd.Amount
	}

	RespondSuccess(w, http.StatusOK, resp)
}
