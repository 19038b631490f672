package fx

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

const satsPerBtc = 100_000_000

var satsPerBtcDec = decimal.NewFromInt(satsPerBtc)

type PriceSource interface {
	// BtcPrice returns the price of one bitcoin in major units of currency.
	BtcPrice(ctx context.Context, currency domain.DisplayCurrency) (decimal.Decimal, error)
}

// Converter quotes one side of a sats/cents exchange.
type Converter interface {
	UsdFromBtc(ctx context.Context, btc domain.BtcPaymentAmount) (domain.UsdPaymentAmount, error)
	BtcFromUsd(ctx context.Context, usd domain.UsdPaymentAmount) (domain.BtcPaymentAmount, error)
}

// RateService builds a fresh price snapshot on every call. The dealer quotes
// apply spreadPct around the mid price in the dealer's favour.
type RateService struct {
	prices    PriceSource
	spreadPct decimal.Decimal
}

func NewRateService(prices PriceSource, spreadPct float64) *RateService {
	return &RateService{
		prices:    prices,
		spreadPct: decimal.NewFromFloat(spreadPct),
	}
}

func (s *RateService) MidPriceRatio(ctx context.Context) (WalletPriceRatio, error) {
	centsPerSat, err := s.minorPerSat(ctx, domain.DisplayCurrencyUSD)
	if err != nil {
		return WalletPriceRatio{}, fmt.Errorf("MidPriceRatio: %w", err)
	}
	centsPerBtc := centsPerSat.Mul(satsPerBtcDec).Round(0)
	if !centsPerBtc.IsPositive() {
		return WalletPriceRatio{}, fmt.Errorf("MidPriceRatio: %w", domain.ErrPriceUnavailable)
	}
	ratio, err := NewWalletPriceRatio(domain.Cents(centsPerBtc.BigInt().Uint64()), domain.Sats(satsPerBtc))
	if err != nil {
		return WalletPriceRatio{}, fmt.Errorf("MidPriceRatio: %w", err)
	}
	return ratio, nil
}

func (s *RateService) DisplayPriceRatio(ctx context.Context, currency domain.DisplayCurrency) (DisplayPriceRatio, error) {
	minorPerSat, err := s.minorPerSat(ctx, currency)
	if err != nil {
		return DisplayPriceRatio{}, fmt.Errorf("DisplayPriceRatio: %w", err)
	}
	ratio, err := NewDisplayPriceRatio(minorPerSat, currency)
	if err != nil {
		return DisplayPriceRatio{}, fmt.Errorf("DisplayPriceRatio: %w", err)
	}
	return ratio, nil
}

func (s *RateService) minorPerSat(ctx context.Context, currency domain.DisplayCurrency) (decimal.Decimal, error) {
	if !currency.IsValid() {
		return decimal.Zero, fmt.Errorf("minorPerSat: %s: %w", currency, domain.ErrInvalidCurrency)
	}
	price, err := s.prices.BtcPrice(ctx, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("minorPerSat: %w", err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("minorPerSat: %s: %w", currency, domain.ErrPriceUnavailable)
	}
	exp := decimal.New(1, currency.Exponent())
	return price.Mul(exp).Div(satsPerBtcDec), nil
}

// Mid quotes at the mid price, rounding down both ways.
func (s *RateService) Mid() Converter { return quote{s: s, side: sideMid} }

// HedgeBuyUsd quotes a BTC holder buying USD from the dealer.
func (s *RateService) HedgeBuyUsd() Converter { return quote{s: s, side: sideBuyUsd} }

// HedgeSellUsd quotes a USD holder selling USD to the dealer.
func (s *RateService) HedgeSellUsd() Converter { return quote{s: s, side: sideSellUsd} }

type quoteSide int

const (
	sideMid quoteSide = iota
	sideBuyUsd
	sideSellUsd
)

type quote struct {
	s    *RateService
	side quoteSide
}

func (q quote) centsPerSat(ctx context.Context) (decimal.Decimal, error) {
	mid, err := q.s.minorPerSat(ctx, domain.DisplayCurrencyUSD)
	if err != nil {
		return decimal.Zero, err
	}
	switch q.side {
	case sideBuyUsd:
		return mid.Mul(decimal.NewFromInt(1).Sub(q.s.spreadPct)), nil
	case sideSellUsd:
		return mid.Mul(decimal.NewFromInt(1).Add(q.s.spreadPct)), nil
	default:
		return mid, nil
	}
}

func (q quote) UsdFromBtc(ctx context.Context, btc domain.BtcPaymentAmount) (domain.UsdPaymentAmount, error) {
	price, err := q.centsPerSat(ctx)
	if err != nil {
		return domain.ZeroCents, fmt.Errorf("UsdFromBtc: %w", err)
	}
	cents := fromUint(btc.Amount).Mul(price)
	// Selling USD: the user owes cents for the sats received, round up.
	if q.side == sideSellUsd {
		return domain.Cents(cents.Ceil().BigInt().Uint64()), nil
	}
	return domain.Cents(cents.Floor().BigInt().Uint64()), nil
}

func (q quote) BtcFromUsd(ctx context.Context, usd domain.UsdPaymentAmount) (domain.BtcPaymentAmount, error) {
	price, err := q.centsPerSat(ctx)
	if err != nil {
		return domain.ZeroSats, fmt.Errorf("BtcFromUsd: %w", err)
	}
	if !price.IsPositive() {
		return domain.ZeroSats, fmt.Errorf("BtcFromUsd: %w", domain.ErrPriceUnavailable)
	}
	sats := fromUint(usd.Amount).Div(price)
	// Buying USD: the user pays sats for the cents received, round up.
	if q.side == sideBuyUsd {
		return domain.Sats(sats.Ceil().BigInt().Uint64()), nil
	}
	return domain.Sats(sats.Floor().BigInt().Uint64()), nil
}

// StaticPrices serves configured BTC prices in major units.
type StaticPrices map[domain.DisplayCurrency]decimal.Decimal

func (p StaticPrices) BtcPrice(_ context.Context, currency domain.DisplayCurrency) (decimal.Decimal, error) {
	price, ok := p[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("BtcPrice: %s: %w", currency, domain.ErrPriceUnavailable)
	}
	return price, nil
}
