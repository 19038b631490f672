package fx

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

// WalletPriceRatio converts between sats and cents at a frozen ratio. The
// default conversions round down, the ToCeil variants round up and are used
// for fees.
type WalletPriceRatio struct {
	usd decimal.Decimal
	btc decimal.Decimal
}

func NewWalletPriceRatio(usd domain.UsdPaymentAmount, btc domain.BtcPaymentAmount) (WalletPriceRatio, error) {
	if btc.IsZero() {
		return WalletPriceRatio{}, fmt.Errorf("NewWalletPriceRatio: %w", domain.ErrInvalidZeroAmountRatio)
	}
	return WalletPriceRatio{usd: fromUint(usd.Amount), btc: fromUint(btc.Amount)}, nil
}

func (r WalletPriceRatio) ConvertFromBtc(btc domain.BtcPaymentAmount) domain.UsdPaymentAmount {
	q, _ := mulDiv(btc.Amount, r.usd, r.btc)
	return domain.Cents(q)
}

func (r WalletPriceRatio) ConvertFromBtcToCeil(btc domain.BtcPaymentAmount) domain.UsdPaymentAmount {
	q, exact := mulDiv(btc.Amount, r.usd, r.btc)
	if !exact {
		q++
	}
	return domain.Cents(q)
}

func (r WalletPriceRatio) ConvertFromUsd(usd domain.UsdPaymentAmount) domain.BtcPaymentAmount {
	if r.usd.IsZero() {
		return domain.ZeroSats
	}
	q, _ := mulDiv(usd.Amount, r.btc, r.usd)
	return domain.Sats(q)
}

func (r WalletPriceRatio) ConvertFromUsdToCeil(usd domain.UsdPaymentAmount) domain.BtcPaymentAmount {
	if r.usd.IsZero() {
		return domain.ZeroSats
	}
	q, exact := mulDiv(usd.Amount, r.btc, r.usd)
	if !exact {
		q++
	}
	return domain.Sats(q)
}

// UsdPerSat is the ratio in cents per satoshi.
func (r WalletPriceRatio) UsdPerSat() decimal.Decimal {
	return r.usd.Div(r.btc)
}

// DisplayPriceRatio converts sats into the minor unit of a display currency.
type DisplayPriceRatio struct {
	minorPerSat decimal.Decimal
	currency    domain.DisplayCurrency
}

func NewDisplayPriceRatio(minorPerSat decimal.Decimal, currency domain.DisplayCurrency) (DisplayPriceRatio, error) {
	if !currency.IsValid() {
		return DisplayPriceRatio{}, fmt.Errorf("NewDisplayPriceRatio: %s: %w", currency, domain.ErrInvalidCurrency)
	}
	if minorPerSat.IsNegative() {
		return DisplayPriceRatio{}, fmt.Errorf("NewDisplayPriceRatio: negative price: %w", domain.ErrPriceUnavailable)
	}
	return DisplayPriceRatio{minorPerSat: minorPerSat, currency: currency}, nil
}

func (r DisplayPriceRatio) ConvertFromWallet(btc domain.BtcPaymentAmount) domain.DisplayAmount {
	minor := fromUint(btc.Amount).Mul(r.minorPerSat).Floor().IntPart()
	return domain.NewDisplayAmount(minor, r.currency)
}

func (r DisplayPriceRatio) ConvertFromWalletToCeil(btc domain.BtcPaymentAmount) domain.DisplayAmount {
	minor := fromUint(btc.Amount).Mul(r.minorPerSat).Ceil().IntPart()
	return domain.NewDisplayAmount(minor, r.currency)
}

func (r DisplayPriceRatio) ConvertFromDisplayMinorUnit(minor int64) domain.BtcPaymentAmount {
	if r.minorPerSat.IsZero() || minor <= 0 {
		return domain.ZeroSats
	}
	q, _ := saturate(decimal.NewFromInt(minor).Div(r.minorPerSat).Floor())
	return domain.Sats(q)
}

func (r DisplayPriceRatio) DisplayMinorUnitPerWalletUnit() decimal.Decimal { return r.minorPerSat }

func (r DisplayPriceRatio) DisplayCurrency() domain.DisplayCurrency { return r.currency }

func fromUint(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}

// mulDiv returns floor(n*num/den) and whether the division was exact.
func mulDiv(n uint64, num, den decimal.Decimal) (uint64, bool) {
	q, rem := fromUint(n).Mul(num).QuoRem(den, 0)
	v, ok := saturate(q)
	if !ok {
		// Reported exact so the ceil variants cannot wrap past the cap.
		return v, true
	}
	return v, rem.IsZero()
}

// saturate converts a non-negative integral decimal to uint64, capping at
// math.MaxUint64. ok is false when the cap was applied. A capped amount
// fails every balance and liquidity check downstream.
func saturate(d decimal.Decimal) (v uint64, ok bool) {
	b := d.BigInt()
	if !b.IsUint64() {
		return math.MaxUint64, false
	}
	return b.Uint64(), true
}
