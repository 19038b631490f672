package domain

import "github.com/shopspring/decimal"

// DisplayPriceOffset is the number of decimal places kept in a
// WalletMinorUnitDisplayPrice base.
const DisplayPriceOffset int32 = 12

type DisplayAmount struct {
	AmountInMinor  int64
	Currency       DisplayCurrency
	DisplayInMajor string
}

func NewDisplayAmount(minor int64, currency DisplayCurrency) DisplayAmount {
	exp := currency.Exponent()
	return DisplayAmount{
		AmountInMinor:  minor,
		Currency:       currency,
		DisplayInMajor: decimal.New(minor, -exp).StringFixed(exp),
	}
}

// WalletMinorUnitDisplayPrice is the price of one wallet base unit in display
// minor units, as Base * 10^-Offset.
type WalletMinorUnitDisplayPrice struct {
	Base            int64
	Offset          int32
	DisplayCurrency DisplayCurrency
	WalletCurrency  WalletCurrency
}

func NewWalletMinorUnitDisplayPrice(priceInMinorUnit decimal.Decimal, display DisplayCurrency, wallet WalletCurrency) WalletMinorUnitDisplayPrice {
	return WalletMinorUnitDisplayPrice{
		Base:            priceInMinorUnit.Shift(DisplayPriceOffset).Round(0).IntPart(),
		Offset:          DisplayPriceOffset,
		DisplayCurrency: display,
		WalletCurrency:  wallet,
	}
}

func (p WalletMinorUnitDisplayPrice) Decimal() decimal.Decimal {
	return decimal.New(p.Base, -p.Offset)
}
