package domain

import "fmt"

type WalletCurrency string

const (
	WalletCurrencyBTC WalletCurrency = "BTC"
	WalletCurrencyUSD WalletCurrency = "USD"
)

func (c WalletCurrency) IsValid() bool {
	switch c {
	case WalletCurrencyBTC, WalletCurrencyUSD:
		return true
	}
	return false
}

// BTC and USD tag PaymentAmount so that sats and cents cannot be mixed
// without going through a price ratio.
type BTC struct{}

type USD struct{}

func (BTC) WalletCurrency() WalletCurrency { return WalletCurrencyBTC }
func (USD) WalletCurrency() WalletCurrency { return WalletCurrencyUSD }

type Currency interface {
	BTC | USD
	WalletCurrency() WalletCurrency
}

// PaymentAmount is an amount in base units (sats or cents).
type PaymentAmount[C Currency] struct {
	Amount uint64
}

type BtcPaymentAmount = PaymentAmount[BTC]

type UsdPaymentAmount = PaymentAmount[USD]

var (
	ZeroSats  = BtcPaymentAmount{}
	ZeroCents = UsdPaymentAmount{}
)

func Sats(n uint64) BtcPaymentAmount  { return BtcPaymentAmount{Amount: n} }
func Cents(n uint64) UsdPaymentAmount { return UsdPaymentAmount{Amount: n} }

func (a PaymentAmount[C]) Currency() WalletCurrency {
	var c C
	return c.WalletCurrency()
}

func (a PaymentAmount[C]) IsZero() bool { return a.Amount == 0 }

func (a PaymentAmount[C]) Add(b PaymentAmount[C]) PaymentAmount[C] {
	return PaymentAmount[C]{Amount: a.Amount + b.Amount}
}

func (a PaymentAmount[C]) Sub(b PaymentAmount[C]) (PaymentAmount[C], error) {
	if b.Amount > a.Amount {
		return PaymentAmount[C]{}, fmt.Errorf("Sub: %d - %d %s: %w", a.Amount, b.Amount, a.Currency(), ErrNegativeAmount)
	}
	return PaymentAmount[C]{Amount: a.Amount - b.Amount}, nil
}

func (a PaymentAmount[C]) LessThan(b PaymentAmount[C]) bool { return a.Amount < b.Amount }

func (a PaymentAmount[C]) Wallet() WalletAmount {
	return WalletAmount{Amount: a.Amount, Currency: a.Currency()}
}

func (a PaymentAmount[C]) String() string {
	return fmt.Sprintf("%d %s", a.Amount, a.Currency())
}

// WalletAmount carries its currency at runtime, for balances of wallets
// whose currency is only known after loading them.
type WalletAmount struct {
	Amount   uint64
	Currency WalletCurrency
}

func (w WalletAmount) Btc() (BtcPaymentAmount, error) {
	if w.Currency != WalletCurrencyBTC {
		return ZeroSats, fmt.Errorf("Btc: got %s: %w", w.Currency, ErrInvalidCurrency)
	}
	return Sats(w.Amount), nil
}

func (w WalletAmount) Usd() (UsdPaymentAmount, error) {
	if w.Currency != WalletCurrencyUSD {
		return ZeroCents, fmt.Errorf("Usd: got %s: %w", w.Currency, ErrInvalidCurrency)
	}
	return Cents(w.Amount), nil
}

// PaymentAmounts holds the same value in both wallet currencies.
type PaymentAmounts struct {
	Btc BtcPaymentAmount
	Usd UsdPaymentAmount
}

func (p PaymentAmounts) Add(o PaymentAmounts) PaymentAmounts {
	return PaymentAmounts{Btc: p.Btc.Add(o.Btc), Usd: p.Usd.Add(o.Usd)}
}

func (p PaymentAmounts) In(c WalletCurrency) WalletAmount {
	if c == WalletCurrencyUSD {
		return p.Usd.Wallet()
	}
	return p.Btc.Wallet()
}

type DisplayCurrency string

const (
	DisplayCurrencyUSD DisplayCurrency = "USD"
	DisplayCurrencyEUR DisplayCurrency = "EUR"
	DisplayCurrencyGBP DisplayCurrency = "GBP"
)

var displayExponents = map[DisplayCurrency]int32{
	DisplayCurrencyUSD: 2,
	DisplayCurrencyEUR: 2,
	DisplayCurrencyGBP: 2,
}

func (c DisplayCurrency) IsValid() bool {
	_, ok := displayExponents[c]
	return ok
}

// Exponent is the number of minor-unit digits. Unknown currencies use 2.
func (c DisplayCurrency) Exponent() int32 {
	if e, ok := displayExponents[c]; ok {
		return e
	}
	return 2
}
