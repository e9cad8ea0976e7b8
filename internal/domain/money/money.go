// Package money defines the value types used throughout the ledger: a
// currency allowlist and a non-negative minor-unit balance.
package money

import (
	"errors"
	"fmt"
)

// Currency is a three-letter ISO-4217 code validated against a static
// allowlist rather than parsed freely -- the core never needs to know about
// a currency it can't also settle in.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	BRL Currency = "BRL"
	NOK Currency = "NOK"
)

var validCurrencies = map[Currency]bool{
	USD: true,
	EUR: true,
	GBP: true,
	JPY: true,
	BRL: true,
	NOK: true,
}

var ErrUnknownCurrency = errors.New("unknown currency")
var ErrNegativeAmount = errors.New("amount must be non-negative")

func (c Currency) Valid() bool {
	return validCurrencies[c]
}

// Balance is a signed integer amount of minor units (e.g. cents) tagged with
// a currency. Minor units avoid float rounding entirely.
type Balance struct {
	AmountMinorUnits int64
	Currency         Currency
}

// New constructs a Balance, rejecting negative amounts and unknown currencies.
func New(amountMinorUnits int64, currency Currency) (Balance, error) {
	if amountMinorUnits < 0 {
		return Balance{}, ErrNegativeAmount
	}
	if !currency.Valid() {
		return Balance{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	return Balance{AmountMinorUnits: amountMinorUnits, Currency: currency}, nil
}

// Zero returns the zero balance in the given currency.
func Zero(currency Currency) Balance {
	return Balance{AmountMinorUnits: 0, Currency: currency}
}

func (b Balance) IsZero() bool {
	return b.AmountMinorUnits == 0
}

func (b Balance) SameCurrency(other Balance) bool {
	return b.Currency == other.Currency
}

// Add returns b+other. Callers must have already checked SameCurrency.
func (b Balance) Add(other Balance) Balance {
	return Balance{AmountMinorUnits: b.AmountMinorUnits + other.AmountMinorUnits, Currency: b.Currency}
}

// Sub returns b-other. Callers must have already checked SameCurrency.
func (b Balance) Sub(other Balance) Balance {
	return Balance{AmountMinorUnits: b.AmountMinorUnits - other.AmountMinorUnits, Currency: b.Currency}
}

func (b Balance) GreaterOrEqual(other Balance) bool {
	return b.AmountMinorUnits >= other.AmountMinorUnits
}

func (b Balance) String() string {
	return fmt.Sprintf("%d %s", b.AmountMinorUnits, b.Currency)
}
