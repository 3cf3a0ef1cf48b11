// Package currency knows the bank's currencies and formats amounts for
// people. Ledger arithmetic never goes through here; it stays in decimals.
package currency

import (
	"strings"
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Bank currencies. JDC and IO are in-house units not known to ISO 4217.
const (
	JDC = "JDC"
	IO  = "IO"
	RUB = "RUB"
)

var registerOnce sync.Once

// Register adds the in-house currencies to go-money's registry. It is safe
// to call more than once.
func Register() {
	registerOnce.Do(func() {
		money.AddCurrency(JDC, "J$", "$1", ".", ",", 2)
		money.AddCurrency(IO, "IO", "1 $", ".", ",", 2)
	})
}

// Known reports whether code is a currency the formatter understands.
func Known(code string) bool {
	Register()
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// Format renders amount in code with the currency's grapheme and fraction
// digits, for example "J$100.00" or "1,500.00 ₽".
func Format(amount decimal.Decimal, code string) string {
	Register()
	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.String() + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
