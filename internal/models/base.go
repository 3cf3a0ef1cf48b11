package models

import "strings"

// Row carries the store position of a record that can be updated in place.
// Append-only records leave it zero.
type Row struct {
	Ref int `json:"-"`
}

// System pseudo-accounts. They are valid counterparties for the transaction
// log but have no balance row; money entering or leaving the bank passes
// through them.
const (
	SystemBank          = "BANK"
	SystemStockExchange = "STOCK_EXCHANGE"
	billProviderPrefix  = "BILL_PROVIDER:"
)

// BillProviderRef returns the pseudo-account reference for a bill provider.
func BillProviderRef(provider string) string {
	return billProviderPrefix + provider
}

// IsSystemRef reports whether ref names a system pseudo-account.
func IsSystemRef(ref string) bool {
	switch {
	case ref == SystemBank, ref == SystemStockExchange:
		return true
	case strings.HasPrefix(ref, billProviderPrefix) && len(ref) > len(billProviderPrefix):
		return true
	}
	return false
}
