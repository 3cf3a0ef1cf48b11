// Package uuid generates the identifiers used across the ledger.
package uuid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	googleuuid "github.com/google/uuid"
)

// New generates a time-ordered UUIDv7 string. Ledger ids sort in creation
// order, which keeps the transaction log readable in the raw store.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fallback to standard UUIDv4 if random generation fails
		return googleuuid.New().String()
	}
	return id.String()
}

// AccountNumber returns a new account number of the form
// ACC<unix millis><0-999>.
func AccountNumber(now time.Time) string {
	suffix := int64(0)
	if n, err := rand.Int(rand.Reader, big.NewInt(1000)); err == nil {
		suffix = n.Int64()
	}
	return fmt.Sprintf("ACC%d%d", now.UnixMilli(), suffix)
}

// Parse validates and parses a UUID string
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid checks if a string is a valid UUID
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
