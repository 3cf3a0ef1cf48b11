package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		code   string
		want   string
	}{
		{name: "in-house JDC", amount: "100", code: JDC, want: "J$100.00"},
		{name: "in-house IO", amount: "1500.5", code: IO, want: "1,500.50 IO"},
		{name: "rounds to fraction", amount: "0.335", code: JDC, want: "J$0.34"},
		{name: "unknown code falls back", amount: "7.5", code: "ZZZ", want: "7.5 ZZZ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(decimal.RequireFromString(tt.amount), tt.code)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("JDC"))
	assert.True(t, Known("io"))
	assert.True(t, Known("RUB"))
	assert.False(t, Known("ZZZ"))
}
