package promo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDiscount(t *testing.T) {
	tests := []struct {
		amount  string
		percent int
		want    string
	}{
		{amount: "1000", percent: 20, want: "200"},
		{amount: "0", percent: 50, want: "0"},
		{amount: "99.99", percent: 100, want: "99.99"},
		{amount: "10.05", percent: 50, want: "5.02"}, // 5.025 rounds to even
		{amount: "10.15", percent: 50, want: "5.08"}, // 5.075 rounds to even
		{amount: "33.33", percent: 15, want: "5"},    // 4.9995
		{amount: "749.5", percent: 18, want: "134.91"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := Discount(decimal.RequireFromString(tt.amount), tt.percent)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestCode_Valid(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	two := 2

	tests := []struct {
		name string
		code Code
		want bool
	}{
		{name: "active unexpired uncapped", code: Code{Active: true, ExpiresAt: now.Add(time.Minute)}, want: true},
		{name: "inactive", code: Code{ExpiresAt: now.Add(time.Minute)}, want: false},
		{name: "expires now", code: Code{Active: true, ExpiresAt: now}, want: false},
		{name: "below cap", code: Code{Active: true, ExpiresAt: now.Add(time.Minute), MaxUses: &two, UsedCount: 1}, want: true},
		{name: "at cap", code: Code{Active: true, ExpiresAt: now.Add(time.Minute), MaxUses: &two, UsedCount: 2}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Valid(now))
		})
	}
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, "SUMMER10", Canonical("  summer10\t"))
}
