package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     string
	}{
		{"euro", "12.5", "EUR", "€ 12,50"},
		{"dollar", "3", "USD", "$ 3,00"},
		{"franc", "1234.56", "CHF", "CHF 1234,56"},
		{"unknown code passes through", "0.1", "SEK", "SEK 0,10"},
		{"rounds to two decimals", "9.999", "EUR", "€ 10,00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.amount), tt.currency))
		})
	}
}

func TestParseMinorUnits_RoundTrip(t *testing.T) {
	formatted := FormatAmount(decimal.RequireFromString("12.50"), "EUR")
	minor, err := ParseMinorUnits(formatted)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), minor)
	assert.Equal(t, MinorUnits(decimal.RequireFromString("12.5")), minor)

	_, err = ParseMinorUnits("€ ,")
	require.Error(t, err)
}

func TestCeilMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1250), CeilMinorUnits(decimal.RequireFromString("12.5")))
	assert.Equal(t, int64(1001), CeilMinorUnits(decimal.RequireFromString("10.001")))
	assert.Equal(t, int64(1000), MinorUnits(decimal.RequireFromString("10.001")))
}
