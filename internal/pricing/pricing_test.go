package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dtt(v string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(v), Valid: true}
}

func TestCalculateSalePriceOrange(t *testing.T) {
	calc := NewCalculatorFromFloats(1.10, map[string]float64{"Orange": 1.10})

	price := calc.CalculateSalePrice(dtt("2860"), "Orange")
	require.True(t, price.Valid)
	assert.True(t, price.Decimal.Equal(decimal.NewFromInt(2_600_000)), "got %s", price.Decimal)

	price = calc.CalculateSalePrice(dtt("15400"), "orange county")
	require.True(t, price.Valid)
	assert.True(t, price.Decimal.Equal(decimal.NewFromInt(14_000_000)), "got %s", price.Decimal)
}

func TestCalculateSalePriceExempt(t *testing.T) {
	calc := NewCalculator(DefaultRate, nil)
	for _, county := range []string{"Orange", "Nowhere", ""} {
		assert.False(t, calc.CalculateSalePrice(decimal.NullDecimal{}, county).Valid)
		assert.False(t, calc.CalculateSalePrice(dtt("0"), county).Valid)
		assert.False(t, calc.CalculateSalePrice(dtt("-5"), county).Valid)
	}
}

func TestCalculateSalePriceUnlistedCountyUsesDefault(t *testing.T) {
	calc := NewCalculatorFromFloats(0, map[string]float64{"San Francisco": 6.80, "Bad": -1})

	assert.True(t, calc.Rate("Riverside").Equal(DefaultRate))
	assert.True(t, calc.Rate("bad").Equal(DefaultRate))

	price := calc.CalculateSalePrice(dtt("1100"), "Riverside")
	require.True(t, price.Valid)
	assert.Equal(t, "1000000", price.Decimal.String())

	price = calc.CalculateSalePrice(dtt("6800"), "san francisco")
	require.True(t, price.Valid)
	assert.Equal(t, "1000000", price.Decimal.String())
}

func TestCalculateSalePriceRounds(t *testing.T) {
	calc := NewCalculator(DefaultRate, nil)
	price := calc.CalculateSalePrice(dtt("1000.05"), "Orange")
	require.True(t, price.Valid)
	// 1000.05 / 1.10 * 1000 = 909136.36...
	assert.Equal(t, "909136", price.Decimal.String())
}
