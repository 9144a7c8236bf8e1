// Package pricing backs a sale price out of a documentary transfer tax stamp.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultRate is the per-$1,000 DTT rate applied to counties missing from the table.
var DefaultRate = decimal.RequireFromString("1.10")

var thousand = decimal.NewFromInt(1000)

// Calculator holds a per-county rate table.
type Calculator struct {
	defaultRate decimal.Decimal
	rates       map[string]decimal.Decimal
}

// NewCalculator builds a calculator. County keys are matched case-insensitively;
// non-positive rates are ignored.
func NewCalculator(defaultRate decimal.Decimal, rates map[string]decimal.Decimal) *Calculator {
	if !defaultRate.IsPositive() {
		defaultRate = DefaultRate
	}
	table := make(map[string]decimal.Decimal, len(rates))
	for county, rate := range rates {
		if !rate.IsPositive() {
			continue
		}
		table[countyKey(county)] = rate
	}
	return &Calculator{defaultRate: defaultRate, rates: table}
}

// NewCalculatorFromFloats adapts a config rate map.
func NewCalculatorFromFloats(defaultRate float64, rates map[string]float64) *Calculator {
	converted := make(map[string]decimal.Decimal, len(rates))
	for county, rate := range rates {
		converted[county] = decimal.NewFromFloat(rate)
	}
	return NewCalculator(decimal.NewFromFloat(defaultRate), converted)
}

// Rate returns the DTT rate for the county.
func (c *Calculator) Rate(county string) decimal.Decimal {
	if rate, ok := c.rates[countyKey(county)]; ok {
		return rate
	}
	return c.defaultRate
}

// CalculateSalePrice returns round(dtt / rate * 1000). A null or zero stamp is
// an exempt transfer and yields an invalid NullDecimal.
func (c *Calculator) CalculateSalePrice(dtt decimal.NullDecimal, county string) decimal.NullDecimal {
	if !dtt.Valid || !dtt.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	price := dtt.Decimal.Div(c.Rate(county)).Mul(thousand).Round(0)
	return decimal.NullDecimal{Decimal: price, Valid: true}
}

func countyKey(county string) string {
	key := strings.ToLower(strings.TrimSpace(county))
	return strings.TrimSuffix(key, " county")
}
