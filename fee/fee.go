// Package fee computes the system fee charged on top of a ticket's unit
// price.
package fee

import "github.com/shopspring/decimal"

// DefaultRate is the fraction of the unit price charged as system fee.
var DefaultRate = decimal.NewFromFloat(0.05)

type Calculator struct {
	rate decimal.Decimal
}

func NewCalculator(rate decimal.Decimal) Calculator {
	if rate.IsNegative() {
		rate = decimal.Zero
	}
	return Calculator{rate: rate}
}

// Fee returns the system fee for one unit price, rounded to 2 decimal
// places so sums over allocations stay exact.
func (c Calculator) Fee(unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(c.rate).Round(2)
}
