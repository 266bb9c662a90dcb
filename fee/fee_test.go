package fee_test

import (
	"testing"

	"boxoffice/fee"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFee(t *testing.T) {
	calc := fee.NewCalculator(fee.DefaultRate)

	price := decimal.RequireFromString("100.00")
	f := calc.Fee(price)

	assert.True(t, f.Equal(decimal.RequireFromString("5.00")), "fee was %s", f)
	assert.True(t, price.Add(f).Equal(decimal.RequireFromString("105.00")))
}

func TestFeeRoundsToTwoDecimalPlaces(t *testing.T) {
	calc := fee.NewCalculator(fee.DefaultRate)

	f := calc.Fee(decimal.RequireFromString("33.33"))

	require.Equal(t, "1.67", f.StringFixed(2))
}

func TestFeeSumHasNoDrift(t *testing.T) {
	calc := fee.NewCalculator(fee.DefaultRate)

	price := decimal.RequireFromString("19.99")
	total := decimal.Zero
	for i := 0; i < 1000; i++ {
		total = total.Add(price.Add(calc.Fee(price)))
	}

	// 19.99 + 1.00 fee, a thousand times over.
	assert.Equal(t, "20990.00", total.StringFixed(2))
}

func TestNegativeRateIsClamped(t *testing.T) {
	calc := fee.NewCalculator(decimal.NewFromFloat(-0.1))

	assert.True(t, calc.Fee(decimal.RequireFromString("100.00")).IsZero())
}
