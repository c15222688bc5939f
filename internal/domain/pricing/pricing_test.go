package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	c := NewCalculator()

	// 6.99 * 2 + 5.50 * 1
	s := c.Summarize(decimal.RequireFromString("19.48"))

	assert.True(t, decimal.RequireFromString("19.48").Equal(s.Subtotal))
	assert.True(t, decimal.RequireFromString("2.00").Equal(s.DeliveryFee))
	assert.True(t, decimal.RequireFromString("1.948").Equal(s.Tax))
	assert.True(t, decimal.RequireFromString("23.428").Equal(s.Total))
	assert.Equal(t, "$23.43", Format(s.Total))
}

func TestDeliveryFee_IndependentOfSubtotal(t *testing.T) {
	c := NewCalculator()

	for _, sub := range []string{"0", "1", "999.99"} {
		s := c.Summarize(decimal.RequireFromString(sub))
		assert.True(t, decimal.RequireFromString("2").Equal(s.DeliveryFee))
	}
}

func TestCustomParameters(t *testing.T) {
	c := Calculator{
		DeliveryFee: decimal.RequireFromString("3.50"),
		TaxRate:     decimal.RequireFromString("0.2"),
	}

	total := c.GrandTotal(decimal.RequireFromString("10"))

	assert.True(t, decimal.RequireFromString("15.50").Equal(total))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"2", "$2.00"},
		{"1.948", "$1.95"},
		{"19.48", "$19.48"},
		{"23.428", "$23.43"},
		{"0.005", "$0.01"},
		{"-4.2", "-$4.20"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(decimal.RequireFromString(tt.in)))
		})
	}
}
