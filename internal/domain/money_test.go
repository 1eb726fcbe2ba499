package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMicros(t *testing.T) {
	micros, err := ToMicros(decimal.RequireFromString("10.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(10_500_000), micros)
}

func TestToMicros_RejectsExtraPrecision(t *testing.T) {
	_, err := ToMicros(decimal.RequireFromString("0.0000001"))
	require.ErrorIs(t, err, ErrAmountPrecision)
}

func TestFromMicros(t *testing.T) {
	d := FromMicros(92_555_500)
	assert.Equal(t, "92.5555", d.String())
}

func TestValidateAmount(t *testing.T) {
	require.NoError(t, ValidateAmount(decimal.Zero))
	require.NoError(t, ValidateAmount(decimal.NewFromInt(5)))
	require.ErrorIs(t, ValidateAmount(decimal.NewFromInt(-1)), ErrNegativeAmount)
}

func TestCurrencyFormat(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "0", want: "$0.00"},
		{in: "12.5", want: "$12.50"},
		{in: "1234.5", want: "$1,234.50"},
		{in: "1234567.891", want: "$1,234,567.89"},
		{in: "-999.999", want: "-$1,000.00"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, DefaultCurrencyFormat.Format(decimal.RequireFromString(tc.in)))
		})
	}
}

func TestStripColor(t *testing.T) {
	assert.Equal(t, "$5.00", StripColor("§a$5.00§r"))
	assert.Equal(t, "plain", StripColor("plain"))
}
