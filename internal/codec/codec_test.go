package codec

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

func TestToDisplayAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  *big.Int
		want string
	}{
		{name: "nil fails closed to zero", raw: nil, want: "0"},
		{name: "negative fails closed to zero", raw: big.NewInt(-5), want: "0"},
		{name: "zero", raw: big.NewInt(0), want: "0"},
		{name: "one wei", raw: big.NewInt(1), want: "0.000000000000000001"},
		{name: "one ether", raw: mustBig(t, "1000000000000000000"), want: "1"},
		{name: "hundredth", raw: mustBig(t, "10000000000000000"), want: "0.01"},
		{name: "one and a half", raw: mustBig(t, "1500000000000000000"), want: "1.5"},
		{name: "trailing zeros trimmed", raw: mustBig(t, "1230000000000000000"), want: "1.23"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToDisplayAmount(tc.raw))
		})
	}
}

func TestToRawAmount(t *testing.T) {
	tests := []struct {
		name    string
		display string
		want    string
	}{
		{name: "hundredth", display: "0.01", want: "10000000000000000"},
		{name: "integer", display: "2", want: "2000000000000000000"},
		{name: "bare fraction", display: ".5", want: "500000000000000000"},
		{name: "full precision", display: "0.000000000000000001", want: "1"},
		{name: "whitespace tolerated", display: " 1.5 ", want: "1500000000000000000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToRawAmount(tc.display)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestToRawAmountRejects(t *testing.T) {
	tests := []struct {
		name    string
		display string
	}{
		{name: "empty", display: ""},
		{name: "zero", display: "0"},
		{name: "negative", display: "-1"},
		{name: "not a number", display: "abc"},
		{name: "explicit plus sign", display: "+1"},
		{name: "two dots", display: "1.2.3"},
		{name: "lone dot", display: "."},
		{name: "embedded letters", display: "1.2a"},
		{name: "too many decimals", display: "0.0000000000000000001"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ToRawAmount(tc.display)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ledger.ErrInvalidAmount), "want ErrInvalidAmount, got %v", err)
		})
	}
}

func TestAmountRoundTrip(t *testing.T) {
	// ToRawAmount(ToDisplayAmount(x)) == x for positive wei values.
	for _, raw := range []string{
		"1",
		"10000000000000000",
		"1000000000000000000",
		"1500000000000000000",
		"123456789012345678901234567",
	} {
		x := mustBig(t, raw)
		back, err := ToRawAmount(ToDisplayAmount(x))
		require.NoError(t, err, "round trip of %s", raw)
		assert.Zero(t, x.Cmp(back), "round trip of %s gave %s", raw, back)
	}
}

func TestToUnixSeconds(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 45, 999_999_999, time.UTC)
	assert.Equal(t, ts.Truncate(time.Second).Unix(), ToUnixSeconds(ts))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, TimestampUnset, FormatTimestamp(0))
	assert.NotEqual(t, TimestampUnset, FormatTimestamp(1))
	assert.Equal(t, "2024-05-01 12:30:45 UTC", FormatTimestamp(time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC).Unix()))
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}
