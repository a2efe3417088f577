package coerce

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDecimalLocaleStrings(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in    any
		scale int32
		want  string
	}{
		{"3,99", 2, "3.99"},
		{" 1 234,5 ", 2, "1234.5"},
		{"1 500", 3, "1500"},
		{json.Number("0.4999"), 3, "0.5"},
		{2.005, 2, "2.01"},
		{7, 3, "7"},
		{decimal.RequireFromString("1.23456"), 3, "1.235"},
	}
	for _, tc := range cases {
		got, err := Decimal(tc.in, tc.scale)
		require.NoError(t, err, "%v", tc.in)
		require.True(t, decimal.RequireFromString(tc.want).Equal(got), "%v: got %s", tc.in, got)
	}
}

func TestDecimalRejects(t *testing.T) {
	t.Parallel()
	for _, in := range []any{"", "abc", "1,2,3", math.NaN(), math.Inf(1), true, nil, []any{1}} {
		_, err := Decimal(in, 2)
		var cerr *Error
		require.ErrorAs(t, err, &cerr, "%v", in)
	}
}

func TestDecimalExponentBounds(t *testing.T) {
	t.Parallel()
	for _, in := range []any{"1e999999999", json.Number("1e999999999"), "1e-999999999", "5E40"} {
		_, err := Decimal(in, 2)
		var cerr *Error
		require.ErrorAs(t, err, &cerr, "%v", in)
	}

	got, err := Decimal("1,5e3", 2)
	require.NoError(t, err)
	require.Equal(t, "1500", got.String())
}

func TestDecimalIdempotent(t *testing.T) {
	t.Parallel()
	for _, in := range []any{"3,999", "0,001", "12", 1.0 / 3.0, json.Number("-4.5"), "  10,50 "} {
		for _, scale := range []int32{2, 3} {
			first, err := Decimal(in, scale)
			require.NoError(t, err)
			second, err := Decimal(first.String(), scale)
			require.NoError(t, err)
			require.True(t, first.Equal(second), "%v at %d", in, scale)
		}
	}
}

func TestText(t *testing.T) {
	t.Parallel()
	require.Equal(t, "ul. Testowa 1", Text("  ul.   Testowa\t1 \n"))
	require.Equal(t, "KARTA", Key(" karta "))
	require.Equal(t, "1234567890", Digits("123-456-78-90"))
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"2024-03-15":       "2024-03-15",
		"2024/3/5":         "2024-03-05",
		"15.03.2024":       "2024-03-15",
		"15-03-2024":       "2024-03-15",
		"Data: 15.03.2024": "2024-03-15",
	}
	for in, want := range cases {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got.Format("2006-01-02"))
	}
	_, err := ParseDate("jutro")
	require.Error(t, err)
	_, err = ParseDate("31.02.2024")
	require.Error(t, err)
}

func TestParseTime(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{"14:30": "14:30", "14.30": "14:30", "9:05:59": "09:05", "godz. 14:30": "14:30"} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got.Format("15:04"))
	}
	_, err := ParseTime("25:00")
	require.Error(t, err)
}
