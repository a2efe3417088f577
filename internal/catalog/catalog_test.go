package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVatTable(t *testing.T) {
	t.Parallel()
	c := Default()
	for rate, want := range map[string]int{"A": 23, "B": 8, "C": 5, "D": 0} {
		got, ok := c.VatPercent(rate)
		require.True(t, ok, rate)
		require.Equal(t, want, got)
	}
	_, ok := c.VatPercent("E")
	require.False(t, ok)
	require.Equal(t, []string{"A", "B", "C", "D"}, c.VatRates())
}

func TestResolveStore(t *testing.T) {
	t.Parallel()
	c := Default()

	s, ok := c.ResolveStore("Lidl sp. z o.o.")
	require.True(t, ok)
	require.Equal(t, StoreLidl, s.ID)

	s, ok = c.ResolveStore("BIEDR0NKA nr 123")
	require.True(t, ok)
	require.Equal(t, StoreBiedronka, s.ID)

	_, ok = c.ResolveStore("Żabka")
	require.False(t, ok)
	_, ok = c.ResolveStore("  ")
	require.False(t, ok)
}

func TestUnitAliases(t *testing.T) {
	t.Parallel()
	c := Default()

	u, ok := c.Unit(" G ")
	require.True(t, ok)
	require.Equal(t, UnitAlias{Canonical: UnitKg, Divisor: 1000}, u)

	u, ok = c.Unit("opak.")
	require.True(t, ok)
	require.Equal(t, UnitPackage, u.Canonical)

	_, ok = c.Unit("worek")
	require.False(t, ok)
}

func TestLooksFrozen(t *testing.T) {
	t.Parallel()
	c := Default()
	require.True(t, c.LooksFrozen("Pizza MROŻONA"))
	require.True(t, c.LooksFrozen("Lody waniliowe"))
	require.False(t, c.LooksFrozen("Mleko 3,2%"))
	require.False(t, c.LooksFrozen(""))
}
