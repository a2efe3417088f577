package storedetect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codemarcinu/OCR/internal/catalog"
)

func TestDetect(t *testing.T) {
	t.Parallel()
	d := New(catalog.Default())

	cases := []struct {
		name string
		text string
		want string
		conf float64
	}{
		{"lidl header", "LIDL sp. z o.o. sp.k.\nLidl Plus kupon\nRazem 12,99", catalog.StoreLidl, 1.0},
		{"biedronka", "Jeronimo Martins Polska S.A.\nBiedronka nr 3421", catalog.StoreBiedronka, 1.0},
		{"nothing", "Sklep spożywczy u Zenka", "", 0},
		{"tie", "Kaufland\nAuchan", "", 0},
		{"mixed", "Kaufland Polska Markety\nKaufland\nprzy Auchan", catalog.StoreKaufland, 0.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.Detect(tc.text)
			require.Equal(t, tc.want, got.StoreID)
			require.InDelta(t, tc.conf, got.Confidence, 1e-9)
		})
	}
}

func TestDetectIsPure(t *testing.T) {
	t.Parallel()
	d := New(catalog.Default())
	text := "Lidl Polska\nLIDL PLUS"
	require.Equal(t, d.Detect(text), d.Detect(text))
}
