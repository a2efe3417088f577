// Package storedetect identifies the retail chain that printed a receipt
// from signatures in its OCR text.
package storedetect

import (
	"github.com/codemarcinu/OCR/internal/catalog"
)

// Detection is the outcome of Detect. StoreID is empty when nothing matched
// or when the best score is tied.
type Detection struct {
	StoreID    string  `json:"store_id,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Found reports whether a store was identified.
func (d Detection) Found() bool { return d.StoreID != "" }

// Detector scores OCR text against the catalog's store signatures.
type Detector struct {
	cat *catalog.Catalog
}

func New(cat *catalog.Catalog) *Detector { return &Detector{cat: cat} }

// Detect scores every known chain by weighted signature matches. The chain
// with the strictly highest score wins; its confidence is its share of the
// total score.
func (d *Detector) Detect(text string) Detection {
	var (
		total     float64
		best      float64
		bestID    string
		tiedAtTop bool
	)
	for _, s := range d.cat.Stores() {
		var score float64
		for _, p := range s.Patterns {
			score += float64(len(p.Re.FindAllStringIndex(text, -1))) * p.Weight
		}
		total += score
		switch {
		case score > best:
			best, bestID, tiedAtTop = score, s.ID, false
		case score == best && score > 0:
			tiedAtTop = true
		}
	}
	if best == 0 || tiedAtTop {
		return Detection{}
	}
	return Detection{StoreID: bestID, Confidence: best / total}
}
