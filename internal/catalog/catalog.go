// Package catalog holds the fixed business vocabularies shared by store
// detection, field repair and product enrichment. A Catalog is built once and
// never mutated afterwards, so it is safe to share between goroutines.
package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Known store identifiers.
const (
	StoreLidl      = "lidl"
	StoreBiedronka = "biedronka"
	StoreKaufland  = "kaufland"
	StoreAuchan    = "auchan"
)

// Category names used by the enrichment oracle.
const (
	CategoryDairy     = "NABIAŁ"
	CategoryMeat      = "MIĘSO"
	CategoryVeg       = "WARZYWA"
	CategoryFruit     = "OWOCE"
	CategoryDrinks    = "NAPOJE"
	CategoryBread     = "PIECZYWO"
	CategorySweets    = "SŁODYCZE"
	CategorySnacks    = "PRZEKĄSKI"
	CategoryFrozen    = "MROŻONKI"
	CategoryChemicals = "CHEMIA"
	CategoryOther     = "INNE"
)

// Pattern is a weighted store signature.
type Pattern struct {
	Re     *regexp.Regexp
	Weight float64
}

// Store describes one known retail chain.
type Store struct {
	ID                string
	Name              string // canonical uppercase name
	Patterns          []Pattern
	HeadOfficeAddress string
	CardType          string
	PromptHint        string
}

// Category is a product category with its name keywords.
type Category struct {
	Name     string
	Keywords []string
}

// Catalog is the process-wide immutable vocabulary.
type Catalog struct {
	vat        map[string]int
	stores     []Store
	byID       map[string]*Store
	categories []Category
	frozen     []string
	units      map[string]UnitAlias
}

// UnitAlias maps a unit spelling to its canonical unit and quantity divisor.
type UnitAlias struct {
	Canonical string
	Divisor   int64
}

// Canonical units.
const (
	UnitPiece   = "piece"
	UnitKg      = "kg"
	UnitLiter   = "l"
	UnitPackage = "package"
)

// Default returns the catalog for Polish retail receipts.
func Default() *Catalog {
	c := &Catalog{
		vat: map[string]int{"A": 23, "B": 8, "C": 5, "D": 0},
		stores: []Store{
			{
				ID:                StoreLidl,
				Name:              "LIDL",
				Patterns:          patterns(`Lidl Sp\. z o\.o\. sp\.k\.`, `Lidl Polska`, `Lidl Plus`, `\bLidl\b`),
				HeadOfficeAddress: "Lidl sp. z o.o. sp. k., ul. Poznańska 48, 62-080 Tarnowo Podgórne",
				CardType:          "LIDL PLUS",
				PromptHint:        "Paragon z Lidla: rabaty Lidl Plus są drukowane pod pozycją jako ujemne kwoty.",
			},
			{
				ID:                StoreBiedronka,
				Name:              "BIEDRONKA",
				Patterns:          patterns(`Jeronimo Martins`, `Biedronka`, `JMP S\.A\.`),
				HeadOfficeAddress: "Jeronimo Martins Polska S.A., ul. Żniwna 5, 62-025 Kostrzyn",
				CardType:          "MOJA BIEDRONKA",
				PromptHint:        "Paragon z Biedronki: rabaty Moja Biedronka występują jako osobne linie \"Rabat\".",
			},
			{
				ID:                StoreKaufland,
				Name:              "KAUFLAND",
				Patterns:          patterns(`Kaufland Polska`, `Kaufland`),
				HeadOfficeAddress: "Kaufland Polska Markety sp. z o.o. sp.k., ul. Armii Krajowej 47, 50-541 Wrocław",
				CardType:          "KAUFLAND CARD",
				PromptHint:        "Paragon z Kauflandu: produkty ważone mają ilość w kg z trzema miejscami po przecinku.",
			},
			{
				ID:                StoreAuchan,
				Name:              "AUCHAN",
				Patterns:          patterns(`Auchan Polska`, `Auchan`),
				HeadOfficeAddress: "Auchan Polska sp. z o.o., ul. Puławska 46, 05-500 Piaseczno",
				CardType:          "SKARBONKA",
				PromptHint:        "Paragon z Auchan: punkty Skarbonki są podane na końcu paragonu.",
			},
		},
		categories: []Category{
			{CategoryDairy, []string{"mleko", "ser", "jogurt", "śmietana", "masło", "margaryna", "twaróg"}},
			{CategoryMeat, []string{"mięso", "drób", "wędlina", "kiełbasa", "szynka", "parówki"}},
			{CategoryVeg, []string{"warzywa", "marchew", "ziemniaki", "cebula", "pomidor", "ogórek"}},
			{CategoryFruit, []string{"owoce", "jabłka", "banany", "pomarańcze", "cytryny"}},
			{CategoryDrinks, []string{"napój", "woda", "sok", "cola", "piwo", "kawa", "herbata"}},
			{CategoryBread, []string{"chleb", "bułka", "bagietka", "rogal", "drożdżówka"}},
			{CategorySweets, []string{"cukierki", "czekolada", "ciastka", "batonik", "wafelek"}},
			{CategorySnacks, []string{"chipsy", "paluszki", "orzeszki", "krakersy"}},
			{CategoryFrozen, []string{"mrożonki", "lody", "mrożona pizza", "mrożone warzywa"}},
			{CategoryChemicals, []string{"proszek", "płyn", "mydło", "szampon", "pasta"}},
			{CategoryOther, nil},
		},
		frozen: []string{"mrożon", "lód", "lody", "zamrożon", "schłodzon", "mroż.", "lod.", "zamroż.", "schłodz."},
		units: map[string]UnitAlias{
			"szt": {UnitPiece, 1}, "szt.": {UnitPiece, 1}, "sztuk": {UnitPiece, 1}, "sztuka": {UnitPiece, 1},
			"pcs": {UnitPiece, 1}, "piece": {UnitPiece, 1},
			"kg": {UnitKg, 1}, "kilo": {UnitKg, 1}, "kilogram": {UnitKg, 1},
			"g": {UnitKg, 1000}, "gram": {UnitKg, 1000}, "gramy": {UnitKg, 1000},
			"l": {UnitLiter, 1}, "litr": {UnitLiter, 1}, "liter": {UnitLiter, 1},
			"ml": {UnitLiter, 1000}, "mililitr": {UnitLiter, 1000},
			"opak": {UnitPackage, 1}, "opak.": {UnitPackage, 1}, "opakowanie": {UnitPackage, 1},
			"op.": {UnitPackage, 1}, "package": {UnitPackage, 1},
		},
	}
	c.byID = make(map[string]*Store, len(c.stores))
	for i := range c.stores {
		c.byID[c.stores[i].ID] = &c.stores[i]
	}
	return c
}

func patterns(exprs ...string) []Pattern {
	out := make([]Pattern, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, Pattern{Re: regexp.MustCompile(`(?i)` + e), Weight: 1.0})
	}
	return out
}

// VatPercent returns the percentage for a VAT letter.
func (c *Catalog) VatPercent(rate string) (int, bool) {
	p, ok := c.vat[rate]
	return p, ok
}

// VatRates returns the VAT letters in order.
func (c *Catalog) VatRates() []string {
	out := make([]string, 0, len(c.vat))
	for k := range c.vat {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stores returns the known chains in a stable order.
func (c *Catalog) Stores() []Store { return c.stores }

// StoreIDs returns the known store identifiers.
func (c *Catalog) StoreIDs() []string {
	out := make([]string, 0, len(c.stores))
	for _, s := range c.stores {
		out = append(out, s.ID)
	}
	return out
}

// Store looks a chain up by identifier.
func (c *Catalog) Store(id string) (Store, bool) {
	s, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Store{}, false
	}
	return *s, true
}

// ResolveStore maps a free-text store name onto a known chain. OCR often
// mangles one letter of the brand ("LIDI", "Biedr0nka"), so each token is
// also compared by edit distance.
func (c *Catalog) ResolveStore(name string) (Store, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	if upper == "" {
		return Store{}, false
	}
	for _, s := range c.stores {
		if strings.Contains(upper, s.Name) {
			return s, true
		}
	}
	for _, tok := range strings.FieldsFunc(upper, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '-' || r == '/'
	}) {
		for _, s := range c.stores {
			if len(tok) >= 4 && levenshtein.ComputeDistance(tok, s.Name) <= 1 {
				return s, true
			}
		}
	}
	return Store{}, false
}

// Categories returns product categories in priority order.
func (c *Catalog) Categories() []Category { return c.categories }

// CategoryNames returns category names in priority order.
func (c *Catalog) CategoryNames() []string {
	out := make([]string, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat.Name)
	}
	return out
}

// IsCategory reports whether name is a known category.
func (c *Catalog) IsCategory(name string) bool {
	for _, cat := range c.categories {
		if cat.Name == name {
			return true
		}
	}
	return false
}

// LooksFrozen reports whether a product name carries a frozen-goods keyword.
func (c *Catalog) LooksFrozen(name string) bool {
	lower := strings.ToLower(name)
	if lower == "" {
		return false
	}
	for _, kw := range c.frozen {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Unit resolves a unit spelling. ok is false for unknown spellings.
func (c *Catalog) Unit(raw string) (UnitAlias, bool) {
	u, ok := c.units[strings.ToLower(strings.TrimSpace(raw))]
	return u, ok
}
