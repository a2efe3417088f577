package repair

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/codemarcinu/OCR/internal/coerce"
	"github.com/codemarcinu/OCR/internal/receipt"
)

var (
	weightWords = regexp.MustCompile(`(?i)(\bkg\b|\bkilo|\bwag|\bważ|\bluz\b)`)
	volumeWords = regexp.MustCompile(`(?i)(\blitr|\d\s*l\b|\bl\b)`)
	countWords  = regexp.MustCompile(`(?i)(\bszt|\bsztuk|\bopak)`)
)

// Products repairs the "produkty" list. Lines missing a name, quantity or
// total are dropped; when none survive the whole list is removed.
func Products(raw any, env *Env) Result[[]receipt.Product] {
	return guard(env, "products", func() Result[[]receipt.Product] {
		items, ok := list(raw)
		if !ok {
			return removed[[]receipt.Product]("not a list")
		}
		var out []receipt.Product
		for i, it := range items {
			p, reason := product(it, env)
			if reason != "" {
				env.warn("products", "line dropped", "index", i, "reason", reason)
				continue
			}
			out = append(out, p)
		}
		if len(out) == 0 {
			return removed[[]receipt.Product]("receipt has no usable items")
		}
		return keep(out)
	})
}

func product(raw any, env *Env) (receipt.Product, string) {
	m, ok := object(raw)
	if !ok {
		return receipt.Product{}, "not an object"
	}
	name := text(m, "nazwa")
	if name == "" {
		return receipt.Product{}, "missing name"
	}
	if !present(m, "ilosc") {
		return receipt.Product{}, "missing quantity"
	}
	if !present(m, "suma") {
		return receipt.Product{}, "missing total"
	}
	qty, err := coerce.Decimal(m["ilosc"], receipt.QuantityScale)
	if err != nil {
		return receipt.Product{}, "unreadable quantity"
	}
	total, err := money(m["suma"])
	if err != nil {
		return receipt.Product{}, "unreadable total"
	}
	if total.IsNegative() {
		return receipt.Product{}, "negative total"
	}

	unit := receipt.UnitPiece
	if rawUnit := text(m, "jednostka"); rawUnit == "" {
		unit = inferUnit(name)
	} else if alias, ok := env.cat().Unit(rawUnit); ok {
		unit = receipt.Unit(alias.Canonical)
		if alias.Divisor > 1 {
			qty = qty.Div(decimal.NewFromInt(alias.Divisor))
		}
	} else {
		env.warn("products", "unknown unit, using piece", "name", name, "unit", rawUnit)
	}
	quantity := receipt.NewQuantity(qty)
	if !quantity.IsPositive() {
		return receipt.Product{}, "quantity not positive"
	}

	p := receipt.Product{
		Name:       name,
		Quantity:   quantity,
		Unit:       unit,
		TotalPrice: total,
	}
	if present(m, "cena_jednostkowa_przed_rabatem") {
		p.UnitPriceOriginal = optionalMoney(env, "products", m, "cena_jednostkowa_przed_rabatem", false)
	} else {
		p.UnitPriceOriginal = optionalMoney(env, "products", m, "cena_jednostkowa", false)
	}
	p.UnitPriceAfterDiscount = optionalMoney(env, "products", m, "cena_jednostkowa_po_rabacie", false)
	p.DiscountAmount = optionalMoney(env, "products", m, "rabat", true)

	if rate := coerce.Key(text(m, "stawka_vat")); rate != "" {
		if _, ok := env.cat().VatPercent(rate); ok {
			p.VatRate = receipt.VatRate(rate)
		} else {
			env.warn("products", "field dropped", "field", "stawka_vat", "name", name, "value", rate)
		}
	}

	checkLineTotal(p, env)
	return p, ""
}

func inferUnit(name string) receipt.Unit {
	switch {
	case weightWords.MatchString(name):
		return receipt.UnitKg
	case volumeWords.MatchString(name):
		return receipt.UnitLiter
	case countWords.MatchString(name):
		return receipt.UnitPiece
	}
	return receipt.UnitPiece
}

// checkLineTotal logs when unit price times quantity does not give the line total.
func checkLineTotal(p receipt.Product, env *Env) {
	var expected decimal.Decimal
	switch {
	case p.UnitPriceAfterDiscount != nil:
		expected = p.UnitPriceAfterDiscount.Mul(p.Quantity.Decimal)
	case p.UnitPriceOriginal != nil:
		expected = p.UnitPriceOriginal.Mul(p.Quantity.Decimal)
		if p.DiscountAmount != nil {
			expected = expected.Sub(p.DiscountAmount.Decimal)
		}
	default:
		return
	}
	if expected.Sub(p.TotalPrice.Decimal).Abs().GreaterThan(tolerance) {
		env.warn("products", "line total does not match unit price", "name", p.Name,
			"expected", receipt.NewMoney(expected).String(), "actual", p.TotalPrice.String())
	}
}
