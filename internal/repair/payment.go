package repair

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/codemarcinu/OCR/internal/coerce"
	"github.com/codemarcinu/OCR/internal/receipt"
)

var tolerance = decimal.RequireFromString("0.01")

// method keywords in priority order
var methodKeywords = []struct {
	method   receipt.PaymentMethod
	keywords []string
}{
	{receipt.PaymentCard, []string{"kart", "card"}},
	{receipt.PaymentCash, []string{"got", "cash"}},
	{receipt.PaymentBlik, []string{"blik"}},
}

// Method classifies a printed payment method.
func Method(raw string) receipt.PaymentMethod {
	lower := strings.ToLower(raw)
	for _, mk := range methodKeywords {
		for _, kw := range mk.keywords {
			if strings.Contains(lower, kw) {
				return mk.method
			}
		}
	}
	return receipt.PaymentOther
}

// Payment repairs the "platnosc" section, including its nested VAT list.
func Payment(raw any, env *Env) Result[*receipt.Payment] {
	return guard(env, "payment", func() Result[*receipt.Payment] {
		m, ok := object(raw)
		if !ok {
			return removed[*receipt.Payment]("not an object")
		}
		if !present(m, "suma") {
			return removed[*receipt.Payment]("missing total")
		}
		total, err := money(m["suma"])
		if err != nil {
			return removed[*receipt.Payment]("unreadable total: %v", err)
		}
		if total.IsNegative() {
			return removed[*receipt.Payment]("negative total %s", total)
		}
		rawMethod := text(m, "metoda")
		if rawMethod == "" {
			return removed[*receipt.Payment]("missing method")
		}

		p := &receipt.Payment{Method: Method(rawMethod), Total: total}
		p.Change = optionalMoney(env, "payment", m, "reszta", false)

		if present(m, "vat") {
			if vat := VatSummary(m["vat"], env); !vat.Removed {
				p.VatSummary = vat.Value
			}
		}
		if len(p.VatSummary) > 0 {
			sum := decimal.Zero
			for _, e := range p.VatSummary {
				sum = sum.Add(e.VatAmount.Decimal)
			}
			if sum.Sub(total.Decimal).Abs().GreaterThan(tolerance) {
				env.warn("payment", "VAT amounts do not add up to total", "expected", total.String(), "actual", receipt.NewMoney(sum).String())
			}
		}
		return keep(p)
	})
}

// VatSummary repairs a VAT breakdown list. Invalid entries are dropped one
// by one; percent always comes from the rate table.
func VatSummary(raw any, env *Env) Result[[]receipt.VatEntry] {
	return guard(env, "vat", func() Result[[]receipt.VatEntry] {
		items, ok := list(raw)
		if !ok {
			return removed[[]receipt.VatEntry]("not a list")
		}
		if len(items) == 0 {
			return keep[[]receipt.VatEntry](nil)
		}
		var out []receipt.VatEntry
		for i, it := range items {
			e, reason := vatEntry(it, env)
			if reason != "" {
				env.warn("vat", "entry dropped", "index", i, "reason", reason)
				continue
			}
			out = append(out, e)
		}
		if len(out) == 0 {
			return removed[[]receipt.VatEntry]("no valid entries")
		}
		return keep(out)
	})
}

func vatEntry(raw any, env *Env) (receipt.VatEntry, string) {
	m, ok := object(raw)
	if !ok {
		return receipt.VatEntry{}, "not an object"
	}
	rate := coerce.Key(text(m, "stawka"))
	percent, ok := env.cat().VatPercent(rate)
	if !ok {
		return receipt.VatEntry{}, "unknown rate " + rate
	}
	if !present(m, "podstawa") || !present(m, "kwota") {
		return receipt.VatEntry{}, "missing base or amount"
	}
	base, err := money(m["podstawa"])
	if err != nil || base.IsNegative() {
		return receipt.VatEntry{}, "invalid base"
	}
	amount, err := money(m["kwota"])
	if err != nil || amount.IsNegative() {
		return receipt.VatEntry{}, "invalid amount"
	}

	expected := base.Mul(decimal.NewFromInt(int64(percent))).Div(decimal.NewFromInt(100))
	if expected.Sub(amount.Decimal).Abs().GreaterThan(tolerance) {
		env.warn("vat", "VAT amount does not match base", "rate", rate, "expected", receipt.NewMoney(expected).String(), "actual", amount.String())
	}
	return receipt.VatEntry{
		Rate:       receipt.VatRate(rate),
		BaseAmount: base,
		VatAmount:  amount,
		Percent:    percent,
	}, ""
}
