package repair

import (
	"strings"

	"github.com/codemarcinu/OCR/internal/coerce"
	"github.com/codemarcinu/OCR/internal/receipt"
)

// Discounts repairs the "rabaty" list.
func Discounts(raw any, env *Env) Result[[]receipt.Discount] {
	return guard(env, "discounts", func() Result[[]receipt.Discount] {
		items, ok := list(raw)
		if !ok {
			return removed[[]receipt.Discount]("not a list")
		}
		if len(items) == 0 {
			return keep[[]receipt.Discount](nil)
		}
		var out []receipt.Discount
		for i, it := range items {
			m, ok := object(it)
			if !ok {
				env.warn("discounts", "entry dropped", "index", i, "reason", "not an object")
				continue
			}
			name := text(m, "nazwa")
			amount, err := money(m["wartosc"])
			switch {
			case name == "":
				env.warn("discounts", "entry dropped", "index", i, "reason", "missing name")
			case err != nil:
				env.warn("discounts", "entry dropped", "index", i, "reason", err.Error())
			case !amount.IsPositive():
				env.warn("discounts", "entry dropped", "index", i, "reason", "amount not positive")
			default:
				out = append(out, receipt.Discount{Name: name, Amount: amount})
			}
		}
		if len(out) == 0 {
			return removed[[]receipt.Discount]("no valid entries")
		}
		return keep(out)
	})
}

// Coupons repairs the "kupony" list.
func Coupons(raw any, env *Env) Result[[]receipt.Coupon] {
	return guard(env, "coupons", func() Result[[]receipt.Coupon] {
		items, ok := list(raw)
		if !ok {
			return removed[[]receipt.Coupon]("not a list")
		}
		if len(items) == 0 {
			return keep[[]receipt.Coupon](nil)
		}
		var out []receipt.Coupon
		for i, it := range items {
			c, reason := coupon(it, env)
			if reason != "" {
				env.warn("coupons", "entry dropped", "index", i, "reason", reason)
				continue
			}
			out = append(out, c)
		}
		if len(out) == 0 {
			return removed[[]receipt.Coupon]("no valid entries")
		}
		return keep(out)
	})
}

func coupon(raw any, env *Env) (receipt.Coupon, string) {
	m, ok := object(raw)
	if !ok {
		return receipt.Coupon{}, "not an object"
	}
	code := coerce.Key(text(m, "kod"))
	if code == "" {
		return receipt.Coupon{}, "missing code"
	}
	desc := text(m, "opis")
	if desc == "" {
		return receipt.Coupon{}, "missing description"
	}
	value, err := money(m["wartosc"])
	if err != nil {
		return receipt.Coupon{}, err.Error()
	}
	if !value.IsPositive() {
		return receipt.Coupon{}, "value not positive"
	}
	c := receipt.Coupon{Code: code, Description: desc, Value: value}
	if expiry := text(m, "data_waznosci"); expiry != "" {
		d, err := coerce.ParseDate(expiry)
		if err != nil {
			env.warn("coupons", "field dropped", "field", "data_waznosci", "code", code, "value", expiry)
		} else {
			c.ExpiryDate = d.Format(receipt.DateLayout)
		}
	}
	return c, ""
}

// LoyaltyCard repairs the "karta_lojalnosciowa" section.
func LoyaltyCard(raw any, env *Env) Result[*receipt.LoyaltyCard] {
	return guard(env, "loyalty_card", func() Result[*receipt.LoyaltyCard] {
		m, ok := object(raw)
		if !ok {
			return removed[*receipt.LoyaltyCard]("not an object")
		}
		number := coerce.Digits(text(m, "numer"))
		if len(number) < 8 {
			return removed[*receipt.LoyaltyCard]("card number shorter than 8 digits")
		}
		kind := coerce.Key(text(m, "typ"))
		if kind == "" {
			return removed[*receipt.LoyaltyCard]("missing card type")
		}
		return keep(&receipt.LoyaltyCard{
			Number:   number,
			CardType: cardType(kind, env),
			Points:   optionalMoney(env, "loyalty_card", m, "punkty", false),
			Discount: optionalMoney(env, "loyalty_card", m, "rabat", true),
		})
	})
}

func cardType(kind string, env *Env) string {
	for _, s := range env.cat().Stores() {
		if strings.Contains(kind, s.Name) || strings.Contains(kind, s.CardType) {
			return s.CardType
		}
	}
	return "OTHER"
}
