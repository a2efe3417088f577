package repair

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/codemarcinu/OCR/internal/coerce"
	"github.com/codemarcinu/OCR/internal/receipt"
)

// ControlNumbers repairs the "numery_kontrolne" section.
func ControlNumbers(raw any, env *Env) Result[*receipt.ControlNumbers] {
	return guard(env, "control_numbers", func() Result[*receipt.ControlNumbers] {
		m, ok := object(raw)
		if !ok {
			return removed[*receipt.ControlNumbers]("not an object")
		}
		c := &receipt.ControlNumbers{
			ReceiptNumber: text(m, "numer_paragonu"),
			UniqueNumber:  text(m, "numer_unikatowy"),
			FiscalNumber:  text(m, "numer_fiskalny"),
		}
		if present(m, "numer_kasy") {
			c.RegisterNumber = coerce.Digits(text(m, "numer_kasy"))
			if c.RegisterNumber == "" {
				env.warn("control_numbers", "field dropped", "field", "numer_kasy", "reason", "no digits")
			}
		}
		if c.Empty() {
			return removed[*receipt.ControlNumbers]("no usable fields")
		}
		return keep(c)
	})
}

// Cashier repairs the "kasjer" section.
func Cashier(raw any, env *Env) Result[*receipt.Cashier] {
	return guard(env, "cashier", func() Result[*receipt.Cashier] {
		m, ok := object(raw)
		if !ok {
			return removed[*receipt.Cashier]("not an object")
		}
		c := &receipt.Cashier{}
		if present(m, "numer") {
			c.Number = coerce.Digits(text(m, "numer"))
			if c.Number == "" {
				env.warn("cashier", "field dropped", "field", "numer", "reason", "no digits")
			}
		}
		if name := text(m, "imie"); name != "" {
			c.FirstName = capitalize(name)
		}
		if c.Number == "" && c.FirstName == "" {
			return removed[*receipt.Cashier]("no usable fields")
		}
		return keep(c)
	})
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	s = cases.Lower(language.Polish).String(s)
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}
