package repair

import (
	"regexp"

	"github.com/codemarcinu/OCR/internal/coerce"
	"github.com/codemarcinu/OCR/internal/receipt"
)

const taxIDLength = 10

var streetPrefix = regexp.MustCompile(`(?i)\bul\.\s*`)

// Store repairs the "sklep" section.
func Store(raw any, env *Env) Result[*receipt.Store] {
	return guard(env, "store", func() Result[*receipt.Store] {
		m, ok := object(raw)
		if !ok {
			return removed[*receipt.Store]("not an object")
		}

		name := text(m, "nazwa")
		if name == "" {
			s, ok := env.cat().Store(env.DetectedStore)
			if !ok {
				return removed[*receipt.Store]("missing name and no detected store")
			}
			name = s.Name
			env.warn("store", "name taken from detected store", "store", s.ID)
		}

		addr := streetPrefix.ReplaceAllString(text(m, "adres_sklepu"), "ul. ")
		if addr == "" {
			return removed[*receipt.Store]("missing street address")
		}

		taxID := coerce.Digits(text(m, "nip"))
		if taxID == "" {
			return removed[*receipt.Store]("missing tax id")
		}
		if len(taxID) != taxIDLength {
			env.warn("store", "tax id has unexpected length", "tax_id", taxID, "digits", len(taxID))
		}

		head := text(m, "adres_centrali")
		if head == "" {
			if s, ok := env.cat().ResolveStore(name); ok {
				head = s.HeadOfficeAddress
			}
		}

		return keep(&receipt.Store{
			Name:              name,
			StreetAddress:     addr,
			TaxID:             taxID,
			HeadOfficeAddress: head,
		})
	})
}
