package llm

import (
	"fmt"
	"strings"

	"github.com/codemarcinu/OCR/internal/catalog"
)

const receiptSchema = `{
  "sklep": {"nazwa": "", "adres_sklepu": "", "nip": "", "adres_centrali": ""},
  "data": "RRRR-MM-DD",
  "godzina": "GG:MM",
  "produkty": [{"nazwa": "", "ilosc": 1.0, "jednostka": "szt", "cena_jednostkowa": 0.0,
                "cena_jednostkowa_po_rabacie": 0.0, "rabat": 0.0, "suma": 0.0, "stawka_vat": "A"}],
  "rabaty": [{"nazwa": "", "wartosc": 0.0}],
  "vat": [{"stawka": "A", "podstawa": 0.0, "kwota": 0.0}],
  "platnosc": {"suma": 0.0, "metoda": "", "reszta": 0.0},
  "karta_lojalnosciowa": {"numer": "", "typ": "", "punkty": 0, "rabat": 0.0},
  "kupony": [{"kod": "", "opis": "", "wartosc": 0.0, "data_waznosci": "RRRR-MM-DD"}],
  "numery_kontrolne": {"numer_paragonu": "", "numer_kasy": "", "numer_unikatowy": "", "numer_fiskalny": ""},
  "kasjer": {"numer": "", "imie": ""}
}`

// ReceiptPrompt builds the extraction prompt for OCR text. storeID selects a
// chain-specific hint and may be empty.
func ReceiptPrompt(cat *catalog.Catalog, storeID, text string) Request {
	var sys strings.Builder
	sys.WriteString("Jesteś asystentem, który przepisuje polskie paragony fiskalne do formatu JSON.\n")
	sys.WriteString("Zwróć WYŁĄCZNIE poprawny JSON zgodny ze schematem:\n")
	sys.WriteString(receiptSchema)
	sys.WriteString("\nZasady:\n")
	fmt.Fprintf(&sys, "- stawki VAT to litery %s (", strings.Join(cat.VatRates(), ", "))
	for i, r := range cat.VatRates() {
		p, _ := cat.VatPercent(r)
		if i > 0 {
			sys.WriteString(", ")
		}
		fmt.Fprintf(&sys, "%s=%d%%", r, p)
	}
	sys.WriteString(")\n")
	sys.WriteString("- kwoty zapisuj jako liczby z kropką dziesiętną\n")
	sys.WriteString("- jednostki: szt, kg, g, l, ml, opak\n")
	sys.WriteString("- pomiń sekcje, których nie ma na paragonie\n")
	fmt.Fprintf(&sys, "- znane sieci: %s\n", strings.Join(cat.StoreIDs(), ", "))
	if s, ok := cat.Store(storeID); ok {
		fmt.Fprintf(&sys, "- sklep: %s. %s\n", s.Name, s.PromptHint)
	}
	return Request{
		System:      sys.String(),
		User:        "Tekst paragonu:\n" + text,
		Temperature: 0.1,
	}
}

// ClassificationPrompt builds the product standardization prompt.
func ClassificationPrompt(cat *catalog.Catalog, name string) (system, user string) {
	system = "Jesteś ekspertem od produktów spożywczych w polskich sklepach. " +
		"Zwróć WYŁĄCZNIE JSON z kluczami: standardized_name (string, pełna nazwa bez skrótów), " +
		"category (jedna z: " + strings.Join(cat.CategoryNames(), ", ") + "), " +
		"is_frozen (boolean)."
	user = "Produkt: " + name
	return system, user
}
