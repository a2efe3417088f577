package repair

import (
	"github.com/codemarcinu/OCR/internal/receipt"
)

// Outcome is a repaired draft plus the sections repair removed.
type Outcome struct {
	Draft   *receipt.Draft
	Removed []string
}

// Receipt runs every section repairer over doc in a fixed order: store,
// date and time, payment with its VAT list, the receipt VAT summary,
// discounts, loyalty card, coupons, products, control numbers, cashier.
func Receipt(doc map[string]any, env *Env) Outcome {
	d := &receipt.Draft{}
	var gone []string
	track := func(section string, r interface{ isRemoved() bool }) bool {
		if r.isRemoved() {
			gone = append(gone, section)
			return false
		}
		return true
	}

	if r := Store(doc["sklep"], env); track("store", r) {
		d.Store = r.Value
	}
	if r := DateTime(doc["data"], doc["godzina"], env); track("datetime", r) {
		d.PurchaseDate, d.PurchaseTime = r.Value.Date, r.Value.Time
	}
	if r := Payment(doc["platnosc"], env); track("payment", r) {
		d.Payment = r.Value
	}
	if raw, ok := doc["vat"]; ok && raw != nil {
		if r := VatSummary(raw, env); track("vat", r) {
			d.VatSummary = r.Value
		}
	}
	if raw, ok := doc["rabaty"]; ok && raw != nil {
		if r := Discounts(raw, env); track("discounts", r) {
			d.Discounts = r.Value
		}
	}
	if raw, ok := doc["karta_lojalnosciowa"]; ok && raw != nil {
		if r := LoyaltyCard(raw, env); track("loyalty_card", r) {
			d.LoyaltyCard = r.Value
		}
	}
	if raw, ok := doc["kupony"]; ok && raw != nil {
		if r := Coupons(raw, env); track("coupons", r) {
			d.Coupons = r.Value
		}
	}
	if r := Products(doc["produkty"], env); track("products", r) {
		d.Products = r.Value
	}
	if raw, ok := doc["numery_kontrolne"]; ok && raw != nil {
		if r := ControlNumbers(raw, env); track("control_numbers", r) {
			d.ControlNumbers = r.Value
		}
	}
	if raw, ok := doc["kasjer"]; ok && raw != nil {
		if r := Cashier(raw, env); track("cashier", r) {
			d.Cashier = r.Value
		}
	}
	return Outcome{Draft: d, Removed: gone}
}

func (r Result[T]) isRemoved() bool { return r.Removed }
