// Package receipt defines the canonical receipt record produced by the
// repair pipeline.
package receipt

import "time"

// Date and time layouts used by PurchaseDate and PurchaseTime.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Unit is one of the canonical product units.
type Unit string

const (
	UnitPiece   Unit = "piece"
	UnitKg      Unit = "kg"
	UnitLiter   Unit = "l"
	UnitPackage Unit = "package"
)

// PaymentMethod is the normalized payment method.
type PaymentMethod string

const (
	PaymentCard  PaymentMethod = "CARD"
	PaymentCash  PaymentMethod = "CASH"
	PaymentBlik  PaymentMethod = "BLIK"
	PaymentOther PaymentMethod = "OTHER"
)

// VatRate is a Polish VAT letter, A through D.
type VatRate string

// Draft is a receipt record. Nil pointers and nil slices mean the section is
// absent, either because the input lacked it or because repair removed it.
type Draft struct {
	Store          *Store          `json:"store,omitempty"`
	PurchaseDate   string          `json:"purchase_date,omitempty"`
	PurchaseTime   string          `json:"purchase_time,omitempty"`
	Products       []Product       `json:"products,omitempty"`
	Discounts      []Discount      `json:"discounts,omitempty"`
	VatSummary     []VatEntry      `json:"vat_summary,omitempty"`
	Payment        *Payment        `json:"payment,omitempty"`
	LoyaltyCard    *LoyaltyCard    `json:"loyalty_card,omitempty"`
	Coupons        []Coupon        `json:"coupons,omitempty"`
	ControlNumbers *ControlNumbers `json:"control_numbers,omitempty"`
	Cashier        *Cashier        `json:"cashier,omitempty"`
	Metadata       Metadata        `json:"metadata"`
}

// PurchasedAt combines PurchaseDate and PurchaseTime in loc.
func (d *Draft) PurchasedAt(loc *time.Location) (time.Time, bool) {
	if d.PurchaseDate == "" {
		return time.Time{}, false
	}
	clock := d.PurchaseTime
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, d.PurchaseDate+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type Store struct {
	Name              string `json:"name"`
	StreetAddress     string `json:"street_address"`
	TaxID             string `json:"tax_id"`
	HeadOfficeAddress string `json:"head_office_address,omitempty"`
}

type Product struct {
	Name                   string   `json:"name"`
	StandardizedName       string   `json:"standardized_name,omitempty"`
	Quantity               Quantity `json:"quantity"`
	Unit                   Unit     `json:"unit"`
	UnitPriceOriginal      *Money   `json:"unit_price_original,omitempty"`
	UnitPriceAfterDiscount *Money   `json:"unit_price_after_discount,omitempty"`
	DiscountAmount         *Money   `json:"discount_amount,omitempty"`
	TotalPrice             Money    `json:"total_price"`
	VatRate                VatRate  `json:"vat_rate,omitempty"`
	Category               string   `json:"category,omitempty"`
	IsFrozen               bool     `json:"is_frozen"`
}

// EffectiveUnitPrice returns the unit price after discounts, derived from
// the line total when the receipt does not print it.
func (p Product) EffectiveUnitPrice() Money {
	if p.UnitPriceAfterDiscount != nil {
		return *p.UnitPriceAfterDiscount
	}
	if p.Quantity.IsZero() {
		return p.TotalPrice
	}
	if p.UnitPriceOriginal != nil && p.DiscountAmount != nil {
		return NewMoney(p.UnitPriceOriginal.Sub(p.DiscountAmount.Div(p.Quantity.Decimal)))
	}
	return NewMoney(p.TotalPrice.Div(p.Quantity.Decimal))
}

type Discount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

type VatEntry struct {
	Rate       VatRate `json:"rate"`
	BaseAmount Money   `json:"base_amount"`
	VatAmount  Money   `json:"vat_amount"`
	Percent    int     `json:"percent"`
}

type Payment struct {
	Method     PaymentMethod `json:"method"`
	Total      Money         `json:"total"`
	Change     *Money        `json:"change,omitempty"`
	VatSummary []VatEntry    `json:"vat_summary,omitempty"`
}

type LoyaltyCard struct {
	Number   string `json:"number"`
	CardType string `json:"card_type"`
	Points   *Money `json:"points,omitempty"`
	Discount *Money `json:"discount,omitempty"`
}

type Coupon struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Value       Money  `json:"value"`
	ExpiryDate  string `json:"expiry_date,omitempty"`
}

type ControlNumbers struct {
	ReceiptNumber  string `json:"receipt_number,omitempty"`
	RegisterNumber string `json:"register_number,omitempty"`
	UniqueNumber   string `json:"unique_number,omitempty"`
	FiscalNumber   string `json:"fiscal_number,omitempty"`
}

// Empty reports whether no control number survived.
func (c ControlNumbers) Empty() bool {
	return c == ControlNumbers{}
}

type Cashier struct {
	Number    string `json:"number,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Metadata is written by the pipeline only.
type Metadata struct {
	SourceFile      string         `json:"source_file,omitempty"`
	SourceHash      string         `json:"source_hash,omitempty"`
	FileSize        int64          `json:"file_size,omitempty"`
	DetectedStore   string         `json:"detected_store,omitempty"`
	StoreConfidence float64        `json:"store_confidence"`
	Model           string         `json:"model,omitempty"`
	Timings         Timings        `json:"timings"`
	TextLength      int            `json:"text_length"`
	ProcessedAt     time.Time      `json:"processed_at"`
	StructuralHints map[string]any `json:"structural_hints,omitempty"`
}

// Timings records stage durations.
type Timings struct {
	OCR     time.Duration `json:"ocr"`
	Model   time.Duration `json:"model"`
	Repair  time.Duration `json:"repair"`
	Enrich  time.Duration `json:"enrich"`
	Total   time.Duration `json:"total"`
	Attempt int           `json:"model_attempts"`
}
