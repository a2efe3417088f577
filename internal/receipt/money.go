package receipt

import (
	"github.com/shopspring/decimal"

	"github.com/codemarcinu/OCR/internal/coerce"
)

// Scales for monetary amounts and quantities.
const (
	MoneyScale    int32 = 2
	QuantityScale int32 = 3
)

// Money is a decimal amount fixed at two places.
type Money struct {
	decimal.Decimal
}

// NewMoney rounds d to two places.
func NewMoney(d decimal.Decimal) Money {
	return Money{d.Round(MoneyScale)}
}

// MoneyPtr is NewMoney returning a pointer, for optional fields.
func MoneyPtr(d decimal.Decimal) *Money {
	m := NewMoney(d)
	return &m
}

// String renders the amount with exactly two decimals.
func (m Money) String() string { return m.StringFixed(MoneyScale) }

// MarshalJSON emits a JSON number with exactly two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(MoneyScale)), nil
}

// UnmarshalJSON accepts numbers and numeric strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	d, err := coerce.Decimal(d, MoneyScale)
	if err != nil {
		return err
	}
	*m = Money{d}
	return nil
}

// Quantity is a decimal amount fixed at three places.
type Quantity struct {
	decimal.Decimal
}

// NewQuantity rounds d to three places.
func NewQuantity(d decimal.Decimal) Quantity {
	return Quantity{d.Round(QuantityScale)}
}

func (q Quantity) String() string { return q.StringFixed(QuantityScale) }

func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.StringFixed(QuantityScale)), nil
}

func (q *Quantity) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	d, err := coerce.Decimal(d, QuantityScale)
	if err != nil {
		return err
	}
	*q = Quantity{d}
	return nil
}
