// Package coerce turns the loosely typed values found in LLM output into
// canonical decimals, dates and normalized text.
package coerce

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Error reports a value that cannot be coerced.
type Error struct {
	Value any
	Want  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("coerce: cannot read %T %v as %s", e.Value, e.Value, e.Want)
}

// maxExponent bounds the decimal exponent accepted by Decimal. Rounding a
// value like 1e999999999 allocates a power of ten of that size.
const maxExponent = 18

// Decimal parses raw as a finite number rounded to scale places. Strings may
// use a comma decimal separator and contain stray whitespace.
func Decimal(raw any, scale int32) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch v := raw.(type) {
	case decimal.Decimal:
		d = v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, &Error{Value: raw, Want: "number"}
		}
		d = decimal.NewFromFloat(v)
	case float32:
		return Decimal(float64(v), scale)
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case json.Number:
		return Decimal(string(v), scale)
	case string:
		s := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			if r == ',' {
				return '.'
			}
			return r
		}, v)
		if s == "" {
			return decimal.Zero, &Error{Value: raw, Want: "number"}
		}
		parsed, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, &Error{Value: raw, Want: "number"}
		}
		d = parsed
	default:
		return decimal.Zero, &Error{Value: raw, Want: "number"}
	}
	if e := d.Exponent(); e > maxExponent || e < -maxExponent {
		return decimal.Zero, &Error{Value: raw, Want: "number"}
	}
	return d.Round(scale), nil
}

var spaceRun = regexp.MustCompile(`\s+`)

// Text trims and collapses internal whitespace runs.
func Text(raw string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(raw, " "))
}

// Key normalizes text for comparison against a controlled vocabulary.
func Key(raw string) string {
	return strings.ToUpper(Text(raw))
}

// Digits keeps ASCII digits only.
func Digits(raw string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
}

// String renders a scalar JSON value as text. Numbers keep their literal form.
func String(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return decimal.NewFromFloat(v).String(), true
	case int:
		return fmt.Sprint(v), true
	case int64:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

var (
	dateLayouts = []string{"2006-1-2", "2006/1/2", "2.1.2006", "2-1-2006"}
	timeLayouts = []string{"15:04", "15.04", "15:04:05"}
	notDate     = regexp.MustCompile(`[^0-9./-]`)
	notTime     = regexp.MustCompile(`[^0-9:.]`)
)

// ParseDate tries ISO, slash-ISO, dot-DMY and dash-DMY in order.
func ParseDate(raw string) (time.Time, error) {
	s := strings.Trim(notDate.ReplaceAllString(raw, ""), "./-")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &Error{Value: raw, Want: "date"}
}

// ParseTime tries H:M, H.M and H:M:S in order.
func ParseTime(raw string) (time.Time, error) {
	s := strings.Trim(notTime.ReplaceAllString(raw, ""), ".:")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &Error{Value: raw, Want: "time"}
}
