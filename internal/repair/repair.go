// Package repair validates and normalizes each section of a decoded receipt.
//
// Every repairer is total: it returns a Result holding either the repaired
// value or a removal with a reason, and never panics past its own boundary.
// Drops and removals are logged as warnings on the Env logger.
package repair

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codemarcinu/OCR/internal/catalog"
	"github.com/codemarcinu/OCR/internal/coerce"
	"github.com/codemarcinu/OCR/internal/receipt"
)

// Result is the outcome of one repairer. A zero Result with Removed unset
// means the section was absent from the input.
type Result[T any] struct {
	Value   T
	Removed bool
	Reason  string
}

func keep[T any](v T) Result[T] { return Result[T]{Value: v} }

func removed[T any](format string, args ...any) Result[T] {
	return Result[T]{Removed: true, Reason: fmt.Sprintf(format, args...)}
}

// Env carries what repairers need beyond their own section.
type Env struct {
	Catalog       *catalog.Catalog
	Logger        *slog.Logger
	Now           func() time.Time
	DetectedStore string
	SourceFile    string
	Stat          func(string) (os.FileInfo, error)
}

func (e *Env) cat() *catalog.Catalog {
	if e.Catalog == nil {
		e.Catalog = catalog.Default()
	}
	return e.Catalog
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) stat(path string) (os.FileInfo, error) {
	if e.Stat == nil {
		return os.Stat(path)
	}
	return e.Stat(path)
}

func (e *Env) warn(section, msg string, args ...any) {
	e.logger().Warn(msg, append([]any{"section", section}, args...)...)
}

// guard runs fn, turning a panic into a removal and logging removals.
func guard[T any](env *Env, section string, fn func() Result[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = removed[T]("repair failed: %v", r)
			env.warn(section, "section removed", "reason", res.Reason)
		}
	}()
	res = fn()
	if res.Removed {
		env.warn(section, "section removed", "reason", res.Reason)
	}
	return res
}

func object(raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	return m, ok
}

func list(raw any) ([]any, bool) {
	l, ok := raw.([]any)
	return l, ok
}

// text returns the normalized text of m[key]; empty when absent or not scalar.
func text(m map[string]any, key string) string {
	s, _ := coerce.String(m[key])
	return coerce.Text(s)
}

func present(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

func money(raw any) (receipt.Money, error) {
	d, err := coerce.Decimal(raw, receipt.MoneyScale)
	if err != nil {
		return receipt.Money{}, err
	}
	return receipt.NewMoney(d), nil
}

// optionalMoney reads an optional non-negative amount, logging and dropping
// it when unreadable. When abs is set a negative amount is flipped instead.
func optionalMoney(env *Env, section string, m map[string]any, key string, abs bool) *receipt.Money {
	if !present(m, key) {
		return nil
	}
	v, err := money(m[key])
	if err != nil {
		env.warn(section, "field dropped", "field", key, "reason", err.Error())
		return nil
	}
	if v.IsNegative() {
		if !abs {
			env.warn(section, "field dropped", "field", key, "reason", "negative amount")
			return nil
		}
		v = receipt.NewMoney(v.Abs())
	}
	return &v
}
