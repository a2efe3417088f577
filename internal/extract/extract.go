// Package extract pulls the receipt JSON object out of a raw model response
// and applies the syntactic clean-up needed before it can be decoded.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/codemarcinu/OCR/internal/coerce"
)

// Document is the decoded model output. Numbers are json.Number.
type Document map[string]any

// RequiredKeys must be present at the top level of every response.
var RequiredKeys = []string{"sklep", "produkty", "platnosc"}

// MalformedResponseError means the response holds no JSON object at all.
type MalformedResponseError struct {
	Snippet string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("extract: no JSON object in model response %q", e.Snippet)
}

// ParseError wraps a decoder failure on the located object.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "extract: decode response: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldsError names required top-level keys absent from the object.
type MissingFieldsError struct {
	Keys []string
}

func (e *MissingFieldsError) Error() string {
	return "extract: missing required fields: " + strings.Join(e.Keys, ", ")
}

var (
	fence        = regexp.MustCompile("```(?i:json)?")
	spaceRun     = regexp.MustCompile(`\s+`)
	escapedStart = regexp.MustCompile(`^\{\s*\\"`)
)

// product fields coerced ahead of product repair, with their scale
var productNumbers = map[string]int32{
	"ilosc":                          3,
	"cena_jednostkowa":               2,
	"cena_jednostkowa_przed_rabatem": 2,
	"cena_jednostkowa_po_rabacie":    2,
	"rabat":                          2,
	"suma":                           2,
}

// Parse locates, cleans and decodes the JSON object in raw. The same input
// always yields the same document or the same error.
func Parse(raw string) (Document, error) {
	s := fence.ReplaceAllString(raw, "")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, &MalformedResponseError{Snippet: snippet(raw)}
	}
	s = s[start : end+1]
	s = spaceRun.ReplaceAllString(s, " ")
	if escapedStart.MatchString(s) {
		s = strings.ReplaceAll(s, `\"`, `"`)
	}
	s = tightenPunctuation(s)

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	var missing []string
	for _, k := range RequiredKeys {
		if _, ok := doc[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingFieldsError{Keys: missing}
	}

	coerceProducts(doc["produkty"])
	normalizeDate(doc)
	return doc, nil
}

// tightenPunctuation drops spaces next to structural characters outside
// string literals.
func tightenPunctuation(s string) string {
	var b bytes.Buffer
	b.Grow(len(s))
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case ' ':
			if structural(prevByte(&b)) || (i+1 < len(s) && structural(s[i+1])) {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func structural(c byte) bool {
	switch c {
	case ':', ',', '{', '}', '[', ']':
		return true
	}
	return false
}

func prevByte(b *bytes.Buffer) byte {
	if b.Len() == 0 {
		return 0
	}
	return b.Bytes()[b.Len()-1]
}

func coerceProducts(v any) {
	items, ok := v.([]any)
	if !ok {
		return
	}
	for _, it := range items {
		p, ok := it.(map[string]any)
		if !ok {
			continue
		}
		for key, scale := range productNumbers {
			s, ok := p[key].(string)
			if !ok {
				continue
			}
			d, err := coerce.Decimal(s, scale)
			if err != nil {
				continue
			}
			p[key] = json.Number(d.String())
		}
	}
}

func normalizeDate(doc Document) {
	s, ok := doc["data"].(string)
	if !ok {
		return
	}
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return
	}
	if t, err := coerce.ParseDate(s); err == nil {
		doc["data"] = t.Format("2006-01-02")
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
