package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/codemarcinu/OCR/internal/catalog"
)

// Heuristic is an offline classifier. It scores product names against the
// catalog's category keywords so enrichment keeps working without a model.
type Heuristic struct {
	catalog *catalog.Catalog
}

func NewHeuristic(cat *catalog.Catalog) *Heuristic {
	return &Heuristic{catalog: cat}
}

// package sizes and promo markers printed after the product name
var noise = regexp.MustCompile(`(?i)\s+(\d+([.,]\d+)?\s*(g|kg|ml|l|szt\.?|%)|a\d+|\*+)$`)

// Classify returns a best-effort category for name.
func (h *Heuristic) Classify(ctx context.Context, name string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	clean := strings.Join(strings.Fields(name), " ")
	if clean == "" {
		return Classification{}, fmt.Errorf("llm: empty product name")
	}
	for {
		trimmed := noise.ReplaceAllString(clean, "")
		if trimmed == clean || trimmed == "" {
			break
		}
		clean = trimmed
	}

	lower := strings.ToLower(clean)
	best, bestScore := catalog.CategoryOther, 0.0
	for _, cat := range h.catalog.Categories() {
		if score := keywordScore(lower, cat.Keywords); score > bestScore {
			best, bestScore = cat.Name, score
		}
	}

	return Classification{
		StandardizedName: cases.Title(language.Polish).String(clean),
		Category:         best,
		IsFrozen:         best == catalog.CategoryFrozen || h.catalog.LooksFrozen(name),
	}, nil
}

// keywordScore favours whole-word hits over prefix hits.
func keywordScore(name string, keywords []string) float64 {
	var score float64
	words := tokens(name)
	for _, kw := range keywords {
		switch {
		case strings.Contains(kw, " ") && strings.Contains(name, kw):
			score += 1.0
		case hasToken(words, kw):
			score += 0.9
		case hasPrefix(words, stem(kw)):
			score += 0.6
		}
	}
	return score
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/' || r == ',' || r == '.'
	})
}

func hasToken(words []string, kw string) bool {
	for _, w := range words {
		if w == kw {
			return true
		}
	}
	return false
}

func hasPrefix(words []string, prefix string) bool {
	if len([]rune(prefix)) < 3 {
		return false
	}
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

// stem drops the last letter so inflected forms ("jogurty", "szynki") match.
func stem(kw string) string {
	r := []rune(kw)
	if len(r) <= 4 {
		return kw
	}
	return string(r[:len(r)-1])
}
