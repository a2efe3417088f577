// Package enrich standardizes repaired product lines through a
// classification oracle.
package enrich

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/codemarcinu/OCR/internal/catalog"
	"github.com/codemarcinu/OCR/internal/llm"
	"github.com/codemarcinu/OCR/internal/receipt"
)

// Oracle classifies one product name.
type Oracle interface {
	Classify(ctx context.Context, name string) (llm.Classification, error)
}

// Enricher merges oracle answers into product lines. A failed call keeps
// the line as repaired.
type Enricher struct {
	Oracle  Oracle
	Catalog *catalog.Catalog
	Logger  *slog.Logger
	Workers int
	// Limiter, when set, throttles oracle calls across all workers.
	Limiter *rate.Limiter
	// OnFailure is called once per failed classification, possibly from
	// several goroutines at once.
	OnFailure func()
}

// Enrich returns a new slice; products is not modified.
func (e *Enricher) Enrich(ctx context.Context, products []receipt.Product) []receipt.Product {
	out := make([]receipt.Product, len(products))
	copy(out, products)
	if len(out) == 0 {
		return out
	}

	workers := e.Workers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range out {
		g.Go(func() error {
			e.enrichOne(gctx, &out[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, p *receipt.Product) {
	c, err := e.classify(ctx, p.Name)
	if err != nil {
		e.logger().Warn("enrichment failed, keeping original line", "name", p.Name, "err", err)
		if e.OnFailure != nil {
			e.OnFailure()
		}
		return
	}
	if c.StandardizedName != "" {
		p.StandardizedName = c.StandardizedName
	}
	if e.Catalog.IsCategory(c.Category) {
		p.Category = c.Category
	} else if c.Category != "" {
		e.logger().Warn("oracle returned unknown category", "name", p.Name, "category", c.Category)
		p.Category = catalog.CategoryOther
	}
	p.IsFrozen = c.IsFrozen ||
		p.Category == catalog.CategoryFrozen ||
		e.Catalog.LooksFrozen(p.Name) ||
		e.Catalog.LooksFrozen(p.StandardizedName)
}

func (e *Enricher) classify(ctx context.Context, name string) (llm.Classification, error) {
	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			return llm.Classification{}, err
		}
	}
	return e.Oracle.Classify(ctx, name)
}

func (e *Enricher) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
