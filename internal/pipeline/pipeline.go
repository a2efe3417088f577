// Package pipeline runs a receipt file through OCR, store detection, model
// extraction, repair and enrichment.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/codemarcinu/OCR/internal/catalog"
	"github.com/codemarcinu/OCR/internal/enrich"
	"github.com/codemarcinu/OCR/internal/extract"
	"github.com/codemarcinu/OCR/internal/llm"
	"github.com/codemarcinu/OCR/internal/metrics"
	"github.com/codemarcinu/OCR/internal/ocr"
	"github.com/codemarcinu/OCR/internal/receipt"
	"github.com/codemarcinu/OCR/internal/repair"
	"github.com/codemarcinu/OCR/internal/storedetect"
)

// Stage names a pipeline state.
type Stage string

const (
	Received         Stage = "received"
	TextExtracted    Stage = "text_extracted"
	StoreDetected    Stage = "store_detected"
	JSONParsed       Stage = "json_parsed"
	SectionsRepaired Stage = "sections_repaired"
	Enriched         Stage = "enriched"
	Finalized        Stage = "finalized"
)

// Failure stages.
const (
	StageOCR   = "ocr"
	StageModel = "model"
)

// FailedError is the terminal failure of a run.
type FailedError struct {
	Stage string
	Cause error
}

func (e *FailedError) Error() string { return fmt.Sprintf("pipeline: %s stage failed: %v", e.Stage, e.Cause) }
func (e *FailedError) Unwrap() error { return e.Cause }

// Options tune retries and enrichment.
type Options struct {
	MaxAttempts   int
	RetryDelay    time.Duration
	EnrichWorkers int
	// EnrichRate caps oracle calls per second; zero means unlimited.
	EnrichRate float64
}

// Pipeline is safe for concurrent use; each Process call owns its draft.
type Pipeline struct {
	OCR      ocr.Source
	Model    llm.Provider
	Oracle   enrich.Oracle
	Catalog  *catalog.Catalog
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Options  Options
	Now      func() time.Time
	detector *storedetect.Detector
	limiter  *rate.Limiter
}

// New builds a pipeline. A nil catalog means catalog.Default and a nil
// recorder disables metrics.
func New(src ocr.Source, model llm.Provider, oracle enrich.Oracle, cat *catalog.Catalog, logger *slog.Logger, rec *metrics.Recorder, opts Options) *Pipeline {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cat == nil {
		cat = catalog.Default()
	}
	var limiter *rate.Limiter
	if opts.EnrichRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.EnrichRate), 1)
	}
	return &Pipeline{
		OCR:      src,
		Model:    model,
		Oracle:   oracle,
		Catalog:  cat,
		Logger:   logger,
		Metrics:  rec,
		Options:  opts,
		Now:      time.Now,
		detector: storedetect.New(cat),
		limiter:  limiter,
	}
}

// Process runs the whole pipeline for one file. It returns either a
// finalized draft or a *FailedError.
func (p *Pipeline) Process(ctx context.Context, path string) (*receipt.Draft, error) {
	start := p.Now()
	log := p.Logger.With("file", path)
	var timings receipt.Timings

	stageStart := p.Now()
	text, err := p.OCR.Extract(ctx, path)
	timings.OCR = p.Now().Sub(stageStart)
	p.Metrics.ObserveStage(StageOCR, timings.OCR)
	if err != nil {
		p.Metrics.Processed(StageOCR)
		return nil, &FailedError{Stage: StageOCR, Cause: err}
	}
	log.Debug("state", "stage", TextExtracted, "chars", len(text.Text))

	det := p.detector.Detect(text.Text)
	log.Info("store detected", "stage", StoreDetected, "store", det.StoreID, "confidence", det.Confidence)

	stageStart = p.Now()
	doc, attempts, err := p.extract(ctx, log, det, text.Text)
	timings.Model = p.Now().Sub(stageStart)
	timings.Attempt = attempts
	p.Metrics.ObserveStage(StageModel, timings.Model)
	if err != nil {
		p.Metrics.Processed(StageModel)
		return nil, &FailedError{Stage: StageModel, Cause: err}
	}
	log.Debug("state", "stage", JSONParsed, "attempts", attempts)

	stageStart = p.Now()
	draft := p.Repair(doc, det, path)
	timings.Repair = p.Now().Sub(stageStart)
	p.Metrics.ObserveStage("repair", timings.Repair)
	log.Debug("state", "stage", SectionsRepaired)

	stageStart = p.Now()
	if len(draft.Products) > 0 && p.Oracle != nil {
		e := &enrich.Enricher{
			Oracle:    p.Oracle,
			Catalog:   p.Catalog,
			Logger:    log,
			Workers:   p.Options.EnrichWorkers,
			Limiter:   p.limiter,
			OnFailure: p.Metrics.EnrichmentFailed,
		}
		draft.Products = e.Enrich(ctx, draft.Products)
	}
	timings.Enrich = p.Now().Sub(stageStart)
	p.Metrics.ObserveStage("enrich", timings.Enrich)
	log.Debug("state", "stage", Enriched)

	timings.Total = p.Now().Sub(start)
	size, hash := fileFacts(path)
	draft.Metadata = receipt.Metadata{
		SourceFile:      path,
		SourceHash:      hash,
		FileSize:        size,
		DetectedStore:   det.StoreID,
		StoreConfidence: det.Confidence,
		Model:           p.Model.Model(),
		Timings:         timings,
		TextLength:      len(text.Text),
		ProcessedAt:     p.Now(),
		StructuralHints: text.Hints,
	}
	p.Metrics.Processed("ok")
	log.Info("receipt processed", "stage", Finalized, "products", len(draft.Products), "took", timings.Total)
	return draft, nil
}

// Repair runs section repair on an already decoded document.
func (p *Pipeline) Repair(doc extract.Document, det storedetect.Detection, sourceFile string) *receipt.Draft {
	out := repair.Receipt(doc, &repair.Env{
		Catalog:       p.Catalog,
		Logger:        p.Logger,
		Now:           p.Now,
		DetectedStore: det.StoreID,
		SourceFile:    sourceFile,
	})
	for _, s := range out.Removed {
		p.Metrics.SectionRemoved(s)
	}
	return out.Draft
}

// extract calls the model and parses its answer, retrying transport and
// parse failures with a fixed delay.
func (p *Pipeline) extract(ctx context.Context, log *slog.Logger, det storedetect.Detection, text string) (extract.Document, int, error) {
	req := llm.ReceiptPrompt(p.Catalog, det.StoreID, text)
	var lastErr error
	for attempt := 1; attempt <= p.Options.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Options.RetryDelay); err != nil {
				return nil, attempt - 1, errors.Join(lastErr, err)
			}
		}
		raw, err := p.Model.Generate(ctx, req)
		if err != nil {
			lastErr = err
			p.Metrics.ModelAttempt("transport")
			log.Warn("model call failed", "attempt", attempt, "max_attempts", p.Options.MaxAttempts, "err", err)
			continue
		}
		doc, err := extract.Parse(raw)
		if err != nil {
			lastErr = err
			p.Metrics.ModelAttempt("parse")
			log.Warn("model response unusable", "attempt", attempt, "max_attempts", p.Options.MaxAttempts, "err", err)
			continue
		}
		p.Metrics.ModelAttempt("ok")
		return doc, attempt, nil
	}
	return nil, p.Options.MaxAttempts, fmt.Errorf("after %d attempts: %w", p.Options.MaxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HashFile returns the hex sha256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// fileFacts reports size and hash, zero values when the file is unreadable.
func fileFacts(path string) (int64, string) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, ""
	}
	hash, _ := HashFile(path)
	return fi.Size(), hash
}
