package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codemarcinu/OCR/internal/database/repository"
	"github.com/codemarcinu/OCR/internal/pipeline"
	"github.com/codemarcinu/OCR/internal/receipt"
)

// Processor turns one receipt file into a finalized draft.
type Processor interface {
	Process(ctx context.Context, path string) (*receipt.Draft, error)
}

// IngestService runs receipt files through the pipeline and stores the
// results. Files whose content was already imported are skipped before the
// model is called.
type IngestService struct {
	Pipeline Processor
	Receipts *repository.ReceiptRepo
	Logger   *slog.Logger
}

// Imported is one stored receipt.
type Imported struct {
	Path  string
	ID    string
	Draft *receipt.Draft
}

type IngestResult struct {
	Imported []Imported
	Skipped  int
	Errors   []error
}

// ImportFiles processes paths in order. Per-file failures are collected in
// the result; only context cancellation aborts the batch.
func (s *IngestService) ImportFiles(ctx context.Context, paths []string) (IngestResult, error) {
	res := IngestResult{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, d, skipped, err := s.importFile(ctx, path)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, fmt.Errorf("%s: %w", path, err))
		case skipped:
			res.Skipped++
		default:
			res.Imported = append(res.Imported, Imported{Path: path, ID: id, Draft: d})
		}
	}
	return res, nil
}

func (s *IngestService) importFile(ctx context.Context, path string) (string, *receipt.Draft, bool, error) {
	if hash, err := pipeline.HashFile(path); err == nil {
		existing, err := s.Receipts.FindByHash(ctx, hash)
		if err != nil {
			return "", nil, false, err
		}
		if existing != "" {
			s.logger().Info("already imported", "file", path, "id", existing)
			return "", nil, true, nil
		}
	}

	d, err := s.Pipeline.Process(ctx, path)
	if err != nil {
		return "", nil, false, err
	}
	id, err := s.Receipts.Save(ctx, d)
	if errors.Is(err, repository.ErrDuplicate) {
		s.logger().Info("already imported", "file", path)
		return "", nil, true, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	s.logger().Info("receipt stored", "file", path, "id", id, "products", len(d.Products))
	return id, d, false, nil
}

// FailedStage returns the pipeline stage of err, or "" when err did not come
// from the pipeline.
func FailedStage(err error) string {
	var failed *pipeline.FailedError
	if errors.As(err, &failed) {
		return failed.Stage
	}
	return ""
}

func (s *IngestService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
