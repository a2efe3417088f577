package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/codemarcinu/OCR/internal/database"
	"github.com/codemarcinu/OCR/internal/database/repository"
	"github.com/codemarcinu/OCR/internal/pipeline"
	"github.com/codemarcinu/OCR/internal/receipt"
)

type fakeProcessor struct {
	calls int
	hash  string
	vat   []receipt.VatEntry
}

func (f *fakeProcessor) Process(_ context.Context, path string) (*receipt.Draft, error) {
	f.calls++
	if filepath.Base(path) == "broken.txt" {
		return nil, &pipeline.FailedError{Stage: pipeline.StageModel, Cause: errors.New("no json")}
	}
	hash, err := pipeline.HashFile(path)
	if err != nil {
		return nil, &pipeline.FailedError{Stage: pipeline.StageOCR, Cause: err}
	}
	if f.hash != "" {
		hash = f.hash
	}
	return &receipt.Draft{
		PurchaseDate: "2024-03-15",
		PurchaseTime: "14:30",
		Products: []receipt.Product{{
			Name:       "Mleko",
			Quantity:   receipt.NewQuantity(decimal.NewFromInt(1)),
			Unit:       receipt.UnitPiece,
			TotalPrice: receipt.NewMoney(decimal.RequireFromString("3.99")),
		}},
		Payment:    &receipt.Payment{Method: receipt.PaymentCard, Total: receipt.NewMoney(decimal.RequireFromString("3.99"))},
		VatSummary: f.vat,
		Metadata:   receipt.Metadata{SourceFile: path, SourceHash: hash},
	}, nil
}

func TestImportFiles(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	t.Log("migrations applied")

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}
	a := write("a.txt", "LIDL\nMleko 3,99")
	b := write("b.txt", "BIEDRONKA\nMleko 3,99")
	broken := write("broken.txt", "???")
	missing := filepath.Join(tmpDir, "missing.txt")

	proc := &fakeProcessor{}
	repo := repository.NewReceiptRepo(db)
	svc := &IngestService{Pipeline: proc, Receipts: repo, Logger: slog.New(slog.DiscardHandler)}

	res, err := svc.ImportFiles(ctx, []string{a, b, broken, missing})
	require.NoError(t, err)
	require.Len(t, res.Imported, 2)
	require.Zero(t, res.Skipped)
	require.Len(t, res.Errors, 2)
	require.Equal(t, pipeline.StageModel, FailedStage(res.Errors[0]))
	require.Equal(t, pipeline.StageOCR, FailedStage(res.Errors[1]))
	t.Log("first import done")

	got, err := repo.Get(ctx, res.Imported[0].ID)
	require.NoError(t, err)
	require.Equal(t, a, got.Metadata.SourceFile)
	require.Len(t, got.Products, 1)

	// Re-import should skip known files before processing.
	calls := proc.calls
	res2, err := svc.ImportFiles(ctx, []string{a, b})
	require.NoError(t, err)
	require.Empty(t, res2.Imported)
	require.Equal(t, 2, res2.Skipped)
	require.Equal(t, calls, proc.calls)
	t.Log("re-import checked")

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, (&MaintenanceService{DB: db}).Reset(ctx))
	list, err = repo.List(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestImportFilesRepeatedVatRatesAndLateDuplicates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	a := filepath.Join(tmpDir, "a.txt")
	b := filepath.Join(tmpDir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("LIDL"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("LIDL, skan 2"), 0o600))

	vat := func(base, amount string) receipt.VatEntry {
		return receipt.VatEntry{
			Rate:       "A",
			Percent:    23,
			BaseAmount: receipt.NewMoney(decimal.RequireFromString(base)),
			VatAmount:  receipt.NewMoney(decimal.RequireFromString(amount)),
		}
	}
	proc := &fakeProcessor{hash: "same-content", vat: []receipt.VatEntry{vat("10.00", "2.30"), vat("5.00", "1.15")}}
	repo := repository.NewReceiptRepo(db)
	svc := &IngestService{Pipeline: proc, Receipts: repo, Logger: slog.New(slog.DiscardHandler)}

	res, err := svc.ImportFiles(ctx, []string{a, b})
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Imported, 1, "repeated VAT rates are stored")
	require.Equal(t, 1, res.Skipped, "second file hits the stored hash on save")
	require.Equal(t, 2, proc.calls)

	got, err := repo.Get(ctx, res.Imported[0].ID)
	require.NoError(t, err)
	require.Len(t, got.VatSummary, 2)
}

func TestImportFilesHonoursCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &IngestService{Pipeline: &fakeProcessor{}}
	_, err := svc.ImportFiles(ctx, []string{"a.txt"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFailedStage(t *testing.T) {
	t.Parallel()
	require.Empty(t, FailedStage(errors.New("plain")))
	require.Equal(t, pipeline.StageOCR, FailedStage(&pipeline.FailedError{Stage: pipeline.StageOCR}))
}
