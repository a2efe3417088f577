// Package ocr obtains receipt text from a scanned file.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrEmptyText means the engine ran but recognised nothing.
var ErrEmptyText = errors.New("ocr: no text recognised")

// Result is recognised text plus optional layout hints from the engine.
type Result struct {
	Text  string
	Hints map[string]any
}

// Source extracts text from a receipt file.
type Source interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// TextFile reads transcriptions that were produced ahead of time: the file
// itself when it is a .txt, otherwise a sibling "<file>.txt".
type TextFile struct{}

func (TextFile) Extract(_ context.Context, path string) (Result, error) {
	candidates := []string{path + ".txt"}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		candidates = []string{path}
	}
	for _, c := range candidates {
		b, err := os.ReadFile(c)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("ocr: read %s: %w", c, err)
		}
		if strings.TrimSpace(string(b)) == "" {
			return Result{}, ErrEmptyText
		}
		return Result{Text: string(b)}, nil
	}
	return Result{}, fmt.Errorf("ocr: no transcription for %s: %w", path, os.ErrNotExist)
}

// Tesseract shells out to the tesseract binary.
type Tesseract struct {
	Binary   string
	Language string
}

func (t Tesseract) Extract(ctx context.Context, path string) (Result, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{path, "stdout"}
	if t.Language != "" {
		args = append(args, "-l", t.Language)
	}
	// psm 6: a single uniform block of text, which suits narrow till rolls
	args = append(args, "--psm", "6")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("ocr: tesseract %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	if strings.TrimSpace(string(out)) == "" {
		return Result{}, ErrEmptyText
	}
	return Result{
		Text:  string(out),
		Hints: map[string]any{"engine": "tesseract", "language": t.Language, "lines": strings.Count(string(out), "\n")},
	}, nil
}
