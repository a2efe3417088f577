// Command paragony turns photographed Polish shop receipts into structured
// records.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codemarcinu/OCR/internal/catalog"
	"github.com/codemarcinu/OCR/internal/config"
	"github.com/codemarcinu/OCR/internal/database"
	"github.com/codemarcinu/OCR/internal/database/repository"
	"github.com/codemarcinu/OCR/internal/enrich"
	"github.com/codemarcinu/OCR/internal/extract"
	"github.com/codemarcinu/OCR/internal/llm"
	"github.com/codemarcinu/OCR/internal/logging"
	"github.com/codemarcinu/OCR/internal/metrics"
	"github.com/codemarcinu/OCR/internal/ocr"
	"github.com/codemarcinu/OCR/internal/pipeline"
	"github.com/codemarcinu/OCR/internal/secrets"
	"github.com/codemarcinu/OCR/internal/service"
	"github.com/codemarcinu/OCR/internal/storedetect"
)

// Exit codes.
const (
	exitOK       = 0
	exitNotFound = 1
	exitOCR      = 2
	exitModel    = 3
	exitUsage    = 4
	exitOther    = 5
)

const usage = `usage: paragony <command> [flags] [args]

commands:
  process [-json] <file>...     extract, repair and store receipts
  repair [-store id] <file>     repair a saved model response, print JSON
  show [-json] <id>             print a stored receipt
  list [-n 20]                  list stored receipts
  reset -yes                    delete all stored receipts
  key set|delete <provider>     manage stored API keys (key read from stdin)
`

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app bundles what every command needs.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	catalog *catalog.Catalog
	reg     *prometheus.Registry
	metrics *metrics.Recorder
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitOther
	}
	logger, err := logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitOther
	}
	reg := prometheus.NewRegistry()
	a := &app{
		cfg:     cfg,
		log:     logger,
		catalog: catalog.Default(),
		reg:     reg,
		metrics: metrics.New(reg),
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}

	cmd, rest := args[0], args[1:]
	var code int
	switch cmd {
	case "process":
		code = a.process(ctx, rest)
	case "repair":
		code = a.repair(rest)
	case "show":
		code = a.show(ctx, rest)
	case "list":
		code = a.list(ctx, rest)
	case "reset":
		code = a.reset(ctx, rest)
	case "key":
		code = a.key(rest)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return exitUsage
	}

	if path := cfg.Metrics.Textfile; path != "" && (cmd == "process" || cmd == "repair") {
		if err := metrics.WriteTextfile(path, reg); err != nil {
			logger.Warn("metrics textfile not written", "path", path, "err", err)
		}
	}
	return code
}

func (a *app) process(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	asJSON := fs.Bool("json", false, "print records as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(a.stderr, "process: no files given")
		return exitUsage
	}

	code := exitOK
	fail := func(path string, err error) {
		fmt.Fprintln(a.stderr, renderError(path, err))
		if code == exitOK {
			code = exitCode(err)
		}
	}

	var files []string
	for _, path := range fs.Args() {
		if _, err := os.Stat(path); err != nil {
			fail(path, err)
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return code
	}

	db, err := a.openDB()
	if err != nil {
		fmt.Fprintf(a.stderr, "database: %v\n", err)
		return exitOther
	}
	defer db.Close()

	svc := &service.IngestService{
		Pipeline: a.pipeline(),
		Receipts: repository.NewReceiptRepo(db),
		Logger:   a.log,
	}
	res, err := svc.ImportFiles(ctx, files)
	if err != nil {
		fmt.Fprintf(a.stderr, "process: %v\n", err)
		return exitOther
	}
	for _, err := range res.Errors {
		fail("", err)
	}

	if *asJSON {
		drafts := make([]any, 0, len(res.Imported))
		for _, im := range res.Imported {
			drafts = append(drafts, map[string]any{"id": im.ID, "receipt": im.Draft})
		}
		if err := writeJSON(a.stdout, drafts); err != nil {
			return exitOther
		}
	} else {
		for _, im := range res.Imported {
			fmt.Fprintln(a.stdout, renderReceipt(im.Draft, im.ID))
		}
		if res.Skipped > 0 {
			fmt.Fprintln(a.stdout, mutedStyle.Render(fmt.Sprintf("%d already imported, skipped", res.Skipped)))
		}
	}
	return code
}

func (a *app) repair(args []string) int {
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	store := fs.String("store", "", "store id to assume as detected ("+strings.Join(a.catalog.StoreIDs(), ", ")+")")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.stderr, "repair: exactly one response file expected")
		return exitUsage
	}
	path := fs.Arg(0)
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(a.stderr, renderError(path, err))
		return exitCode(err)
	}
	doc, err := extract.Parse(string(raw))
	if err != nil {
		fmt.Fprintln(a.stderr, renderError(path, err))
		return exitModel
	}

	det := storedetect.Detection{}
	if id := strings.ToLower(strings.TrimSpace(*store)); id != "" {
		if _, ok := a.catalog.Store(id); !ok {
			fmt.Fprintf(a.stderr, "repair: unknown store %q\n", id)
			return exitUsage
		}
		det = storedetect.Detection{StoreID: id, Confidence: 1}
	}
	p := pipeline.New(nil, nil, nil, a.catalog, a.log, a.metrics, pipeline.Options{})
	d := p.Repair(doc, det, path)
	if err := writeJSON(a.stdout, d); err != nil {
		return exitOther
	}
	return exitOK
}

func (a *app) show(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	asJSON := fs.Bool("json", false, "print the record as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.stderr, "show: exactly one receipt id expected")
		return exitUsage
	}
	db, err := a.openDB()
	if err != nil {
		fmt.Fprintf(a.stderr, "database: %v\n", err)
		return exitOther
	}
	defer db.Close()

	d, err := repository.NewReceiptRepo(db).Get(ctx, fs.Arg(0))
	if errors.Is(err, repository.ErrNotFound) {
		fmt.Fprintf(a.stderr, "show: no receipt %s\n", fs.Arg(0))
		return exitNotFound
	}
	if err != nil {
		fmt.Fprintf(a.stderr, "show: %v\n", err)
		return exitOther
	}
	if *asJSON {
		if err := writeJSON(a.stdout, d); err != nil {
			return exitOther
		}
		return exitOK
	}
	fmt.Fprintln(a.stdout, renderReceipt(d, fs.Arg(0)))
	return exitOK
}

func (a *app) list(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	n := fs.Int("n", 20, "number of receipts")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	db, err := a.openDB()
	if err != nil {
		fmt.Fprintf(a.stderr, "database: %v\n", err)
		return exitOther
	}
	defer db.Close()

	rows, err := repository.NewReceiptRepo(db).List(ctx, *n)
	if err != nil {
		fmt.Fprintf(a.stderr, "list: %v\n", err)
		return exitOther
	}
	fmt.Fprintln(a.stdout, renderList(rows))
	return exitOK
}

func (a *app) reset(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	yes := fs.Bool("yes", false, "confirm deleting every stored receipt")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if !*yes {
		fmt.Fprintln(a.stderr, "reset: refusing without -yes")
		return exitUsage
	}
	db, err := a.openDB()
	if err != nil {
		fmt.Fprintf(a.stderr, "database: %v\n", err)
		return exitOther
	}
	defer db.Close()
	if err := (&service.MaintenanceService{DB: db}).Reset(ctx); err != nil {
		fmt.Fprintf(a.stderr, "reset: %v\n", err)
		return exitOther
	}
	return exitOK
}

func (a *app) key(args []string) int {
	if len(args) != 2 || (args[0] != "set" && args[0] != "delete") {
		fmt.Fprintln(a.stderr, "key: expected `key set <provider>` or `key delete <provider>`")
		return exitUsage
	}
	store, err := secrets.Default()
	if err != nil {
		fmt.Fprintf(a.stderr, "key: %v\n", err)
		return exitOther
	}
	if args[0] == "delete" {
		if err := store.Delete(args[1]); err != nil {
			fmt.Fprintf(a.stderr, "key: %v\n", err)
			return exitOther
		}
		return exitOK
	}
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(a.stderr, "key: %v\n", err)
		return exitOther
	}
	if strings.TrimSpace(line) == "" {
		fmt.Fprintln(a.stderr, "key: empty key on stdin")
		return exitUsage
	}
	if err := store.Set(args[1], strings.TrimSpace(line)); err != nil {
		fmt.Fprintf(a.stderr, "key: %v\n", err)
		return exitOther
	}
	return exitOK
}

func (a *app) openDB() (*sql.DB, error) {
	if err := database.RunMigrations(a.cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database.Open(a.cfg.Database.Path)
}

func (a *app) pipeline() *pipeline.Pipeline {
	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:      resolveAPIKey(a.cfg),
		BaseURL:     a.cfg.LLM.BaseURL,
		Model:       a.cfg.LLM.Model,
		Temperature: a.cfg.LLM.Temperature,
		Timeout:     a.cfg.LLM.Timeout,
		RequireKey:  a.cfg.LLM.Provider == "openai",
	}, a.catalog)

	var oracle enrich.Oracle = provider
	if a.cfg.Pipeline.Oracle == "heuristic" {
		oracle = llm.NewHeuristic(a.catalog)
	}

	var src ocr.Source = ocr.TextFile{}
	if a.cfg.OCR.Engine == "tesseract" {
		src = ocr.Tesseract{Binary: a.cfg.OCR.Binary, Language: a.cfg.OCR.Language}
	}

	return pipeline.New(src, provider, oracle, a.catalog, a.log, a.metrics, pipeline.Options{
		MaxAttempts:   a.cfg.Pipeline.MaxAttempts,
		RetryDelay:    a.cfg.Pipeline.RetryDelay,
		EnrichWorkers: a.cfg.Pipeline.EnrichWorkers,
		EnrichRate:    a.cfg.Pipeline.EnrichRate,
	})
}

// exitCode maps a failure to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch service.FailedStage(err) {
	case pipeline.StageOCR:
		return exitOCR
	case pipeline.StageModel:
		return exitModel
	}
	if errors.Is(err, os.ErrNotExist) {
		return exitNotFound
	}
	return exitOther
}

func resolveAPIKey(cfg config.Config) string {
	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if provider == "ollama" {
		return strings.TrimSpace(cfg.LLM.APIKey)
	}
	env := strings.TrimSpace(cfg.LLM.APIKeyEnv)
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	if store, err := secrets.Default(); err == nil {
		if k, err := store.Get(provider); err == nil {
			return k
		}
	}
	return strings.TrimSpace(cfg.LLM.APIKey)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
