package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/docpilot"
	"github.com/fwojciec/docpilot/bbolt"
	"github.com/fwojciec/docpilot/build"
	"github.com/fwojciec/docpilot/fs"
	"github.com/fwojciec/docpilot/goldmark"
	"github.com/fwojciec/docpilot/query"
	dpslog "github.com/fwojciec/docpilot/slog"
	"github.com/fwojciec/docpilot/sqlite"
	"github.com/fwojciec/docpilot/yaml"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Loader reads the configuration. Tests replace it to isolate the
	// environment.
	Loader *yaml.Loader

	// SQLite database used by the catalog.
	DB *sqlite.DB

	// Query cache, nil when unavailable.
	Cache *bbolt.QueryCache
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{Loader: yaml.NewLoader()}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.Cache != nil {
		_ = m.Cache.Close()
	}
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments. Command failures are
// reported on stdout as a JSON error object and returned.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docpilot"),
		kong.Description("Locate the documentation passages that answer a question."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'docpilot --help' to see available commands")
	}

	if cmd := args[0]; cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return reportError(stdout, docpilot.Errorf(docpilot.EINVALID, "%v", err))
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	deps.Logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := m.wire(deps, cli, strings.Fields(kongCtx.Command())[0]); err != nil {
		_ = m.Close()
		return reportError(stdout, err)
	}
	defer m.Close()

	if err := kongCtx.Run(deps); err != nil {
		var reported reportedError
		if errors.As(err, &reported) {
			return err
		}
		return reportError(stdout, err)
	}
	return nil
}

// wire loads the configuration and builds the services cmd needs.
func (m *Main) wire(deps *Dependencies, cli *CLI, cmd string) error {
	cfg, err := m.Loader.Load(cli.Config)
	if err != nil {
		return err
	}
	deps.Config = cfg
	logger := deps.Logger

	if err := os.MkdirAll(filepath.Dir(cfg.CatalogPath), 0755); err != nil {
		return docpilot.Errorf(docpilot.ESTORE, "catalog directory: %v", err)
	}
	m.DB = sqlite.NewDB(cfg.CatalogPath)
	if err := m.DB.Open(); err != nil {
		m.DB = nil
		return docpilot.Errorf(docpilot.ESTORE, "open catalog at %q: %v", cfg.CatalogPath, err)
	}
	catalog := dpslog.NewLoggingCatalogService(sqlite.NewCatalogService(m.DB), logger)
	deps.Catalog = catalog

	switch cmd {
	case "build":
		detector, err := docpilot.NewPatternDetector(cfg.Symbols.Patterns, cfg.Symbols.MinLength)
		if err != nil {
			return err
		}
		extractor := goldmark.NewExtractor(cfg.DocsRoot, detector)
		deps.Builder = &build.Builder{
			Walker:       fs.NewWalkerFromConfig(cfg),
			Reader:       fs.NewReader(),
			Extractor:    dpslog.NewLoggingExtractor(extractor, logger),
			Catalog:      catalog,
			Concurrency:  cfg.Workers,
			Force:        cli.Build.Full,
			Fingerprint:  extractor.Fingerprint(),
			TombstoneTTL: cfg.TombstoneTTL,
		}

	case "query":
		planner := &query.Planner{
			Catalog:     catalog,
			Evidence:    fs.NewEvidenceResolver(cfg.DocsRoot, cfg.Query.EvidenceLines),
			RecallLimit: cfg.Query.RecallLimit,
		}
		if !cli.Query.NoCache {
			cache := bbolt.NewQueryCache(filepath.Join(cfg.CacheDir, "rankings.db"))
			if err := cache.Open(); err != nil {
				logger.Warn("query cache unavailable", "path", cache.Path(), "err", err)
			} else {
				m.Cache = cache
				planner.Cache = dpslog.NewLoggingQueryCache(cache, logger)
			}
		}
		deps.Queries = dpslog.NewLoggingQueryService(planner, logger)
	}
	return nil
}

type errorOutput struct {
	Error errorBody `json:"error"`

	// Summary describes the partial work of an aborted build.
	Summary *docpilot.BuildSummary `json:"summary,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorBody(err error) errorBody {
	return errorBody{
		Code:    docpilot.ErrorCode(err),
		Message: docpilot.ErrorMessage(err),
	}
}

// reportedError marks a command error whose JSON object was already
// written.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error { return e.error }

// reportError writes err as a JSON error object and returns it.
func reportError(w io.Writer, err error) error {
	writeJSON(w, errorOutput{Error: newErrorBody(err)})
	return err
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
