// Package main is the copilot CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/cli"
	"github.com/hyperjump/copilot/internal/config"
	"github.com/hyperjump/copilot/internal/eval"
	"github.com/hyperjump/copilot/internal/server"
	"github.com/hyperjump/copilot/internal/watcher"
	"github.com/hyperjump/copilot/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/copilot/config.yaml"

// loadConfig loads config from path. When path is the default and config.yaml exists
// in the current directory, that file is used instead.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	var err error
	args := os.Args[2:]
	switch command := os.Args[1]; command {
	case "server":
		err = runServer(args, os.Stdout)
	case "ingest":
		err = runIngest(args, os.Stdout)
	case "ask":
		err = runAsk(args, os.Stdout)
	case "eval":
		err = runEval(args, os.Stdout)
	case "status":
		err = runStatus(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("copilot version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are accepted by every subcommand that touches the index.
type commonFlags struct {
	configPath *string
	debug      *bool
}

func newFlagSet(name string) (*flag.FlagSet, commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return fs, commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
	}
}

// setup loads the config and builds a logger for a parsed flag set.
func (f commonFlags) setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(*f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", resolved, err)
	}
	debugMode := cfg.Debug || *f.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, logger, nil
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them. The flag package stops at the
// first non-flag argument, so `copilot ask "question" --llm` would otherwise ignore --llm.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQuestion joins positional args so multi-word questions work with or without quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runServer(args []string, stdout io.Writer) error {
	fs, common := newFlagSet("server")
	fs.SetOutput(stdout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, modeServe)
	if err != nil {
		return err
	}
	defer components.Close()

	srv := server.NewServer(components.Pipeline, components.Reporter, components.Registry, server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		DefaultTopK:    cfg.Retrieval.DefaultTopK,
		MaxTopK:        cfg.Retrieval.MaxTopK,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runIngest(args []string, stdout io.Writer) error {
	fs, common := newFlagSet("ingest")
	fs.SetOutput(stdout)
	corpus := fs.String("corpus", "", "corpus directory (default from config)")
	watch := fs.Bool("watch", false, "rebuild the index when corpus files change")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if *corpus != "" {
		cfg.Ingest.CorpusDir = *corpus
	}

	components, err := initializeComponents(cfg, logger, modeIngest)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := func() error {
		report, err := components.Indexer.Build(ctx, cfg.Ingest.CorpusDir, cfg.Ingest.Extensions)
		if err != nil {
			return err
		}
		cli.WriteBuildReport(stdout, report)
		return nil
	}
	if err := build(); err != nil {
		return err
	}
	if !*watch {
		return nil
	}

	w := watcher.NewWatcher(cfg.Ingest.CorpusDir, cfg.Ingest.Extensions,
		func(changed []string) {
			logger.Info("corpus changed, rebuilding", zap.Int("files", len(changed)))
			if err := build(); err != nil {
				logger.Warn("rebuild failed", zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Ingest.Debounce),
	)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	logger.Info("watching corpus", zap.String("dir", cfg.Ingest.CorpusDir))
	<-ctx.Done()
	w.Stop()
	<-w.Done()
	return nil
}

func runAsk(args []string, stdout io.Writer) error {
	fs, common := newFlagSet("ask")
	fs.SetOutput(stdout)
	llm := fs.Bool("llm", false, "generate a grounded answer instead of returning passages")
	topK := fs.Int("top-k", 0, "number of passages to retrieve (default from config)")
	outputFormat := fs.String("format", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: copilot ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		return errors.New("question is required")
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, modeServe)
	if err != nil {
		return err
	}
	defer components.Close()

	k := *topK
	if k <= 0 {
		k = cfg.Retrieval.DefaultTopK
	}
	ctx := context.Background()
	if *llm {
		resp, err := components.Pipeline.Answer(ctx, question, k)
		if err != nil {
			return err
		}
		return cli.WriteAnswer(stdout, resp, format)
	}
	resp, err := components.Pipeline.Retrieve(ctx, question, k)
	if err != nil {
		return err
	}
	return cli.WriteRetrieval(stdout, resp, format)
}

func runEval(args []string, stdout io.Writer) error {
	fs, common := newFlagSet("eval")
	fs.SetOutput(stdout)
	baseURL := fs.String("base-url", "", "copilot server URL (default from config)")
	queries := fs.String("queries", "", "evaluation cases JSON file (default from config)")
	out := fs.String("out", "", "Markdown report path (default from config)")
	topK := fs.Int("top-k", 0, "top_k sent with every question (default from config)")
	timeout := fs.Duration("timeout", 0, "per-request timeout (default from config)")
	retries := fs.Int("retries", -1, "retries for failed requests (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ec := cfg.Eval
	if *baseURL != "" {
		ec.BaseURL = *baseURL
	}
	if *queries != "" {
		ec.QueriesPath = *queries
	}
	if *out != "" {
		ec.ReportPath = *out
	}
	if *topK > 0 {
		ec.TopK = *topK
	}
	if *timeout > 0 {
		ec.Timeout = *timeout
	}
	if *retries >= 0 {
		ec.Retries = *retries
	}

	cases, err := eval.LoadCases(ec.QueriesPath)
	if err != nil {
		return err
	}
	client := eval.NewClient(eval.ClientConfig{BaseURL: ec.BaseURL, Timeout: ec.Timeout, Retries: ec.Retries})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := client.Health(ctx); err != nil {
		return fmt.Errorf("server at %s is not reachable: %w", ec.BaseURL, err)
	}

	var evaluator eval.Evaluator
	if len(cfg.Policy.RefusalCitations) > 0 {
		evaluator.PolicySource = cfg.Policy.RefusalCitations[0]
	}
	runner := eval.NewRunner(client, evaluator, ec.TopK, logger)
	report, err := runner.Run(ctx, cases)
	if err != nil {
		return err
	}
	report.BaseURL = ec.BaseURL
	if err := report.Save(ec.ReportPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Passed %d/%d (%.1f%%). Report: %s\n",
		report.Passed(), len(report.Results), report.PassRate(), ec.ReportPath)
	return nil
}

func runStatus(args []string, stdout io.Writer) error {
	fs, common := newFlagSet("status")
	fs.SetOutput(stdout)
	outputFormat := fs.String("format", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	cfg, logger, err := common.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, modeStatus)
	if err != nil {
		return err
	}
	defer components.Close()

	st, err := components.Reporter.Status(context.Background())
	if err != nil {
		return err
	}
	return cli.WriteStatus(stdout, st, format)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Copilot - grounded answers over banking operations documents

Usage:
  copilot <command> [flags]

Commands:
  server    Start the HTTP API (/health, /ask, /ask_llm, /status, /metrics)
  ingest    Build the index from the corpus directory (--watch to keep it current)
  ask       Ask a question from the command line (--llm for a generated answer)
  eval      Run the evaluation cases against a running server
  status    Show index statistics
  version   Show version
  help      Show this help

Common flags:
  --config  config file path (default: /usr/local/etc/copilot/config.yaml, or ./config.yaml if present)
  --debug   enable debug logging

Examples:
  copilot ingest --corpus ./corpus
  copilot ask what is the wire transfer cutoff
  copilot ask --llm --top-k 6 "how do I reverse a duplicate ACH debit?"
  copilot eval --base-url http://127.0.0.1:8000 --out ./eval/report.md
`)
}
