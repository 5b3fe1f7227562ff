package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/August26/proxytest-go/internal/analytics"
	"github.com/August26/proxytest-go/internal/api"
	"github.com/August26/proxytest-go/internal/backend"
	"github.com/August26/proxytest-go/internal/checker"
	"github.com/August26/proxytest-go/internal/config"
	"github.com/August26/proxytest-go/internal/logging"
	"github.com/August26/proxytest-go/internal/model"
	"github.com/August26/proxytest-go/internal/output"
	"github.com/August26/proxytest-go/internal/parser"
	"github.com/August26/proxytest-go/internal/store"
)

var version = "dev"

var errNoProxies = errors.New("at least one proxy is required (use \"none\" to fetch directly)")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("proxytest-go", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: proxytest-go [flags] PROXYHOST:STARTPORT[-ENDPORT]...")
		fs.PrintDefaults()
	}

	var flagged model.Config
	cfgPath := config.Bind(fs, &flagged)
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return int(analytics.ExitSuccess)
		}
		return int(analytics.ExitUnableToTest)
	}
	if *showVersion {
		fmt.Fprintf(stdout, "proxytest-go %s\n", version)
		return int(analytics.ExitSuccess)
	}

	cfg, err := config.Load(fs, flagged, *cfgPath)
	if err != nil {
		return setupFailed(stderr, err)
	}
	log := logging.NewLogger(stderr, cfg)

	if err := cfg.Validate(); err != nil {
		return setupFailed(stderr, err)
	}

	specs := cfg.Proxies
	if cfg.InputFile != "" {
		fromFile, err := parser.LoadFromFile(cfg.InputFile)
		if err != nil {
			return setupFailed(stderr, err)
		}
		specs = append(specs, fromFile...)
	}
	if len(specs) == 0 {
		fs.Usage()
		return setupFailed(stderr, errNoProxies)
	}

	targets, err := parser.Expand(specs)
	if err != nil {
		return setupFailed(stderr, err)
	}

	be, err := backend.New(cfg.Backend)
	if err != nil {
		return setupFailed(stderr, err)
	}
	if c, ok := be.(io.Closer); ok {
		defer c.Close()
	}

	sched := &checker.Scheduler{
		Backend:     be,
		Targets:     targets,
		Repetitions: cfg.Number,
		Timeout:     cfg.Timeout(),
		Concurrency: cfg.Workers,
		URL:         cfg.URL,
		UserAgent:   cfg.UserAgent,
		Log:         log,
	}
	log.Info("starting proxytest-go",
		"plan", sched.String(),
		"timeout", cfg.Timeout(),
		"repeat", cfg.Interval(),
		"url", cfg.URL,
	)

	collector := &output.Collector{}
	observers := []checker.Observer{&output.LogReporter{Log: log}, collector}
	if cfg.Print {
		printer, err := output.NewPrinter(stdout, cfg.PrintFormat)
		if err != nil {
			return setupFailed(stderr, err)
		}
		observers = append(observers, printer)
	}
	if cfg.Progress {
		observers = append(observers, output.NewProgress(stderr))
	}

	var archive *store.Archive
	if cfg.ArchivePath != "" {
		archive, err = store.Open(cfg.ArchivePath, cfg.URL, be.Name(), log)
		if err != nil {
			return setupFailed(stderr, err)
		}
		defer archive.Close()
		observers = append(observers, archive)
	}

	agg := analytics.NewAggregator()

	if cfg.Listen != "" {
		var history api.History
		if archive != nil {
			history = archive
		}
		srv := api.NewServer(agg, history, log)
		if err := srv.Start(cfg.Listen); err != nil {
			return setupFailed(stderr, err)
		}
		defer func() {
			if err := srv.Stop(context.Background()); err != nil {
				log.Warn("failed to stop api server", "err", err)
			}
		}()
	}

	runner := &checker.Runner{
		Scheduler:  sched,
		Aggregator: agg,
		Observers:  observers,
		Interval:   cfg.Interval(),
		Log:        log,
	}

	start := time.Now()
	verdict, err := runner.Run(ctx)
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, checker.ErrInterrupted) {
			log.Warn("run interrupted", "pass", verdict.Pass)
		} else {
			log.Error("run failed", "err", err)
		}
	}

	if archive != nil {
		if err := archive.Err(); err != nil {
			log.Warn("archive is incomplete", "path", cfg.ArchivePath, "err", err)
		}
	}

	stats := analytics.Compute(collector.Attempts, duration)
	if !cfg.Quiet {
		output.PrintResultsTable(stdout, verdict)
		output.PrintSummary(stdout, stats, verdict)
	}
	writeResults(log, cfg, collector.Attempts, stats, verdict)

	code := analytics.Decide(verdict, true)
	log.Info("finished", "exit", int(code), "result", code.String())
	return int(code)
}

func writeResults(log *slog.Logger, cfg model.Config, attempts []model.Attempt, stats model.BatchStats, v model.Verdict) {
	if cfg.OutputFile == "" {
		return
	}
	if err := output.WriteFile(cfg.OutputFile, cfg.OutputFormat, attempts, stats, v); err != nil {
		log.Error("failed to write output file", "err", err, "path", cfg.OutputFile)
		return
	}
	log.Info("results written",
		"path", cfg.OutputFile,
		"format", cfg.OutputFormat,
	)
}

// setupFailed reports an error found before any attempt was dispatched.
func setupFailed(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "proxytest-go: %v\n", err)
	return int(analytics.Decide(model.Verdict{}, false))
}
