package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/borsawire/borsawire/pkg/config"
	"github.com/borsawire/borsawire/pkg/domain"
	"github.com/borsawire/borsawire/pkg/fetch"
	"github.com/borsawire/borsawire/pkg/queue"
	"github.com/borsawire/borsawire/pkg/repository"
	"github.com/borsawire/borsawire/pkg/scheduler"
	"github.com/borsawire/borsawire/pkg/source"
	"github.com/borsawire/borsawire/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"configuration file"`
	Listen string `short:"l" long:"listen" env:"LISTEN" description:"listen address, overrides server.listen"`

	BackfillFrom string `long:"backfill-from" env:"BACKFILL_FROM" description:"run every source once from this day (YYYY-MM-DD) and exit"`
	BackfillTo   string `long:"backfill-to" env:"BACKFILL_TO" description:"last day of backfill range (YYYY-MM-DD), today if empty"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor, os.Stdout)

	log.Printf("[INFO] starting borsawire version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// run wires storage, queue, sources and scheduler, then serves the API until ctx is done.
// With backfill range set it runs every source once over that range and returns.
func run(ctx context.Context, opts Opts) error {
	loader, err := config.NewLoader(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := loader.Snapshot()

	if cfg.LogFilePath != "" {
		logFile, err := openLogFile(cfg.LogFilePath)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		setupLog(opts.Debug, opts.NoColor, io.MultiWriter(os.Stdout, logFile), cfg.Redis.Password)
		defer func() {
			setupLog(opts.Debug, opts.NoColor, os.Stdout)
			if err := logFile.Close(); err != nil {
				log.Printf("[WARN] failed to close log file: %v", err)
			}
		}()
	}

	repo, err := repository.New(ctx, repository.Config{Path: cfg.DBFilePath})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Printf("[WARN] failed to close database: %v", err)
		}
	}()
	log.Printf("[INFO] database %s", cfg.DBFilePath)

	// publisher stays an untyped nil when the queue is off, the processor skips publishing then
	var publisher scheduler.Publisher
	if !cfg.Redis.Disabled {
		client, err := queue.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()
		publisher = queue.NewPublisher(client, cfg.Redis.Queue)
		log.Printf("[INFO] publishing to redis %s, queue %s", cfg.Redis.Addr, cfg.Redis.Queue)
	} else {
		log.Printf("[INFO] queue publishing disabled")
	}

	adapters, err := makeSources(cfg)
	if err != nil {
		return fmt.Errorf("failed to make sources: %w", err)
	}

	sched := scheduler.NewScheduler(scheduler.Params{
		Sources:   adapters,
		Store:     sessionStore{repo: repo},
		Publisher: publisher,
		Config:    loader,
	})

	if opts.BackfillFrom != "" {
		return backfill(ctx, sched, opts.BackfillFrom, opts.BackfillTo)
	}

	sched.Start(ctx)
	defer sched.Stop()

	srv := server.New(listenOverride{Loader: loader, listen: opts.Listen}, repo, sched, revision, opts.Debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// makeSources builds adapters for all configured sources, each with its own fetch engine.
// Disabled sources are built too, the scheduler checks the flag on every tick.
func makeSources(cfg *config.Config) ([]source.Adapter, error) {
	res := make([]source.Adapter, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		engine := fetch.New(fetch.Config{
			Source:        sc.Name,
			Timeout:       cfg.Fetch.Timeout,
			Workers:       cfg.Fetch.Workers,
			EnrichWorkers: cfg.Fetch.EnrichWorkers,
			RetryAttempts: cfg.Fetch.RetryAttempts,
			RetryDelay:    cfg.Fetch.RetryDelay,
			MaxRetryDelay: cfg.Fetch.MaxRetryDelay,
			RateLimit:     cfg.Fetch.RateLimit,
			Burst:         cfg.Fetch.Burst,
			MaxPages:      cfg.Fetch.MaxPages,
			UserAgent:     cfg.Fetch.UserAgent,
		})
		a, err := source.New(source.Spec{
			Name:       sc.Name,
			Kind:       source.Kind(sc.Kind),
			URL:        sc.URL,
			StockCodes: sc.StockCodes,
			Extract:    sc.Extract,
		}, engine)
		if err != nil {
			return nil, err
		}
		log.Printf("[INFO] source %s (%s), enabled: %v", sc.Name, sc.Kind, sc.IsEnabled())
		res = append(res, a)
	}
	return res, nil
}

// backfill runs every enabled source once over the given days
func backfill(ctx context.Context, sched *scheduler.Scheduler, from, to string) error {
	rng, err := backfillRange(from, to, time.Now())
	if err != nil {
		return err
	}

	log.Printf("[INFO] backfill %s", rng)
	results, err := sched.Backfill(ctx, rng)
	for _, res := range results {
		log.Printf("[INFO] backfill %s: scraped %d, fresh %d, saved %d, published %d in %v",
			res.Source, res.Scraped, res.Fresh, res.Saved, res.Published, res.Duration)
	}
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	return nil
}

// backfillRange parses backfill days, empty "to" means today
func backfillRange(from, to string, now time.Time) (source.Range, error) {
	start, err := time.ParseInLocation("2006-01-02", from, domain.Location)
	if err != nil {
		return source.Range{}, fmt.Errorf("invalid backfill-from %q: %w", from, err)
	}
	end := now.In(domain.Location)
	if to != "" {
		if end, err = time.ParseInLocation("2006-01-02", to, domain.Location); err != nil {
			return source.Range{}, fmt.Errorf("invalid backfill-to %q: %w", to, err)
		}
	}
	if end.Before(start) {
		return source.Range{}, errors.New("backfill-to is before backfill-from")
	}
	return source.NewRange(start, end), nil
}

// listenOverride replaces configured listen address with the CLI one
type listenOverride struct {
	*config.Loader
	listen string
}

// GetServerConfig returns server configuration with listen override applied
func (l listenOverride) GetServerConfig() (listen string, timeout time.Duration) {
	listen, timeout = l.Loader.GetServerConfig()
	if l.listen != "" {
		listen = l.listen
	}
	return listen, timeout
}

// log file rotation limits, megabytes per file and rotated files kept
const (
	logMaxSizeMB  = 5
	logMaxBackups = 2
)

// openLogFile makes a size rotated log writer, the directory is created if missing
func openLogFile(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("make log dir: %w", err)
	}
	return &lumberjack.Logger{Filename: path, MaxSize: logMaxSizeMB, MaxBackups: logMaxBackups}, nil
}

func setupLog(dbg, noColor bool, out io.Writer, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(out), lgr.Err(out)}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError)
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}

	var secrets []string
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
