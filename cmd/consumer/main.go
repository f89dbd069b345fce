// consumer pops news records from the redis queue and prints them as JSON lines.
// Payloads that can't be decoded are printed raw.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/borsawire/borsawire/pkg/config"
	"github.com/borsawire/borsawire/pkg/queue"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"config.yml" description:"configuration file, redis section is used"`
	Redis  string `short:"r" long:"redis" env:"REDIS" description:"redis address or url, overrides config"`
	Queue  string `short:"q" long:"queue" env:"QUEUE" description:"queue name, overrides config"`

	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
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

	// records go to stdout, logs to stderr
	logOpts := []lgr.Option{lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	if opts.Debug {
		logOpts = append(logOpts, lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.CallerFunc)
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
	log.Print("[INFO] consumer stopped")
}

func run(ctx context.Context, opts Opts, out io.Writer) error {
	loader, err := config.NewLoader(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	rcfg := loader.Snapshot().Redis
	if opts.Redis != "" {
		rcfg.Addr = opts.Redis
	}
	if opts.Queue != "" {
		rcfg.Queue = opts.Queue
	}

	client, err := queue.NewRedis(ctx, rcfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer client.Close()

	log.Printf("[INFO] consuming %s from %s", rcfg.Queue, rcfg.Addr)
	enc := json.NewEncoder(out)
	var count, raw int
	err = queue.NewConsumer(client, rcfg.Queue).Listen(ctx, func(d queue.Delivery) {
		count++
		if d.Record == nil {
			raw++
			if _, werr := fmt.Fprintln(out, d.Raw); werr != nil {
				log.Printf("[WARN] can't write raw payload: %v", werr)
			}
			return
		}
		log.Printf("[DEBUG] %s: %s", d.Record.Source, d.Record.Title)
		if werr := enc.Encode(d.Record.ToMessage()); werr != nil {
			log.Printf("[WARN] can't write record %s: %v", d.Record.URL, werr)
		}
	})
	log.Printf("[INFO] consumed %d messages, %d undecodable", count, raw)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("consumer failed: %w", err)
	}
	return nil
}
