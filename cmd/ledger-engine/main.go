// ledger-engine is a one-shot CLI: it reads a CSV transaction stream (or
// several, on successive positional arguments) from disk, applies them
// through the engine, and writes the resulting account snapshot to stdout
// or --out.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/luxfi/ledger-engine/internal/config"
	"github.com/luxfi/ledger-engine/internal/csvio"
	"github.com/luxfi/ledger-engine/internal/log"
	"github.com/luxfi/ledger-engine/internal/metrics"
	"github.com/luxfi/ledger-engine/internal/server"
)

const clientIdentifier = "ledger-engine"

var app = &cli.App{
	Name:      clientIdentifier,
	Usage:     "apply a stream of account transactions and report final balances",
	Version:   "1.0.0",
	ArgsUsage: "<input.csv> [<input2.csv> ...]",
}

func init() {
	app.Action = run
	app.Flags = []cli.Flag{
		&cli.IntFlag{Name: "shards", Usage: "number of shard workers"},
		&cli.StringFlag{Name: "combinator", Usage: "stream multiplexing strategy within a shard: merge|chain"},
		&cli.StringFlag{Name: "assignment", Usage: "stream-to-shard assignment strategy: round-robin|sequential"},
		&cli.StringFlag{Name: "on-error", Usage: "error handling policy: skip|abort|silent"},
		&cli.StringFlag{Name: "out", Usage: "output file for the account snapshot (default: stdout)"},
		&cli.StringFlag{Name: "config", Usage: "optional config file (yaml/json/toml)"},
		&cli.BoolFlag{Name: "log-json", Usage: "emit structured JSON logs instead of a terminal-formatted stream"},
		&cli.StringFlag{Name: "log-file", Usage: "write rotated JSON logs to this path instead of stderr"},
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("ledger-engine: at least one input file is required", 1)
	}

	fs := pflag.NewFlagSet(clientIdentifier, pflag.ContinueOnError)
	config.BindFlags(fs)
	bindCLIOverrides(c, fs)

	cfg, err := config.Load(fs, c.String("config"))
	if err != nil {
		return cli.Exit(err, 1)
	}

	logger := log.New(os.Stderr, logLevel(cfg.LogLevel))
	switch {
	case c.String("log-file") != "":
		logger = log.NewRotatingFile(log.RotatingFileConfig{Path: c.String("log-file")}, logLevel(cfg.LogLevel))
	case cfg.LogJSON:
		logger = log.NewJSON(os.Stderr, logLevel(cfg.LogLevel))
	}

	reg := metrics.NewRegistry()
	eng, err := server.NewEngine(server.Options{Config: cfg, Logger: logger, Metrics: reg})
	if err != nil {
		return cli.Exit(err, 1)
	}

	var readers []*csvio.Reader
	for _, path := range c.Args().Slice() {
		f, err := os.Open(path)
		if err != nil {
			return cli.Exit(fmt.Errorf("ledger-engine: opening %s: %w", path, err), 1)
		}
		r := csvio.NewReader(f)
		readers = append(readers, r)
		eng.Submit(r)
	}
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := eng.Run(ctx)
	if err != nil {
		return cli.Exit(fmt.Errorf("ledger-engine: %w", err), 1)
	}

	out := os.Stdout
	if path := c.String("out"); path != "" {
		f, ferr := os.Create(path)
		if ferr != nil {
			return cli.Exit(fmt.Errorf("ledger-engine: creating %s: %w", path, ferr), 1)
		}
		defer f.Close()
		out = f
	}

	if err := eng.Snapshot(csvio.NewWriter(out)); err != nil {
		return cli.Exit(fmt.Errorf("ledger-engine: writing snapshot: %w", err), 1)
	}

	if report.Aborted {
		return cli.Exit(fmt.Sprintf("ledger-engine: aborted: %v", report.FirstAbort), 1)
	}
	return nil
}

// bindCLIOverrides copies any flag the user actually set on c into fs, so
// config.Load sees CLI flags ranked above the environment and config file
// precedence order.
func bindCLIOverrides(c *cli.Context, fs *pflag.FlagSet) {
	for _, name := range []string{"shards", "combinator", "assignment", "on-error", "log-json"} {
		if !c.IsSet(name) {
			continue
		}
		switch name {
		case "shards":
			_ = fs.Set(name, fmt.Sprintf("%d", c.Int(name)))
		case "log-json":
			_ = fs.Set(name, fmt.Sprintf("%t", c.Bool(name)))
		default:
			_ = fs.Set(name, c.String(name))
		}
	}
}

// logLevel maps the config-resolved log level name to a slog.Level,
// including the engine's own sub-Debug Trace level. Unrecognized names
// fall back to Info.
func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
