// Package server provides an embeddable Engine: a long-lived wrapper
// around a stream.StreamProcessor and its backing stores, for hosts that
// want to submit and snapshot without going through cmd/ledger-engine.
package server

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/luxfi/ledger-engine/internal/config"
	"github.com/luxfi/ledger-engine/internal/egress"
	"github.com/luxfi/ledger-engine/internal/ingress"
	"github.com/luxfi/ledger-engine/internal/ledger"
	"github.com/luxfi/ledger-engine/internal/log"
	"github.com/luxfi/ledger-engine/internal/metrics"
	"github.com/luxfi/ledger-engine/internal/stream"
)

// Options configures a new Engine. Zero value is valid; every field has a
// config.Defaults()-derived fallback.
type Options struct {
	Config    config.Config
	Logger    log.Logger
	Metrics   *metrics.Registry
	RateLimit *rate.Limiter
}

// Engine owns one AccountStore/TransactionStore pair and the
// StreamProcessor built over them. It is the shape a long-lived host
// (a daemon, a test harness, an RPC front end) embeds directly, as
// opposed to the one-shot file-in/file-out CLI.
type Engine struct {
	accounts     *ledger.AccountStore
	transactions *ledger.TransactionStore
	sp           *stream.StreamProcessor
	logger       log.Logger
	metrics      *metrics.Registry
}

// NewEngine builds an Engine from opts, falling back to config.Defaults()
// for any zero-valued Config field.
func NewEngine(opts Options) (*Engine, error) {
	cfg := opts.Config
	d := config.Defaults()
	if cfg.Shards == 0 {
		cfg.Shards = d.Shards
	}
	if cfg.Combinator == "" {
		cfg.Combinator = d.Combinator
	}
	if cfg.Assignment == "" {
		cfg.Assignment = d.Assignment
	}
	if cfg.OnError == "" {
		cfg.OnError = d.OnError
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = d.LogLevel
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	reg := opts.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	policy, err := cfg.Policy(logger, reg)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	accounts := ledger.NewAccountStore(ledger.DefaultShardCount)
	transactions := ledger.NewTransactionStore(ledger.DefaultShardCount)

	sp := stream.New(accounts, transactions, stream.Config{
		Shards:     cfg.Shards,
		Combinator: cfg.StreamCombinator(),
		Assignment: cfg.StreamAssignment(),
		Policy:     policy,
		Logger:     logger,
		Metrics:    reg,
		RateLimit:  opts.RateLimit,
	})

	return &Engine{accounts: accounts, transactions: transactions, sp: sp, logger: logger, metrics: reg}, nil
}

// Submit registers in with the Engine's pipeline. Must be called before
// Run; streams added after Run has started are not picked up by that run.
func (e *Engine) Submit(in ingress.Ingress) {
	e.sp.Subscribe(in)
}

// Run drives every submitted stream to completion, or until ctx is
// cancelled or the configured policy aborts the pipeline.
func (e *Engine) Run(ctx context.Context) (stream.Report, error) {
	return e.sp.Run(ctx)
}

// Snapshot writes every account currently known to the Engine to out,
// closing out exactly once whether or not the write succeeds.
func (e *Engine) Snapshot(out egress.Egress) error {
	err := e.sp.Snapshot(func(a ledger.Account) error {
		return out.WriteAccount(a)
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
