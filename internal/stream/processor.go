// Package stream implements the multi-stream processing pipeline:
// StreamProcessor ingests one or more lazy Ingress sequences, shards them
// across worker goroutines, and drives a shared engine.Processor while
// respecting per-stream ordering and a pluggable ErrorPolicy.
//
// The concurrency shape (N independent workers sharing state, demand-
// driven, cooperatively cancellable between units of work) is built on
// golang.org/x/sync's errgroup, the idiomatic fit for "N workers, first
// error cancels the rest".
package stream

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/luxfi/ledger-engine/internal/engine"
	"github.com/luxfi/ledger-engine/internal/ingress"
	"github.com/luxfi/ledger-engine/internal/ledger"
	"github.com/luxfi/ledger-engine/internal/log"
	"github.com/luxfi/ledger-engine/internal/metrics"
)

// Combinator selects how a shard worker multiplexes the streams assigned
// to it. It has no effect on workers with only one assigned stream.
type Combinator uint8

const (
	// Merge interleaves fairly across a shard's assigned streams,
	// round-robin, one transaction at a time from each, while never
	// reordering within any single stream.
	Merge Combinator = iota
	// Chain drains each assigned stream to completion before starting the
	// next, in assignment order.
	Chain
)

// Assignment selects how streams are mapped to shards at subscription
// time. Each stream is assigned exactly once, statically, for its
// lifetime.
type Assignment uint8

const (
	// RoundRobin assigns stream i to shard i%Shards.
	RoundRobin Assignment = iota
	// Sequential fills shard 0 to its share of the streams before moving
	// to shard 1, and so on.
	Sequential
)

// DefaultShards is used when Config.Shards <= 0.
const DefaultShards = 1

// Config configures a StreamProcessor. The zero value is meaningful for
// everything except Policy, which New defaults to engine.NewSkipErrors if
// left nil.
type Config struct {
	Shards      int
	Combinator  Combinator
	Assignment  Assignment
	Policy      engine.Policy
	Logger      log.Logger
	Metrics     *metrics.Registry
	// RateLimit, if set, is one limiter shared by every shard worker: it
	// caps the combined rate at which all shards pull new transactions from
	// their assigned streams — an optional throttle for hosts that want to
	// bound ingestion throughput rather than an unbounded demand-driven pull.
	RateLimit *rate.Limiter
}

// StreamProcessor drives N input streams through sharded engine.Processor
// workers against one shared AccountStore/TransactionStore.
type StreamProcessor struct {
	cfg          Config
	processor    *engine.Processor
	accounts     *ledger.AccountStore
	transactions *ledger.TransactionStore

	mu      sync.Mutex
	streams []ingress.Ingress // in subscription order
}

// New builds a StreamProcessor sharing accounts/transactions with whatever
// else holds a reference to them (e.g. a concurrent snapshot reader).
func New(accounts *ledger.AccountStore, transactions *ledger.TransactionStore, cfg Config) *StreamProcessor {
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.Policy == nil {
		cfg.Policy = engine.NewSkipErrors(cfg.Logger, cfg.Metrics)
	}
	return &StreamProcessor{
		cfg:          cfg,
		processor:    engine.New(accounts, transactions),
		accounts:     accounts,
		transactions: transactions,
	}
}

// Subscribe registers a new Ingress to be consumed by the next Run. Run
// takes its list of streams once, when it starts; a stream subscribed while
// a Run is already executing is not consumed by that Run.
// Streams are assigned to shards statically, in subscription order, per
// cfg.Assignment.
func (sp *StreamProcessor) Subscribe(in ingress.Ingress) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.streams = append(sp.streams, in)
}

// StreamReport is the outcome for a single stream.
type StreamReport struct {
	Successes uint64
	Skips     uint64
}

// Report is the aggregate outcome of a Run: per-stream counts, the first
// abort reason if the run was aborted, and whether a policy abort or a
// shard worker panic ended the run (Aborted; false after a run that ends by
// exhausting its streams or by ctx cancellation).
type Report struct {
	PerStream   []StreamReport
	FirstAbort  error
	Aborted     bool
}

func (sp *StreamProcessor) shardAssignment() [][]int {
	sp.mu.Lock()
	n := len(sp.streams)
	sp.mu.Unlock()

	buckets := make([][]int, sp.cfg.Shards)
	switch sp.cfg.Assignment {
	case Sequential:
		per := (n + sp.cfg.Shards - 1) / sp.cfg.Shards
		if per == 0 {
			per = 1
		}
		for i := 0; i < n; i++ {
			shard := i / per
			if shard >= sp.cfg.Shards {
				shard = sp.cfg.Shards - 1
			}
			buckets[shard] = append(buckets[shard], i)
		}
	default: // RoundRobin
		for i := 0; i < n; i++ {
			shard := i % sp.cfg.Shards
			buckets[shard] = append(buckets[shard], i)
		}
	}
	return buckets
}

// Run drives every subscribed stream to completion (or until ctx is
// cancelled, or a fatal abort occurs) and returns the aggregate Report.
// Cancellation halts every shard worker at the next transaction boundary;
// a transaction already being processed always runs to completion.
func (sp *StreamProcessor) Run(ctx context.Context) (Report, error) {
	buckets := sp.shardAssignment()

	sp.mu.Lock()
	streams := append([]ingress.Ingress(nil), sp.streams...)
	sp.mu.Unlock()

	reports := make([]StreamReport, len(streams))
	group, gctx := errgroup.WithContext(ctx)

	var abortOnce sync.Once
	var firstAbort error
	var aborted bool

	for shardIdx, indices := range buckets {
		indices := indices
		if sp.cfg.Metrics != nil {
			sp.cfg.Metrics.SetShardDepth(shardIdx, len(indices))
		}
		if len(indices) == 0 {
			continue
		}
		group.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					abortOnce.Do(func() {
						aborted = true
						firstAbort = fmt.Errorf("shard worker panic: %v", r)
					})
					err = firstAbort
				}
			}()
			return sp.runShard(gctx, streams, indices, reports, &abortOnce, &firstAbort, &aborted)
		})
	}

	runErr := group.Wait()
	return Report{PerStream: reports, FirstAbort: firstAbort, Aborted: aborted}, runErr
}

// runShard multiplexes the streams at the given indices according to
// cfg.Combinator, applying each transaction through the shared processor.
func (sp *StreamProcessor) runShard(ctx context.Context, streams []ingress.Ingress, indices []int, reports []StreamReport, abortOnce *sync.Once, firstAbort *error, aborted *bool) error {
	switch sp.cfg.Combinator {
	case Chain:
		for _, idx := range indices {
			if err := sp.drainOne(ctx, streams[idx], &reports[idx], abortOnce, firstAbort, aborted); err != nil {
				return err
			}
		}
		return nil
	default: // Merge
		return sp.mergeMany(ctx, streams, indices, reports, abortOnce, firstAbort, aborted)
	}
}

func (sp *StreamProcessor) drainOne(ctx context.Context, in ingress.Ingress, report *StreamReport, abortOnce *sync.Once, firstAbort *error, aborted *bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if sp.cfg.RateLimit != nil {
			if err := sp.cfg.RateLimit.Wait(ctx); err != nil {
				return nil
			}
		}
		item, ok, err := in.Next(ctx)
		if err != nil {
			if done, derr := sp.dispatch(ioError(err), report, abortOnce, firstAbort, aborted); done {
				return derr
			}
			continue
		}
		if !ok {
			return nil
		}
		if done, err := sp.handleItem(item, report, abortOnce, firstAbort, aborted); done {
			return err
		}
	}
}

// mergeMany round-robins across the assigned streams' indices, pulling one
// item from each in turn, never reordering within any single stream.
func (sp *StreamProcessor) mergeMany(ctx context.Context, streams []ingress.Ingress, indices []int, reports []StreamReport, abortOnce *sync.Once, firstAbort *error, aborted *bool) error {
	live := append([]int(nil), indices...)
	for len(live) > 0 {
		if err := ctx.Err(); err != nil {
			return nil
		}
		next := live[:0]
		for _, idx := range live {
			if sp.cfg.RateLimit != nil {
				if err := sp.cfg.RateLimit.Wait(ctx); err != nil {
					return nil
				}
			}
			item, ok, err := streams[idx].Next(ctx)
			if err != nil {
				if done, derr := sp.dispatch(ioError(err), &reports[idx], abortOnce, firstAbort, aborted); done {
					return derr
				}
				next = append(next, idx)
				continue
			}
			if !ok {
				continue // this stream is exhausted; drop it from further rounds
			}
			if done, err := sp.handleItem(item, &reports[idx], abortOnce, firstAbort, aborted); done {
				return err
			}
			next = append(next, idx)
		}
		live = next
	}
	return nil
}

func (sp *StreamProcessor) handleItem(item ingress.Item, report *StreamReport, abortOnce *sync.Once, firstAbort *error, aborted *bool) (bool, error) {
	if item.Err != nil {
		return sp.dispatch(item.Err, report, abortOnce, firstAbort, aborted)
	}
	if err := sp.processor.Process(item.Transaction); err != nil {
		return sp.dispatch(err, report, abortOnce, firstAbort, aborted)
	}
	report.Successes++
	sp.cfg.Policy.OnStats(engine.EventSuccess)
	return false, nil
}

// ioError classifies a source read failure as an EngineError::Io per
// so it flows through the same ErrorPolicy dispatch as
// a domain or business-rule failure.
func ioError(err error) error {
	return &engine.Error{Cause: fmt.Errorf("%w: %v", engine.ErrIO, err)}
}

func (sp *StreamProcessor) dispatch(err error, report *StreamReport, abortOnce *sync.Once, firstAbort *error, aborted *bool) (bool, error) {
	disposition := sp.cfg.Policy.OnError(err)
	if disposition == engine.Abort {
		report.Skips++ // counted once, as the transaction that triggered the abort
		sp.cfg.Policy.OnStats(engine.EventAbort)
		abortOnce.Do(func() {
			*aborted = true
			*firstAbort = err
		})
		return true, err
	}
	report.Skips++
	sp.cfg.Policy.OnStats(engine.EventSkip)
	return false, nil
}

// Snapshot streams every account in accounts to sink. Safe to call
// concurrently with an in-progress Run — see AccountStore.Snapshot for the
// consistency guarantees.
func (sp *StreamProcessor) Snapshot(sink func(ledger.Account) error) error {
	return sp.accounts.Snapshot(sink)
}
