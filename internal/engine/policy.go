package engine

import (
	"sync/atomic"

	"github.com/luxfi/ledger-engine/internal/log"
	"github.com/luxfi/ledger-engine/internal/metrics"
)

// Disposition is the verdict an ErrorPolicy returns for a failed
// transaction: keep going, or tear down the pipeline.
type Disposition uint8

const (
	Continue Disposition = iota
	Abort
)

// EventKind classifies an event for statistics purposes, independent of
// whether it ultimately succeeded.
type EventKind uint8

const (
	EventSuccess EventKind = iota
	EventSkip
	EventAbort
)

// Policy decides, for each processing failure, whether the pipeline
// should continue or abort, and receives every outcome (success, skip,
// abort) for statistics. The Processor never consults a Policy directly —
// only the stream pipeline does, keeping business rules and failure
// disposition fully decoupled.
type Policy interface {
	OnError(err error) Disposition
	OnStats(kind EventKind)
}

// Stats accumulates counts atomically so OnStats is safe to call from any
// number of shard workers concurrently.
type Stats struct {
	Successes atomic.Uint64
	Skips     atomic.Uint64
	Aborts    atomic.Uint64
}

func (s *Stats) record(kind EventKind) {
	switch kind {
	case EventSuccess:
		s.Successes.Add(1)
	case EventSkip:
		s.Skips.Add(1)
	case EventAbort:
		s.Aborts.Add(1)
	}
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() (successes, skips, aborts uint64) {
	return s.Successes.Load(), s.Skips.Load(), s.Aborts.Load()
}

// SkipErrors logs every failure at Warn and always continues. It is the
// default policy.
type SkipErrors struct {
	Stats   Stats
	Metrics *metrics.Registry
	Logger  log.Logger
}

// NewSkipErrors returns a SkipErrors policy; logger/registry may be nil to
// fall back to the package defaults.
func NewSkipErrors(logger log.Logger, reg *metrics.Registry) *SkipErrors {
	return &SkipErrors{Logger: orDefaultLogger(logger), Metrics: orDefaultRegistry(reg)}
}

func (p *SkipErrors) OnError(err error) Disposition {
	p.Logger.Warn("skipping failed transaction", "error", err)
	return Continue
}

func (p *SkipErrors) OnStats(kind EventKind) {
	p.Stats.record(kind)
	p.Metrics.Observe(uint8(kind))
}

// AbortOnError logs every failure at Error and halts the pipeline at the
// first one.
type AbortOnError struct {
	Stats   Stats
	Metrics *metrics.Registry
	Logger  log.Logger
}

// NewAbortOnError returns an AbortOnError policy.
func NewAbortOnError(logger log.Logger, reg *metrics.Registry) *AbortOnError {
	return &AbortOnError{Logger: orDefaultLogger(logger), Metrics: orDefaultRegistry(reg)}
}

func (p *AbortOnError) OnError(err error) Disposition {
	p.Logger.Error("aborting pipeline on failed transaction", "error", err)
	return Abort
}

func (p *AbortOnError) OnStats(kind EventKind) {
	p.Stats.record(kind)
	p.Metrics.Observe(uint8(kind))
}

// SilentSkip never logs and always continues. Intended for high-throughput
// benchmarks where logging every skip would dominate the profile.
type SilentSkip struct {
	Stats   Stats
	Metrics *metrics.Registry
}

// NewSilentSkip returns a SilentSkip policy.
func NewSilentSkip(reg *metrics.Registry) *SilentSkip {
	return &SilentSkip{Metrics: orDefaultRegistry(reg)}
}

func (p *SilentSkip) OnError(error) Disposition { return Continue }

func (p *SilentSkip) OnStats(kind EventKind) {
	p.Stats.record(kind)
	p.Metrics.Observe(uint8(kind))
}

func orDefaultLogger(l log.Logger) log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

func orDefaultRegistry(r *metrics.Registry) *metrics.Registry {
	if r == nil {
		return metrics.NewRegistry()
	}
	return r
}

var (
	_ Policy = (*SkipErrors)(nil)
	_ Policy = (*AbortOnError)(nil)
	_ Policy = (*SilentSkip)(nil)
)
