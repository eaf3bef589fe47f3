// Package ingress defines the contract boundary for transaction sources.
// Parsing (CSV or otherwise) is an external collaborator;
// §12; this package only fixes the shape every adapter must present to the
// stream pipeline.
package ingress

import (
	"context"

	"github.com/luxfi/ledger-engine/internal/ledger"
)

// Item is one element of an Ingress sequence: either a successfully parsed
// Transaction or the error that prevented parsing it.
type Item struct {
	Transaction ledger.Transaction
	Err         error
}

// Ingress is a lazy, cancellable, finite sequence of transaction events.
// Next returns a zero Item with ok=false and a nil error once the source is
// exhausted. Implementations must preserve the chronological order of the
// underlying source — the pipeline never reorders within one Ingress.
type Ingress interface {
	// Next blocks until the next item is available, ctx is cancelled, or
	// the source is exhausted (ok=false, err=nil).
	Next(ctx context.Context) (item Item, ok bool, err error)
	// Close releases any resources held by the source.
	Close() error
}
