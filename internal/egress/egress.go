// Package egress defines the contract boundary for snapshot sinks. Byte
// formatting (CSV or otherwise) is an external collaborator per
// the engine; this package only fixes the shape the AccountStore's
// snapshot phase writes into.
package egress

import "github.com/luxfi/ledger-engine/internal/ledger"

// Egress consumes one account record at a time. Row order is unspecified;
// implementations must not assume any particular ordering of calls.
type Egress interface {
	WriteAccount(a ledger.Account) error
	// Close flushes and releases any resources held by the sink. Callers
	// must call Close exactly once after the last WriteAccount call.
	Close() error
}
