// Package engine applies a single Transaction against an AccountStore and
// a TransactionStore, encoding the engine's business rules, and
// exposes the pluggable ErrorPolicy used by the stream pipeline to decide
// what to do about a failure.
package engine

import (
	"errors"
	"fmt"

	"github.com/luxfi/ledger-engine/internal/ledger"
)

// Sentinel business-rule errors, layered on top of ledger's DomainError
// values. An EngineError either wraps a ledger.DomainError verbatim or is
// one of these pipeline-level sentinels.
var (
	ErrTransactionNotFound        = errors.New("engine: transaction not found")
	ErrDuplicateTransaction       = errors.New("engine: duplicate transaction")
	ErrClientMismatch             = errors.New("engine: client mismatch")
	ErrCannotDisputeWithdrawal    = errors.New("engine: cannot dispute a withdrawal")
	ErrIO                         = errors.New("engine: io")
	// ErrUnknownKind only surfaces if a Transaction is constructed outside
	// this module's own constructors with an out-of-range Kind; the ingress
	// boundary is responsible for rejecting unknown wire type strings
	// before a Transaction ever reaches the processor.
	ErrUnknownKind = errors.New("engine: unknown transaction kind")
)

// Error wraps an underlying cause with the transaction that produced it,
// so ErrorPolicy and logging have enough context without re-deriving it.
type Error struct {
	TX    uint32
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tx %d: %v", e.TX, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func wrap(tx uint32, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{TX: tx, Cause: cause}
}

// IsDomainError reports whether err ultimately wraps one of the ledger
// package's DomainError sentinels.
func IsDomainError(err error) bool {
	for _, d := range []error{
		ledger.ErrInsufficientFunds,
		ledger.ErrAccountLocked,
		ledger.ErrInvalidAmount,
		ledger.ErrOverflow,
		ledger.ErrAlreadyDisputed,
		ledger.ErrNotDisputed,
	} {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}
