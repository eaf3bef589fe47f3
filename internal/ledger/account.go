package ledger

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/luxfi/ledger-engine/internal/amount"
)

// Account is the per-client ledger state: available funds, held funds, the
// locked flag, and the set of transaction ids currently under dispute for
// this client. Total is always derived, never stored:
//
//	total := available + held
//
// Account is a value type; every method returns a new Account on success
// and leaves the receiver's caller-visible copy untouched on error. Callers
// that need shared mutable accounts go through AccountStore, never through
// a bare Account.
type Account struct {
	ClientID  uint16
	Available amount.Amount
	Held      amount.Amount
	Locked    bool
	disputed  mapset.Set[uint32]
}

// NewAccount returns a freshly created, unlocked, zero-balance account for
// the given client. AccountStore calls this lazily on first reference.
func NewAccount(clientID uint16) Account {
	return Account{ClientID: clientID, disputed: mapset.NewThreadUnsafeSet[uint32]()}
}

// Total is available+held, computed on demand.
func (a Account) Total() (amount.Amount, error) {
	return a.Available.CheckedAdd(a.Held)
}

// IsDisputed reports whether tx is currently under dispute for this
// account.
func (a Account) IsDisputed(tx uint32) bool {
	if a.disputed == nil {
		return false
	}
	return a.disputed.Contains(tx)
}

// DisputedCount returns the number of transactions currently disputed.
// Exposed for diagnostics/tests only.
func (a Account) DisputedCount() int {
	if a.disputed == nil {
		return 0
	}
	return a.disputed.Cardinality()
}

func (a Account) cloneSet() mapset.Set[uint32] {
	if a.disputed == nil {
		return mapset.NewThreadUnsafeSet[uint32]()
	}
	return a.disputed.Clone()
}

// ApplyDeposit credits amt to available. amt must be strictly positive.
// Rejected with ErrOverflow, account unchanged, if the resulting total
// (available+held) would exceed the representable range — available alone
// not overflowing is not enough, since held already carries disputed funds.
func (a Account) ApplyDeposit(amt amount.Amount) (Account, error) {
	if a.Locked {
		return a, ErrAccountLocked
	}
	if !amt.IsPositive() {
		return a, ErrInvalidAmount
	}
	available, err := a.Available.CheckedAdd(amt)
	if err != nil {
		return a, errors.Join(ErrOverflow, err)
	}
	if _, err := available.CheckedAdd(a.Held); err != nil {
		return a, errors.Join(ErrOverflow, err)
	}
	a.Available = available
	return a, nil
}

// ApplyWithdrawal debits amt from available. amt must be strictly positive
// and no greater than the current available balance.
func (a Account) ApplyWithdrawal(amt amount.Amount) (Account, error) {
	if a.Locked {
		return a, ErrAccountLocked
	}
	if !amt.IsPositive() {
		return a, ErrInvalidAmount
	}
	if a.Available.Cmp(amt) < 0 {
		return a, ErrInsufficientFunds
	}
	available, err := a.Available.CheckedSub(amt)
	if err != nil {
		return a, errors.Join(ErrOverflow, err)
	}
	a.Available = available
	return a, nil
}

// ApplyDispute moves amt from available to held and marks tx disputed. The
// dispute is rejected — not granted on credit — if intervening withdrawals
// have left available below amt; see the design note on this in DESIGN.md.
func (a Account) ApplyDispute(tx uint32, amt amount.Amount) (Account, error) {
	if a.Locked {
		return a, ErrAccountLocked
	}
	if a.IsDisputed(tx) {
		return a, ErrAlreadyDisputed
	}
	if a.Available.Cmp(amt) < 0 {
		return a, ErrInsufficientFunds
	}
	available, err := a.Available.CheckedSub(amt)
	if err != nil {
		return a, errors.Join(ErrOverflow, err)
	}
	held, err := a.Held.CheckedAdd(amt)
	if err != nil {
		return a, errors.Join(ErrOverflow, err)
	}
	a.Available = available
	a.Held = held
	a.disputed = a.cloneSet()
	a.disputed.Add(tx)
	return a, nil
}

// ApplyResolve moves amt from held back to available and clears the
// dispute on tx.
func (a Account) ApplyResolve(tx uint32, amt amount.Amount) (Account, error) {
	if a.Locked {
		return a, ErrAccountLocked
	}
	if !a.IsDisputed(tx) {
		return a, ErrNotDisputed
	}
	if a.Held.Cmp(amt) < 0 {
		return a, ErrInsufficientFunds
	}
	held, err := a.Held.CheckedSub(amt)
	if err != nil {
		return a, errors.Join(ErrOverflow, err)
	}
	available, err := a.Available.CheckedAdd(amt)
	if err != nil {
		return a, errors.Join(ErrOverflow, err)
	}
	a.Held = held
	a.Available = available
	a.disputed = a.cloneSet()
	a.disputed.Remove(tx)
	return a, nil
}

// ApplyChargeback permanently removes amt from held, clears the dispute on
// tx, and locks the account. Locking is irreversible.
func (a Account) ApplyChargeback(tx uint32, amt amount.Amount) (Account, error) {
	if a.Locked {
		return a, ErrAccountLocked
	}
	if !a.IsDisputed(tx) {
		return a, ErrNotDisputed
	}
	if a.Held.Cmp(amt) < 0 {
		return a, ErrInsufficientFunds
	}
	held, err := a.Held.CheckedSub(amt)
	if err != nil {
		return a, errors.Join(ErrOverflow, err)
	}
	a.Held = held
	a.disputed = a.cloneSet()
	a.disputed.Remove(tx)
	a.Locked = true
	return a, nil
}
