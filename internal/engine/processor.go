package engine

import (
	"github.com/luxfi/ledger-engine/internal/amount"
	"github.com/luxfi/ledger-engine/internal/ledger"
)

// adjuster is the shape shared by Account.ApplyDispute/ApplyResolve/ApplyChargeback.
type adjuster func(ledger.Account, uint32, amount.Amount) (ledger.Account, error)

// Processor applies a single Transaction against a shared AccountStore and
// TransactionStore. It is stateless and safe for concurrent use by
// multiple shard workers: all the coordination it needs is already
// provided by the stores' own per-key locking.
type Processor struct {
	accounts     *ledger.AccountStore
	transactions *ledger.TransactionStore
}

// New returns a Processor bound to the given stores.
func New(accounts *ledger.AccountStore, transactions *ledger.TransactionStore) *Processor {
	return &Processor{accounts: accounts, transactions: transactions}
}

// Process applies t. On any failure the stores are left exactly as they
// were before the call; the returned error is always either a *Error
// wrapping one of this package's sentinels or a *Error wrapping a
// ledger.DomainError.
func (p *Processor) Process(t ledger.Transaction) error {
	switch t.Kind {
	case ledger.KindDeposit:
		return p.processDeposit(t)
	case ledger.KindWithdrawal:
		return p.processWithdrawal(t)
	case ledger.KindDispute:
		return p.processAdjustment(t, ledger.Account.ApplyDispute)
	case ledger.KindResolve:
		return p.processAdjustment(t, ledger.Account.ApplyResolve)
	case ledger.KindChargeback:
		return p.processAdjustment(t, ledger.Account.ApplyChargeback)
	default:
		return wrap(t.TX, ErrUnknownKind)
	}
}

func (p *Processor) processDeposit(t ledger.Transaction) error {
	if p.transactions.Contains(t.TX) {
		return wrap(t.TX, ErrDuplicateTransaction)
	}
	entry := p.accounts.Entry(t.Client)
	if err := entry.Update(func(a ledger.Account) (ledger.Account, error) {
		return a.ApplyDeposit(t.Amount)
	}); err != nil {
		return wrap(t.TX, err)
	}
	// Record strictly after the account mutation succeeds: a crash between
	// the two leaves the account correct and the dispute path simply
	// unable to find the record yet, never the reverse.
	p.transactions.Insert(t.TX, ledger.Record{Client: t.Client, Amount: t.Amount, Kind: ledger.RecordDeposit})
	return nil
}

func (p *Processor) processWithdrawal(t ledger.Transaction) error {
	if p.transactions.Contains(t.TX) {
		return wrap(t.TX, ErrDuplicateTransaction)
	}
	entry := p.accounts.Entry(t.Client)
	if err := entry.Update(func(a ledger.Account) (ledger.Account, error) {
		return a.ApplyWithdrawal(t.Amount)
	}); err != nil {
		return wrap(t.TX, err)
	}
	// Recorded for audit completeness only; CannotDisputeWithdrawal keeps a
	// later dispute from ever touching it (see processAdjustment).
	p.transactions.Insert(t.TX, ledger.Record{Client: t.Client, Amount: t.Amount, Kind: ledger.RecordWithdrawal})
	return nil
}

func (p *Processor) processAdjustment(t ledger.Transaction, apply adjuster) error {
	record, ok := p.transactions.Get(t.TX)
	if !ok {
		return wrap(t.TX, ErrTransactionNotFound)
	}
	if record.Client != t.Client {
		return wrap(t.TX, ErrClientMismatch)
	}
	if record.Kind != ledger.RecordDeposit {
		return wrap(t.TX, ErrCannotDisputeWithdrawal)
	}
	entry := p.accounts.Entry(t.Client)
	if err := entry.Update(func(a ledger.Account) (ledger.Account, error) {
		return apply(a, t.TX, record.Amount)
	}); err != nil {
		return wrap(t.TX, err)
	}
	return nil
}
