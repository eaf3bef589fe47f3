package ledger

import "github.com/luxfi/ledger-engine/internal/amount"

// Kind tags the variant of a Transaction event.
type Kind uint8

const (
	KindDeposit Kind = iota
	KindWithdrawal
	KindDispute
	KindResolve
	KindChargeback
)

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdrawal:
		return "withdrawal"
	case KindDispute:
		return "dispute"
	case KindResolve:
		return "resolve"
	case KindChargeback:
		return "chargeback"
	default:
		return "unknown"
	}
}

// Transaction is a single event delivered to the Processor. One struct
// carries every kind, so the type itself does not stop a caller from
// setting Amount on a Dispute, Resolve or Chargeback; NewDispute,
// NewResolve and NewChargeback leave it zero, and the Processor never
// reads Amount for those kinds.
type Transaction struct {
	Kind   Kind
	Client uint16
	TX     uint32
	Amount amount.Amount // only meaningful for Deposit/Withdrawal
}

// NewDeposit builds a Deposit event.
func NewDeposit(client uint16, tx uint32, amt amount.Amount) Transaction {
	return Transaction{Kind: KindDeposit, Client: client, TX: tx, Amount: amt}
}

// NewWithdrawal builds a Withdrawal event.
func NewWithdrawal(client uint16, tx uint32, amt amount.Amount) Transaction {
	return Transaction{Kind: KindWithdrawal, Client: client, TX: tx, Amount: amt}
}

// NewDispute builds a Dispute event.
func NewDispute(client uint16, tx uint32) Transaction {
	return Transaction{Kind: KindDispute, Client: client, TX: tx}
}

// NewResolve builds a Resolve event.
func NewResolve(client uint16, tx uint32) Transaction {
	return Transaction{Kind: KindResolve, Client: client, TX: tx}
}

// NewChargeback builds a Chargeback event.
func NewChargeback(client uint16, tx uint32) Transaction {
	return Transaction{Kind: KindChargeback, Client: client, TX: tx}
}

// RecordKind restricts Record.Kind to the two amount-carrying transaction
// kinds. Only deposit records can be disputed.
type RecordKind uint8

const (
	RecordDeposit RecordKind = iota
	RecordWithdrawal
)

// Record captures only what is needed to arbitrate a later dispute.
// Immutable once inserted into a TransactionStore: there is no setter.
type Record struct {
	Client uint16
	Amount amount.Amount
	Kind   RecordKind
}
