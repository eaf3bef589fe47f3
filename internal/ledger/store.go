package ledger

import (
	"sync"
)

// DefaultShardCount is used when a store is constructed without an
// explicit shard count. It sits in the 16-64 shard range the engine
// targets for typical deployments.
const DefaultShardCount = 32

// AccountStore is a concurrent keyed store of Account, partitioned into a
// fixed number of shards so that mutation of disjoint clients never
// contends on a single lock. Every Account is exclusively owned by the
// store; callers reach it only through EntryHandle.Update (mutation) or
// Get/Snapshot (a value copy).
//
// Generalizes a per-subpool reservation-locking pattern from "one lock
// protecting one map" to "N locks protecting N maps": each lock guards one
// shard of client ids, not a single key.
type AccountStore struct {
	shards []accountShard
	mask   uint64
}

type accountShard struct {
	mu       sync.RWMutex
	accounts map[uint16]Account
}

// NewAccountStore constructs a store with shardCount shards, rounded up to
// the next power of two for cheap masking. shardCount <= 0 uses
// DefaultShardCount.
func NewAccountStore(shardCount int) *AccountStore {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	n := nextPowerOfTwo(shardCount)
	s := &AccountStore{
		shards: make([]accountShard, n),
		mask:   uint64(n - 1),
	}
	for i := range s.shards {
		s.shards[i].accounts = make(map[uint16]Account)
	}
	return s
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

func (s *AccountStore) shardFor(clientID uint16) *accountShard {
	return &s.shards[uint64(clientID)&s.mask]
}

// EntryHandle is the sole legal path to mutating an Account. It holds an
// exclusive lock on that client's shard only for the duration of Update.
type EntryHandle struct {
	store    *AccountStore
	shard    *accountShard
	clientID uint16
}

// Entry returns a handle scoped to clientID, creating the account lazily
// if this is the first reference to that client.
func (s *AccountStore) Entry(clientID uint16) EntryHandle {
	shard := s.shardFor(clientID)
	shard.mu.Lock()
	if _, ok := shard.accounts[clientID]; !ok {
		shard.accounts[clientID] = NewAccount(clientID)
	}
	shard.mu.Unlock()
	return EntryHandle{store: s, shard: shard, clientID: clientID}
}

// Update invokes f against the current account state, holding the shard's
// exclusive lock for the whole call. If f returns an error, the account in
// the store is left exactly as it was before the call — a failed
// transition never partially applies.
func (h EntryHandle) Update(f func(Account) (Account, error)) error {
	h.shard.mu.Lock()
	defer h.shard.mu.Unlock()

	current, ok := h.shard.accounts[h.clientID]
	if !ok {
		current = NewAccount(h.clientID)
	}
	next, err := f(current)
	if err != nil {
		return err
	}
	h.shard.accounts[h.clientID] = next
	return nil
}

// Get returns a value copy of the account, or false if the client has
// never been referenced.
func (s *AccountStore) Get(clientID uint16) (Account, bool) {
	shard := s.shardFor(clientID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	a, ok := shard.accounts[clientID]
	return a, ok
}

// Snapshot streams every account to sink, one shard at a time. Each
// shard's read lock is held only during that shard's own traversal, so
// concurrent mutators on other shards are never blocked. The resulting
// view is a mixed instant: each account is internally consistent, but
// distinct accounts may reflect different points in time relative to one
// another.
func (s *AccountStore) Snapshot(sink func(Account) error) error {
	for i := range s.shards {
		shard := &s.shards[i]
		if err := snapshotShard(shard, sink); err != nil {
			return err
		}
	}
	return nil
}

func snapshotShard(shard *accountShard, sink func(Account) error) error {
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	for _, a := range shard.accounts {
		if err := sink(a); err != nil {
			return err
		}
	}
	return nil
}

// ShardCount reports the number of shards backing the store.
func (s *AccountStore) ShardCount() int { return len(s.shards) }

// TransactionStore is an append-only sharded keyed store of Record,
// keyed by tx id. There is no get-mut and no delete: disputability lives
// in the Account, never here.
type TransactionStore struct {
	shards []txShard
	mask   uint64
}

type txShard struct {
	mu      sync.RWMutex
	records map[uint32]Record
}

// NewTransactionStore constructs a store with shardCount shards (rounded
// up to a power of two); shardCount <= 0 uses DefaultShardCount.
func NewTransactionStore(shardCount int) *TransactionStore {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	n := nextPowerOfTwo(shardCount)
	s := &TransactionStore{
		shards: make([]txShard, n),
		mask:   uint64(n - 1),
	}
	for i := range s.shards {
		s.shards[i].records = make(map[uint32]Record)
	}
	return s
}

func (s *TransactionStore) shardFor(tx uint32) *txShard {
	return &s.shards[uint64(tx)&s.mask]
}

// Insert adds a record for tx. If tx is already present the call is a
// no-op: the existing record is immutable and is never overwritten. The
// return value reports whether this call performed the insertion (false
// means tx was already known). The processor does not rely on it: it
// checks Contains before applying a deposit or withdrawal and reports an
// already-known tx as DuplicateTransaction.
func (s *TransactionStore) Insert(tx uint32, r Record) bool {
	shard := s.shardFor(tx)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, exists := shard.records[tx]; exists {
		return false
	}
	shard.records[tx] = r
	return true
}

// Get returns a value copy of the record for tx, or false if unknown.
func (s *TransactionStore) Get(tx uint32) (Record, bool) {
	shard := s.shardFor(tx)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	r, ok := shard.records[tx]
	return r, ok
}

// Contains reports whether tx is known to the store.
func (s *TransactionStore) Contains(tx uint32) bool {
	_, ok := s.Get(tx)
	return ok
}
