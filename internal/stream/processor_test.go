package stream

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/luxfi/ledger-engine/internal/amount"
	"github.com/luxfi/ledger-engine/internal/engine"
	"github.com/luxfi/ledger-engine/internal/ingress"
	"github.com/luxfi/ledger-engine/internal/ledger"
)

// sliceIngress replays a fixed slice of items in order, one per Next call.
type sliceIngress struct {
	mu    sync.Mutex
	items []ingress.Item
	pos   int
}

func newSliceIngress(items ...ingress.Item) *sliceIngress {
	return &sliceIngress{items: items}
}

func (s *sliceIngress) Next(ctx context.Context) (ingress.Item, bool, error) {
	select {
	case <-ctx.Done():
		return ingress.Item{}, false, ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.items) {
		return ingress.Item{}, false, nil
	}
	item := s.items[s.pos]
	s.pos++
	return item, true, nil
}

func (s *sliceIngress) Close() error { return nil }

func deposit(client uint16, tx uint32, amt string) ingress.Item {
	return ingress.Item{Transaction: ledger.NewDeposit(client, tx, amount.MustParse(amt))}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunSingleStreamBasicScenario(t *testing.T) {
	accounts := ledger.NewAccountStore(4)
	transactions := ledger.NewTransactionStore(4)
	sp := New(accounts, transactions, Config{Shards: 1})

	sp.Subscribe(newSliceIngress(
		deposit(1, 1, "1.0"),
		deposit(2, 2, "2.0"),
		deposit(1, 3, "2.0"),
		ingress.Item{Transaction: ledger.NewWithdrawal(1, 4, amount.MustParse("1.5"))},
		ingress.Item{Transaction: ledger.NewWithdrawal(2, 5, amount.MustParse("3.0"))},
	))

	report, err := sp.Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.Aborted)

	a1, _ := accounts.Get(1)
	require.Equal(t, "1.5000", a1.Available.Format4dp())
	a2, _ := accounts.Get(2)
	require.Equal(t, "2.0000", a2.Available.Format4dp())
}

func TestRunAppliesEveryStreamAcrossShards(t *testing.T) {
	accounts := ledger.NewAccountStore(8)
	transactions := ledger.NewTransactionStore(8)
	sp := New(accounts, transactions, Config{Shards: 4, Assignment: RoundRobin, Combinator: Merge})

	for s := 0; s < 4; s++ {
		client := uint16(100 + s)
		items := make([]ingress.Item, 0, 20)
		for i := 0; i < 20; i++ {
			items = append(items, deposit(client, uint32(s*1000+i), "1.0"))
		}
		sp.Subscribe(newSliceIngress(items...))
	}

	report, err := sp.Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.Aborted)

	for s := 0; s < 4; s++ {
		a, ok := accounts.Get(uint16(100 + s))
		require.True(t, ok)
		require.Equal(t, "20.0000", a.Available.Format4dp())
	}
}

func TestRunSkipPolicyContinuesPastDomainErrors(t *testing.T) {
	accounts := ledger.NewAccountStore(4)
	transactions := ledger.NewTransactionStore(4)
	sp := New(accounts, transactions, Config{Shards: 1, Policy: engine.NewSilentSkip(nil)})

	sp.Subscribe(newSliceIngress(
		deposit(1, 1, "2.0"),
		ingress.Item{Transaction: ledger.NewWithdrawal(1, 2, amount.MustParse("50.0"))}, // insufficient funds, skipped
		deposit(1, 3, "1.0"),
	))

	report, err := sp.Run(context.Background())
	require.NoError(t, err)
	require.False(t, report.Aborted)
	require.Equal(t, uint64(2), report.PerStream[0].Successes)
	require.Equal(t, uint64(1), report.PerStream[0].Skips)

	a, _ := accounts.Get(1)
	require.Equal(t, "3.0000", a.Available.Format4dp())
}

func TestRunAbortPolicyHaltsOnFirstFailure(t *testing.T) {
	accounts := ledger.NewAccountStore(4)
	transactions := ledger.NewTransactionStore(4)
	sp := New(accounts, transactions, Config{Shards: 1, Policy: engine.NewAbortOnError(nil, nil)})

	sp.Subscribe(newSliceIngress(
		deposit(1, 1, "2.0"),
		ingress.Item{Transaction: ledger.NewWithdrawal(1, 2, amount.MustParse("50.0"))},
		deposit(1, 3, "1.0"), // never applied: the abort halts the shard first
	))

	report, err := sp.Run(context.Background())
	require.Error(t, err)
	require.True(t, report.Aborted)
	require.NotNil(t, report.FirstAbort)

	a, _ := accounts.Get(1)
	require.Equal(t, "2.0000", a.Available.Format4dp())
}

func TestRunCancellationStopsBetweenTransactions(t *testing.T) {
	accounts := ledger.NewAccountStore(4)
	transactions := ledger.NewTransactionStore(4)
	sp := New(accounts, transactions, Config{Shards: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sp.Subscribe(newSliceIngress(deposit(1, 1, "1.0")))

	report, err := sp.Run(ctx)
	require.NoError(t, err)
	require.False(t, report.Aborted)
	_, ok := accounts.Get(1)
	require.False(t, ok)
}

func TestSnapshotConcurrentWithRunDoesNotDeadlock(t *testing.T) {
	accounts := ledger.NewAccountStore(16)
	transactions := ledger.NewTransactionStore(16)
	sp := New(accounts, transactions, Config{Shards: 4})

	for s := 0; s < 50; s++ {
		client := uint16(s)
		items := make([]ingress.Item, 0, 5)
		for i := 0; i < 5; i++ {
			items = append(items, deposit(client, uint32(s*10+i), "1.0"))
		}
		sp.Subscribe(newSliceIngress(items...))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = sp.Run(context.Background())
	}()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := sp.Snapshot(func(a ledger.Account) error {
				total, terr := a.Total()
				if terr != nil {
					return terr
				}
				if total.Cmp(a.Available) != 0 {
					return errors.New("total != available+held for zero-held account")
				}
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	<-done
}
