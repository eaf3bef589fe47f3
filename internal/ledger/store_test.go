package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ledger-engine/internal/amount"
)

func TestAccountStoreEntryCreatesLazily(t *testing.T) {
	s := NewAccountStore(4)
	_, ok := s.Get(7)
	require.False(t, ok)

	err := s.Entry(7).Update(func(a Account) (Account, error) {
		return a.ApplyDeposit(amount.MustParse("1.0"))
	})
	require.NoError(t, err)

	got, ok := s.Get(7)
	require.True(t, ok)
	require.Equal(t, "1.0000", got.Available.Format4dp())
}

func TestAccountStoreUpdateFailureLeavesAccountUnchanged(t *testing.T) {
	s := NewAccountStore(4)
	entry := s.Entry(3)
	require.NoError(t, entry.Update(func(a Account) (Account, error) {
		return a.ApplyDeposit(amount.MustParse("2.0"))
	}))

	err := entry.Update(func(a Account) (Account, error) {
		return a.ApplyWithdrawal(amount.MustParse("9999.0"))
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	got, _ := s.Get(3)
	require.Equal(t, "2.0000", got.Available.Format4dp())
}

func TestAccountStoreSnapshotSeesAllPriorClients(t *testing.T) {
	s := NewAccountStore(4)
	for i := uint16(0); i < 50; i++ {
		require.NoError(t, s.Entry(i).Update(func(a Account) (Account, error) {
			return a.ApplyDeposit(amount.MustParse("1.0"))
		}))
	}
	seen := map[uint16]bool{}
	err := s.Snapshot(func(a Account) error {
		seen[a.ClientID] = true
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 50)
}

func TestAccountStoreConcurrentDisjointClients(t *testing.T) {
	s := NewAccountStore(16)
	var wg sync.WaitGroup
	for i := uint16(0); i < 200; i++ {
		wg.Add(1)
		go func(client uint16) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = s.Entry(client).Update(func(a Account) (Account, error) {
					return a.ApplyDeposit(amount.MustParse("1.0"))
				})
			}
		}(i)
	}
	wg.Wait()

	err := s.Snapshot(func(a Account) error {
		require.Equal(t, "10.0000", a.Available.Format4dp())
		total, terr := a.Total()
		require.NoError(t, terr)
		require.Equal(t, a.Available, total)
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionStoreInsertIsIdempotent(t *testing.T) {
	s := NewTransactionStore(4)
	r := Record{Client: 1, Amount: amount.MustParse("5.0"), Kind: RecordDeposit}
	require.True(t, s.Insert(10, r))
	require.False(t, s.Insert(10, Record{Client: 2, Amount: amount.MustParse("9.0"), Kind: RecordDeposit}))

	got, ok := s.Get(10)
	require.True(t, ok)
	require.Equal(t, r, got)
}

func TestTransactionStoreContainsAndGetCopy(t *testing.T) {
	s := NewTransactionStore(4)
	require.False(t, s.Contains(1))
	s.Insert(1, Record{Client: 1, Amount: amount.MustParse("1.0"), Kind: RecordWithdrawal})
	require.True(t, s.Contains(1))
	r, ok := s.Get(1)
	require.True(t, ok)
	require.Equal(t, RecordWithdrawal, r.Kind)
}
