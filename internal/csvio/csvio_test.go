package csvio

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ledger-engine/internal/amount"
	"github.com/luxfi/ledger-engine/internal/ledger"
)

func TestReaderParsesAllFiveKinds(t *testing.T) {
	const csvData = `type, client, tx, amount
deposit, 1, 1, 1.0
deposit, 2, 2, 2.0
deposit, 1, 3, 2.0
withdrawal, 1, 4, 1.5
dispute, 1, 3,
resolve, 1, 3,
chargeback, 2, 2,
`
	r := NewReader(strings.NewReader(csvData))
	var items []ledger.Transaction
	for {
		item, ok, err := r.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		require.NoError(t, item.Err)
		items = append(items, item.Transaction)
	}
	require.Len(t, items, 7)
	require.Equal(t, ledger.KindDeposit, items[0].Kind)
	require.Equal(t, ledger.KindChargeback, items[6].Kind)
	require.Equal(t, uint16(2), items[6].Client)
}

func TestReaderToleratesMissingTrailingAmount(t *testing.T) {
	r := NewReader(strings.NewReader("type,client,tx,amount\ndispute,1,1\n"))
	item, ok, err := r.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, item.Err)
	require.Equal(t, ledger.KindDispute, item.Transaction.Kind)
}

func TestReaderSurfacesParseErrorsPerRowNotFatally(t *testing.T) {
	r := NewReader(strings.NewReader("type,client,tx,amount\nbogus,1,1,1.0\ndeposit,1,2,1.0\n"))

	item, ok, err := r.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Error(t, item.Err)

	item, ok, err = r.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, item.Err)
	require.Equal(t, ledger.KindDeposit, item.Transaction.Kind)
}

func TestReaderEmptyAfterHeaderIsClean(t *testing.T) {
	r := NewReader(strings.NewReader("type,client,tx,amount\n"))
	_, ok, err := r.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWriterRoundTripsAccountRows(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	a := ledger.NewAccount(7)
	a, err := a.ApplyDeposit(amount.MustParse("12.3456"))
	require.NoError(t, err)

	require.NoError(t, w.WriteAccount(a))
	require.NoError(t, w.Close())

	out := buf.String()
	require.Contains(t, out, "client,available,held,total,locked")
	require.Contains(t, out, "7,12.3456,0.0000,12.3456,false")
}

func TestWriterEmitsHeaderOnEmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Close())

	require.Equal(t, "client,available,held,total,locked\n", buf.String())
}
