// Package csvio is the reference CSV adapter: a Reader implementing
// ingress.Ingress and a Writer implementing egress.Egress, handling the
// wire grammar (header type,client,tx,amount; amount
// optional for non-monetary events; up to 4 decimal digits; whitespace
// trimmed). This is what cmd/ledger-engine wires by default; any other
// host may supply its own adapter instead.
package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/luxfi/ledger-engine/internal/amount"
	"github.com/luxfi/ledger-engine/internal/ingress"
	"github.com/luxfi/ledger-engine/internal/ledger"
)

// Reader parses the CSV grammar into ledger.Transaction events, one per
// Next call. Reader implements ingress.Ingress.
type Reader struct {
	mu     sync.Mutex
	r      *csv.Reader
	closer io.Closer
	header bool
}

// NewReader wraps r. If r also implements io.Closer, Reader.Close closes
// it.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	closer, _ := r.(io.Closer)
	return &Reader{r: cr, closer: closer}
}

var _ ingress.Ingress = (*Reader)(nil)

// Next returns the next parsed transaction, or ok=false once the source is
// exhausted. A well-formed CSV line that is not a valid transaction (bad
// type, id or amount) yields item.Err rather than a non-nil err — such a
// parse error is a per-row ingress failure. Next returns a non-nil err for
// anything the underlying encoding/csv reader reports: an I/O failure
// reading the source, or a CSV-level syntax error such as malformed quoting.
func (rd *Reader) Next(ctx context.Context) (ingress.Item, bool, error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	if !rd.header {
		if _, err := rd.r.Read(); err != nil {
			if err == io.EOF {
				return ingress.Item{}, false, nil
			}
			return ingress.Item{}, false, err
		}
		rd.header = true
	}

	record, err := rd.r.Read()
	if err == io.EOF {
		return ingress.Item{}, false, nil
	}
	if err != nil {
		return ingress.Item{}, false, err
	}

	tx, parseErr := parseRecord(record)
	if parseErr != nil {
		return ingress.Item{Err: parseErr}, true, nil
	}
	return ingress.Item{Transaction: tx}, true, nil
}

// Close releases the underlying reader if it is closable.
func (rd *Reader) Close() error {
	if rd.closer != nil {
		return rd.closer.Close()
	}
	return nil
}

func parseRecord(record []string) (ledger.Transaction, error) {
	if len(record) < 3 {
		return ledger.Transaction{}, fmt.Errorf("csvio: want at least 3 fields, got %d", len(record))
	}
	kindStr := strings.TrimSpace(strings.ToLower(record[0]))
	clientStr := strings.TrimSpace(record[1])
	txStr := strings.TrimSpace(record[2])

	client, err := strconv.ParseUint(clientStr, 10, 16)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("csvio: bad client id %q: %w", clientStr, err)
	}
	tx, err := strconv.ParseUint(txStr, 10, 32)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("csvio: bad tx id %q: %w", txStr, err)
	}

	var amt amount.Amount
	if len(record) >= 4 {
		if raw := strings.TrimSpace(record[3]); raw != "" {
			amt, err = amount.Parse(raw)
			if err != nil {
				return ledger.Transaction{}, fmt.Errorf("csvio: bad amount %q: %w", raw, err)
			}
		}
	}

	switch kindStr {
	case "deposit":
		return ledger.NewDeposit(uint16(client), uint32(tx), amt), nil
	case "withdrawal":
		return ledger.NewWithdrawal(uint16(client), uint32(tx), amt), nil
	case "dispute":
		return ledger.NewDispute(uint16(client), uint32(tx)), nil
	case "resolve":
		return ledger.NewResolve(uint16(client), uint32(tx)), nil
	case "chargeback":
		return ledger.NewChargeback(uint16(client), uint32(tx)), nil
	default:
		return ledger.Transaction{}, fmt.Errorf("csvio: unknown transaction type %q", record[0])
	}
}
