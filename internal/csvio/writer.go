package csvio

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"

	"github.com/luxfi/ledger-engine/internal/egress"
	"github.com/luxfi/ledger-engine/internal/ledger"
)

var header = []string{"client", "available", "held", "total", "locked"}

// Writer renders account snapshots as CSV, in the client,available,held,
// total,locked shape. Writer implements egress.Egress.
type Writer struct {
	mu      sync.Mutex
	w       *csv.Writer
	closer  io.Closer
	headErr error
}

// NewWriter wraps w and immediately writes the header row, so that even a
// snapshot with zero accounts still produces a well-formed CSV (header,
// zero rows). If w also implements io.Closer, Writer.Close closes it after
// flushing.
func NewWriter(w io.Writer) *Writer {
	closer, _ := w.(io.Closer)
	wr := &Writer{w: csv.NewWriter(w), closer: closer}
	wr.headErr = wr.w.Write(header)
	return wr
}

var _ egress.Egress = (*Writer)(nil)

// WriteAccount appends one row.
func (wr *Writer) WriteAccount(a ledger.Account) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if wr.headErr != nil {
		return wr.headErr
	}

	total, err := a.Total()
	if err != nil {
		return err
	}

	row := []string{
		strconv.FormatUint(uint64(a.ClientID), 10),
		a.Available.Format4dp(),
		a.Held.Format4dp(),
		total.Format4dp(),
		strconv.FormatBool(a.Locked),
	}
	return wr.w.Write(row)
}

// Close flushes buffered rows and releases the underlying writer if it is
// closable.
func (wr *Writer) Close() error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if wr.headErr != nil {
		return wr.headErr
	}

	wr.w.Flush()
	if err := wr.w.Error(); err != nil {
		return err
	}
	if wr.closer != nil {
		return wr.closer.Close()
	}
	return nil
}
