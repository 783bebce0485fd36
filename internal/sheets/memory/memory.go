package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/core"
	ports "tally/internal/sheets"
)

// Exporter records exported transactions in memory.
type Exporter struct {
	mu    sync.Mutex
	refs  map[string]string
	items []core.Transaction
	fail  error
}

var _ ports.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{refs: map[string]string{}}
}

// Export stores the transaction and returns a synthetic row reference.
func (e *Exporter) Export(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.fail; err != nil {
		e.fail = nil
		return "", err
	}
	if ref, ok := e.refs[tx.ID]; ok {
		return ref, nil
	}
	e.items = append(e.items, tx)
	ref := fmt.Sprintf("mem:%d", len(e.items))
	e.refs[tx.ID] = ref
	return ref, nil
}

// FailNext makes the next Export return err.
func (e *Exporter) FailNext(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

func (e *Exporter) Items() []core.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Transaction(nil), e.items...)
}
