package memory

import (
	"context"
	"sync"
)

// journalKey is the key type for storing the undo journal in context.
type journalKey struct{}

// journal records compensating actions for every mutation made inside a
// unit of work. Rolling back runs them in reverse order.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

func (j *journal) record(fn func()) {
	j.mu.Lock()
	j.undo = append(j.undo, fn)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// recordUndo appends fn to the journal carried by ctx. Outside a unit of
// work mutations are final and fn is dropped.
func recordUndo(ctx context.Context, fn func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.record(fn)
	}
}

// TransactionManager implements domain.TransactionManager for the in-memory
// stores. Callers are expected to hold the balance locks of every key they
// mutate, so compensations never interleave with foreign writes.
type TransactionManager struct{}

// NewTransactionManager creates a new TransactionManager.
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// WithTransaction executes fn within a unit of work. If fn returns an error
// or panics, every mutation recorded through ctx is undone.
// A nested call joins the outer unit.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}
