package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
)

// TransactionRepository implements domain.TransactionRepository in process
// memory with a unique index on reference.
type TransactionRepository struct {
	mu          sync.RWMutex
	byID        map[string]*domain.Transaction
	byReference map[string]string
}

// NewTransactionRepository creates an empty TransactionRepository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		byID:        make(map[string]*domain.Transaction),
		byReference: make(map[string]string),
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byReference[txn.Reference]; ok {
		return domain.ErrDuplicateReference
	}
	r.byID[txn.ID] = txn.Clone()
	r.byReference[txn.Reference] = txn.ID
	recordUndo(ctx, func() {
		r.mu.Lock()
		delete(r.byID, txn.ID)
		delete(r.byReference, txn.Reference)
		r.mu.Unlock()
	})
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txn, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return txn.Clone(), nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byReference[reference]
	if !ok {
		return nil, nil
	}
	return r.byID[id].Clone(), nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, from, to domain.TransactionStatus, resolvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	txn, ok := r.byID[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if txn.Status != from {
		return &domain.InvalidStateError{TransactionID: id, Status: txn.Status}
	}

	prev := txn.Clone()
	txn.Status = to
	at := resolvedAt
	txn.ResolvedAt = &at
	recordUndo(ctx, func() {
		r.mu.Lock()
		r.byID[id] = prev
		r.mu.Unlock()
	})
	return nil
}

var _ domain.TransactionRepository = (*TransactionRepository)(nil)
