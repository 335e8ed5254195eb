package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
)

// Registry implements domain.InflightRegistry in process memory.
type Registry struct {
	mu           sync.RWMutex
	reservations map[string]*domain.Reservation
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		reservations: make(map[string]*domain.Reservation),
	}
}

func (r *Registry) Insert(ctx context.Context, res *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reservations[res.TransactionID]; ok {
		return domain.ErrDuplicateReservation
	}
	c := *res
	r.reservations[res.TransactionID] = &c
	recordUndo(ctx, func() {
		r.mu.Lock()
		delete(r.reservations, res.TransactionID)
		r.mu.Unlock()
	})
	return nil
}

func (r *Registry) Get(ctx context.Context, transactionID string) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.reservations[transactionID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	c := *res
	return &c, nil
}

func (r *Registry) Remove(ctx context.Context, transactionID string) (*domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[transactionID]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	delete(r.reservations, transactionID)
	recordUndo(ctx, func() {
		r.mu.Lock()
		r.reservations[transactionID] = res
		r.mu.Unlock()
	})
	c := *res
	return &c, nil
}

func (r *Registry) ListByAccount(ctx context.Context, account, currency string) ([]*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Reservation, 0)
	for _, res := range r.reservations {
		if res.Account == account && res.Currency == currency {
			c := *res
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TransactionID < out[j].TransactionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Len returns the number of open reservations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reservations)
}

var _ domain.InflightRegistry = (*Registry)(nil)
