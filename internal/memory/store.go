package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
)

type balanceKey struct {
	account  string
	currency string
}

// Store implements domain.LedgerStore in process memory.
type Store struct {
	mu       sync.RWMutex
	balances map[balanceKey]*domain.Balance
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		balances: make(map[balanceKey]*domain.Balance),
	}
}

// GetBalance returns a copy of the balance.
func (s *Store) GetBalance(ctx context.Context, account, currency string) (*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[balanceKey{account, currency}]
	if !ok {
		return nil, domain.ErrBalanceNotFound
	}
	c := *b
	return &c, nil
}

// OpenBalance returns the balance, creating it if missing.
func (s *Store) OpenBalance(ctx context.Context, account, currency string, precision int64) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.open(ctx, account, currency, precision)
	if err != nil {
		return nil, err
	}
	c := *b
	return &c, nil
}

// Reserve places a hold of amount on the balance.
func (s *Store) Reserve(ctx context.Context, account, currency string, amount, precision int64, allowOverdraft bool) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.open(ctx, account, currency, precision)
	if err != nil {
		return nil, err
	}
	if !allowOverdraft && b.Available() < amount {
		return nil, fmt.Errorf("%w: %s has %d available, %d requested", domain.ErrInsufficientFunds, account, b.Available(), amount)
	}

	inflight, err := domain.AddAmount(b.Inflight, amount)
	if err != nil {
		return nil, err
	}

	s.saveForUndo(ctx, b)
	b.Inflight = inflight
	s.touch(b)

	c := *b
	return &c, nil
}

// Release removes a hold of amount from the balance.
func (s *Store) Release(ctx context.Context, account, currency string, amount int64) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[balanceKey{account, currency}]
	if !ok {
		return nil, domain.NewStoreError("release", domain.ErrBalanceNotFound)
	}
	if b.Inflight < amount {
		return nil, domain.NewStoreError("release",
			fmt.Errorf("release of %d exceeds inflight %d on %s", amount, b.Inflight, account))
	}

	inflight, err := domain.SubAmount(b.Inflight, amount)
	if err != nil {
		return nil, err
	}

	s.saveForUndo(ctx, b)
	b.Inflight = inflight
	s.touch(b)

	c := *b
	return &c, nil
}

// Post moves funds from source to destination.
func (s *Store) Post(ctx context.Context, p domain.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	first, second := p.Source, p.Destination
	if second < first {
		first, second = second, first
	}
	if _, err := s.open(ctx, first, p.Currency, p.Precision); err != nil {
		return err
	}
	if _, err := s.open(ctx, second, p.Currency, p.Precision); err != nil {
		return err
	}

	src := s.balances[balanceKey{p.Source, p.Currency}]
	dst := s.balances[balanceKey{p.Destination, p.Currency}]
	if !p.AllowOverdraft && src.Available() < p.Amount {
		return fmt.Errorf("%w: %s has %d available, %d requested", domain.ErrInsufficientFunds, p.Source, src.Available(), p.Amount)
	}

	debited, err := domain.SubAmount(src.Balance, p.Amount)
	if err != nil {
		return err
	}
	credited, err := domain.AddAmount(dst.Balance, p.Amount)
	if err != nil {
		return err
	}

	s.saveForUndo(ctx, src)
	s.saveForUndo(ctx, dst)
	src.Balance = debited
	dst.Balance = credited
	s.touch(src)
	s.touch(dst)
	return nil
}

// Ping always succeeds unless ctx is done.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Balances returns a copy of every balance in currency.
func (s *Store) Balances(currency string) []*domain.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Balance
	for k, b := range s.balances {
		if k.currency == currency {
			c := *b
			out = append(out, &c)
		}
	}
	return out
}

// open must be called with s.mu held.
func (s *Store) open(ctx context.Context, account, currency string, precision int64) (*domain.Balance, error) {
	key := balanceKey{account, currency}
	if b, ok := s.balances[key]; ok {
		if b.Precision != precision {
			return nil, &domain.ValidationError{
				Field:   "precision",
				Message: fmt.Sprintf("balance %s %s uses precision %d", account, currency, b.Precision),
			}
		}
		return b, nil
	}

	now := time.Now().UTC()
	b := &domain.Balance{
		Account:   account,
		Currency:  currency,
		Precision: precision,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.balances[key] = b
	recordUndo(ctx, func() {
		s.mu.Lock()
		delete(s.balances, key)
		s.mu.Unlock()
	})
	return b, nil
}

// saveForUndo records the current state of b so a rollback restores it.
// Must be called with s.mu held.
func (s *Store) saveForUndo(ctx context.Context, b *domain.Balance) {
	prev := *b
	recordUndo(ctx, func() {
		s.mu.Lock()
		*b = prev
		s.mu.Unlock()
	})
}

func (s *Store) touch(b *domain.Balance) {
	b.Version++
	b.UpdatedAt = time.Now().UTC()
}

var _ domain.LedgerStore = (*Store)(nil)
