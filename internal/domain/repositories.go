package domain

import (
	"context"
	"time"
)

// LedgerStore holds balances keyed by (account, currency).
// Balances are opened lazily on first use. Mutations participate in the
// unit of work carried by ctx, if any.
type LedgerStore interface {
	// GetBalance returns ErrBalanceNotFound if the balance was never opened.
	GetBalance(ctx context.Context, account, currency string) (*Balance, error)

	// OpenBalance returns the balance, creating it with the given precision
	// if missing. Inside a unit of work the balance stays locked until the
	// unit ends. Returns a ValidationError if the stored precision differs.
	OpenBalance(ctx context.Context, account, currency string, precision int64) (*Balance, error)

	// Reserve increases the inflight amount of a balance. Unless
	// allowOverdraft is set, fails with ErrInsufficientFunds when the
	// available amount is lower than amount.
	Reserve(ctx context.Context, account, currency string, amount, precision int64, allowOverdraft bool) (*Balance, error)

	// Release decreases the inflight amount of a balance.
	Release(ctx context.Context, account, currency string, amount int64) (*Balance, error)

	// Post moves funds from source to destination.
	Post(ctx context.Context, p Posting) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// InflightRegistry tracks the reservation held by each pending transaction.
type InflightRegistry interface {
	// Insert registers a reservation. Fails with ErrDuplicateReservation if
	// the transaction already holds one.
	Insert(ctx context.Context, r *Reservation) error

	// Get returns ErrReservationNotFound if none is registered.
	Get(ctx context.Context, transactionID string) (*Reservation, error)

	// Remove deletes and returns the reservation.
	Remove(ctx context.Context, transactionID string) (*Reservation, error)

	// ListByAccount returns the open reservations held against a balance,
	// oldest first.
	ListByAccount(ctx context.Context, account, currency string) ([]*Reservation, error)
}

// TransactionRepository defines the interface for transaction persistence.
type TransactionRepository interface {
	// Create persists a new transaction record.
	// Fails with ErrDuplicateReference if the reference is taken.
	Create(ctx context.Context, txn *Transaction) error

	// GetByID retrieves a transaction by its unique identifier.
	// Returns ErrTransactionNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// GetByReference retrieves a transaction by its idempotency reference.
	// Returns nil, nil if not found.
	GetByReference(ctx context.Context, reference string) (*Transaction, error)

	// UpdateStatus moves a transaction from status from to status to.
	// Returns an InvalidStateError if the stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to TransactionStatus, resolvedAt time.Time) error
}

// TransactionManager defines the interface for managing units of work.
type TransactionManager interface {
	// WithTransaction executes the given function within a unit of work.
	// If the function returns an error, every mutation made through ctx is
	// rolled back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker provides keyed exclusive sections.
type Locker interface {
	// WithLock runs fn while holding the lock for key. Fails with
	// ErrLockUnavailable if the lock cannot be acquired.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// EventPublisher publishes transaction lifecycle events to external systems.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, txn *Transaction) error
}
