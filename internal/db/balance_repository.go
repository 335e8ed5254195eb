package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
)

const balanceColumns = `account, currency, precision, balance, inflight_balance, version, created_at, updated_at`

// LedgerStore implements domain.LedgerStore using PostgreSQL.
// Every mutation locks the affected rows with SELECT ... FOR UPDATE, so it
// must run inside a transaction to keep the lock for the whole unit of work.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{
		pool: pool,
	}
}

// GetBalance retrieves a balance without locking it.
func (s *LedgerStore) GetBalance(ctx context.Context, account, currency string) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE account = $1 AND currency = $2`

	b, err := scanBalance(conn(ctx, s.pool).QueryRow(ctx, query, account, currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBalanceNotFound
		}
		return nil, domain.NewStoreError("get balance", err)
	}
	return b, nil
}

// OpenBalance creates the balance if missing and locks its row.
func (s *LedgerStore) OpenBalance(ctx context.Context, account, currency string, precision int64) (*domain.Balance, error) {
	q := conn(ctx, s.pool)

	insert := `
		INSERT INTO balances (account, currency, precision)
		VALUES ($1, $2, $3)
		ON CONFLICT (account, currency) DO NOTHING
	`
	if _, err := q.Exec(ctx, insert, account, currency, precision); err != nil {
		return nil, domain.NewStoreError("open balance", err)
	}

	b, err := s.lock(ctx, q, account, currency)
	if err != nil {
		return nil, err
	}
	if b.Precision != precision {
		return nil, &domain.ValidationError{
			Field:   "precision",
			Message: fmt.Sprintf("balance %s %s uses precision %d", account, currency, b.Precision),
		}
	}
	return b, nil
}

// Reserve increases the inflight amount of a balance.
func (s *LedgerStore) Reserve(ctx context.Context, account, currency string, amount, precision int64, allowOverdraft bool) (*domain.Balance, error) {
	b, err := s.OpenBalance(ctx, account, currency, precision)
	if err != nil {
		return nil, err
	}
	if !allowOverdraft && b.Available() < amount {
		return nil, fmt.Errorf("%w: %s has %d available, %d requested", domain.ErrInsufficientFunds, account, b.Available(), amount)
	}
	// checked here so BIGINT overflow surfaces like the memory store
	if _, err := domain.AddAmount(b.Inflight, amount); err != nil {
		return nil, err
	}

	query := `
		UPDATE balances
		SET inflight_balance = inflight_balance + $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE account = $1 AND currency = $2
		RETURNING ` + balanceColumns

	b, err = scanBalance(conn(ctx, s.pool).QueryRow(ctx, query, account, currency, amount))
	if err != nil {
		return nil, domain.NewStoreError("reserve", err)
	}
	return b, nil
}

// Release decreases the inflight amount of a balance.
func (s *LedgerStore) Release(ctx context.Context, account, currency string, amount int64) (*domain.Balance, error) {
	q := conn(ctx, s.pool)

	b, err := s.lock(ctx, q, account, currency)
	if err != nil {
		return nil, err
	}
	if b.Inflight < amount {
		return nil, domain.NewStoreError("release",
			fmt.Errorf("release of %d exceeds inflight %d on %s", amount, b.Inflight, account))
	}
	if _, err := domain.SubAmount(b.Inflight, amount); err != nil {
		return nil, err
	}

	query := `
		UPDATE balances
		SET inflight_balance = inflight_balance - $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE account = $1 AND currency = $2
		RETURNING ` + balanceColumns

	b, err = scanBalance(q.QueryRow(ctx, query, account, currency, amount))
	if err != nil {
		return nil, domain.NewStoreError("release", err)
	}
	return b, nil
}

// Post moves funds from source to destination. Rows are locked in account
// order to prevent deadlocks between concurrent postings.
func (s *LedgerStore) Post(ctx context.Context, p domain.Posting) error {
	first, second := p.Source, p.Destination
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]*domain.Balance, 2)
	for _, account := range []string{first, second} {
		b, err := s.OpenBalance(ctx, account, p.Currency, p.Precision)
		if err != nil {
			return err
		}
		locked[account] = b
	}

	src := locked[p.Source]
	if !p.AllowOverdraft && src.Available() < p.Amount {
		return fmt.Errorf("%w: %s has %d available, %d requested", domain.ErrInsufficientFunds, p.Source, src.Available(), p.Amount)
	}
	if _, err := domain.SubAmount(src.Balance, p.Amount); err != nil {
		return err
	}
	if _, err := domain.AddAmount(locked[p.Destination].Balance, p.Amount); err != nil {
		return err
	}

	query := `
		UPDATE balances
		SET balance = balance + $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE account = $1 AND currency = $2
	`
	q := conn(ctx, s.pool)
	if _, err := q.Exec(ctx, query, p.Source, p.Currency, -p.Amount); err != nil {
		return domain.NewStoreError("post debit", err)
	}
	if _, err := q.Exec(ctx, query, p.Destination, p.Currency, p.Amount); err != nil {
		return domain.NewStoreError("post credit", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *LedgerStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return domain.NewStoreError("ping", err)
	}
	return nil
}

// SumBalances returns the sum of posted balances in currency.
func (s *LedgerStore) SumBalances(ctx context.Context, currency string) (int64, error) {
	var sum int64
	query := `SELECT COALESCE(SUM(balance), 0)::BIGINT FROM balances WHERE currency = $1`
	if err := conn(ctx, s.pool).QueryRow(ctx, query, currency).Scan(&sum); err != nil {
		return 0, domain.NewStoreError("sum balances", err)
	}
	return sum, nil
}

func (s *LedgerStore) lock(ctx context.Context, q querier, account, currency string) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE account = $1 AND currency = $2 FOR UPDATE`

	b, err := scanBalance(q.QueryRow(ctx, query, account, currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewStoreError("lock balance", domain.ErrBalanceNotFound)
		}
		return nil, domain.NewStoreError("lock balance", err)
	}
	return b, nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var b domain.Balance
	err := row.Scan(
		&b.Account,
		&b.Currency,
		&b.Precision,
		&b.Balance,
		&b.Inflight,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

var _ domain.LedgerStore = (*LedgerStore)(nil)
