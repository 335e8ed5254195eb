package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
)

const transactionColumns = `
	id, reference, source, destination, currency,
	amount, precision, allow_overdraft, inflight,
	description, meta_data, status, created_at, resolved_at
`

// TransactionRepository implements domain.TransactionRepository using PostgreSQL.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{
		pool: pool,
	}
}

// Create persists a new transaction record.
func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		txn.ID,
		txn.Reference,
		txn.Source,
		txn.Destination,
		txn.Currency,
		txn.Amount,
		txn.Precision,
		txn.AllowOverdraft,
		txn.Inflight,
		txn.Description,
		txn.MetaData,
		string(txn.Status),
		txn.CreatedAt,
		txn.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReference
		}
		return domain.NewStoreError("create transaction", err)
	}
	return nil
}

// GetByID retrieves a transaction by its unique identifier.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	txn, err := scanTransaction(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, domain.NewStoreError("get transaction", err)
	}
	return txn, nil
}

// GetByReference retrieves a transaction by its idempotency reference.
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	txn, err := scanTransaction(conn(ctx, r.pool).QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No transaction found with this reference
		}
		return nil, domain.NewStoreError("get transaction by reference", err)
	}
	return txn, nil
}

// UpdateStatus moves a transaction from one status to another. The WHERE
// clause on status makes concurrent resolutions mutually exclusive.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, from, to domain.TransactionStatus, resolvedAt time.Time) error {
	query := `
		UPDATE transactions
		SET status = $3,
		    resolved_at = $4
		WHERE id = $1 AND status = $2
	`

	q := conn(ctx, r.pool)
	result, err := q.Exec(ctx, query, id, string(from), string(to), resolvedAt)
	if err != nil {
		return domain.NewStoreError("update transaction status", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = q.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTransactionNotFound
		}
		return domain.NewStoreError("update transaction status", err)
	}
	return &domain.InvalidStateError{TransactionID: id, Status: domain.TransactionStatus(current)}
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var txn domain.Transaction
	var status string

	err := row.Scan(
		&txn.ID,
		&txn.Reference,
		&txn.Source,
		&txn.Destination,
		&txn.Currency,
		&txn.Amount,
		&txn.Precision,
		&txn.AllowOverdraft,
		&txn.Inflight,
		&txn.Description,
		&txn.MetaData,
		&status,
		&txn.CreatedAt,
		&txn.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Status = domain.TransactionStatus(status)
	return &txn, nil
}

var _ domain.TransactionRepository = (*TransactionRepository)(nil)
