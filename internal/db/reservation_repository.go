package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
)

const reservationColumns = `transaction_id, account, currency, amount, precision, created_at`

// ReservationRepository implements domain.InflightRegistry using PostgreSQL.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

// NewReservationRepository creates a new ReservationRepository.
func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{
		pool: pool,
	}
}

// Insert registers a reservation.
func (r *ReservationRepository) Insert(ctx context.Context, res *domain.Reservation) error {
	query := `
		INSERT INTO inflight_reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := conn(ctx, r.pool).Exec(ctx, query,
		res.TransactionID,
		res.Account,
		res.Currency,
		res.Amount,
		res.Precision,
		res.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReservation
		}
		return domain.NewStoreError("insert reservation", err)
	}
	return nil
}

// Get retrieves the reservation of a transaction.
func (r *ReservationRepository) Get(ctx context.Context, transactionID string) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM inflight_reservations WHERE transaction_id = $1`

	res, err := scanReservation(conn(ctx, r.pool).QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, domain.NewStoreError("get reservation", err)
	}
	return res, nil
}

// Remove deletes and returns the reservation of a transaction.
func (r *ReservationRepository) Remove(ctx context.Context, transactionID string) (*domain.Reservation, error) {
	query := `DELETE FROM inflight_reservations WHERE transaction_id = $1 RETURNING ` + reservationColumns

	res, err := scanReservation(conn(ctx, r.pool).QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, domain.NewStoreError("remove reservation", err)
	}
	return res, nil
}

// ListByAccount returns the open reservations on a balance, oldest first.
func (r *ReservationRepository) ListByAccount(ctx context.Context, account, currency string) ([]*domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM inflight_reservations
		WHERE account = $1 AND currency = $2
		ORDER BY created_at, transaction_id
	`

	rows, err := conn(ctx, r.pool).Query(ctx, query, account, currency)
	if err != nil {
		return nil, domain.NewStoreError("list reservations", err)
	}
	defer rows.Close()

	out := make([]*domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, domain.NewStoreError("scan reservation", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("list reservations", err)
	}
	return out, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(
		&res.TransactionID,
		&res.Account,
		&res.Currency,
		&res.Amount,
		&res.Precision,
		&res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

var _ domain.InflightRegistry = (*ReservationRepository)(nil)
