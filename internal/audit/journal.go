package audit

import (
	"context"
	"fmt"
	"time"
)

// Entry is one lifecycle event of a transaction as stored in the journal.
type Entry struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	TransactionID string    `json:"transaction_id"`
	Reference     string    `json:"reference"`
	Source        string    `json:"source"`
	Destination   string    `json:"destination"`
	Currency      string    `json:"currency"`
	Amount        int64     `json:"amount"`
	Precision     int64     `json:"precision"`
	AmountValue   string    `json:"amount_string"`
	Status        string    `json:"status"`
	Inflight      bool      `json:"inflight"`
	OccurredAt    time.Time `json:"occurred_at"`
}

const createJournalTable = `
	CREATE TABLE IF NOT EXISTS transaction_journal (
		event_id String,
		event_type LowCardinality(String),
		transaction_id String,
		reference String,
		source String,
		destination String,
		currency LowCardinality(String),
		amount Int64,
		amount_precision Int64,
		amount_value String,
		status LowCardinality(String),
		inflight Bool,
		occurred_at DateTime64(3),
		recorded_at DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree()
	ORDER BY (transaction_id, occurred_at, event_id)
`

// JournalRepository stores transaction lifecycle events in ClickHouse
type JournalRepository struct {
	db *ClickHouseClient
}

// NewJournalRepository creates a new journal repository
func NewJournalRepository(db *ClickHouseClient) *JournalRepository {
	return &JournalRepository{db: db}
}

// EnsureSchema creates the journal table if it does not exist
func (r *JournalRepository) EnsureSchema(ctx context.Context) error {
	if err := r.db.Conn().Exec(ctx, createJournalTable); err != nil {
		return fmt.Errorf("failed to create journal table: %w", err)
	}
	return nil
}

// Insert appends an entry to the journal
func (r *JournalRepository) Insert(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO transaction_journal (
			event_id, event_type, transaction_id, reference,
			source, destination, currency, amount, amount_precision,
			amount_value, status, inflight, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		e.EventID,
		e.EventType,
		e.TransactionID,
		e.Reference,
		e.Source,
		e.Destination,
		e.Currency,
		e.Amount,
		e.Precision,
		e.AmountValue,
		e.Status,
		e.Inflight,
		e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert journal entry %s: %w", e.EventID, err)
	}
	return nil
}

// ListByTransaction returns the journal of one transaction, oldest first
func (r *JournalRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*Entry, error) {
	query := `
		SELECT
			event_id, event_type, transaction_id, reference,
			source, destination, currency, amount, amount_precision,
			amount_value, status, inflight, occurred_at
		FROM transaction_journal FINAL
		WHERE transaction_id = ?
		ORDER BY occurred_at, event_id
	`

	rows, err := r.db.Conn().Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal for %s: %w", transactionID, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.EventID,
			&e.EventType,
			&e.TransactionID,
			&e.Reference,
			&e.Source,
			&e.Destination,
			&e.Currency,
			&e.Amount,
			&e.Precision,
			&e.AmountValue,
			&e.Status,
			&e.Inflight,
			&e.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal rows: %w", err)
	}
	return entries, nil
}
