package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// WorldAccount is the sentinel account representing funds entering or
// leaving the ledger from outside. Its balance is normally negative.
const WorldAccount = "@world"

const transactionIDPrefix = "txn_"

// Transaction is the durable record of a single money movement request.
// Transactions are never deleted; only their status moves forward.
type Transaction struct {
	ID             string                 // Server assigned identifier (txn_<uuid>)
	Reference      string                 // Client supplied idempotency token
	Source         string                 // Account debited
	Destination    string                 // Account credited
	Currency       string                 // ISO 4217 currency code
	Amount         int64                  // Amount in minor units
	Precision      int64                  // Minor units per major unit (e.g. 100 for cents)
	AllowOverdraft bool                   // Source may go below zero for this transaction only
	Inflight       bool                   // Two-phase transaction awaiting commit or void
	Description    string                 // Free text description
	MetaData       map[string]interface{} // Client metadata, stored as-is
	Status         TransactionStatus      // Current lifecycle state
	CreatedAt      time.Time              // Timestamp when the transaction was created
	ResolvedAt     *time.Time             // Timestamp of commit or void (nullable)
}

// TransactionStatus represents the lifecycle states of a transaction.
type TransactionStatus string

const (
	// StatusPending marks an inflight transaction holding a reservation.
	StatusPending TransactionStatus = "pending"

	// StatusCommitted marks an inflight transaction whose funds were posted.
	StatusCommitted TransactionStatus = "committed"

	// StatusVoided marks an inflight transaction whose reservation was released.
	StatusVoided TransactionStatus = "voided"

	// StatusApplied marks a non-inflight transaction posted at creation.
	StatusApplied TransactionStatus = "applied"
)

// IsTerminal reports whether no further transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	return s != StatusPending
}

// Balance is the ledger state of one (account, currency) pair.
type Balance struct {
	Account   string
	Currency  string
	Precision int64
	Balance   int64 // Posted amount in minor units
	Inflight  int64 // Sum of open reservations held against this balance
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Available returns the amount that can still be reserved or debited
// without overdraft, saturating at the int64 bounds.
func (b *Balance) Available() int64 {
	if v, err := SubAmount(b.Balance, b.Inflight); err == nil {
		return v
	}
	if b.Inflight > 0 {
		return math.MinInt64
	}
	return math.MaxInt64
}

// Reservation is the hold placed on a source balance by a pending
// transaction. It exists only while the transaction is pending.
type Reservation struct {
	TransactionID string
	Account       string
	Currency      string
	Amount        int64
	Precision     int64
	CreatedAt     time.Time
}

// Posting moves Amount from Source to Destination in one step.
type Posting struct {
	Source         string
	Destination    string
	Currency       string
	Amount         int64
	Precision      int64
	AllowOverdraft bool
}

// CreateTransactionRequest carries the client input for a new transaction.
type CreateTransactionRequest struct {
	Reference      string
	Source         string
	Destination    string
	Currency       string
	Amount         int64
	Precision      int64
	AllowOverdraft bool
	Inflight       bool
	Description    string
	MetaData       map[string]interface{}
}

// NewTransaction builds a transaction from a validated request.
// Inflight transactions start pending, others start applied.
func NewTransaction(req CreateTransactionRequest, now time.Time) *Transaction {
	status := StatusApplied
	if req.Inflight {
		status = StatusPending
	}
	return &Transaction{
		ID:             NewTransactionID(),
		Reference:      req.Reference,
		Source:         req.Source,
		Destination:    req.Destination,
		Currency:       req.Currency,
		Amount:         req.Amount,
		Precision:      req.Precision,
		AllowOverdraft: req.AllowOverdraft,
		Inflight:       req.Inflight,
		Description:    req.Description,
		MetaData:       req.MetaData,
		Status:         status,
		CreatedAt:      now,
	}
}

// NewTransactionID returns a fresh transaction identifier.
func NewTransactionID() string {
	return transactionIDPrefix + uuid.New().String()
}

// Reservation returns the hold this transaction places on its source.
func (t *Transaction) Reservation() *Reservation {
	return &Reservation{
		TransactionID: t.ID,
		Account:       t.Source,
		Currency:      t.Currency,
		Amount:        t.Amount,
		Precision:     t.Precision,
		CreatedAt:     t.CreatedAt,
	}
}

// Posting returns the movement this transaction applies when posted.
func (t *Transaction) Posting() Posting {
	return Posting{
		Source:         t.Source,
		Destination:    t.Destination,
		Currency:       t.Currency,
		Amount:         t.Amount,
		Precision:      t.Precision,
		AllowOverdraft: t.AllowOverdraft,
	}
}

// Clone returns a copy that shares no mutable state with t.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.MetaData != nil {
		c.MetaData = make(map[string]interface{}, len(t.MetaData))
		for k, v := range t.MetaData {
			c.MetaData[k] = v
		}
	}
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		c.ResolvedAt = &at
	}
	return &c
}

func (t *Transaction) markResolved(status TransactionStatus, at time.Time) {
	t.Status = status
	t.ResolvedAt = &at
}
