package events

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
)

// TransactionEvent is the payload published for every transaction lifecycle
// change. The audit worker consumes the same type.
type TransactionEvent struct {
	EventID        string `json:"eventId"`
	EventType      string `json:"eventType"`
	EventTimestamp string `json:"eventTimestamp"`
	TransactionID  string `json:"transactionId"`
	Reference      string `json:"reference"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	Amount         Amount `json:"amount"`
	Status         string `json:"status"`
	Inflight       bool   `json:"inflight"`
	Timestamp      string `json:"timestamp"`
	Description    string `json:"description,omitempty"`
}

// Amount carries both the integer minor units and the decimal value.
type Amount struct {
	Value        string `json:"value"`
	Minor        int64  `json:"minor"`
	Precision    int64  `json:"precision"`
	CurrencyCode string `json:"currencyCode"`
}

// EventType returns the event type for a transaction status,
// e.g. transaction.pending.
func EventType(status domain.TransactionStatus) string {
	return "transaction." + strings.ToLower(string(status))
}

// NewTransactionEvent builds the event describing the current state of txn.
func NewTransactionEvent(txn *domain.Transaction) TransactionEvent {
	at := txn.CreatedAt
	if txn.ResolvedAt != nil {
		at = *txn.ResolvedAt
	}
	return TransactionEvent{
		EventID:        uuid.New().String(),
		EventType:      EventType(txn.Status),
		EventTimestamp: time.Now().UTC().Format(time.RFC3339Nano),
		TransactionID:  txn.ID,
		Reference:      txn.Reference,
		Source:         txn.Source,
		Destination:    txn.Destination,
		Amount: Amount{
			Value:        txn.DisplayAmount(),
			Minor:        txn.Amount,
			Precision:    txn.Precision,
			CurrencyCode: txn.Currency,
		},
		Status:      string(txn.Status),
		Inflight:    txn.Inflight,
		Timestamp:   at.UTC().Format(time.RFC3339Nano),
		Description: txn.Description,
	}
}
