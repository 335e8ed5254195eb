package handlers

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kamal-Moha/blnk-Ledger-Test/internal/domain"
)

// CreateTransactionRequest is the body of POST /transactions.
type CreateTransactionRequest struct {
	Amount         int64                  `json:"amount"`
	Precision      int64                  `json:"precision"`
	Currency       string                 `json:"currency"`
	Reference      string                 `json:"reference"`
	Source         string                 `json:"source"`
	Destination    string                 `json:"destination"`
	Description    string                 `json:"description"`
	AllowOverdraft bool                   `json:"allow_overdraft"`
	Inflight       bool                   `json:"inflight"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

// ResolveInflightRequest is the body of PUT /transactions/inflight/{txID}.
type ResolveInflightRequest struct {
	Status string `json:"status"`
}

// TransactionResponse is the JSON form of a transaction.
type TransactionResponse struct {
	TransactionID  string                 `json:"transaction_id"`
	Reference      string                 `json:"reference"`
	Source         string                 `json:"source"`
	Destination    string                 `json:"destination"`
	Currency       string                 `json:"currency"`
	Amount         int64                  `json:"amount"`
	Precision      int64                  `json:"precision"`
	AmountString   string                 `json:"amount_string"`
	AllowOverdraft bool                   `json:"allow_overdraft"`
	Inflight       bool                   `json:"inflight"`
	Description    string                 `json:"description"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
	Status         string                 `json:"status"`
	CreatedAt      time.Time              `json:"created_at"`
	ResolvedAt     *time.Time             `json:"resolved_at,omitempty"`
}

// BalanceResponse is the JSON form of a balance.
type BalanceResponse struct {
	Account                string    `json:"account"`
	Currency               string    `json:"currency"`
	Precision              int64     `json:"precision"`
	Balance                int64     `json:"balance"`
	InflightBalance        int64     `json:"inflight_balance"`
	AvailableBalance       int64     `json:"available_balance"`
	BalanceString          string    `json:"balance_string"`
	InflightBalanceString  string    `json:"inflight_balance_string"`
	AvailableBalanceString string    `json:"available_balance_string"`
	Version                int64     `json:"version"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// ReservationResponse is the JSON form of an open reservation.
type ReservationResponse struct {
	TransactionID string    `json:"transaction_id"`
	Account       string    `json:"account"`
	Currency      string    `json:"currency"`
	Amount        int64     `json:"amount"`
	Precision     int64     `json:"precision"`
	AmountString  string    `json:"amount_string"`
	CreatedAt     time.Time `json:"created_at"`
}

// BaseError is the body of every error response.
type BaseError struct {
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Field       string    `json:"field,omitempty"`
	Id          uuid.UUID `json:"id"`
}

func (r CreateTransactionRequest) toDomain() domain.CreateTransactionRequest {
	return domain.CreateTransactionRequest{
		Reference:      r.Reference,
		Source:         r.Source,
		Destination:    r.Destination,
		Currency:       r.Currency,
		Amount:         r.Amount,
		Precision:      r.Precision,
		AllowOverdraft: r.AllowOverdraft,
		Inflight:       r.Inflight,
		Description:    r.Description,
		MetaData:       r.MetaData,
	}
}

func newTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:  t.ID,
		Reference:      t.Reference,
		Source:         t.Source,
		Destination:    t.Destination,
		Currency:       t.Currency,
		Amount:         t.Amount,
		Precision:      t.Precision,
		AmountString:   t.DisplayAmount(),
		AllowOverdraft: t.AllowOverdraft,
		Inflight:       t.Inflight,
		Description:    t.Description,
		MetaData:       t.MetaData,
		Status:         string(t.Status),
		CreatedAt:      t.CreatedAt,
		ResolvedAt:     t.ResolvedAt,
	}
}

func newBalanceResponse(b *domain.Balance) BalanceResponse {
	return BalanceResponse{
		Account:                b.Account,
		Currency:               b.Currency,
		Precision:              b.Precision,
		Balance:                b.Balance,
		InflightBalance:        b.Inflight,
		AvailableBalance:       b.Available(),
		BalanceString:          domain.FormatAmount(b.Balance, b.Precision),
		InflightBalanceString:  domain.FormatAmount(b.Inflight, b.Precision),
		AvailableBalanceString: domain.FormatAmount(b.Available(), b.Precision),
		Version:                b.Version,
		CreatedAt:              b.CreatedAt,
		UpdatedAt:              b.UpdatedAt,
	}
}

func newReservationResponse(r *domain.Reservation) ReservationResponse {
	return ReservationResponse{
		TransactionID: r.TransactionID,
		Account:       r.Account,
		Currency:      r.Currency,
		Amount:        r.Amount,
		Precision:     r.Precision,
		AmountString:  domain.FormatAmount(r.Amount, r.Precision),
		CreatedAt:     r.CreatedAt,
	}
}
