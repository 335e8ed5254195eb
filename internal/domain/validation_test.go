package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func validRequest() CreateTransactionRequest {
	return CreateTransactionRequest{
		Reference:      "ref-1",
		Source:         WorldAccount,
		Destination:    "@alice",
		Currency:       "USD",
		Amount:         500,
		Precision:      100,
		AllowOverdraft: true,
		Inflight:       true,
	}
}

func TestValidateCreateRequest(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CreateTransactionRequest)
		wantField string
	}{
		{"valid", func(r *CreateTransactionRequest) {}, ""},
		{"missing reference", func(r *CreateTransactionRequest) { r.Reference = " " }, "reference"},
		{"long reference", func(r *CreateTransactionRequest) { r.Reference = strings.Repeat("r", 256) }, "reference"},
		{"missing source", func(r *CreateTransactionRequest) { r.Source = "" }, "source"},
		{"source without prefix", func(r *CreateTransactionRequest) { r.Source = "world" }, "source"},
		{"bare prefix", func(r *CreateTransactionRequest) { r.Destination = "@" }, "destination"},
		{"whitespace in account", func(r *CreateTransactionRequest) { r.Destination = "@al ice" }, "destination"},
		{"same accounts", func(r *CreateTransactionRequest) { r.Destination = r.Source }, "destination"},
		{"zero amount", func(r *CreateTransactionRequest) { r.Amount = 0 }, "amount"},
		{"negative amount", func(r *CreateTransactionRequest) { r.Amount = -5 }, "amount"},
		{"max amount", func(r *CreateTransactionRequest) { r.Amount = math.MaxInt64 }, ""},
		{"min amount", func(r *CreateTransactionRequest) { r.Amount = math.MinInt64 }, "amount"},
		{"zero precision", func(r *CreateTransactionRequest) { r.Precision = 0 }, "precision"},
		{"lowercase currency", func(r *CreateTransactionRequest) { r.Currency = "usd" }, "currency"},
		{"short currency", func(r *CreateTransactionRequest) { r.Currency = "US" }, "currency"},
		{"missing currency", func(r *CreateTransactionRequest) { r.Currency = "" }, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := ValidateCreateRequest(req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, vErr.Field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("expected errors.Is(err, ErrValidation)")
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor     int64
		precision int64
		want      string
	}{
		{500, 100, "5.00"},
		{-500, 100, "-5.00"},
		{12345, 1000, "12.345"},
		{7, 1, "7"},
		{150, 3, "50.00"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.minor, tt.precision); got != tt.want {
			t.Errorf("FormatAmount(%d, %d) = %s, want %s", tt.minor, tt.precision, got, tt.want)
		}
	}
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreError("post", cause)

	if !errors.Is(err, ErrStore) {
		t.Error("expected errors.Is(err, ErrStore)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected StoreError to unwrap to its cause")
	}
	if NewStoreError("post", nil) != nil {
		t.Error("expected nil for nil cause")
	}
}

func TestCheckedArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		op      func(a, b int64) (int64, error)
		a, b    int64
		want    int64
		wantErr bool
	}{
		{"add", AddAmount, 2, 3, 5, false},
		{"add to max", AddAmount, math.MaxInt64 - 1, 1, math.MaxInt64, false},
		{"add past max", AddAmount, math.MaxInt64, 1, 0, true},
		{"add max twice", AddAmount, math.MaxInt64, math.MaxInt64, 0, true},
		{"add negative past min", AddAmount, math.MinInt64, -1, 0, true},
		{"sub", SubAmount, 5, 3, 2, false},
		{"sub to min", SubAmount, math.MinInt64 + 1, 1, math.MinInt64, false},
		{"sub past min", SubAmount, -2, math.MaxInt64, 0, true},
		{"sub negative past max", SubAmount, math.MaxInt64, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(tt.a, tt.b)
			if tt.wantErr {
				var vErr *ValidationError
				if !errors.As(err, &vErr) || vErr.Field != "amount" {
					t.Fatalf("expected amount ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestBalanceAvailable_Saturates(t *testing.T) {
	tests := []struct {
		name string
		b    Balance
		want int64
	}{
		{"plain", Balance{Balance: 100, Inflight: 30}, 70},
		{"held beyond balance", Balance{Balance: 0, Inflight: math.MaxInt64}, -math.MaxInt64},
		{"overdrawn and held", Balance{Balance: -10, Inflight: math.MaxInt64}, math.MinInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.Available(); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
