package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation error")

	// ErrInsufficientFunds is returned when the source cannot cover the amount
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransactionNotFound is returned when a transaction id is unknown
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrBalanceNotFound is returned when a balance was never opened
	ErrBalanceNotFound = errors.New("balance not found")

	// ErrInvalidState is matched by every *InvalidStateError
	ErrInvalidState = errors.New("invalid transaction state")

	// ErrStore is matched by every *StoreError
	ErrStore = errors.New("store error")

	// ErrReservationNotFound is returned when no reservation is registered for a transaction
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrDuplicateReservation is returned when a transaction already holds a reservation
	ErrDuplicateReservation = errors.New("reservation already exists")

	// ErrDuplicateReference is returned when a reference is already used by another transaction
	ErrDuplicateReference = errors.New("transaction with reference already exists")

	// ErrLockUnavailable is returned when an exclusive section could not be entered
	ErrLockUnavailable = errors.New("lock unavailable")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateError is returned when a transition is not allowed from the
// transaction's current status.
type InvalidStateError struct {
	TransactionID string
	Status        TransactionStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("transaction %s is %s and cannot be resolved", e.TransactionID, e.Status)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// StoreError wraps a failure of the underlying storage.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err as a StoreError for op. A nil err stays nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
