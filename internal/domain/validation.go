package domain

import (
	"strings"
	"unicode"
)

const (
	maxReferenceLength   = 255
	maxDescriptionLength = 1024
)

// ValidateCreateRequest checks a create request and returns the first
// problem found as a *ValidationError.
func ValidateCreateRequest(req CreateTransactionRequest) error {
	if strings.TrimSpace(req.Reference) == "" {
		return NewValidationError("reference", "is required")
	}
	if len(req.Reference) > maxReferenceLength {
		return NewValidationError("reference", "is too long")
	}
	if err := ValidateAccount("source", req.Source); err != nil {
		return err
	}
	if err := ValidateAccount("destination", req.Destination); err != nil {
		return err
	}
	if req.Source == req.Destination {
		return NewValidationError("destination", "must differ from source")
	}
	if req.Amount <= 0 {
		return NewValidationError("amount", "must be positive")
	}
	if req.Precision <= 0 {
		return NewValidationError("precision", "must be positive")
	}
	if err := ValidateCurrencyCode(req.Currency); err != nil {
		return err
	}
	if len(req.Description) > maxDescriptionLength {
		return NewValidationError("description", "is too long")
	}
	return nil
}

// ValidateAccount checks that an account identifier has the form @name.
func ValidateAccount(field, account string) error {
	if account == "" {
		return NewValidationError(field, "is required")
	}
	if !strings.HasPrefix(account, "@") || len(account) == 1 {
		return NewValidationError(field, "must be an account identifier starting with @")
	}
	if strings.IndexFunc(account, unicode.IsSpace) >= 0 {
		return NewValidationError(field, "must not contain whitespace")
	}
	return nil
}

// ValidateCurrencyCode validates that a currency code follows ISO 4217 format.
func ValidateCurrencyCode(code string) error {
	if code == "" {
		return NewValidationError("currency", "is required")
	}

	if len(code) != 3 {
		return NewValidationError("currency", "must be 3 characters (ISO 4217)")
	}

	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return NewValidationError("currency", "must contain only uppercase letters")
		}
	}

	return nil
}
