package domain

import "strings"

// Decision is the outcome requested for a pending transaction.
// The only valid values are Commit and Void.
type Decision struct {
	name string
}

var (
	// Commit posts the reserved funds to the destination.
	Commit = Decision{name: "commit"}

	// Void releases the reserved funds back to the source.
	Void = Decision{name: "void"}
)

// ParseDecision maps the wire value to a Decision.
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case Commit.name:
		return Commit, nil
	case Void.name:
		return Void, nil
	}
	return Decision{}, NewValidationError("status", "must be one of commit, void")
}

func (d Decision) String() string {
	return d.name
}

// IsZero reports whether d is the unset Decision.
func (d Decision) IsZero() bool {
	return d.name == ""
}
