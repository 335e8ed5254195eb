package domain

// Effect is the ledger operation a transition requires.
type Effect int

const (
	// EffectPost releases the reservation and posts the amount.
	EffectPost Effect = iota + 1

	// EffectRelease releases the reservation only.
	EffectRelease
)

// Transition returns the status reached by applying d to a transaction in
// status from, together with the ledger effect it implies.
// Pending is the only status with outgoing edges.
func Transition(id string, from TransactionStatus, d Decision) (TransactionStatus, Effect, error) {
	if from.IsTerminal() {
		return from, 0, &InvalidStateError{TransactionID: id, Status: from}
	}
	switch d {
	case Commit:
		return StatusCommitted, EffectPost, nil
	case Void:
		return StatusVoided, EffectRelease, nil
	}
	return from, 0, NewValidationError("status", "must be one of commit, void")
}
