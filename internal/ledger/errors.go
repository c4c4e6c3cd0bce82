package ledger

import "errors"

// Sentinel error kinds. Callers classify with errors.Is; every error
// leaving this module wraps exactly one of these.
var (
	// ErrInvalidInput covers malformed caller input caught before any
	// submission (missing field, bad address, non-positive amount).
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidAmount is returned for amounts that are empty, not a
	// decimal number, or not strictly positive.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNoHandle means the requested connection handle does not
	// currently exist.
	ErrNoHandle = errors.New("no ledger handle available")

	// ErrUnauthorized means a write was attempted with no authorized
	// account. Connecting a wallet fixes it; retrying does not.
	ErrUnauthorized = errors.New("no authorized account")

	// ErrWrongNetwork means the wallet's active chain is not the chain
	// the contract lives on. No submission is attempted.
	ErrWrongNetwork = errors.New("active network does not match expected chain")

	// ErrTransitionRejected means the ledger refused a state transition
	// (wrong actor, wrong state, already paid). Never retried
	// automatically: the failed precondition is state-dependent and
	// the caller must re-read before acting again.
	ErrTransitionRejected = errors.New("transition rejected by ledger")

	// ErrFinalityTimeout means the finality wait exceeded its bound.
	// The submission's true outcome is unknown; re-query before any
	// retry to avoid a duplicate submission.
	ErrFinalityTimeout = errors.New("finality wait timed out")

	// ErrUnavailable means the node endpoint could not be reached.
	// Reads may be retried with backoff; mutating submissions must not.
	ErrUnavailable = errors.New("ledger endpoint unavailable")

	// ErrNotFound means the queried shipment id does not exist.
	ErrNotFound = errors.New("shipment not found")

	// ErrAccessDenied means the contract restricts this record's
	// details to its sender and the caller is somebody else.
	ErrAccessDenied = errors.New("shipment details restricted to sender")
)
