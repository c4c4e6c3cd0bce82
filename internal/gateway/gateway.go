// Package gateway defines the capability split between the two ledger
// connection handles. Queries need only a ReadHandle; mutations take a
// WriteHandle, so "called a write with no wallet" is a missing value,
// not a runtime surprise deep in a submission.
package gateway

import (
	"context"
	"math/big"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// ReadHandle is the query-only contract binding. It is backed by the
// public endpoint, created once at startup and never torn down.
type ReadHandle interface {
	GetAllShipments(ctx context.Context) ([]*ledger.Shipment, error)
	// GetShipmentDetails may be sender-restricted by the contract; a
	// refusal surfaces as ledger.ErrAccessDenied, an unknown id as
	// ledger.ErrNotFound.
	GetShipmentDetails(ctx context.Context, id uint64) (*ledger.Shipment, error)
	GetSenderShipmentCount(ctx context.Context, sender string) (int, error)
	// GetShipmentsBySender returns the sender's shipments in creation
	// order. Indexes into the returned slice are positions within this
	// scoped list, NOT global shipment ids; they must never be passed
	// to a transition.
	GetShipmentsBySender(ctx context.Context, sender string) ([]*ledger.Shipment, error)
}

// WriteHandle is the signing contract binding, bound to one authorized
// account. It exists only while that account is connected. Queries made
// through it are evaluated by the ledger with the bound account as
// caller, which matters for sender-restricted reads.
type WriteHandle interface {
	ReadHandle

	Account() string

	// CreateShipment escrows price with the submission; the attached
	// value always equals the declared price by construction.
	CreateShipment(ctx context.Context, receiver, courier string, scheduledPickup int64, distance uint64, price *big.Int) (Submission, error)
	StartShipment(ctx context.Context, id uint64) (Submission, error)
	MarkDelivered(ctx context.Context, id uint64) (Submission, error)
	ConfirmDelivery(ctx context.Context, id uint64) (Submission, error)
}

// Submission is a mutating call handed to the ledger. It cannot be
// cancelled client-side; Wait blocks until the ledger reports finality
// or ctx expires.
type Submission interface {
	TxID() string
	Wait(ctx context.Context) (*Receipt, error)
}

// Receipt describes a finalized submission. ShipmentID is meaningful
// only for creation receipts.
type Receipt struct {
	TxID       string
	ShipmentID uint64
	// BlockTime is the ledger timestamp that stamped the transition.
	BlockTime int64
}

// Factory builds contract bindings. Read always succeeds once the
// process is up; Write fails with ledger.ErrNoHandle when no signing
// backend exists for the account.
type Factory interface {
	Read() ReadHandle
	Write(account string) (WriteHandle, error)
}
