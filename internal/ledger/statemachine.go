package ledger

import (
	"fmt"
	"strings"
)

// Op names a mutating contract operation.
type Op string

const (
	OpCreate          Op = "createShipment"
	OpStart           Op = "startShipment"
	OpMarkDelivered   Op = "markDelivered"
	OpConfirmDelivery Op = "confirmDelivery"
)

// SameAddress compares two ledger addresses. Hex addresses differ only
// in checksum casing, so the comparison is case-insensitive.
func SameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// CheckTransition reports whether actor may apply op to the shipment in
// its current state. This is the exact contract guard; it must only be
// evaluated against authoritative state.
func CheckTransition(s *Shipment, op Op, actor string) error {
	if s == nil {
		return nil
	}
	switch op {
	case OpStart:
		if !SameAddress(actor, s.Courier) {
			return fmt.Errorf("%w: only the courier of record may start shipment %d", ErrTransitionRejected, s.ID)
		}
		if s.Status != StatusPending {
			return fmt.Errorf("%w: shipment %d is %s, expected pending", ErrTransitionRejected, s.ID, s.Status)
		}
	case OpMarkDelivered:
		if !SameAddress(actor, s.Courier) {
			return fmt.Errorf("%w: only the courier of record may mark shipment %d delivered", ErrTransitionRejected, s.ID)
		}
		if s.Status != StatusInTransit {
			return fmt.Errorf("%w: shipment %d is %s, expected in_transit", ErrTransitionRejected, s.ID, s.Status)
		}
	case OpConfirmDelivery:
		if !SameAddress(actor, s.Receiver) {
			return fmt.Errorf("%w: only the receiver of record may confirm delivery of shipment %d", ErrTransitionRejected, s.ID)
		}
		if s.Status != StatusDelivered {
			return fmt.Errorf("%w: shipment %d is %s, expected delivered", ErrTransitionRejected, s.ID, s.Status)
		}
		if s.IsPaid {
			return fmt.Errorf("%w: shipment %d is already paid", ErrTransitionRejected, s.ID)
		}
	case OpCreate:
		// Creation has no prior state; input validation happens in the
		// coordinator.
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, op)
	}
	return nil
}

// CheckCachedTransition vetoes op against a possibly stale record. The
// cache can be behind the ledger but never ahead of it, so only
// staleness-proof conditions may reject here: the party addresses are
// immutable, status only ever advances, and isPaid never clears. A
// cached status behind the one the op requires may simply be lagging;
// that case passes and the ledger delivers the verdict.
func CheckCachedTransition(s *Shipment, op Op, actor string) error {
	if s == nil {
		return nil
	}
	switch op {
	case OpStart:
		if !SameAddress(actor, s.Courier) {
			return fmt.Errorf("%w: only the courier of record may start shipment %d", ErrTransitionRejected, s.ID)
		}
		if s.Status > StatusPending {
			return fmt.Errorf("%w: shipment %d is already %s", ErrTransitionRejected, s.ID, s.Status)
		}
	case OpMarkDelivered:
		if !SameAddress(actor, s.Courier) {
			return fmt.Errorf("%w: only the courier of record may mark shipment %d delivered", ErrTransitionRejected, s.ID)
		}
		if s.Status > StatusInTransit {
			return fmt.Errorf("%w: shipment %d is already %s", ErrTransitionRejected, s.ID, s.Status)
		}
	case OpConfirmDelivery:
		if !SameAddress(actor, s.Receiver) {
			return fmt.Errorf("%w: only the receiver of record may confirm delivery of shipment %d", ErrTransitionRejected, s.ID)
		}
		if s.IsPaid {
			return fmt.Errorf("%w: shipment %d is already paid", ErrTransitionRejected, s.ID)
		}
	case OpCreate:
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidInput, op)
	}
	return nil
}

// Apply advances the shipment for a transition the ledger has accepted.
// now is the ledger's timestamp for the block that finalized it.
func Apply(s *Shipment, op Op, now int64) error {
	switch op {
	case OpStart:
		s.Status = StatusInTransit
		s.ActualPickupTime = now
	case OpMarkDelivered:
		s.Status = StatusDelivered
		s.DeliveryTime = now
	case OpConfirmDelivery:
		s.IsPaid = true
	default:
		return fmt.Errorf("%w: operation %q does not apply to an existing shipment", ErrInvalidInput, op)
	}
	return nil
}
