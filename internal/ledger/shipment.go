package ledger

import "math/big"

// Status is the lifecycle state stored on the ledger. The numeric values
// mirror the contract's enum and must not be reordered.
type Status uint8

const (
	StatusPending Status = iota
	StatusInTransit
	StatusDelivered
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInTransit:
		return "in_transit"
	case StatusDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// StatusFromString is the inverse of Status.String.
func StatusFromString(s string) (Status, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "in_transit":
		return StatusInTransit, true
	case "delivered":
		return StatusDelivered, true
	default:
		return 0, false
	}
}

// Shipment is the canonical record shape every component downstream of
// Normalize consumes. Timestamps are unix seconds; 0 means "not yet
// occurred", never epoch. Price is the escrowed amount in wei.
type Shipment struct {
	ID                  uint64
	Sender              string
	Receiver            string
	Courier             string
	ScheduledPickupTime int64
	ActualPickupTime    int64
	DeliveryTime        int64
	Distance            uint64
	Price               *big.Int
	Status              Status
	IsPaid              bool
}

// Clone returns a deep copy, so cached records never share the price
// big.Int with callers.
func (s *Shipment) Clone() *Shipment {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Price != nil {
		cp.Price = new(big.Int).Set(s.Price)
	}
	return &cp
}
