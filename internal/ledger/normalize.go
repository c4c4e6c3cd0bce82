package ledger

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
)

// Raw record field order used when the node returns a tuple instead of
// named fields. This mirrors the contract struct layout.
var tupleFields = []string{
	"sender",
	"receiver",
	"courier",
	"scheduledPickupTime",
	"actualPickupTime",
	"deliveryTime",
	"distance",
	"price",
	"status",
	"isPaid",
}

// Normalize is the single boundary between whatever shape the node hands
// back and the canonical Shipment. Records may arrive with named fields
// or as a positional tuple, and numerics may be JSON numbers, decimal
// strings or 0x-hex strings. A missing field is taken as its zero value
// rather than an error: records are append-only and schema-stable, so a
// hole means a stale ABI, and degrading the read path beats crashing it.
func Normalize(id uint64, raw any) *Shipment {
	fields, ok := raw.(map[string]any)
	if !ok {
		fields = map[string]any{}
		if tuple, ok := raw.([]any); ok {
			for i, name := range tupleFields {
				if i < len(tuple) {
					fields[name] = tuple[i]
				}
			}
		}
	}

	price := fieldBig(fields["price"])
	if price == nil {
		price = new(big.Int)
	}
	return &Shipment{
		ID:                  id,
		Sender:              fieldString(fields["sender"]),
		Receiver:            fieldString(fields["receiver"]),
		Courier:             fieldString(fields["courier"]),
		ScheduledPickupTime: fieldInt64(fields["scheduledPickupTime"]),
		ActualPickupTime:    fieldInt64(fields["actualPickupTime"]),
		DeliveryTime:        fieldInt64(fields["deliveryTime"]),
		Distance:            uint64(fieldInt64(fields["distance"])),
		Price:               price,
		Status:              Status(fieldInt64(fields["status"])),
		IsPaid:              fieldBool(fields["isPaid"]),
	}
}

// NormalizeJSON decodes one JSON-encoded record and normalizes it.
func NormalizeJSON(id uint64, data []byte) (*Shipment, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return Normalize(id, raw), nil
}

func fieldString(v any) string {
	s, _ := v.(string)
	return s
}

func fieldBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return strings.EqualFold(b, "true")
	default:
		return false
	}
}

func fieldBig(v any) *big.Int {
	switch n := v.(type) {
	case json.Number:
		if i, ok := new(big.Int).SetString(n.String(), 10); ok {
			return i
		}
	case string:
		if strings.HasPrefix(n, "0x") || strings.HasPrefix(n, "0X") {
			if i, ok := new(big.Int).SetString(n[2:], 16); ok {
				return i
			}
			return nil
		}
		if i, ok := new(big.Int).SetString(n, 10); ok {
			return i
		}
	case float64:
		return big.NewInt(int64(n))
	case int64:
		return big.NewInt(n)
	case int:
		return big.NewInt(int64(n))
	}
	return nil
}

func fieldInt64(v any) int64 {
	if i := fieldBig(v); i != nil && i.IsInt64() {
		return i.Int64()
	}
	return 0
}
