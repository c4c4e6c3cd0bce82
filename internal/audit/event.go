// Package audit records every finalized shipment transition to a topic
// that downstream consumers (billing, notifications) can tail. Entries
// are batched asynchronously so the command path never waits on Kafka.
package audit

import "time"

// Event describes one finalized transition.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Operation  string    `json:"operation"`
	ShipmentID uint64    `json:"shipment_id"`
	Account    string    `json:"account"`
	TxID       string    `json:"tx_id"`
}
