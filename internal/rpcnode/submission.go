package rpcnode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// submission polls the node for the receipt of a submitted transaction.
// Once submitted, the transaction cannot be cancelled; expiring ctx only
// abandons the wait, it says nothing about the outcome.
type submission struct {
	client *Client
	txID   string
}

type receiptResult struct {
	Status     string `json:"status"` // pending | finalized | reverted
	ShipmentID uint64 `json:"shipmentId"`
	BlockTime  int64  `json:"blockTime"`
	Reason     string `json:"reason"`
}

func (s *submission) TxID() string { return s.txID }

func (s *submission) Wait(ctx context.Context) (*gateway.Receipt, error) {
	ticker := time.NewTicker(s.client.pollInterval)
	defer ticker.Stop()

	for {
		result, err := s.client.call(ctx, "tracking_getReceipt", map[string]any{"txId": s.txID})
		if err != nil {
			return nil, err
		}
		var r receiptResult
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("%w: decode receipt: %v", ledger.ErrUnavailable, err)
		}

		switch r.Status {
		case "finalized":
			return &gateway.Receipt{TxID: s.txID, ShipmentID: r.ShipmentID, BlockTime: r.BlockTime}, nil
		case "reverted":
			reason := r.Reason
			if reason == "" {
				reason = "reverted without reason"
			}
			return nil, fmt.Errorf("%w: %s", ledger.ErrTransitionRejected, reason)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
