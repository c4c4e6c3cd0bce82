package rpcnode

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// Signer is the write handle: the same node client bound to one
// authorized account. The node holds the signing key for the account
// (server-side custody); this client only names it.
type Signer struct {
	client  *Client
	account string
}

func (s *Signer) Account() string { return s.account }

func (s *Signer) GetAllShipments(ctx context.Context) ([]*ledger.Shipment, error) {
	return s.client.GetAllShipments(ctx)
}

// GetShipmentDetails passes the bound account as caller, so the
// contract's sender-only visibility rule is evaluated against it.
func (s *Signer) GetShipmentDetails(ctx context.Context, id uint64) (*ledger.Shipment, error) {
	return s.client.shipmentDetails(ctx, id, s.account)
}

func (s *Signer) GetSenderShipmentCount(ctx context.Context, sender string) (int, error) {
	return s.client.GetSenderShipmentCount(ctx, sender)
}

func (s *Signer) GetShipmentsBySender(ctx context.Context, sender string) ([]*ledger.Shipment, error) {
	return s.client.GetShipmentsBySender(ctx, sender)
}

func (s *Signer) CreateShipment(ctx context.Context, receiver, courier string, scheduledPickup int64, distance uint64, price *big.Int) (gateway.Submission, error) {
	// value == price by construction: both sides of the escrow
	// invariant come from the same parsed amount.
	return s.submit(ctx, "tracking_createShipment", map[string]any{
		"from":                s.account,
		"receiver":            receiver,
		"courier":             courier,
		"scheduledPickupTime": scheduledPickup,
		"distance":            distance,
		"price":               price.String(),
		"value":               price.String(),
	})
}

func (s *Signer) StartShipment(ctx context.Context, id uint64) (gateway.Submission, error) {
	return s.submit(ctx, "tracking_startShipment", map[string]any{"from": s.account, "id": id})
}

func (s *Signer) MarkDelivered(ctx context.Context, id uint64) (gateway.Submission, error) {
	return s.submit(ctx, "tracking_markDelivered", map[string]any{"from": s.account, "id": id})
}

func (s *Signer) ConfirmDelivery(ctx context.Context, id uint64) (gateway.Submission, error) {
	return s.submit(ctx, "tracking_confirmDelivery", map[string]any{"from": s.account, "id": id})
}

func (s *Signer) submit(ctx context.Context, method string, params map[string]any) (gateway.Submission, error) {
	result, err := s.client.call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var txID string
	if err := json.Unmarshal(result, &txID); err != nil || txID == "" {
		return nil, fmt.Errorf("%w: %s returned no transaction id", ledger.ErrUnavailable, method)
	}
	return &submission{client: s.client, txID: txID}, nil
}
