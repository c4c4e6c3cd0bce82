// Package rpcnode talks JSON over HTTP to a ledger node that fronts the
// tracking contract. The Client is the read handle (public endpoint, no
// identity); a Signer wraps it with an authorized account for writes.
package rpcnode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// Node error codes, part of the node's wire contract.
const (
	codeNotFound   = 1001
	codeReverted   = 1002
	codeRestricted = 1003
)

type Client struct {
	endpoint     string
	contract     string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       *zap.Logger
}

func New(endpoint, contract string, logger *zap.Logger) *Client {
	return &Client{
		endpoint:     endpoint,
		contract:     contract,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		pollInterval: 2 * time.Second,
		logger:       logger,
	}
}

// Read returns the query-only binding. It is the Client itself: the
// public endpoint needs no identity.
func (c *Client) Read() gateway.ReadHandle { return c }

// Write returns a signing binding bound to account, or
// ledger.ErrNoHandle when there is no account to bind.
func (c *Client) Write(account string) (gateway.WriteHandle, error) {
	if account == "" {
		return nil, fmt.Errorf("%w: no account to bind a signer to", ledger.ErrNoHandle)
	}
	return &Signer{client: c, account: account}, nil
}

type rpcRequest struct {
	ID       string `json:"id"`
	Contract string `json:"contract"`
	Method   string `json:"method"`
	Params   any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one round trip. Transport failures and non-200 replies
// surface as ledger.ErrUnavailable; node-level errors are mapped to the
// error taxonomy by code.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		ID:       uuid.NewString(),
		Contract: c.contract,
		Method:   method,
		Params:   params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ledger.ErrUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ledger.ErrUnavailable, method, resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", ledger.ErrUnavailable, method, err)
	}
	if out.Error != nil {
		return nil, c.mapError(method, out.Error)
	}
	return out.Result, nil
}

func (c *Client) mapError(method string, e *rpcError) error {
	switch e.Code {
	case codeNotFound:
		return fmt.Errorf("%w: %s", ledger.ErrNotFound, e.Message)
	case codeRestricted:
		return fmt.Errorf("%w: %s", ledger.ErrAccessDenied, e.Message)
	case codeReverted:
		// Surface the node's reason verbatim; it distinguishes "not
		// the sender" from a generic revert.
		return fmt.Errorf("%w: %s", ledger.ErrTransitionRejected, e.Message)
	default:
		c.logger.Warn("unclassified node error",
			zap.String("method", method), zap.Int("code", e.Code), zap.String("message", e.Message))
		return fmt.Errorf("%w: %s (code %d): %s", ledger.ErrUnavailable, method, e.Code, e.Message)
	}
}

func decodeRecords(result json.RawMessage) ([]*ledger.Shipment, error) {
	var rawRecords []json.RawMessage
	if err := json.Unmarshal(result, &rawRecords); err != nil {
		return nil, fmt.Errorf("%w: decode record list: %v", ledger.ErrUnavailable, err)
	}
	shipments := make([]*ledger.Shipment, 0, len(rawRecords))
	for i, raw := range rawRecords {
		s, err := ledger.NormalizeJSON(uint64(i), raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decode record %d: %v", ledger.ErrUnavailable, i, err)
		}
		shipments = append(shipments, s)
	}
	return shipments, nil
}

func (c *Client) GetAllShipments(ctx context.Context) ([]*ledger.Shipment, error) {
	result, err := c.call(ctx, "tracking_getAllShipments", nil)
	if err != nil {
		return nil, err
	}
	// Global ids are dense and assigned in creation order, so the index
	// into the full list is the shipment id.
	return decodeRecords(result)
}

func (c *Client) GetShipmentDetails(ctx context.Context, id uint64) (*ledger.Shipment, error) {
	return c.shipmentDetails(ctx, id, "")
}

func (c *Client) shipmentDetails(ctx context.Context, id uint64, from string) (*ledger.Shipment, error) {
	params := map[string]any{"id": id}
	if from != "" {
		params["from"] = from
	}
	result, err := c.call(ctx, "tracking_getShipmentDetails", params)
	if err != nil {
		return nil, err
	}
	return ledger.NormalizeJSON(id, result)
}

func (c *Client) GetSenderShipmentCount(ctx context.Context, sender string) (int, error) {
	result, err := c.call(ctx, "tracking_getSenderShipmentCount", map[string]any{"sender": sender})
	if err != nil {
		return 0, err
	}
	var count int
	if err := json.Unmarshal(result, &count); err != nil {
		return 0, fmt.Errorf("%w: decode count: %v", ledger.ErrUnavailable, err)
	}
	return count, nil
}

func (c *Client) GetShipmentsBySender(ctx context.Context, sender string) ([]*ledger.Shipment, error) {
	result, err := c.call(ctx, "tracking_getShipmentsBySender", map[string]any{"sender": sender})
	if err != nil {
		return nil, err
	}
	// The ids stamped here are positions within the sender-scoped list,
	// not global shipment ids. The contract's listing API gives no way
	// to recover the global id from this view.
	return decodeRecords(result)
}
