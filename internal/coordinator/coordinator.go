// Package coordinator orchestrates every mutating ledger action:
// validate input, check preconditions against the cached view, submit,
// wait for finality, refresh the read model, record the transition.
// The cache is never touched before finality is observed.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/codec"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/identity"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/metrics"
)

// Recorder receives finalized transition events.
type Recorder interface {
	Record(event audit.Event)
}

type Coordinator struct {
	monitor         *identity.Monitor
	cache           *cache.ShipmentCache
	recorder        Recorder
	finalityTimeout time.Duration
	logger          *zap.Logger
}

func New(monitor *identity.Monitor, shipmentCache *cache.ShipmentCache, recorder Recorder, finalityTimeout time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		monitor:         monitor,
		cache:           shipmentCache,
		recorder:        recorder,
		finalityTimeout: finalityTimeout,
		logger:          logger,
	}
}

// Connect authorizes a wallet account and refreshes the read model so
// the caller starts from current ledger state.
func (c *Coordinator) Connect(ctx context.Context) (string, error) {
	account, err := c.monitor.Connect(ctx)
	if err != nil {
		return "", err
	}
	if err := c.cache.Refresh(ctx); err != nil {
		c.logger.Warn("post-connect refresh failed", zap.Error(err))
	}
	return account, nil
}

func (c *Coordinator) Disconnect() {
	c.monitor.Disconnect()
}

func (c *Coordinator) ActiveAccount() (string, bool) {
	return c.monitor.Context().Account()
}

// Shipments serves the last refreshed snapshot without a round trip.
func (c *Coordinator) Shipments() cache.Snapshot {
	return c.cache.Snapshot()
}

func (c *Coordinator) RefreshShipments(ctx context.Context) error {
	return c.cache.Refresh(ctx)
}

// CreateRequest is the input for a shipment creation. Price is a
// decimal ether string; the escrowed value always equals it.
type CreateRequest struct {
	Receiver        string
	Courier         string
	ScheduledPickup time.Time
	Distance        uint64
	Price           string
}

// CreateShipment validates the request, escrows the price with the
// creation submission and returns the ledger-assigned shipment id.
func (c *Coordinator) CreateShipment(ctx context.Context, req CreateRequest) (uint64, error) {
	if req.Receiver == "" || req.Courier == "" {
		return 0, c.fail(ledger.OpCreate, fmt.Errorf("%w: receiver and courier are required", ledger.ErrInvalidInput))
	}
	if req.ScheduledPickup.IsZero() {
		return 0, c.fail(ledger.OpCreate, fmt.Errorf("%w: scheduled pickup time is required", ledger.ErrInvalidInput))
	}
	price, err := codec.ToRawAmount(req.Price)
	if err != nil {
		return 0, c.fail(ledger.OpCreate, err)
	}

	w, err := c.monitor.Context().Write()
	if err != nil {
		return 0, c.fail(ledger.OpCreate, err)
	}

	sub, err := w.CreateShipment(ctx, req.Receiver, req.Courier, codec.ToUnixSeconds(req.ScheduledPickup), req.Distance, price)
	if err != nil {
		return 0, c.fail(ledger.OpCreate, err)
	}

	receipt, err := c.awaitFinality(ctx, sub)
	if err != nil {
		return 0, c.fail(ledger.OpCreate, err)
	}

	c.settle(ctx, ledger.OpCreate, receipt, w.Account())
	metrics.ShipmentsCreatedTotal.Inc()
	return receipt.ShipmentID, nil
}

// StartShipment moves a pending shipment to in-transit. Courier only.
func (c *Coordinator) StartShipment(ctx context.Context, id uint64) error {
	return c.transition(ctx, ledger.OpStart, id, func(ctx context.Context, w gateway.WriteHandle) (gateway.Submission, error) {
		return w.StartShipment(ctx, id)
	})
}

// MarkDelivered moves an in-transit shipment to delivered. Courier only.
func (c *Coordinator) MarkDelivered(ctx context.Context, id uint64) error {
	return c.transition(ctx, ledger.OpMarkDelivered, id, func(ctx context.Context, w gateway.WriteHandle) (gateway.Submission, error) {
		return w.MarkDelivered(ctx, id)
	})
}

// ConfirmDelivery releases the escrow to the courier. Receiver only,
// once.
func (c *Coordinator) ConfirmDelivery(ctx context.Context, id uint64) error {
	return c.transition(ctx, ledger.OpConfirmDelivery, id, func(ctx context.Context, w gateway.WriteHandle) (gateway.Submission, error) {
		return w.ConfirmDelivery(ctx, id)
	})
}

func (c *Coordinator) transition(ctx context.Context, op ledger.Op, id uint64, submit func(context.Context, gateway.WriteHandle) (gateway.Submission, error)) error {
	w, err := c.monitor.Context().Write()
	if err != nil {
		return c.fail(op, err)
	}

	// Advisory precheck against the cached view, to save the round trip
	// and its fee when the cache already proves the transition invalid.
	// Only staleness-proof conditions veto here; a cached state that is
	// merely behind the required one is submitted and the ledger
	// delivers the verdict. A cache miss just skips the check.
	if entry, ok := c.cache.Get(id); ok {
		if err := ledger.CheckCachedTransition(cachedShipment(entry), op, w.Account()); err != nil {
			return c.fail(op, err)
		}
	}

	sub, err := submit(ctx, w)
	if err != nil {
		return c.fail(op, err)
	}

	receipt, err := c.awaitFinality(ctx, sub)
	if err != nil {
		return c.fail(op, err)
	}

	c.settle(ctx, op, receipt, w.Account())
	metrics.TransitionsTotal.WithLabelValues(string(op)).Inc()
	return nil
}

// awaitFinality blocks until the ledger reports a verdict or the
// configured bound expires. A timeout asserts nothing about the
// submission's outcome; that truth lives only on the ledger.
func (c *Coordinator) awaitFinality(ctx context.Context, sub gateway.Submission) (*gateway.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.finalityTimeout)
	defer cancel()

	receipt, err := sub.Wait(waitCtx)
	if err != nil {
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no verdict for tx %s within %s; re-query before retrying",
				ledger.ErrFinalityTimeout, sub.TxID(), c.finalityTimeout)
		}
		return nil, err
	}
	return receipt, nil
}

// settle runs after confirmed finality: refresh the read model, then
// record the transition. A failed refresh leaves an honestly empty
// cache and does not retract the already-final transition.
func (c *Coordinator) settle(ctx context.Context, op ledger.Op, receipt *gateway.Receipt, account string) {
	if err := c.cache.Refresh(ctx); err != nil {
		c.logger.Warn("post-transition refresh failed", zap.String("operation", string(op)), zap.Error(err))
	}
	if c.recorder != nil {
		c.recorder.Record(audit.Event{
			ID:         uuid.NewString(),
			Timestamp:  time.Now().UTC(),
			Operation:  string(op),
			ShipmentID: receipt.ShipmentID,
			Account:    account,
			TxID:       receipt.TxID,
		})
	}
	c.logger.Info("transition finalized",
		zap.String("operation", string(op)),
		zap.Uint64("shipment_id", receipt.ShipmentID),
		zap.String("tx_id", receipt.TxID))
}

func (c *Coordinator) fail(op ledger.Op, err error) error {
	metrics.OperationErrorsTotal.WithLabelValues(string(op)).Inc()
	c.logger.Warn("operation failed", zap.String("operation", string(op)), zap.Error(err))
	return err
}

// cachedShipment rebuilds the fields the precheck needs from a cached
// entry.
func cachedShipment(e cache.Entry) *ledger.Shipment {
	status, ok := ledger.StatusFromString(e.Status)
	if !ok {
		return nil
	}
	return &ledger.Shipment{
		ID:       e.ShipmentID,
		Sender:   e.Sender,
		Receiver: e.Receiver,
		Courier:  e.Courier,
		Status:   status,
		IsPaid:   e.IsPaid,
	}
}
