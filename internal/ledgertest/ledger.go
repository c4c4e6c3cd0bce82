// Package ledgertest provides an in-memory ledger that enforces the
// contract's real transition guards, for exercising the client without
// a node. Guards are applied at finality, so two racing submissions
// against the same shipment see exactly one accepted.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

type Ledger struct {
	mu              sync.Mutex
	shipments       []*ledger.Shipment
	now             func() int64
	restrictDetails bool
	readErr         error
	holdFinality    bool
}

func New() *Ledger {
	return &Ledger{now: func() int64 { return time.Now().Unix() }}
}

// SetNow pins the ledger clock for deterministic timestamps.
func (l *Ledger) SetNow(fn func() int64) { l.mu.Lock(); l.now = fn; l.mu.Unlock() }

// RestrictDetails makes GetShipmentDetails sender-only, like a contract
// that hides full detail from everyone but the creator.
func (l *Ledger) RestrictDetails(on bool) { l.mu.Lock(); l.restrictDetails = on; l.mu.Unlock() }

// FailReads makes every query fail with err until reset with nil.
func (l *Ledger) FailReads(err error) { l.mu.Lock(); l.readErr = err; l.mu.Unlock() }

// HoldFinality makes submissions never reach a verdict, so finality
// waits run into their timeout.
func (l *Ledger) HoldFinality(on bool) { l.mu.Lock(); l.holdFinality = on; l.mu.Unlock() }

// Shipment returns a copy of the stored record, bypassing visibility
// rules, for test assertions.
func (l *Ledger) Shipment(id uint64) (*ledger.Shipment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id >= uint64(len(l.shipments)) {
		return nil, false
	}
	return l.shipments[id].Clone(), true
}

func (l *Ledger) Read() gateway.ReadHandle { return &caller{l: l} }

func (l *Ledger) Write(account string) (gateway.WriteHandle, error) {
	if account == "" {
		return nil, fmt.Errorf("%w: no account to bind", ledger.ErrNoHandle)
	}
	return &caller{l: l, account: account}, nil
}

// caller is one binding; with an account it is a write handle, without
// one it is the anonymous read handle.
type caller struct {
	l       *Ledger
	account string
}

func (c *caller) Account() string { return c.account }

func (c *caller) GetAllShipments(ctx context.Context) ([]*ledger.Shipment, error) {
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	if c.l.readErr != nil {
		return nil, c.l.readErr
	}
	out := make([]*ledger.Shipment, 0, len(c.l.shipments))
	for _, s := range c.l.shipments {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (c *caller) GetShipmentDetails(ctx context.Context, id uint64) (*ledger.Shipment, error) {
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	if c.l.readErr != nil {
		return nil, c.l.readErr
	}
	if id >= uint64(len(c.l.shipments)) {
		return nil, fmt.Errorf("%w: id %d", ledger.ErrNotFound, id)
	}
	s := c.l.shipments[id]
	if c.l.restrictDetails && !ledger.SameAddress(c.account, s.Sender) {
		return nil, fmt.Errorf("%w: id %d", ledger.ErrAccessDenied, id)
	}
	return s.Clone(), nil
}

func (c *caller) GetSenderShipmentCount(ctx context.Context, sender string) (int, error) {
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	if c.l.readErr != nil {
		return 0, c.l.readErr
	}
	count := 0
	for _, s := range c.l.shipments {
		if ledger.SameAddress(sender, s.Sender) {
			count++
		}
	}
	return count, nil
}

func (c *caller) GetShipmentsBySender(ctx context.Context, sender string) ([]*ledger.Shipment, error) {
	c.l.mu.Lock()
	defer c.l.mu.Unlock()
	if c.l.readErr != nil {
		return nil, c.l.readErr
	}
	var out []*ledger.Shipment
	for _, s := range c.l.shipments {
		if ledger.SameAddress(sender, s.Sender) {
			cp := s.Clone()
			// Positional id within the scoped list, like the contract's
			// listing API.
			cp.ID = uint64(len(out))
			out = append(out, cp)
		}
	}
	return out, nil
}

func (c *caller) CreateShipment(ctx context.Context, receiver, courier string, scheduledPickup int64, distance uint64, price *big.Int) (gateway.Submission, error) {
	sender := c.account
	p := new(big.Int).Set(price)
	return c.l.newSubmission(func() (uint64, error) {
		if p.Sign() <= 0 {
			return 0, fmt.Errorf("%w: price must be positive", ledger.ErrTransitionRejected)
		}
		id := uint64(len(c.l.shipments))
		c.l.shipments = append(c.l.shipments, &ledger.Shipment{
			ID:                  id,
			Sender:              sender,
			Receiver:            receiver,
			Courier:             courier,
			ScheduledPickupTime: scheduledPickup,
			Distance:            distance,
			Price:               p,
			Status:              ledger.StatusPending,
		})
		return id, nil
	}), nil
}

func (c *caller) StartShipment(ctx context.Context, id uint64) (gateway.Submission, error) {
	return c.transition(ledger.OpStart, id), nil
}

func (c *caller) MarkDelivered(ctx context.Context, id uint64) (gateway.Submission, error) {
	return c.transition(ledger.OpMarkDelivered, id), nil
}

func (c *caller) ConfirmDelivery(ctx context.Context, id uint64) (gateway.Submission, error) {
	return c.transition(ledger.OpConfirmDelivery, id), nil
}

func (c *caller) transition(op ledger.Op, id uint64) gateway.Submission {
	actor := c.account
	return c.l.newSubmission(func() (uint64, error) {
		if id >= uint64(len(c.l.shipments)) {
			return 0, fmt.Errorf("%w: id %d", ledger.ErrTransitionRejected, id)
		}
		s := c.l.shipments[id]
		if err := ledger.CheckTransition(s, op, actor); err != nil {
			return 0, err
		}
		if err := ledger.Apply(s, op, c.l.now()); err != nil {
			return 0, err
		}
		return id, nil
	})
}

type submission struct {
	l     *Ledger
	txID  string
	apply func() (uint64, error)
}

func (l *Ledger) newSubmission(apply func() (uint64, error)) gateway.Submission {
	return &submission{l: l, txID: uuid.NewString(), apply: apply}
}

func (s *submission) TxID() string { return s.txID }

// Wait finalizes the submission: the guard runs under the ledger lock
// at this point, which models the ledger serializing concurrent
// submissions.
func (s *submission) Wait(ctx context.Context) (*gateway.Receipt, error) {
	s.l.mu.Lock()
	hold := s.l.holdFinality
	s.l.mu.Unlock()
	if hold {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s.l.mu.Lock()
	defer s.l.mu.Unlock()
	id, err := s.apply()
	if err != nil {
		return nil, err
	}
	return &gateway.Receipt{TxID: s.txID, ShipmentID: id, BlockTime: s.l.now()}, nil
}
