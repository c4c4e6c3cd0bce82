package coordinator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/codec"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/gateway"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// ShipmentDetails queries one shipment live. The contract may restrict
// details to the creating sender, so the authorized handle is preferred
// when present — then the ledger evaluates visibility against the
// connected account instead of an anonymous read.
func (c *Coordinator) ShipmentDetails(ctx context.Context, id uint64) (cache.Entry, error) {
	var h gateway.ReadHandle
	if w, err := c.monitor.Context().Write(); err == nil {
		h = w
	} else {
		h = c.monitor.Context().Read()
	}

	s, err := h.GetShipmentDetails(ctx, id)
	if err != nil {
		return cache.Entry{}, err
	}
	return cache.Project(s), nil
}

// SenderShipment is one record of a sender-scoped listing. Position is
// the index within that listing, NOT the global shipment id: the
// contract's listing API exposes no way to recover the global id, so a
// Position must never be fed to StartShipment, MarkDelivered or
// ConfirmDelivery. Transitions take the global id from the full list or
// a details query.
type SenderShipment struct {
	Position            int    `json:"position"`
	Sender              string `json:"sender"`
	Receiver            string `json:"receiver"`
	Courier             string `json:"courier"`
	ScheduledPickupTime int64  `json:"scheduled_pickup_time"`
	ActualPickupTime    int64  `json:"actual_pickup_time"`
	DeliveryTime        int64  `json:"delivery_time"`
	Distance            uint64 `json:"distance"`
	Price               string `json:"price"`
	PriceWei            string `json:"price_wei"`
	Status              string `json:"status"`
	IsPaid              bool   `json:"is_paid"`
}

// SenderView is the sender-scoped projection: total count plus the
// positionally-indexed listing.
type SenderView struct {
	Sender    string           `json:"sender"`
	Count     int              `json:"count"`
	Shipments []SenderShipment `json:"shipments"`
}

// SenderShipments fetches the count and the listing concurrently.
func (c *Coordinator) SenderShipments(ctx context.Context, sender string) (*SenderView, error) {
	read := c.monitor.Context().Read()

	var (
		count     int
		shipments []*ledger.Shipment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		count, err = read.GetSenderShipmentCount(gctx, sender)
		return err
	})
	g.Go(func() error {
		var err error
		shipments, err = read.GetShipmentsBySender(gctx, sender)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &SenderView{Sender: sender, Count: count, Shipments: make([]SenderShipment, 0, len(shipments))}
	for i, s := range shipments {
		priceWei := "0"
		if s.Price != nil {
			priceWei = s.Price.String()
		}
		view.Shipments = append(view.Shipments, SenderShipment{
			Position:            i,
			Sender:              s.Sender,
			Receiver:            s.Receiver,
			Courier:             s.Courier,
			ScheduledPickupTime: s.ScheduledPickupTime,
			ActualPickupTime:    s.ActualPickupTime,
			DeliveryTime:        s.DeliveryTime,
			Distance:            s.Distance,
			Price:               codec.ToDisplayAmount(s.Price),
			PriceWei:            priceWei,
			Status:              s.Status.String(),
			IsPaid:              s.IsPaid,
		})
	}
	return view, nil
}
