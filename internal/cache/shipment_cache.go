package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/codec"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/metrics"
)

// Lister is the slice of the read handle the cache needs.
type Lister interface {
	GetAllShipments(ctx context.Context) ([]*ledger.Shipment, error)
}

// Entry is the display-ready projection of one shipment. Amounts are
// pre-converted to decimal strings; timestamps stay integers for the
// caller to format.
type Entry struct {
	ShipmentID          uint64 `json:"shipment_id"`
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

// Snapshot is one immutable version of the read model.
type Snapshot struct {
	Version uint64  `json:"version"`
	Entries []Entry `json:"entries"`
}

// ShipmentCache holds the full shipment list as a single versioned
// snapshot. Refresh replaces the whole snapshot atomically — never a
// partial merge — so a concurrent reader can never see pre-refresh and
// post-refresh records mixed.
type ShipmentCache struct {
	mu     sync.RWMutex
	snap   Snapshot
	lister Lister
	logger *zap.Logger
}

func New(lister Lister, logger *zap.Logger) *ShipmentCache {
	return &ShipmentCache{lister: lister, logger: logger}
}

// Refresh re-queries the full list and swaps the snapshot in. On any
// failure the snapshot becomes explicitly empty: stale financial state
// is worse than an honestly empty view.
func (c *ShipmentCache) Refresh(ctx context.Context) error {
	metrics.CacheRefreshesTotal.Inc()

	shipments, err := c.lister.GetAllShipments(ctx)
	if err != nil {
		c.replace(nil)
		c.logger.Warn("cache refresh failed, snapshot emptied", zap.Error(err))
		return err
	}

	entries := make([]Entry, 0, len(shipments))
	for _, s := range shipments {
		entries = append(entries, Project(s))
	}
	c.replace(entries)
	c.logger.Debug("cache refreshed", zap.Int("shipments", len(entries)))
	return nil
}

func (c *ShipmentCache) replace(entries []Entry) {
	c.mu.Lock()
	c.snap = Snapshot{Version: c.snap.Version + 1, Entries: entries}
	c.mu.Unlock()
	metrics.CacheSnapshotSize.Set(float64(len(entries)))
}

// Snapshot returns the current version with a copied entry slice, so
// callers can hold it across later refreshes.
func (c *ShipmentCache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Version: c.snap.Version,
		Entries: append([]Entry(nil), c.snap.Entries...),
	}
}

// Get returns the cached entry for a global shipment id.
func (c *ShipmentCache) Get(id uint64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.snap.Entries {
		if e.ShipmentID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Project converts a canonical shipment into its display entry.
func Project(s *ledger.Shipment) Entry {
	priceWei := "0"
	if s.Price != nil {
		priceWei = s.Price.String()
	}
	return Entry{
		ShipmentID:          s.ID,
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
	}
}
