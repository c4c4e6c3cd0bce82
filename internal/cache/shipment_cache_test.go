package cache

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

type stubLister struct {
	shipments []*ledger.Shipment
	err       error
}

func (s *stubLister) GetAllShipments(ctx context.Context) ([]*ledger.Shipment, error) {
	return s.shipments, s.err
}

func twoShipments() []*ledger.Shipment {
	return []*ledger.Shipment{
		{
			ID:       0,
			Sender:   "0xA",
			Receiver: "0xB",
			Courier:  "0xC",
			Distance: 50,
			Price:    mustWei("10000000000000000"),
			Status:   ledger.StatusPending,
		},
		{
			ID:               1,
			Sender:           "0xA",
			Receiver:         "0xD",
			Courier:          "0xC",
			Distance:         10,
			Price:            mustWei("1000000000000000000"),
			Status:           ledger.StatusInTransit,
			ActualPickupTime: 1700000000,
		},
	}
}

func mustWei(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	lister := &stubLister{shipments: twoShipments()}
	c := New(lister, zap.NewNop())

	require.NoError(t, c.Refresh(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, uint64(1), snap.Version)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "0.01", snap.Entries[0].Price)
	assert.Equal(t, "10000000000000000", snap.Entries[0].PriceWei)
	assert.Equal(t, "pending", snap.Entries[0].Status)
	assert.Equal(t, "in_transit", snap.Entries[1].Status)

	lister.shipments = lister.shipments[:1]
	require.NoError(t, c.Refresh(context.Background()))

	next := c.Snapshot()
	assert.Equal(t, uint64(2), next.Version)
	assert.Len(t, next.Entries, 1)

	// The earlier snapshot is unaffected by the refresh.
	assert.Len(t, snap.Entries, 2)
}

func TestRefreshFailureEmptiesSnapshot(t *testing.T) {
	lister := &stubLister{shipments: twoShipments()}
	c := New(lister, zap.NewNop())
	require.NoError(t, c.Refresh(context.Background()))
	require.Len(t, c.Snapshot().Entries, 2)

	// Stale financial state is worse than an honestly empty view.
	lister.err = errors.New("node down")
	require.Error(t, c.Refresh(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, uint64(2), snap.Version)
	assert.Empty(t, snap.Entries)
}

func TestGet(t *testing.T) {
	c := New(&stubLister{shipments: twoShipments()}, zap.NewNop())
	require.NoError(t, c.Refresh(context.Background()))

	entry, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint64(1), entry.ShipmentID)
	assert.Equal(t, "1", entry.Price)

	_, ok = c.Get(99)
	assert.False(t, ok)
}

func TestProjectTimestampsStayIntegers(t *testing.T) {
	entry := Project(&ledger.Shipment{ID: 4, Price: mustWei("1"), Status: ledger.StatusDelivered, DeliveryTime: 1700000123, IsPaid: true})
	assert.Equal(t, int64(1700000123), entry.DeliveryTime)
	assert.Equal(t, int64(0), entry.ActualPickupTime)
	assert.Equal(t, "delivered", entry.Status)
	assert.True(t, entry.IsPaid)
}
