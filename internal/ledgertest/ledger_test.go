package ledgertest

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

func createPending(t *testing.T, l *Ledger) uint64 {
	t.Helper()
	w, err := l.Write("0xSender")
	require.NoError(t, err)
	sub, err := w.CreateShipment(context.Background(), "0xReceiver", "0xCourier", 1700003600, 50, big.NewInt(1))
	require.NoError(t, err)
	receipt, err := sub.Wait(context.Background())
	require.NoError(t, err)
	return receipt.ShipmentID
}

func TestRacingSubmissionsResolveAtFinality(t *testing.T) {
	l := New()
	id := createPending(t, l)

	w, err := l.Write("0xCourier")
	require.NoError(t, err)

	// Both submissions enter the mempool while the shipment is still
	// pending; the guard runs at finality, so exactly one wins.
	first, err := w.StartShipment(context.Background(), id)
	require.NoError(t, err)
	second, err := w.StartShipment(context.Background(), id)
	require.NoError(t, err)

	_, err = first.Wait(context.Background())
	require.NoError(t, err)

	_, err = second.Wait(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrTransitionRejected))

	s, ok := l.Shipment(id)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusInTransit, s.Status)
}

func TestWriteRequiresAccount(t *testing.T) {
	_, err := New().Write("")
	assert.True(t, errors.Is(err, ledger.ErrNoHandle))
}

func TestReadsReturnCopies(t *testing.T) {
	l := New()
	id := createPending(t, l)

	all, err := l.Read().GetAllShipments(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	// Mutating the returned record must not leak into the ledger.
	all[0].Status = ledger.StatusDelivered
	all[0].Price.SetInt64(999)

	s, ok := l.Shipment(id)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusPending, s.Status)
	assert.Equal(t, "1", s.Price.String())
}
