package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/audit"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/cache"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/coordinator"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/identity"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledgertest"
	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/wallet"
)

const (
	chainID  = "0xaa36a7"
	sender   = "0xSender"
	receiver = "0xReceiver"
	courier  = "0xCourier"
	stranger = "0xStranger"
)

type recorderSpy struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorderSpy) Record(event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorderSpy) operations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, 0, len(r.events))
	for _, e := range r.events {
		ops = append(ops, e.Operation)
	}
	return ops
}

type env struct {
	ledger   *ledgertest.Ledger
	wallet   *wallet.Fake
	monitor  *identity.Monitor
	cache    *cache.ShipmentCache
	coord    *coordinator.Coordinator
	recorder *recorderSpy
}

func newEnv(t *testing.T) *env {
	t.Helper()
	l := ledgertest.New()
	l.SetNow(func() int64 { return 1700000000 })
	fake := wallet.NewFake(chainID)
	monitor := identity.NewMonitor(fake, l, chainID, zap.NewNop())
	shipmentCache := cache.New(monitor.Context().Read(), zap.NewNop())
	recorder := &recorderSpy{}
	coord := coordinator.New(monitor, shipmentCache, recorder, 500*time.Millisecond, zap.NewNop())
	return &env{ledger: l, wallet: fake, monitor: monitor, cache: shipmentCache, coord: coord, recorder: recorder}
}

func (e *env) connectAs(t *testing.T, account string) {
	t.Helper()
	e.wallet.SetAccounts([]string{account})
	got, err := e.coord.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, account, got)
}

func (e *env) create(t *testing.T, price string) uint64 {
	t.Helper()
	e.connectAs(t, sender)
	id, err := e.coord.CreateShipment(context.Background(), coordinator.CreateRequest{
		Receiver:        receiver,
		Courier:         courier,
		ScheduledPickup: time.Unix(1700003600, 0),
		Distance:        50,
		Price:           price,
	})
	require.NoError(t, err)
	return id
}

func TestCreateShipment(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")
	assert.Equal(t, uint64(0), id)

	entry, ok := e.cache.Get(id)
	require.True(t, ok, "cache must be refreshed after finality")
	assert.Equal(t, "pending", entry.Status)
	assert.Equal(t, "0.01", entry.Price)
	assert.Equal(t, "10000000000000000", entry.PriceWei)
	assert.False(t, entry.IsPaid)
	assert.Zero(t, entry.ActualPickupTime)
	assert.Zero(t, entry.DeliveryTime)
	assert.Equal(t, int64(1700003600), entry.ScheduledPickupTime)
	assert.Equal(t, []string{"createShipment"}, e.recorder.operations())
}

func TestCreateShipmentValidation(t *testing.T) {
	tests := []struct {
		name string
		req  coordinator.CreateRequest
		kind error
	}{
		{
			name: "missing receiver",
			req:  coordinator.CreateRequest{Courier: courier, ScheduledPickup: time.Unix(1, 0), Price: "1"},
			kind: ledger.ErrInvalidInput,
		},
		{
			name: "missing pickup time",
			req:  coordinator.CreateRequest{Receiver: receiver, Courier: courier, Price: "1"},
			kind: ledger.ErrInvalidInput,
		},
		{
			name: "zero price",
			req:  coordinator.CreateRequest{Receiver: receiver, Courier: courier, ScheduledPickup: time.Unix(1, 0), Price: "0"},
			kind: ledger.ErrInvalidAmount,
		},
		{
			name: "garbage price",
			req:  coordinator.CreateRequest{Receiver: receiver, Courier: courier, ScheduledPickup: time.Unix(1, 0), Price: "abc"},
			kind: ledger.ErrInvalidAmount,
		},
	}

	e := newEnv(t)
	e.connectAs(t, sender)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.coord.CreateShipment(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "want %v, got %v", tc.kind, err)
		})
	}

	// Invalid input never reaches the ledger.
	snap := e.coord.Shipments()
	assert.Empty(t, snap.Entries)
}

func TestCreateRequiresConnection(t *testing.T) {
	e := newEnv(t)
	_, err := e.coord.CreateShipment(context.Background(), coordinator.CreateRequest{
		Receiver: receiver, Courier: courier, ScheduledPickup: time.Unix(1, 0), Price: "1",
	})
	assert.True(t, errors.Is(err, ledger.ErrUnauthorized))
}

func TestLifecycle(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")

	e.connectAs(t, courier)
	require.NoError(t, e.coord.StartShipment(context.Background(), id))
	entry, _ := e.cache.Get(id)
	assert.Equal(t, "in_transit", entry.Status)
	assert.Equal(t, int64(1700000000), entry.ActualPickupTime)

	require.NoError(t, e.coord.MarkDelivered(context.Background(), id))
	entry, _ = e.cache.Get(id)
	assert.Equal(t, "delivered", entry.Status)
	assert.Equal(t, int64(1700000000), entry.DeliveryTime)
	assert.False(t, entry.IsPaid)

	e.connectAs(t, receiver)
	require.NoError(t, e.coord.ConfirmDelivery(context.Background(), id))
	entry, _ = e.cache.Get(id)
	assert.Equal(t, "delivered", entry.Status)
	assert.True(t, entry.IsPaid)

	assert.Equal(t, []string{"createShipment", "startShipment", "markDelivered", "confirmDelivery"}, e.recorder.operations())
}

func TestStartByWrongActorRejected(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")

	e.connectAs(t, stranger)
	err := e.coord.StartShipment(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrTransitionRejected))

	// Cached status is still pending after a fresh refresh.
	require.NoError(t, e.coord.RefreshShipments(context.Background()))
	entry, ok := e.cache.Get(id)
	require.True(t, ok)
	assert.Equal(t, "pending", entry.Status)
}

func TestTransitionsSubmitDespiteLaggingCache(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")
	e.connectAs(t, courier)

	// The ledger advances behind the coordinator's back, so the cached
	// record is stale: it still says pending while the ledger is
	// in_transit. The precheck must not veto; the ledger would accept.
	w, err := e.ledger.Write(courier)
	require.NoError(t, err)
	sub, err := w.StartShipment(context.Background(), id)
	require.NoError(t, err)
	_, err = sub.Wait(context.Background())
	require.NoError(t, err)

	entry, ok := e.cache.Get(id)
	require.True(t, ok)
	require.Equal(t, "pending", entry.Status, "cache must be stale for this scenario")

	require.NoError(t, e.coord.MarkDelivered(context.Background(), id))
	entry, _ = e.cache.Get(id)
	assert.Equal(t, "delivered", entry.Status)

	// Same shape one step further: confirm against a cache that still
	// says in_transit while the ledger is already delivered.
	id2 := e.create(t, "0.02")
	e.connectAs(t, courier)
	require.NoError(t, e.coord.StartShipment(context.Background(), id2))

	e.connectAs(t, receiver)
	sub, err = w.MarkDelivered(context.Background(), id2)
	require.NoError(t, err)
	_, err = sub.Wait(context.Background())
	require.NoError(t, err)

	entry, _ = e.cache.Get(id2)
	require.Equal(t, "in_transit", entry.Status, "cache must be stale for this scenario")

	require.NoError(t, e.coord.ConfirmDelivery(context.Background(), id2))
	s, ok := e.ledger.Shipment(id2)
	require.True(t, ok)
	assert.True(t, s.IsPaid)
}

func TestConfirmDeliveryIsNotRepeatable(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")
	e.connectAs(t, courier)
	require.NoError(t, e.coord.StartShipment(context.Background(), id))
	require.NoError(t, e.coord.MarkDelivered(context.Background(), id))
	e.connectAs(t, receiver)
	require.NoError(t, e.coord.ConfirmDelivery(context.Background(), id))

	// Second confirmation is stopped by the advisory precheck.
	err := e.coord.ConfirmDelivery(context.Background(), id)
	assert.True(t, errors.Is(err, ledger.ErrTransitionRejected))

	// And by the ledger itself when the cache cannot answer.
	e.ledger.FailReads(errors.New("node down"))
	_ = e.coord.RefreshShipments(context.Background())
	e.ledger.FailReads(nil)
	err = e.coord.ConfirmDelivery(context.Background(), id)
	assert.True(t, errors.Is(err, ledger.ErrTransitionRejected))

	// No double payout either way.
	s, ok := e.ledger.Shipment(id)
	require.True(t, ok)
	assert.True(t, s.IsPaid)
}

func TestFinalityTimeout(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")
	e.connectAs(t, courier)

	e.ledger.HoldFinality(true)
	err := e.coord.StartShipment(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrFinalityTimeout))
	assert.False(t, errors.Is(err, ledger.ErrTransitionRejected))
}

func TestAccountsChangedToEmptyDisablesWrites(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.monitor.Watch(ctx)
	e.connectAs(t, courier)

	e.wallet.EmitAccountsChanged(nil)

	err := e.coord.StartShipment(context.Background(), id)
	assert.True(t, errors.Is(err, ledger.ErrUnauthorized))

	// Read path is unaffected.
	require.NoError(t, e.coord.RefreshShipments(context.Background()))
	entry, ok := e.cache.Get(id)
	require.True(t, ok)
	assert.Equal(t, "pending", entry.Status)
}

func TestShipmentDetailsVisibility(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")
	e.ledger.RestrictDetails(true)

	// The connected sender sees full detail: the authorized handle is
	// preferred, so the ledger evaluates visibility against it.
	entry, err := e.coord.ShipmentDetails(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "0.01", entry.Price)

	// Anyone else gets a distinct, actionable refusal.
	e.connectAs(t, stranger)
	_, err = e.coord.ShipmentDetails(context.Background(), id)
	assert.True(t, errors.Is(err, ledger.ErrAccessDenied))

	_, err = e.coord.ShipmentDetails(context.Background(), 99)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestSenderShipmentsArePositional(t *testing.T) {
	e := newEnv(t)
	e.create(t, "0.01")

	// Somebody else creates the next shipment, so the sender's second
	// shipment gets global id 2.
	e.connectAs(t, stranger)
	_, err := e.coord.CreateShipment(context.Background(), coordinator.CreateRequest{
		Receiver: receiver, Courier: courier, ScheduledPickup: time.Unix(1700003600, 0), Price: "1",
	})
	require.NoError(t, err)

	e.create(t, "0.02")

	view, err := e.coord.SenderShipments(context.Background(), sender)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count)
	require.Len(t, view.Shipments, 2)

	// Positions are indexes within the sender-scoped list, not global
	// ids: the sender's second shipment sits at position 1 but has
	// global id 2. Feeding a position into a transition would act on
	// the wrong shipment.
	assert.Equal(t, 0, view.Shipments[0].Position)
	assert.Equal(t, 1, view.Shipments[1].Position)
	assert.Equal(t, "0.02", view.Shipments[1].Price)

	global := e.coord.Shipments()
	require.Len(t, global.Entries, 3)
	assert.Equal(t, "0.02", global.Entries[2].Price)
	assert.Equal(t, uint64(2), global.Entries[2].ShipmentID)
}

func TestSnapshotServedWithoutRoundTrip(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, "0.01")

	// Even with the node unreachable, queries keep serving the last
	// snapshot.
	e.ledger.FailReads(errors.New("node down"))
	snap := e.coord.Shipments()
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, id, snap.Entries[0].ShipmentID)
}
