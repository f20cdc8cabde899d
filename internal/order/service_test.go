package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mark-4989/restaurant-service-go/internal/geo"
	"github.com/mark-4989/restaurant-service-go/internal/menu"
)

type fakeRepository struct {
	mu      sync.Mutex
	orders  map[string]Order
	commits int
}

func newFakeRepository(orders ...Order) *fakeRepository {
	f := &fakeRepository{orders: map[string]Order{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

// fakeTx stages order writes until Commit.
type fakeTx struct {
	pgx.Tx
	repo    *fakeRepository
	pending map[string]Order
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for id, o := range t.pending {
		t.repo.orders[id] = o
	}
	t.repo.commits++
	t.pending = nil
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.pending = nil
	return nil
}

func (f *fakeRepository) Create(ctx context.Context, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeRepository) Get(ctx context.Context, id string) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (f *fakeRepository) List(ctx context.Context, flt Filter) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Order{}
	for _, o := range f.orders {
		if flt.UserID != "" && o.UserID != flt.UserID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeRepository) BeginTx(ctx context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	return &fakeTx{repo: f, pending: map[string]Order{}}, nil
}

func (f *fakeRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Order, error) {
	return f.Get(ctx, id)
}

func (f *fakeRepository) UpdateStatusWithTx(ctx context.Context, tx pgx.Tx, o *Order, next Status) error {
	stored, err := f.Get(ctx, o.ID)
	if err != nil {
		return err
	}
	if stored.Status != o.Status {
		return ErrStaleStatus
	}
	if next == StatusCancelled && stored.IsDelivery() && !stored.DeliveryStatus.Assignable() {
		return ErrStaleStatus
	}
	o.Status = next
	tx.(*fakeTx).pending[o.ID] = *o
	return nil
}

func (f *fakeRepository) SaveDeliveryWithTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	tx.(*fakeTx).pending[o.ID] = *o
	return nil
}

type fakeCatalog map[string]menu.Item

func (c fakeCatalog) GetMany(ctx context.Context, ids []string) (map[string]menu.Item, error) {
	out := map[string]menu.Item{}
	for _, id := range ids {
		if it, ok := c[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

type malformedCatalog struct{}

func (malformedCatalog) GetMany(ctx context.Context, ids []string) (map[string]menu.Item, error) {
	return nil, fmt.Errorf("%w: menu item ids must be UUIDs", menu.ErrInvalid)
}

type broadcast struct {
	room, event string
}

type recorder struct {
	mu         sync.Mutex
	broadcasts []broadcast
	published  []Status
	released   []string
	releaseErr error
}

func (r *recorder) Broadcast(room, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, broadcast{room, event})
}

func (r *recorder) PublishOrderStatusChanged(ctx context.Context, o Order, previous Status) error {
	r.published = append(r.published, o.Status)
	return nil
}

func (r *recorder) ReleaseWithTx(ctx context.Context, tx pgx.Tx, driverID, orderID string) error {
	if r.releaseErr != nil {
		return r.releaseErr
	}
	r.released = append(r.released, driverID+"/"+orderID)
	return nil
}

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo TransactionalRepository, rec *recorder) *Service {
	catalog := fakeCatalog{
		"m1": {ID: "m1", Name: "Pilau", Price: dec("8.50"), Available: true},
		"m2": {ID: "m2", Name: "Chai", Price: dec("2.25"), Available: true},
		"m3": {ID: "m3", Name: "Nyama Choma", Price: dec("15.00"), Available: false},
	}
	return NewService(repo, catalog, Options{
		Pricing:     Pricing{TaxRate: dec("0.16"), DeliveryFee: dec("2.50")},
		Publisher:   rec,
		Broadcaster: rec,
		Drivers:     rec,
		Now:         func() time.Time { return testNow },
	})
}

func TestServicePlaceValidation(t *testing.T) {
	past := testNow.Add(-time.Hour)
	future := testNow.Add(2 * time.Hour)
	lines := []LineRequest{{MenuItemID: "m1", Quantity: 1}}

	tests := map[string]struct {
		req     PlaceRequest
		wantErr error
	}{
		"unknown type": {
			req:     PlaceRequest{Type: "drive-thru", Items: lines},
			wantErr: ErrInvalid,
		},
		"no items": {
			req:     PlaceRequest{Type: TypePickup},
			wantErr: ErrInvalid,
		},
		"dine-in without table": {
			req:     PlaceRequest{Type: TypeDineIn, Items: lines},
			wantErr: ErrInvalid,
		},
		"delivery without address": {
			req:     PlaceRequest{Type: TypeDelivery, Items: lines},
			wantErr: ErrInvalid,
		},
		"delivery with bad coordinate": {
			req: PlaceRequest{Type: TypeDelivery, Items: lines, DeliveryAddress: &Address{
				Line: "Moi Avenue", Location: geo.Point{Lat: 95, Lng: 36.8},
			}},
			wantErr: ErrInvalid,
		},
		"preorder in the past": {
			req:     PlaceRequest{Type: TypePreorder, Items: lines, ScheduledFor: &past},
			wantErr: ErrInvalid,
		},
		"zero quantity": {
			req:     PlaceRequest{Type: TypePickup, Items: []LineRequest{{MenuItemID: "m1", Quantity: 0}}},
			wantErr: ErrInvalid,
		},
		"missing menu item": {
			req:     PlaceRequest{Type: TypePickup, Items: []LineRequest{{MenuItemID: "ghost", Quantity: 1}}},
			wantErr: ErrInvalid,
		},
		"unavailable menu item": {
			req:     PlaceRequest{Type: TypePickup, Items: []LineRequest{{MenuItemID: "m3", Quantity: 1}}},
			wantErr: ErrItemUnavailable,
		},
		"valid preorder": {
			req: PlaceRequest{Type: TypePreorder, Items: lines, ScheduledFor: &future},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepository()
			_, err := newTestService(repo, &recorder{}).Place(context.Background(), tc.req)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Empty(t, repo.orders)
				return
			}
			require.NoError(t, err)
			require.Len(t, repo.orders, 1)
		})
	}
}

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func TestServicePlaceDeliveryPricing(t *testing.T) {
	repo := newFakeRepository()
	rec := &recorder{}
	svc := newTestService(repo, rec)

	o, err := svc.Place(context.Background(), PlaceRequest{
		UserID: "u1",
		Type:   TypeDelivery,
		DeliveryAddress: &Address{
			Line:     " Moi Avenue 12 ",
			Location: geo.Point{Lat: -1.2833, Lng: 36.8167},
		},
		TableNumber: "ignored",
		Items: []LineRequest{
			{MenuItemID: "m1", Quantity: 2},
			{MenuItemID: "m2", Quantity: 1},
			{MenuItemID: "m1", Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.Equal(t, StatusPending, o.Status)
	require.Equal(t, DeliveryPending, o.DeliveryStatus)
	require.Empty(t, o.TableNumber)
	require.Equal(t, "Moi Avenue 12", o.DeliveryAddress.Line)
	wantItems := []Item{
		{MenuItemID: "m1", Name: "Pilau", Quantity: 3, UnitPrice: dec("8.50")},
		{MenuItemID: "m2", Name: "Chai", Quantity: 1, UnitPrice: dec("2.25")},
	}
	if diff := cmp.Diff(wantItems, o.Items, decimalEqual); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}

	// 3 x 8.50 + 2.25 = 27.75; tax 16% = 4.44
	require.Equal(t, "27.75", o.Subtotal.StringFixed(2))
	require.Equal(t, "4.44", o.Tax.StringFixed(2))
	require.Equal(t, "2.50", o.DeliveryFee.StringFixed(2))
	require.Equal(t, "34.69", o.Total.StringFixed(2))

	require.Equal(t, []broadcast{{"admin", "order:new"}}, rec.broadcasts)
	require.Equal(t, []Status{StatusPending}, rec.published)
}

func TestServicePlacePickupHasNoDeliveryFee(t *testing.T) {
	svc := newTestService(newFakeRepository(), &recorder{})

	o, err := svc.Place(context.Background(), PlaceRequest{
		Type:  TypePickup,
		Items: []LineRequest{{MenuItemID: "m2", Quantity: 2}},
	})
	require.NoError(t, err)
	require.True(t, o.DeliveryFee.IsZero())
	require.Equal(t, DeliveryNone, o.DeliveryStatus)
	require.Equal(t, "5.22", o.Total.StringFixed(2))
}

func TestServiceUpdateStatus(t *testing.T) {
	tests := map[string]struct {
		order   Order
		next    Status
		wantErr error
	}{
		"pending to confirmed": {
			order: Order{ID: "o1", Type: TypePickup, Status: StatusPending},
			next:  StatusConfirmed,
		},
		"skipping a step": {
			order:   Order{ID: "o1", Type: TypePickup, Status: StatusPending},
			next:    StatusReady,
			wantErr: ErrInvalidTransition,
		},
		"terminal order": {
			order:   Order{ID: "o1", Type: TypePickup, Status: StatusCompleted},
			next:    StatusCancelled,
			wantErr: ErrInvalidTransition,
		},
		"delivery completed before delivered": {
			order:   Order{ID: "o1", Type: TypeDelivery, Status: StatusReady, DeliveryStatus: DeliveryOnTheWay},
			next:    StatusCompleted,
			wantErr: ErrInvalidTransition,
		},
		"delivery cancelled after pickup": {
			order:   Order{ID: "o1", Type: TypeDelivery, Status: StatusReady, DeliveryStatus: DeliveryPickedUp},
			next:    StatusCancelled,
			wantErr: ErrInvalidTransition,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepository(tc.order)
			rec := &recorder{}
			got, err := newTestService(repo, rec).UpdateStatus(context.Background(), tc.order.ID, tc.next)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Equal(t, tc.order.Status, repo.orders[tc.order.ID].Status)
				require.Empty(t, rec.published)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.next, got.Status)
			require.Equal(t, []broadcast{{"order-o1", "order:status"}, {"admin", "order:updated"}}, rec.broadcasts)
			require.Equal(t, []Status{tc.next}, rec.published)
		})
	}
}

func TestServiceCancelReleasesDriver(t *testing.T) {
	repo := newFakeRepository(Order{
		ID: "o1", Type: TypeDelivery, Status: StatusPreparing,
		DeliveryStatus: DeliveryAssigned, DriverID: "d1",
	})
	rec := &recorder{}

	o, err := newTestService(repo, rec).Cancel(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, o.Status)
	require.Equal(t, []string{"d1/o1"}, rec.released)
	require.Equal(t, StatusCancelled, repo.orders["o1"].Status)
	require.Equal(t, 1, repo.commits)
}

func TestServiceCancelRefusedOnceDeliveryLeft(t *testing.T) {
	for _, ds := range []DeliveryStatus{DeliveryPickedUp, DeliveryOnTheWay} {
		t.Run(string(ds), func(t *testing.T) {
			repo := newFakeRepository(Order{
				ID: "o1", Type: TypeDelivery, Status: StatusReady,
				DeliveryStatus: ds, DriverID: "d1",
			})
			rec := &recorder{}

			_, err := newTestService(repo, rec).Cancel(context.Background(), "o1")
			require.ErrorIs(t, err, ErrInvalidTransition)
			require.Equal(t, StatusReady, repo.orders["o1"].Status)
			require.Empty(t, rec.released)
			require.Empty(t, rec.broadcasts)
			require.Zero(t, repo.commits)
		})
	}
}

func TestServiceCancelStaleDeliveryStatus(t *testing.T) {
	repo := &pickupOnLock{fakeRepository: newFakeRepository(Order{
		ID: "o1", Type: TypeDelivery, Status: StatusReady,
		DeliveryStatus: DeliveryAssigned, DriverID: "d1",
	})}
	rec := &recorder{}

	_, err := newTestService(repo, rec).Cancel(context.Background(), "o1")
	require.ErrorIs(t, err, ErrStaleStatus)
	require.Equal(t, StatusReady, repo.orders["o1"].Status)
	require.Equal(t, DeliveryPickedUp, repo.orders["o1"].DeliveryStatus)
	require.Empty(t, rec.released)
	require.Empty(t, rec.published)
}

// pickupOnLock records a courier pickup right after the order is read,
// as if dispatch had committed in between.
type pickupOnLock struct {
	*fakeRepository
}

func (p *pickupOnLock) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Order, error) {
	o, err := p.fakeRepository.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Order{}, err
	}
	p.mu.Lock()
	stored := p.orders[id]
	stored.DeliveryStatus = DeliveryPickedUp
	p.orders[id] = stored
	p.mu.Unlock()
	return o, nil
}

func TestServiceCancelRollsBackWhenReleaseFails(t *testing.T) {
	repo := newFakeRepository(Order{
		ID: "o1", Type: TypeDelivery, Status: StatusPreparing,
		DeliveryStatus: DeliveryAssigned, DriverID: "d1",
	})
	rec := &recorder{releaseErr: errors.New("connection reset")}

	_, err := newTestService(repo, rec).Cancel(context.Background(), "o1")
	require.Error(t, err)
	require.Equal(t, StatusPreparing, repo.orders["o1"].Status)
	require.Zero(t, repo.commits)
	require.Empty(t, rec.published)
}

func TestServicePlaceMalformedMenuItemID(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, malformedCatalog{}, Options{})

	_, err := svc.Place(context.Background(), PlaceRequest{
		Type:  TypePickup,
		Items: []LineRequest{{MenuItemID: "burger", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrInvalid)
	require.Empty(t, repo.orders)
}

func TestServiceListByUserRequiresUser(t *testing.T) {
	_, err := newTestService(newFakeRepository(), &recorder{}).ListByUser(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalid)
}
