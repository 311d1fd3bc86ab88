package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, &domain.Product{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(10), CreatedAt: t0}))
	require.NoError(t, s.PutUser(ctx, &domain.User{ID: "u1", Role: domain.RoleUser}))
	return s
}

func order(id, product, buyer string, status domain.OrderStatus, at time.Time) *domain.Order {
	return &domain.Order{
		ID: id, OrderNumber: "ORD-" + id, ProductID: product, BuyerID: buyer,
		Price: decimal.NewFromInt(10), Quantity: 1, Status: status, PlacedAt: at, UpdatedAt: at,
		Product: &domain.Product{ID: product},
	}
}

func TestTransactRollsBackOnError(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Transact(ctx, func(ctx context.Context) error {
		require.NoError(t, s.CreateOrder(ctx, order("o1", "p1", "u1", domain.OrderProcessing, t0)))
		require.NoError(t, s.AdjustSoldCount(ctx, "p1", 1))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetOrder(ctx, "o1")
	var nf domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.SoldCount)
}

func TestTransactNests(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	err := s.Transact(ctx, func(ctx context.Context) error {
		return s.Transact(ctx, func(ctx context.Context) error {
			return s.AdjustSoldCount(ctx, "p1", 2)
		})
	})
	require.NoError(t, err)
	p, _ := s.GetProduct(ctx, "p1")
	assert.Equal(t, 2, p.SoldCount)
}

func TestRollbackKeepsWritesMadeOutsideTransaction(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Transact(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.CreateProduct(ctx, &domain.Product{ID: "p2", Name: "Cup", Price: decimal.NewFromInt(4), CreatedAt: t0}))
		require.NoError(t, s.AdjustSoldCount(ctx, "p1", 5))
		require.NoError(t, s.AdjustSoldCount(txCtx, "p1", 2))
		require.NoError(t, s.CreateProduct(txCtx, &domain.Product{ID: "p3", Name: "Bowl", Price: decimal.NewFromInt(6), CreatedAt: t0}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetProduct(ctx, "p2")
	require.NoError(t, err)
	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.SoldCount)

	_, err = s.GetProduct(ctx, "p3")
	var nf domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestRollbackRestoresOrderAndCoupon(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, order("o1", "p1", "u1", domain.OrderPending, t0)))
	require.NoError(t, s.CreateCoupon(ctx, &domain.Coupon{
		Code: "SAVE10", DiscountType: domain.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
		Active: true, ExpiresAt: t0.Add(time.Hour), UsedBy: []string{"u0"},
	}))

	err := s.Transact(ctx, func(ctx context.Context) error {
		o, err := s.GetOrder(ctx, "o1")
		require.NoError(t, err)
		o.Status = domain.OrderCancelled
		require.NoError(t, s.UpdateOrder(ctx, o))
		require.NoError(t, s.RedeemCoupon(ctx, "SAVE10", "u1", t0))
		return errors.New("boom")
	})
	require.Error(t, err)

	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, o.Status)
	c, err := s.GetCoupon(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, []string{"u0"}, c.UsedBy)
}

func TestCreateOrderUniquePerActiveProductBuyer(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.CreateOrder(ctx, order("o1", "p1", "u1", domain.OrderPending, t0)))

	err := s.CreateOrder(ctx, order("o2", "p1", "u1", domain.OrderPending, t0))
	var dup domain.ErrDuplicateOrder
	assert.ErrorAs(t, err, &dup)

	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Nil(t, o.Product)
	o.Status = domain.OrderCancelled
	require.NoError(t, s.UpdateOrder(ctx, o))
	assert.NoError(t, s.CreateOrder(ctx, order("o2", "p1", "u1", domain.OrderPending, t0)))
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.CreateProduct(ctx, &domain.Product{ID: "p2", CreatedAt: t0}))
	require.NoError(t, s.CreateOrder(ctx, order("old", "p1", "u1", domain.OrderPending, t0)))
	require.NoError(t, s.CreateOrder(ctx, order("new", "p2", "u1", domain.OrderDelivered, t0.Add(time.Hour))))
	require.NoError(t, s.CreateOrder(ctx, order("theirs", "p1", "u2", domain.OrderDelivered, t0.Add(2*time.Hour))))

	mine, err := s.ListOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "new", mine[0].ID)

	all, err := s.ListOrders(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rev, err := s.DeliveredRevenue(ctx)
	require.NoError(t, err)
	assert.True(t, rev.Equal(decimal.NewFromInt(20)))
	counts, err := s.CountOrdersByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.OrderDelivered])
}

func TestAdjustSoldCountFloorsAtZero(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	require.NoError(t, s.AdjustSoldCount(ctx, "p1", 3))
	require.NoError(t, s.AdjustSoldCount(ctx, "p1", -5))
	p, _ := s.GetProduct(ctx, "p1")
	assert.Equal(t, 0, p.SoldCount)

	var nf domain.ErrNotFound
	assert.ErrorAs(t, s.AdjustSoldCount(ctx, "missing", 1), &nf)
}

func TestRedeemCoupon(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	limit := 1
	require.NoError(t, s.CreateCoupon(ctx, &domain.Coupon{
		Code: "ONCE", Active: true, DiscountType: domain.DiscountFixed, DiscountValue: decimal.NewFromInt(1),
		UsageLimit: &limit, ExpiresAt: t0.Add(time.Hour),
	}))

	got, err := s.GetCoupon(ctx, "ONCE")
	require.NoError(t, err)
	got.UsedBy = append(got.UsedBy, "sneaky")

	require.NoError(t, s.RedeemCoupon(ctx, "ONCE", "u1", t0))
	var limitErr domain.ErrUsageLimitReached
	assert.ErrorAs(t, s.RedeemCoupon(ctx, "ONCE", "u2", t0), &limitErr)
	var invalid domain.ErrInvalidCoupon
	assert.ErrorAs(t, s.RedeemCoupon(ctx, "NONE", "u1", t0), &invalid)

	c, err := s.GetCoupon(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, c.UsedBy)
}

func TestNotifications(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{ID: "n1", Type: domain.NotifyNewOrder, CreatedAt: t0}))
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{ID: "n2", Type: domain.NotifyOrderStatus, CreatedAt: t0.Add(time.Minute)}))
	require.NoError(t, s.MarkNotificationRead(ctx, "n2"))

	all, err := s.ListNotifications(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "n2", all[0].ID)

	unread, err := s.ListNotifications(ctx, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "n1", unread[0].ID)
}
