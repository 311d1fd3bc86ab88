package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"storefront-backend/internal/domain"
	"storefront-backend/internal/infrastructure/repo"
	"storefront-backend/internal/usecase"
)

// inlineOutbox runs jobs on the caller's goroutine.
type inlineOutbox struct {
	mu   sync.Mutex
	jobs []string
	errs []error
}

func (o *inlineOutbox) Enqueue(name string, job func(ctx context.Context) error) bool {
	err := job(context.Background())
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, name)
	if err != nil {
		o.errs = append(o.errs, err)
	}
	return true
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func (m *fakeMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		out = append(out, s.subject)
	}
	return out
}

type fakeEvents struct {
	mu       sync.Mutex
	keys     []string
	payloads []string
}

func (e *fakeEvents) Publish(ctx context.Context, key string, payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, key)
	e.payloads = append(e.payloads, string(payload))
	return nil
}

// brokenNotifications fails every notification write.
type brokenNotifications struct {
	*repo.MemoryStore
}

func (brokenNotifications) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return errors.New("notifications table unavailable")
}

var (
	buyer   = domain.Principal{UserID: "u1", Role: domain.RoleUser}
	other   = domain.Principal{UserID: "u2", Role: domain.RoleUser}
	admin   = domain.Principal{UserID: "admin", Role: domain.RoleAdmin}
	fixedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	store   *repo.MemoryStore
	orders  *usecase.OrderService
	coupons *usecase.CouponService
	mailer  *fakeMailer
	events  *fakeEvents
	outbox  *inlineOutbox
	hook    *test.Hook

	clockMu sync.Mutex
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  repo.NewMemoryStore(),
		mailer: &fakeMailer{},
		events: &fakeEvents{},
		outbox: &inlineOutbox{},
		clock:  fixedAt,
	}
	log, hook := test.NewNullLogger()
	f.hook = hook
	now := func() time.Time {
		f.clockMu.Lock()
		defer f.clockMu.Unlock()
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	f.coupons = &usecase.CouponService{Repo: f.store, Now: func() time.Time { return fixedAt }}
	f.orders = &usecase.OrderService{
		Store:     f.store,
		Inventory: &usecase.Inventory{Products: f.store},
		Coupons:   f.coupons,
		Outbox:    f.outbox,
		Mailer:    f.mailer,
		Events:    f.events,
		Log:       log,
		Now:       now,
	}
	ctx := context.Background()
	for _, u := range []domain.User{
		{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser},
		{ID: "u2", Name: "Bob", Email: "bob@example.com", Role: domain.RoleUser},
		{ID: "admin", Name: "Root", Email: "root@example.com", Role: domain.RoleAdmin},
	} {
		require.NoError(t, f.store.PutUser(ctx, &u))
	}
	f.product(t, "p1", 100)
	f.product(t, "p2", 50)
	return f
}

func (f *fixture) product(t *testing.T, id string, price int64) {
	t.Helper()
	require.NoError(t, f.store.CreateProduct(context.Background(), &domain.Product{
		ID: id, Name: "Product " + id, Price: decimal.NewFromInt(price), CreatedAt: fixedAt,
	}))
}

func (f *fixture) user(t *testing.T, id string) domain.Principal {
	t.Helper()
	require.NoError(t, f.store.PutUser(context.Background(), &domain.User{ID: id, Name: id, Email: id + "@example.com"}))
	return domain.Principal{UserID: id, Role: domain.RoleUser}
}

func (f *fixture) coupon(t *testing.T, c domain.Coupon) {
	t.Helper()
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = fixedAt.Add(24 * time.Hour)
	}
	c.Active = true
	require.NoError(t, f.store.CreateCoupon(context.Background(), &c))
}

func (f *fixture) soldCount(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.SoldCount
}

func (f *fixture) notifications(t *testing.T, typ domain.NotificationType) []domain.Notification {
	t.Helper()
	all, err := f.store.ListNotifications(context.Background(), false)
	require.NoError(t, err)
	var out []domain.Notification
	for _, n := range all {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func address() domain.ShippingAddress {
	return domain.ShippingAddress{
		Name: "Ada Lovelace", Street: "1 Main St", City: "London", Zip: "N1",
		Country: "UK", Email: "ada@example.com", Phone: "+44 1234",
	}
}

func orderInput(productID string, qty int, method domain.PaymentMethod) usecase.CreateOrderInput {
	return usecase.CreateOrderInput{
		ProductID:       productID,
		Quantity:        qty,
		ShippingAddress: address(),
		PaymentMethod:   method,
	}
}

func codes(n int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}
