package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/domain"
)

// MemoryStore keeps every entity in process. Transactions are serialised and
// roll back by replaying an undo log of the writes made through their context.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	orders        map[string]domain.Order
	products      map[string]domain.Product
	coupons       map[string]domain.Coupon
	users         map[string]domain.User
	notifications map[string]domain.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:        make(map[string]domain.Order),
		products:      make(map[string]domain.Product),
		coupons:       make(map[string]domain.Coupon),
		users:         make(map[string]domain.User),
		notifications: make(map[string]domain.Notification),
	}
}

type memTxKey struct{}

// memTx collects compensating actions. They run under mu, newest first.
type memTx struct {
	undo []func()
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// onRollback registers undo when ctx belongs to a transaction. Callers hold mu.
func onRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return domain.ErrValidation("order id already exists")
	}
	for _, ex := range s.orders {
		if ex.OrderNumber == o.OrderNumber {
			return domain.ErrValidation("order number already exists")
		}
		if ex.ProductID == o.ProductID && ex.BuyerID == o.BuyerID && ex.Status != domain.OrderCancelled {
			return domain.ErrDuplicateOrder(ex.OrderNumber)
		}
	}
	s.orders[o.ID] = storedOrder(o)
	id := o.ID
	onRollback(ctx, func() { delete(s.orders, id) })
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound("order")
	}
	return &o, nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.orders[o.ID]
	if !ok {
		return domain.ErrNotFound("order")
	}
	s.orders[o.ID] = storedOrder(o)
	onRollback(ctx, func() { s.orders[prev.ID] = prev })
	return nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if buyerID == "" || o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out, nil
}

func (s *MemoryStore) CountOrdersByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[domain.OrderStatus]int{}
	for _, o := range s.orders {
		out[o.Status]++
	}
	return out, nil
}

func (s *MemoryStore) DeliveredRevenue(ctx context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, o := range s.orders {
		if o.Status == domain.OrderDelivered {
			total = total.Add(o.Subtotal())
		}
	}
	return total, nil
}

// storedOrder drops populated relations so they are never persisted.
func storedOrder(o *domain.Order) domain.Order {
	cp := *o
	cp.Product = nil
	cp.Buyer = nil
	return cp
}

func (s *MemoryStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return domain.ErrValidation("product id already exists")
	}
	s.products[p.ID] = *p
	id := p.ID
	onRollback(ctx, func() { delete(s.products, id) })
	return nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound("product")
	}
	return &p, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CountProducts(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

func (s *MemoryStore) AdjustSoldCount(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ErrNotFound("product")
	}
	before := p.SoldCount
	p.SoldCount += delta
	if p.SoldCount < 0 {
		p.SoldCount = 0
	}
	applied := p.SoldCount - before
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	onRollback(ctx, func() {
		if cur, ok := s.products[id]; ok {
			cur.SoldCount -= applied
			if cur.SoldCount < 0 {
				cur.SoldCount = 0
			}
			s.products[id] = cur
		}
	})
	return nil
}

func (s *MemoryStore) CreateCoupon(ctx context.Context, c *domain.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coupons[c.Code]; ok {
		return domain.ErrValidation("coupon code already exists")
	}
	cp := *c
	cp.UsedBy = append([]string(nil), c.UsedBy...)
	s.coupons[c.Code] = cp
	onRollback(ctx, func() { delete(s.coupons, cp.Code) })
	return nil
}

func (s *MemoryStore) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[code]
	if !ok {
		return nil, domain.ErrNotFound("coupon")
	}
	c.UsedBy = append([]string(nil), c.UsedBy...)
	return &c, nil
}

func (s *MemoryStore) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Coupon, 0, len(s.coupons))
	for _, c := range s.coupons {
		c.UsedBy = append([]string(nil), c.UsedBy...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) RedeemCoupon(ctx context.Context, code, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[code]
	if !ok {
		return domain.ErrInvalidCoupon(code)
	}
	if err := c.Redeemable(userID, now); err != nil {
		return err
	}
	c.UsedBy = append(append([]string(nil), c.UsedBy...), userID)
	c.UpdatedAt = now
	s.coupons[code] = c
	onRollback(ctx, func() {
		cur, ok := s.coupons[code]
		if !ok {
			return
		}
		kept := make([]string, 0, len(cur.UsedBy))
		for _, u := range cur.UsedBy {
			if u != userID {
				kept = append(kept, u)
			}
		}
		cur.UsedBy = kept
		s.coupons[code] = cur
	})
	return nil
}

func (s *MemoryStore) PutUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound("user")
	}
	return &u, nil
}

func (s *MemoryStore) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *MemoryStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = *n
	return nil
}

func (s *MemoryStore) ListNotifications(ctx context.Context, unreadOnly bool) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkNotificationRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return domain.ErrNotFound("notification")
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}
