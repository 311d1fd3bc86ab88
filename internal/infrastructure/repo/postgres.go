package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"storefront-backend/internal/domain"
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &PostgresStore{db: db}, nil
}

func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (r *PostgresStore) Close() error {
	return r.db.Close()
}

type pgTxKey struct{}

type queryer interface {
	sqlx.ExtContext
}

func (r *PostgresStore) conn(ctx context.Context) queryer {
	if tx, ok := ctx.Value(pgTxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return r.db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(pgTxKey{}).(*sqlx.Tx)
	return ok
}

func (r *PostgresStore) Transact(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = fn(context.WithValue(ctx, pgTxKey{}, tx))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

type orderRow struct {
	ID            string          `db:"id"`
	OrderNumber   string          `db:"order_number"`
	ProductID     string          `db:"product_id"`
	BuyerID       string          `db:"buyer_id"`
	Price         decimal.Decimal `db:"price"`
	Quantity      int             `db:"quantity"`
	Discount      decimal.Decimal `db:"discount"`
	FinalPrice    decimal.Decimal `db:"final_price"`
	CouponCode    string          `db:"coupon_code"`
	ShipName      string          `db:"ship_name"`
	ShipStreet    string          `db:"ship_street"`
	ShipCity      string          `db:"ship_city"`
	ShipState     string          `db:"ship_state"`
	ShipZip       string          `db:"ship_zip"`
	ShipCountry   string          `db:"ship_country"`
	ShipEmail     string          `db:"ship_email"`
	ShipPhone     string          `db:"ship_phone"`
	PaymentMethod string          `db:"payment_method"`
	Notes         string          `db:"notes"`
	Status        string          `db:"status"`
	PlacedAt      time.Time       `db:"placed_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func toOrderRow(o *domain.Order) orderRow {
	a := o.ShippingAddress
	return orderRow{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		ProductID:     o.ProductID,
		BuyerID:       o.BuyerID,
		Price:         o.Price,
		Quantity:      o.Quantity,
		Discount:      o.Discount,
		FinalPrice:    o.FinalPrice,
		CouponCode:    o.CouponCode,
		ShipName:      a.Name,
		ShipStreet:    a.Street,
		ShipCity:      a.City,
		ShipState:     a.State,
		ShipZip:       a.Zip,
		ShipCountry:   a.Country,
		ShipEmail:     a.Email,
		ShipPhone:     a.Phone,
		PaymentMethod: string(o.PaymentMethod),
		Notes:         o.Notes,
		Status:        string(o.Status),
		PlacedAt:      o.PlacedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (row orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:          row.ID,
		OrderNumber: row.OrderNumber,
		ProductID:   row.ProductID,
		BuyerID:     row.BuyerID,
		Price:       row.Price,
		Quantity:    row.Quantity,
		Discount:    row.Discount,
		FinalPrice:  row.FinalPrice,
		CouponCode:  row.CouponCode,
		ShippingAddress: domain.ShippingAddress{
			Name:    row.ShipName,
			Street:  row.ShipStreet,
			City:    row.ShipCity,
			State:   row.ShipState,
			Zip:     row.ShipZip,
			Country: row.ShipCountry,
			Email:   row.ShipEmail,
			Phone:   row.ShipPhone,
		},
		PaymentMethod: domain.PaymentMethod(row.PaymentMethod),
		Notes:         row.Notes,
		Status:        domain.OrderStatus(row.Status),
		PlacedAt:      row.PlacedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

const orderColumns = `id,order_number,product_id,buyer_id,price,quantity,discount,final_price,coupon_code,
	ship_name,ship_street,ship_city,ship_state,ship_zip,ship_country,ship_email,ship_phone,
	payment_method,notes,status,placed_at,updated_at`

var createOrderQuery = `INSERT INTO orders (` + orderColumns + `) VALUES (
	:id,:order_number,:product_id,:buyer_id,:price,:quantity,:discount,:final_price,:coupon_code,
	:ship_name,:ship_street,:ship_city,:ship_state,:ship_zip,:ship_country,:ship_email,:ship_phone,
	:payment_method,:notes,:status,:placed_at,:updated_at)`

func (r *PostgresStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	_, err := sqlx.NamedExecContext(ctx, r.conn(ctx), createOrderQuery, toOrderRow(o))
	if isUniqueViolation(err, "orders_product_buyer_active_key") {
		return domain.ErrDuplicateOrder(o.ProductID)
	}
	return err
}

var getOrderQuery = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

// GetOrder locks the row when called inside a transaction.
func (r *PostgresStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	q := getOrderQuery
	if inTx(ctx) {
		q += " FOR UPDATE"
	}
	var row orderRow
	if err := sqlx.GetContext(ctx, r.conn(ctx), &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("order")
		}
		return nil, err
	}
	o := row.toDomain()
	return &o, nil
}

var updateOrderQuery = `UPDATE orders SET
	ship_name=:ship_name, ship_street=:ship_street, ship_city=:ship_city, ship_state=:ship_state,
	ship_zip=:ship_zip, ship_country=:ship_country, ship_email=:ship_email, ship_phone=:ship_phone,
	notes=:notes, status=:status, updated_at=:updated_at
	WHERE id=:id`

func (r *PostgresStore) UpdateOrder(ctx context.Context, o *domain.Order) error {
	res, err := sqlx.NamedExecContext(ctx, r.conn(ctx), updateOrderQuery, toOrderRow(o))
	if isUniqueViolation(err, "orders_product_buyer_active_key") {
		return domain.ErrDuplicateOrder(o.ProductID)
	}
	if err != nil {
		return err
	}
	return expectOne(res, "order")
}

func (r *PostgresStore) ListOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if buyerID != "" {
		q += ` WHERE buyer_id = $1`
		args = append(args, buyerID)
	}
	q += ` ORDER BY placed_at DESC`
	var rows []orderRow
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *PostgresStore) CountOrdersByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &rows, `SELECT status, COUNT(1) AS n FROM orders GROUP BY status`); err != nil {
		return nil, err
	}
	out := make(map[domain.OrderStatus]int, len(rows))
	for _, row := range rows {
		out[domain.OrderStatus(row.Status)] = row.N
	}
	return out, nil
}

func (r *PostgresStore) DeliveredRevenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := sqlx.GetContext(ctx, r.conn(ctx), &total,
		`SELECT COALESCE(SUM(price * quantity), 0) FROM orders WHERE status = $1`, string(domain.OrderDelivered))
	return total, err
}

func (r *PostgresStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	_, err := sqlx.NamedExecContext(ctx, r.conn(ctx),
		`INSERT INTO products (id,name,price,sold_count,created_at,updated_at)
		VALUES (:id,:name,:price,:sold_count,:created_at,:updated_at)`, p)
	return err
}

func (r *PostgresStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, r.conn(ctx), &p,
		`SELECT id,name,price,sold_count,created_at,updated_at FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("product")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := sqlx.SelectContext(ctx, r.conn(ctx), &out,
		`SELECT id,name,price,sold_count,created_at,updated_at FROM products ORDER BY created_at DESC`)
	return out, err
}

func (r *PostgresStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.conn(ctx), &n, `SELECT COUNT(1) FROM products`)
	return n, err
}

// AdjustSoldCount applies delta in one statement so concurrent adjustments
// never read a stale value.
func (r *PostgresStore) AdjustSoldCount(ctx context.Context, id string, delta int) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE products SET sold_count = GREATEST(sold_count + $2, 0), updated_at = now() WHERE id = $1`, id, delta)
	if err != nil {
		return err
	}
	return expectOne(res, "product")
}

type couponRow struct {
	Code          string              `db:"code"`
	Active        bool                `db:"active"`
	DiscountType  string              `db:"discount_type"`
	DiscountValue decimal.Decimal     `db:"discount_value"`
	MaxDiscount   decimal.NullDecimal `db:"max_discount"`
	MinOrderValue decimal.Decimal     `db:"min_order_value"`
	UsageLimit    sql.NullInt64       `db:"usage_limit"`
	ExpiresAt     time.Time           `db:"expires_at"`
	UsedBy        pq.StringArray      `db:"used_by"`
	CreatedAt     time.Time           `db:"created_at"`
	UpdatedAt     time.Time           `db:"updated_at"`
}

func (row couponRow) toDomain() domain.Coupon {
	c := domain.Coupon{
		Code:          row.Code,
		Active:        row.Active,
		DiscountType:  domain.DiscountType(row.DiscountType),
		DiscountValue: row.DiscountValue,
		MaxDiscount:   row.MaxDiscount,
		MinOrderValue: row.MinOrderValue,
		ExpiresAt:     row.ExpiresAt,
		UsedBy:        []string(row.UsedBy),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if c.UsedBy == nil {
		c.UsedBy = []string{}
	}
	if row.UsageLimit.Valid {
		n := int(row.UsageLimit.Int64)
		c.UsageLimit = &n
	}
	return c
}

const couponColumns = `code,active,discount_type,discount_value,max_discount,min_order_value,usage_limit,expires_at,used_by,created_at,updated_at`

func (r *PostgresStore) CreateCoupon(ctx context.Context, c *domain.Coupon) error {
	var limit sql.NullInt64
	if c.UsageLimit != nil {
		limit = sql.NullInt64{Int64: int64(*c.UsageLimit), Valid: true}
	}
	usedBy := c.UsedBy
	if usedBy == nil {
		usedBy = []string{}
	}
	_, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO coupons (`+couponColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		c.Code, c.Active, string(c.DiscountType), c.DiscountValue, c.MaxDiscount, c.MinOrderValue,
		limit, c.ExpiresAt, pq.Array(usedBy), c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err, "") {
		return domain.ErrValidation("coupon code already exists")
	}
	return err
}

func (r *PostgresStore) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	var row couponRow
	err := sqlx.GetContext(ctx, r.conn(ctx), &row, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("coupon")
	}
	if err != nil {
		return nil, err
	}
	c := row.toDomain()
	return &c, nil
}

func (r *PostgresStore) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	var rows []couponRow
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &rows, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`); err != nil {
		return nil, err
	}
	out := make([]domain.Coupon, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// The WHERE clause is re-evaluated against the locked row, so the capacity and
// per-user checks cannot be raced.
var redeemCouponQuery = `UPDATE coupons SET used_by = array_append(used_by, $2), updated_at = $3
	WHERE code = $1 AND active AND expires_at >= $3
	AND (usage_limit IS NULL OR cardinality(used_by) < usage_limit)
	AND NOT ($2 = ANY(used_by))`

func (r *PostgresStore) RedeemCoupon(ctx context.Context, code, userID string, now time.Time) error {
	res, err := r.conn(ctx).ExecContext(ctx, redeemCouponQuery, code, userID, now)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 1 {
		return err
	}
	c, err := r.GetCoupon(ctx, code)
	if err != nil {
		return domain.ErrInvalidCoupon(code)
	}
	if err := c.Redeemable(userID, now); err != nil {
		return err
	}
	return domain.ErrInvalidCoupon(code)
}

func (r *PostgresStore) PutUser(ctx context.Context, u *domain.User) error {
	_, err := sqlx.NamedExecContext(ctx, r.conn(ctx),
		`INSERT INTO users (id,name,email,role,created_at,updated_at)
		VALUES (:id,:name,:email,:role,:created_at,:updated_at)
		ON CONFLICT (id) DO UPDATE SET name=:name, email=:email, role=:role, updated_at=:updated_at`, u)
	return err
}

func (r *PostgresStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.conn(ctx), &u,
		`SELECT id,name,email,role,created_at,updated_at FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.conn(ctx), &n, `SELECT COUNT(1) FROM users`)
	return n, err
}

type notificationRow struct {
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	Priority  string    `db:"priority"`
	Read      bool      `db:"read"`
	RelatedID string    `db:"related_id"`
	Metadata  []byte    `db:"metadata"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *PostgresStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return err
	}
	if n.Metadata == nil {
		meta = []byte("{}")
	}
	_, err = r.conn(ctx).ExecContext(ctx,
		`INSERT INTO notifications (id,type,title,message,priority,read,related_id,metadata,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		n.ID, string(n.Type), n.Title, n.Message, string(n.Priority), n.Read, n.RelatedID, string(meta), n.CreatedAt)
	return err
}

func (r *PostgresStore) ListNotifications(ctx context.Context, unreadOnly bool) ([]domain.Notification, error) {
	q := `SELECT id,type,title,message,priority,read,related_id,metadata,created_at FROM notifications`
	if unreadOnly {
		q += ` WHERE NOT read`
	}
	q += ` ORDER BY created_at DESC`
	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, r.conn(ctx), &rows, q); err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		n := domain.Notification{
			ID:        row.ID,
			Type:      domain.NotificationType(row.Type),
			Title:     row.Title,
			Message:   row.Message,
			Priority:  domain.Priority(row.Priority),
			Read:      row.Read,
			RelatedID: row.RelatedID,
			CreatedAt: row.CreatedAt,
		}
		_ = json.Unmarshal(row.Metadata, &n.Metadata)
		out = append(out, n)
	}
	return out, nil
}

func (r *PostgresStore) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := r.conn(ctx).ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res, "notification")
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound(what)
	}
	return nil
}
