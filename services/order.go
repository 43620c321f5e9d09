package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"food-storefront/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPreparing      = "preparing"
	OrderStatusOutForDelivery = "out-for-delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusFailed         = "failed"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStatusLabel turns "out-for-delivery" into "Out For Delivery".
func OrderStatusLabel(status string) string {
	words := strings.Split(status, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error)
}

// MemoryOrderRepository keeps orders in process memory.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]models.Order)}
}

func (m *MemoryOrderRepository) CreateOrder(ctx context.Context, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	m.orders[order.ID] = order
	return nil
}

func (m *MemoryOrderRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (m *MemoryOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// PostgresOrderRepository stores orders in the orders table.
type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

func (p *PostgresOrderRepository) CreateOrder(ctx context.Context, o models.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	var addrJSON []byte
	if o.DeliveryAddress != nil {
		if addrJSON, err = json.Marshal(o.DeliveryAddress); err != nil {
			return fmt.Errorf("failed to marshal delivery address: %w", err)
		}
	}
	var userID *string
	if o.UserID != "" {
		userID = &o.UserID
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO orders (
			id, user_id, items, subtotal, tax, delivery_fee, discount, total, status,
			delivery_type, delivery_address, contact_name, contact_number, payment_method, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric,
			$9, $10, $11, $12, $13, $14, $15)`,
		o.ID, userID, itemsJSON, o.Subtotal.String(), o.Tax.String(), o.DeliveryFee.String(),
		o.Discount.String(), o.Total.String(), o.Status, o.DeliveryType, addrJSON,
		o.ContactName, o.ContactNumber, o.PaymentMethod, o.CreatedAt,
	)
	return err
}

const orderColumns = `id, COALESCE(user_id, ''), items, subtotal::text, tax::text, delivery_fee::text,
	discount::text, total::text, status, delivery_type, delivery_address, contact_name,
	contact_number, payment_method, created_at`

func (p *PostgresOrderRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(p.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (p *PostgresOrderRepository) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var itemsJSON, addrJSON []byte
	var subtotal, tax, fee, discount, total string
	if err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &subtotal, &tax, &fee, &discount, &total, &o.Status,
		&o.DeliveryType, &addrJSON, &o.ContactName, &o.ContactNumber, &o.PaymentMethod, &o.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if len(addrJSON) > 0 {
		o.DeliveryAddress = &models.Address{}
		if err := json.Unmarshal(addrJSON, o.DeliveryAddress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal delivery address: %w", err)
		}
	}
	amounts := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&o.Subtotal, subtotal}, {&o.Tax, tax}, {&o.DeliveryFee, fee}, {&o.Discount, discount}, {&o.Total, total},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.src)
		if err != nil {
			return nil, fmt.Errorf("order %s: bad amount %q: %w", o.ID, a.src, err)
		}
		*a.dst = d
	}
	return &o, nil
}
