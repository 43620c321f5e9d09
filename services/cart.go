package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"food-storefront/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DefaultCartKey is the storage key used when a cart has no owner yet.
const DefaultCartKey = "cart"

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// CartStorage persists a cart as an opaque blob under a key.
type CartStorage interface {
	LoadCart(ctx context.Context, key string) (*models.Cart, error)
	SaveCart(ctx context.Context, key string, cart *models.Cart) error
}

// CartStore owns the lines of one cart. Every mutation is saved immediately;
// totals are always recomputed from the lines.
type CartStore struct {
	storage CartStorage
	key     string
	items   []models.CartLineItem
	newID   func(itemID string) string
}

// NewCartStore restores the cart saved under key (an empty cart if nothing is stored).
func NewCartStore(ctx context.Context, storage CartStorage, key string) (*CartStore, error) {
	if key == "" {
		key = DefaultCartKey
	}
	cart, err := storage.LoadCart(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	s := &CartStore{storage: storage, key: key, newID: newLineID}
	if cart != nil {
		for _, line := range cart.Items {
			if line.Quantity >= 1 && line.ID != "" {
				s.items = append(s.items, line)
			}
		}
	}
	return s, nil
}

// newLineID keeps ids short enough to fit in chat callback data.
func newLineID(itemID string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return itemID + "-" + id[:12]
}

func (s *CartStore) Key() string { return s.key }

// Items returns a copy of the lines in insertion order.
func (s *CartStore) Items() []models.CartLineItem {
	out := make([]models.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *CartStore) Len() int { return len(s.items) }

func (s *CartStore) Count() int { return CartCount(s.items) }

func (s *CartStore) Subtotal() decimal.Decimal { return CartSubtotal(s.items) }

func (s *CartStore) Totals(rules PricingRules, deliveryType string, discount decimal.Decimal) models.PricingBreakdown {
	return CartTotals(s.items, rules, deliveryType, discount)
}

// Find returns the line with the given id.
func (s *CartStore) Find(id string) (models.CartLineItem, bool) {
	for _, line := range s.items {
		if line.ID == id {
			return line, true
		}
	}
	return models.CartLineItem{}, false
}

// Add appends a new line. Identical items are never merged into an existing line.
func (s *CartStore) Add(ctx context.Context, item models.MenuItem, qty int, sel models.Selections, instructions string) (models.CartLineItem, error) {
	if qty < 1 {
		return models.CartLineItem{}, ErrInvalidQuantity
	}
	if sel == nil {
		sel = models.Selections{}
	}
	id := s.newID(item.ID)
	for _, ok := s.Find(id); ok; _, ok = s.Find(id) {
		id = s.newID(item.ID)
	}
	line := models.CartLineItem{
		ID:                  id,
		MenuItem:            item,
		Quantity:            qty,
		Customizations:      sel,
		SpecialInstructions: instructions,
	}
	s.items = append(s.items, line)
	return line, s.save(ctx)
}

// UpdateQuantity sets a line's quantity; qty <= 0 removes the line.
func (s *CartStore) UpdateQuantity(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, id)
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Quantity = qty
			return s.save(ctx)
		}
	}
	return nil
}

// Remove deletes a line by id. Unknown ids are ignored.
func (s *CartStore) Remove(ctx context.Context, id string) error {
	kept := s.items[:0:0]
	for _, line := range s.items {
		if line.ID != id {
			kept = append(kept, line)
		}
	}
	s.items = kept
	return s.save(ctx)
}

// RemoveLines deletes every line whose id is in ids and saves once.
func (s *CartStore) RemoveLines(ctx context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.items[:0:0]
	for _, line := range s.items {
		if !drop[line.ID] {
			kept = append(kept, line)
		}
	}
	s.items = kept
	return s.save(ctx)
}

// AddLines appends copies of lines under fresh ids and saves once, so either all
// of them land or none do.
func (s *CartStore) AddLines(ctx context.Context, lines []models.CartLineItem) error {
	prev := s.items
	next := make([]models.CartLineItem, len(prev), len(prev)+len(lines))
	copy(next, prev)
	s.items = next
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		id := s.newID(line.MenuItem.ID)
		for _, ok := s.Find(id); ok; _, ok = s.Find(id) {
			id = s.newID(line.MenuItem.ID)
		}
		line.ID = id
		s.items = append(s.items, line)
	}
	if err := s.save(ctx); err != nil {
		s.items = prev
		return err
	}
	return nil
}

// Reload replaces the in-memory lines with what is stored under the cart's key.
func (s *CartStore) Reload(ctx context.Context) error {
	fresh, err := NewCartStore(ctx, s.storage, s.key)
	if err != nil {
		return err
	}
	s.items = fresh.items
	return nil
}

func (s *CartStore) Clear(ctx context.Context) error {
	s.items = nil
	return s.save(ctx)
}

func (s *CartStore) save(ctx context.Context) error {
	if err := s.storage.SaveCart(ctx, s.key, &models.Cart{Items: s.Items()}); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// MemoryCartStorage keeps carts in process memory, JSON-encoded like the other backends.
type MemoryCartStorage struct {
	mu    sync.RWMutex
	carts map[string]memoryCart
	now   func() time.Time
}

type memoryCart struct {
	data      []byte
	updatedAt time.Time
}

func NewMemoryCartStorage() *MemoryCartStorage {
	return &MemoryCartStorage{carts: make(map[string]memoryCart), now: time.Now}
}

func (m *MemoryCartStorage) LoadCart(ctx context.Context, key string) (*models.Cart, error) {
	m.mu.RLock()
	entry, ok := m.carts[key]
	m.mu.RUnlock()
	if !ok {
		return &models.Cart{Items: []models.CartLineItem{}}, nil
	}
	var cart models.Cart
	if err := json.Unmarshal(entry.data, &cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart items: %w", err)
	}
	return &cart, nil
}

func (m *MemoryCartStorage) SaveCart(ctx context.Context, key string, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}
	m.mu.Lock()
	m.carts[key] = memoryCart{data: data, updatedAt: m.now()}
	m.mu.Unlock()
	return nil
}

// PurgeStale drops carts not saved for longer than ttl.
func (m *MemoryCartStorage) PurgeStale(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, entry := range m.carts {
		if entry.updatedAt.Before(cutoff) {
			delete(m.carts, key)
			n++
		}
	}
	return n, nil
}

// PostgresCartStorage stores carts in the carts table, items as jsonb.
type PostgresCartStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresCartStorage(pool *pgxpool.Pool) *PostgresCartStorage {
	return &PostgresCartStorage{pool: pool}
}

func (p *PostgresCartStorage) LoadCart(ctx context.Context, key string) (*models.Cart, error) {
	var itemsJSON []byte
	err := p.pool.QueryRow(ctx, `
		SELECT items FROM carts WHERE cart_key = $1`,
		key,
	).Scan(&itemsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.Cart{Items: []models.CartLineItem{}}, nil
		}
		return nil, err
	}

	var items []models.CartLineItem
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cart items: %w", err)
		}
	}
	return &models.Cart{Items: items}, nil
}

func (p *PostgresCartStorage) SaveCart(ctx context.Context, key string, cart *models.Cart) error {
	if len(cart.Items) == 0 {
		_, err := p.pool.Exec(ctx, `DELETE FROM carts WHERE cart_key = $1`, key)
		return err
	}
	itemsJSON, err := json.Marshal(cart.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal cart items: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO carts (cart_key, items, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cart_key) DO UPDATE SET
			items = $2,
			updated_at = now()`,
		key, itemsJSON,
	)
	return err
}

// PurgeStale deletes carts untouched for longer than ttl and returns how many went.
func (p *PostgresCartStorage) PurgeStale(ctx context.Context, ttl time.Duration) (int64, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM carts WHERE updated_at < now() - ($1 * interval '1 second')`,
		int64(ttl.Seconds()),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
