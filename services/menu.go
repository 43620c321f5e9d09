package services

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"food-storefront/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var ErrItemNotFound = errors.New("menu item not found")

//go:embed data/menu.json
var seedMenuJSON []byte

// Catalog supplies the menu. Items are immutable once returned.
type Catalog interface {
	ListMenu(ctx context.Context) ([]models.MenuItem, error)
}

// GetMenuItem looks up one item by id in the catalog.
func GetMenuItem(ctx context.Context, catalog Catalog, id string) (*models.MenuItem, error) {
	items, err := catalog.ListMenu(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == id {
			item := items[i]
			return &item, nil
		}
	}
	return nil, ErrItemNotFound
}

// CatalogEditor is a Catalog the admin bot can change.
type CatalogEditor interface {
	Catalog
	// SaveMenuItem inserts item, or replaces the item with the same id in place.
	SaveMenuItem(ctx context.Context, item models.MenuItem) error
	DeleteMenuItem(ctx context.Context, id string) error
}

// StaticCatalog serves an in-memory list of items.
type StaticCatalog struct {
	mu    sync.RWMutex
	items []models.MenuItem
}

func NewStaticCatalog(items []models.MenuItem) *StaticCatalog {
	return &StaticCatalog{items: items}
}

// SeedCatalog returns the built-in demo menu.
func SeedCatalog() (*StaticCatalog, error) {
	items, err := ParseMenuJSON(seedMenuJSON)
	if err != nil {
		return nil, err
	}
	return NewStaticCatalog(items), nil
}

// SeedMenuItems is the built-in demo menu, used to populate a fresh database.
func SeedMenuItems() ([]models.MenuItem, error) {
	return ParseMenuJSON(seedMenuJSON)
}

func (s *StaticCatalog) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MenuItem, len(s.items))
	copy(out, s.items)
	return out, nil
}

func (s *StaticCatalog) SaveMenuItem(ctx context.Context, item models.MenuItem) error {
	if err := ValidateMenuItem(&item); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i] = item
			return nil
		}
	}
	s.items = append(s.items, item)
	return nil
}

func (s *StaticCatalog) DeleteMenuItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// ParseMenuJSON decodes and validates a JSON array of menu items.
func ParseMenuJSON(data []byte) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal menu: %w", err)
	}
	seen := map[string]bool{}
	for i := range items {
		if err := ValidateMenuItem(&items[i]); err != nil {
			return nil, err
		}
		if seen[items[i].ID] {
			return nil, fmt.Errorf("duplicate menu item id: %s", items[i].ID)
		}
		seen[items[i].ID] = true
	}
	return items, nil
}

// ValidateMenuItem checks the catalog invariants of one item.
func ValidateMenuItem(item *models.MenuItem) error {
	if item.ID == "" {
		return fmt.Errorf("menu item id is required")
	}
	if item.Name == "" {
		return fmt.Errorf("menu item %s: name is required", item.ID)
	}
	if item.Price.IsNegative() {
		return fmt.Errorf("menu item %s: price must be >= 0", item.ID)
	}
	if item.Rating < 0 || item.Rating > 5 {
		return fmt.Errorf("menu item %s: rating must be between 0 and 5", item.ID)
	}
	if item.ReviewCount < 0 || item.PrepTime < 0 {
		return fmt.Errorf("menu item %s: review count and prep time must be >= 0", item.ID)
	}
	switch item.SpiceLevel {
	case models.SpiceMild, models.SpiceMedium, models.SpiceHot, models.SpiceExtraHot:
	default:
		return fmt.Errorf("menu item %s: invalid spice level: %s", item.ID, item.SpiceLevel)
	}
	custIDs := map[string]bool{}
	for _, c := range item.Customizations {
		if custIDs[c.ID] {
			return fmt.Errorf("menu item %s: duplicate customization %s", item.ID, c.ID)
		}
		custIDs[c.ID] = true
		if c.Type != models.CustomizationRadio && c.Type != models.CustomizationCheckbox {
			return fmt.Errorf("menu item %s: invalid customization type: %s", item.ID, c.Type)
		}
		if len(c.Options) == 0 {
			return fmt.Errorf("menu item %s: customization %s has no options", item.ID, c.ID)
		}
		optIDs := map[string]bool{}
		for _, o := range c.Options {
			if optIDs[o.ID] {
				return fmt.Errorf("menu item %s: duplicate option %s in %s", item.ID, o.ID, c.ID)
			}
			optIDs[o.ID] = true
		}
	}
	return nil
}

// PostgresCatalog reads the menu_items table.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

const menuColumns = `id, name, description, price::text, original_price::text, image, category,
	subcategory, rating, review_count, is_veg, spice_level, dietary_tags, prep_time, is_popular,
	customizations`

func (p *PostgresCatalog) ListMenu(ctx context.Context) ([]models.MenuItem, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+menuColumns+` FROM menu_items ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.MenuItem{}
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetMenuItem reads a single row; ErrItemNotFound if absent.
func (p *PostgresCatalog) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	item, err := scanMenuItem(p.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var item models.MenuItem
	var price string
	var originalPrice *string
	var customizationsJSON []byte
	if err := row.Scan(
		&item.ID, &item.Name, &item.Description, &price, &originalPrice, &item.Image,
		&item.Category, &item.Subcategory, &item.Rating, &item.ReviewCount, &item.IsVeg,
		&item.SpiceLevel, &item.DietaryTags, &item.PrepTime, &item.IsPopular,
		&customizationsJSON,
	); err != nil {
		return nil, err
	}
	var err error
	if item.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("menu item %s: bad price: %w", item.ID, err)
	}
	if originalPrice != nil {
		op, err := decimal.NewFromString(*originalPrice)
		if err != nil {
			return nil, fmt.Errorf("menu item %s: bad original price: %w", item.ID, err)
		}
		item.OriginalPrice = &op
	}
	if len(customizationsJSON) > 0 {
		if err := json.Unmarshal(customizationsJSON, &item.Customizations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal customizations of %s: %w", item.ID, err)
		}
	}
	return &item, nil
}

// UpsertMenuItem inserts or replaces one item; position keeps catalog order.
func (p *PostgresCatalog) UpsertMenuItem(ctx context.Context, item models.MenuItem, position int) error {
	if err := ValidateMenuItem(&item); err != nil {
		return err
	}
	customizationsJSON, err := json.Marshal(item.Customizations)
	if err != nil {
		return fmt.Errorf("failed to marshal customizations: %w", err)
	}
	var originalPrice *string
	if item.OriginalPrice != nil {
		s := item.OriginalPrice.String()
		originalPrice = &s
	}
	tags := item.DietaryTags
	if tags == nil {
		tags = []string{}
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO menu_items (
			id, name, description, price, original_price, image, category, subcategory,
			rating, review_count, is_veg, spice_level, dietary_tags, prep_time, is_popular,
			customizations, position
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			name = $2, description = $3, price = $4::numeric, original_price = $5::numeric,
			image = $6, category = $7, subcategory = $8, rating = $9, review_count = $10,
			is_veg = $11, spice_level = $12, dietary_tags = $13, prep_time = $14,
			is_popular = $15, customizations = $16, position = $17`,
		item.ID, item.Name, item.Description, item.Price.String(), originalPrice, item.Image,
		item.Category, item.Subcategory, item.Rating, item.ReviewCount, item.IsVeg,
		item.SpiceLevel, tags, item.PrepTime, item.IsPopular, customizationsJSON, position,
	)
	return err
}

// SaveMenuItem keeps an existing item's position; new items go to the end.
func (p *PostgresCatalog) SaveMenuItem(ctx context.Context, item models.MenuItem) error {
	var position int
	err := p.pool.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT position FROM menu_items WHERE id = $1),
			(SELECT COALESCE(MAX(position), -1) + 1 FROM menu_items)
		)`,
		item.ID,
	).Scan(&position)
	if err != nil {
		return err
	}
	return p.UpsertMenuItem(ctx, item, position)
}

// SeedIfEmpty loads the demo menu into an empty menu_items table.
func (p *PostgresCatalog) SeedIfEmpty(ctx context.Context) error {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM menu_items`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	items, err := SeedMenuItems()
	if err != nil {
		return err
	}
	for i, item := range items {
		if err := p.UpsertMenuItem(ctx, item, i); err != nil {
			return fmt.Errorf("seed %s: %w", item.ID, err)
		}
	}
	return nil
}

func (p *PostgresCatalog) DeleteMenuItem(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}
