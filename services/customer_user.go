package services

import (
	"context"
	"errors"
	"sync"

	"food-storefront/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerLinks remembers which storefront account a Telegram user is signed in as.
type CustomerLinks interface {
	// LinkedUser returns the signed-in user for tgUserID; ok is false if none.
	LinkedUser(ctx context.Context, tgUserID int64) (user *models.User, ok bool, err error)
	Link(ctx context.Context, tgUserID int64, user *models.User) error
	Unlink(ctx context.Context, tgUserID int64) error
}

type MemoryCustomerLinks struct {
	mu    sync.RWMutex
	users map[int64]models.User
}

func NewMemoryCustomerLinks() *MemoryCustomerLinks {
	return &MemoryCustomerLinks{users: make(map[int64]models.User)}
}

func (m *MemoryCustomerLinks) LinkedUser(ctx context.Context, tgUserID int64) (*models.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[tgUserID]
	if !ok {
		return nil, false, nil
	}
	return &u, true, nil
}

func (m *MemoryCustomerLinks) Link(ctx context.Context, tgUserID int64, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	u.PasswordHash = ""
	m.users[tgUserID] = u
	return nil
}

func (m *MemoryCustomerLinks) Unlink(ctx context.Context, tgUserID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, tgUserID)
	return nil
}

// PostgresCustomerLinks stores links in customer_users, joined to users.
type PostgresCustomerLinks struct {
	pool *pgxpool.Pool
}

func NewPostgresCustomerLinks(pool *pgxpool.Pool) *PostgresCustomerLinks {
	return &PostgresCustomerLinks{pool: pool}
}

func (p *PostgresCustomerLinks) LinkedUser(ctx context.Context, tgUserID int64) (*models.User, bool, error) {
	var u models.User
	err := p.pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.name, u.phone, u.created_at
		FROM customer_users c JOIN users u ON u.id = c.user_id
		WHERE c.tg_user_id = $1`,
		tgUserID,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &u, true, nil
}

func (p *PostgresCustomerLinks) Link(ctx context.Context, tgUserID int64, user *models.User) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO customer_users (tg_user_id, user_id, linked_at)
		VALUES ($1, $2, now())
		ON CONFLICT (tg_user_id) DO UPDATE SET user_id = EXCLUDED.user_id, linked_at = now()`,
		tgUserID, user.ID,
	)
	return err
}

func (p *PostgresCustomerLinks) Unlink(ctx context.Context, tgUserID int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM customer_users WHERE tg_user_id = $1`, tgUserID)
	return err
}
