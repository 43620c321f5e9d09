package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"food-storefront/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already exists")
	ErrMissingFields      = errors.New("missing required fields")
	ErrLoginThrottled     = errors.New("too many failed attempts")
	ErrUserNotFound       = errors.New("user not found")
)

type UserRepository interface {
	SaveUser(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthService is the mock sign-in used by the storefront. Latency simulates a
// network round trip and is skipped when zero.
type AuthService struct {
	users    UserRepository
	throttle *LoginThrottle
	Latency  time.Duration
}

func NewAuthService(users UserRepository, latency time.Duration) *AuthService {
	return &AuthService{users: users, throttle: NewLoginThrottle(), Latency: latency}
}

// Signup registers a new account with a bcrypt password hash.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	if err := sleepCtx(ctx, s.Latency); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email: %w", err)
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	return s.create(ctx, name, email, password)
}

// Login checks a registered user's password. An unknown email gets a fresh mock
// account named after the local part of the address.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if wait := s.throttle.WaitSeconds(email); wait > 0 {
		return nil, fmt.Errorf("%w: try again in %d seconds", ErrLoginThrottled, wait)
	}
	if err := sleepCtx(ctx, s.Latency); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		if _, perr := mail.ParseAddress(email); perr != nil {
			return nil, fmt.Errorf("invalid email: %w", perr)
		}
		name := email
		if at := strings.Index(email, "@"); at > 0 {
			name = email[:at]
		}
		return s.create(ctx, name, email, password)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.throttle.RecordFailed(email)
		return nil, ErrInvalidCredentials
	}
	s.throttle.RecordSuccess(email)
	return user, nil
}

func (s *AuthService) create(ctx context.Context, name, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// InMemoryUserRepository keeps users keyed by email.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewInMemoryUserRepository() *InMemoryUserRepository {
	return &InMemoryUserRepository{users: make(map[string]*models.User)}
}

func (r *InMemoryUserRepository) SaveUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u := *user
	r.users[user.Email] = &u
	return nil
}

func (r *InMemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// PostgresUserRepository stores users in the users table.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

func (r *PostgresUserRepository) SaveUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, name, phone, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = $3,
			phone = $4,
			password_hash = $5`,
		user.ID, user.Email, user.Name, user.Phone, user.PasswordHash, user.CreatedAt,
	)
	return err
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, name, phone, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
