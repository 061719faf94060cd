package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cothk/planning/internal/shared"
)

// Repository defines persistence operations for login accounts.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches an account by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var account Account
	err := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, is_active, created_at, updated_at FROM accounts WHERE email = $1`, email).
		Scan(&account.ID, &account.Email, &account.PasswordHash, &account.IsActive, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccount inserts a new active account. A unique-violation on the email
// maps to shared.ErrAlreadyRegistered so callers can treat it as non-fatal.
func (r *PGRepository) CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error) {
	var account Account
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (id, email, password_hash, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id, email, password_hash, is_active, created_at, updated_at`,
		uuid.New(), email, passwordHash).
		Scan(&account.ID, &account.Email, &account.PasswordHash, &account.IsActive, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrAlreadyRegistered
		}
		return nil, err
	}
	return &account, nil
}

var _ Repository = (*PGRepository)(nil)
