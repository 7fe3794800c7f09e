package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fanzlab/authcore/internal/domain"
)

// Account is an identity record with its stored credential. The embedded
// User is what gets handed to clients; the hash never leaves this layer.
type Account struct {
	domain.User
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountRepository defines persistence access for identity accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

const accountColumns = `id, email, display_name, avatar_url, platform_access, creator_status, age_verified, roles, password_hash, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *Account) error {
	const query = `
        INSERT INTO accounts (email, display_name, avatar_url, platform_access, creator_status, age_verified, roles, password_hash)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		account.Email,
		account.DisplayName,
		account.AvatarURL,
		account.PlatformAccess,
		string(account.CreatorStatus),
		account.AgeVerified,
		roleStrings(account.Roles),
		account.PasswordHash,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, email))
}

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		account       Account
		creatorStatus string
		roles         []string
	)
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.AvatarURL,
		&account.PlatformAccess,
		&creatorStatus,
		&account.AgeVerified,
		&roles,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	account.CreatorStatus = domain.CreatorStatus(creatorStatus)
	account.Roles = make([]domain.Role, len(roles))
	for i, role := range roles {
		account.Roles[i] = domain.Role(role)
	}
	return &account, nil
}

func roleStrings(roles []domain.Role) []string {
	out := make([]string, len(roles))
	for i, role := range roles {
		out[i] = string(role)
	}
	return out
}
