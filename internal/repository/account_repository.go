package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/user-directory/internal/domain"
)

// ErrDuplicateEmail is returned when an insert or update hits the unique email index.
var ErrDuplicateEmail = errors.New("email already exists")

// AccountRepository defines persistence access for directory accounts.
// Lookups return pgx.ErrNoRows when nothing matches. Only
// GetByEmailWithSecret populates PasswordHash. Update writes PasswordHash in
// the same statement when it is set and keeps the stored hash otherwise.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByEmailWithSecret(ctx context.Context, email string) (*domain.Account, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string, limit, offset int) ([]domain.Account, error)
	Count(ctx context.Context, search string) (int64, error)
	SearchByName(ctx context.Context, query string, limit int) ([]domain.Account, error)
}

// pool is the part of pgxpool.Pool the repository uses.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type accountRepository struct {
	pool pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(p pool) AccountRepository {
	return &accountRepository{pool: p}
}

const publicColumns = `id, name, email, phone, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (name, email, phone, password_hash)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		account.Name,
		account.Email,
		account.Phone,
		account.PasswordHash,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	return mapWriteError(err)
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `
        UPDATE accounts SET name=$1, email=$2, phone=$3,
            password_hash=COALESCE(NULLIF($4, ''), password_hash), updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		account.Name,
		account.Email,
		account.Phone,
		account.PasswordHash,
		account.ID,
	).Scan(&account.UpdatedAt)
	return mapWriteError(err)
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + publicColumns + ` FROM accounts WHERE id=$1`
	return scanPublic(r.pool.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + publicColumns + ` FROM accounts WHERE email=$1`
	return scanPublic(r.pool.QueryRow(ctx, query, email))
}

func (r *accountRepository) GetByEmailWithSecret(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT id, name, email, phone, password_hash, created_at, updated_at
        FROM accounts WHERE email=$1`

	var account domain.Account
	if err := r.pool.QueryRow(ctx, query, email).Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.Phone,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *accountRepository) List(ctx context.Context, search string, limit, offset int) ([]domain.Account, error) {
	query := `SELECT ` + publicColumns + ` FROM accounts
        WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
        ORDER BY created_at DESC, id DESC
        LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, search, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPublic(rows)
}

func (r *accountRepository) Count(ctx context.Context, search string) (int64, error) {
	const query = `SELECT COUNT(*) FROM accounts WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')`

	var total int64
	if err := r.pool.QueryRow(ctx, query, search).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *accountRepository) SearchByName(ctx context.Context, q string, limit int) ([]domain.Account, error) {
	query := `SELECT ` + publicColumns + ` FROM accounts
        WHERE name ILIKE '%' || $1 || '%'
        ORDER BY name, id
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, q, limit)
	if err != nil {
		return nil, err
	}
	return collectPublic(rows)
}

func scanPublic(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.Phone,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func collectPublic(rows pgx.Rows) ([]domain.Account, error) {
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		account, err := scanPublic(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
