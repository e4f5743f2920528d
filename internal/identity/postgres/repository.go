// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bissquit/identity-garden/internal/domain"
	"github.com/bissquit/identity-garden/internal/identity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// Repository implements the identity.Repository interface using PostgreSQL.
// Ids come from the accounts id sequence, which is monotonic and never
// reuses values; email uniqueness is enforced by a UNIQUE constraint, so
// concurrent registrations cannot both succeed.
type Repository struct {
	db *pgxpool.Pool
}

var _ identity.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Find retrieves the single account matching all set filter fields.
func (r *Repository) Find(ctx context.Context, filter identity.Filter) (*domain.Account, error) {
	query := `
		SELECT id, email, password_hash, role, created_at, updated_at
		FROM accounts
	`

	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if filter.ID != nil {
		args = append(args, *filter.ID)
		conditions = append(conditions, fmt.Sprintf("id = $%d", len(args)))
	}
	if filter.Email != nil {
		args = append(args, *filter.Email)
		conditions = append(conditions, fmt.Sprintf("email = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return nil, identity.ErrAccountNotFound
	}

	query += " WHERE " + strings.Join(conditions, " AND ")

	var account domain.Account
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	return &account, nil
}

// List retrieves all accounts in creation order.
func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	query := `
		SELECT id, email, password_hash, role, created_at, updated_at
		FROM accounts
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]domain.Account, 0)
	for rows.Next() {
		var account domain.Account
		err := rows.Scan(
			&account.ID,
			&account.Email,
			&account.PasswordHash,
			&account.Role,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// Allocate reserves the next account id from the sequence and fills defaults.
// Sequence values are consumed even if the account is never saved, which
// keeps ids strictly increasing and never reused.
func (r *Repository) Allocate(ctx context.Context, account domain.Account) (*domain.Account, error) {
	query := `SELECT nextval(pg_get_serial_sequence('accounts', 'id')), now(), now()`

	err := r.db.QueryRow(ctx, query).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("allocate account id: %w", err)
	}

	if account.Role == "" {
		account.Role = domain.DefaultRole
	}

	return &account, nil
}

// Save inserts the account or overwrites the record with the same id.
func (r *Repository) Save(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    password_hash = EXCLUDED.password_hash,
		    role = EXCLUDED.role,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return identity.ErrEmailExists
		}
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// Update merges the patch into the stored record.
func (r *Repository) Update(ctx context.Context, id int64, patch identity.Patch) (*domain.Account, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	if patch.Email != nil {
		args = append(args, *patch.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if patch.PasswordHash != nil {
		args = append(args, *patch.PasswordHash)
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	if patch.Role != nil {
		args = append(args, *patch.Role)
		sets = append(sets, fmt.Sprintf("role = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		UPDATE accounts
		SET %s
		WHERE id = $1
		RETURNING id, email, password_hash, role, created_at, updated_at
	`, strings.Join(sets, ", "))

	var account domain.Account
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrAccountNotFound
		}
		if isUniqueViolation(err) {
			return nil, identity.ErrEmailExists
		}
		return nil, fmt.Errorf("update account: %w", err)
	}

	return &account, nil
}

// Delete removes the account record.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrAccountNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
