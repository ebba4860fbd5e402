package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shoreline/internal/database"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresProvider keeps accounts in the accounts table.
type PostgresProvider struct {
	db   *database.DB
	cost int
}

func NewPostgresProvider(db *database.DB, cfg Config) *PostgresProvider {
	return &PostgresProvider{db: db, cost: cfg.BcryptCost}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (p *PostgresProvider) CreateAccount(ctx context.Context, uid, email, password string, role Role) (*Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password, p.cost)
	if err != nil {
		return nil, err
	}

	acc := &Account{UID: uid, Email: email, PasswordHash: hash, Role: role}
	query := `
		INSERT INTO accounts (uid, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err = p.db.QueryRowContext(ctx, query, uid, email, hash, string(role)).Scan(&acc.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

func (p *PostgresProvider) UpdateAccount(ctx context.Context, uid string, upd AccountUpdate) error {
	sets := []string{}
	args := []any{uid}
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Email != nil {
		email, err := NormalizeEmail(*upd.Email)
		if err != nil {
			return err
		}
		add("email", email)
	}
	if upd.Password != nil {
		if err := ValidatePassword(*upd.Password); err != nil {
			return err
		}
		hash, err := HashPassword(*upd.Password, p.cost)
		if err != nil {
			return err
		}
		add("password_hash", hash)
	}
	if upd.Role != nil {
		add("role", string(*upd.Role))
	}
	if upd.Disabled != nil {
		add("disabled", *upd.Disabled)
	}

	if len(sets) == 0 {
		_, err := p.GetAccount(ctx, uid)
		return err
	}

	query := "UPDATE accounts SET " + strings.Join(sets, ", ") + " WHERE uid = $1"
	res, err := p.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (p *PostgresProvider) DeleteAccount(ctx context.Context, uid string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM accounts WHERE uid = $1`, uid)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

const accountColumns = `uid, email, password_hash, role, disabled, created_at, last_login_at`

func scanAccount(row *sql.Row) (*Account, error) {
	acc := &Account{}
	var role string
	var lastLogin sql.NullTime
	err := row.Scan(&acc.UID, &acc.Email, &acc.PasswordHash, &role, &acc.Disabled, &acc.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	acc.Role = Role(role)
	if lastLogin.Valid {
		acc.LastLoginAt = &lastLogin.Time
	}
	return acc, nil
}

func (p *PostgresProvider) GetAccount(ctx context.Context, uid string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE uid = $1`
	acc, err := scanAccount(p.db.QueryRowContext(ctx, query, uid))
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, err
}

func (p *PostgresProvider) SignIn(ctx context.Context, email, password string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	acc, err := scanAccount(p.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if !VerifyPassword(acc.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if acc.Disabled {
		return nil, ErrAccountDisabled
	}

	var at sql.NullTime
	err = p.db.QueryRowContext(ctx,
		`UPDATE accounts SET last_login_at = NOW() WHERE uid = $1 RETURNING last_login_at`, acc.UID).Scan(&at)
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	if at.Valid {
		acc.LastLoginAt = &at.Time
	}
	return acc, nil
}
