package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/platform/db"
)

const uniqueViolation = "23505"

const accountColumns = `id, linked_id, username, password_hash, role_id, custom_permissions,
	banned, ban_reason, ban_expires_at, last_login_at, created_at, updated_at`

// PGAccountStore implements AccountStore using PostgreSQL.
type PGAccountStore struct {
	pool *pgxpool.Pool
}

// NewPGAccountStore constructs a PostgreSQL account store.
func NewPGAccountStore(pool *pgxpool.Pool) *PGAccountStore {
	return &PGAccountStore{pool: pool}
}

func (s *PGAccountStore) FindByIdentifier(ctx context.Context, ident Identifier) (*Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE id = (SELECT account_id FROM account_identifiers WHERE id_type = $1 AND id_value = $2)`,
		ident.Type, ident.Value)
	return s.scanOne(ctx, row, "find by identifier")
}

func (s *PGAccountStore) FindByID(ctx context.Context, id int64) (*Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return s.scanOne(ctx, row, "find by id")
}

func (s *PGAccountStore) FindByLinkedID(ctx context.Context, linkedID string) (*Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE linked_id = $1`, linkedID)
	return s.scanOne(ctx, row, "find by linked id")
}

func (s *PGAccountStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1 AND username <> ''`, username)
	return s.scanOne(ctx, row, "find by username")
}

func (s *PGAccountStore) FindBanned(ctx context.Context) ([]Account, error) {
	return s.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE banned ORDER BY id`, "find banned")
}

func (s *PGAccountStore) FindByRole(ctx context.Context, roleID int64) ([]Account, error) {
	return s.list(ctx, `SELECT `+accountColumns+` FROM accounts WHERE role_id = $1 ORDER BY id`, "find by role", roleID)
}

// Create inserts the account and its identifiers in one transaction and
// assigns acct.ID. A concurrent insert of the same identifier fails with
// ErrDuplicateIdentifier; callers retry the lookup.
func (s *PGAccountStore) Create(ctx context.Context, acct *Account) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		row := tx.QueryRow(ctx, `INSERT INTO accounts
			(linked_id, username, password_hash, role_id, custom_permissions, banned, ban_reason, ban_expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			RETURNING id`,
			acct.LinkedID, acct.Username, acct.PasswordHash, acct.RoleID,
			EncodeOverrides(acct.Overrides), acct.Banned, acct.BanReason, acct.BanExpiresAt, now)
		if err := row.Scan(&acct.ID); err != nil {
			return err
		}
		acct.CreatedAt = now
		acct.UpdatedAt = now
		for _, ident := range acct.Identifiers {
			if _, err := tx.Exec(ctx, `INSERT INTO account_identifiers (account_id, id_type, id_value) VALUES ($1, $2, $3)`,
				acct.ID, ident.Type, ident.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return &StoreError{Op: "create account", Err: err}
	}
	return nil
}

func (s *PGAccountStore) Update(ctx context.Context, acct *Account) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE accounts SET
			username = $2, password_hash = $3, role_id = $4, custom_permissions = $5,
			banned = $6, ban_reason = $7, ban_expires_at = $8, updated_at = $9
			WHERE id = $1`,
			acct.ID, acct.Username, acct.PasswordHash, acct.RoleID, EncodeOverrides(acct.Overrides),
			acct.Banned, acct.BanReason, acct.BanExpiresAt, now); err != nil {
			return err
		}
		acct.UpdatedAt = now
		if _, err := tx.Exec(ctx, `DELETE FROM account_identifiers WHERE account_id = $1`, acct.ID); err != nil {
			return err
		}
		for _, ident := range acct.Identifiers {
			if _, err := tx.Exec(ctx, `INSERT INTO account_identifiers (account_id, id_type, id_value) VALUES ($1, $2, $3)`,
				acct.ID, ident.Type, ident.Value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return &StoreError{Op: "update account", Err: err}
	}
	return nil
}

func (s *PGAccountStore) SetBan(ctx context.Context, id int64, banned bool, reason string, expiresAt *time.Time) error {
	if !banned {
		reason = ""
		expiresAt = nil
	}
	if _, err := s.pool.Exec(ctx, `UPDATE accounts SET banned = $2, ban_reason = $3, ban_expires_at = $4, updated_at = now() WHERE id = $1`,
		id, banned, reason, expiresAt); err != nil {
		return &StoreError{Op: "set ban", Err: err}
	}
	return nil
}

func (s *PGAccountStore) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := s.pool.Exec(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at.UTC()); err != nil {
		return &StoreError{Op: "touch login", Err: err}
	}
	return nil
}

func (s *PGAccountStore) scanOne(ctx context.Context, row pgx.Row, op string) (*Account, error) {
	acct, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &StoreError{Op: op, Err: err}
	}
	if err := s.loadIdentifiers(ctx, acct); err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}
	return acct, nil
}

func (s *PGAccountStore) list(ctx context.Context, query, op string, args ...any) ([]Account, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, &StoreError{Op: op, Err: err}
		}
		accounts = append(accounts, *acct)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}
	for i := range accounts {
		if err := s.loadIdentifiers(ctx, &accounts[i]); err != nil {
			return nil, &StoreError{Op: op, Err: err}
		}
	}
	return accounts, nil
}

func (s *PGAccountStore) loadIdentifiers(ctx context.Context, acct *Account) error {
	rows, err := s.pool.Query(ctx, `SELECT id_type, id_value FROM account_identifiers WHERE account_id = $1 ORDER BY id_type, id_value`, acct.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ident Identifier
		if err := rows.Scan(&ident.Type, &ident.Value); err != nil {
			return err
		}
		acct.Identifiers = append(acct.Identifiers, ident)
	}
	return rows.Err()
}

func scanAccount(row pgx.Row) (*Account, error) {
	var acct Account
	var raw []string
	if err := row.Scan(&acct.ID, &acct.LinkedID, &acct.Username, &acct.PasswordHash, &acct.RoleID, &raw,
		&acct.Banned, &acct.BanReason, &acct.BanExpiresAt, &acct.LastLoginAt, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		return nil, err
	}
	acct.Overrides = ParseOverrides(raw)
	return &acct, nil
}

func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "username") {
		return ErrDuplicateUsername
	}
	return ErrDuplicateIdentifier
}

var _ AccountStore = (*PGAccountStore)(nil)
