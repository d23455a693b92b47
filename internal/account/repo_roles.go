package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warden-auth/warden/internal/platform/db"
)

const roleColumns = `id, name, display_name, rank, permissions, is_default, created_at, updated_at`

// PGRoleStore implements RoleStore using PostgreSQL.
type PGRoleStore struct {
	pool *pgxpool.Pool
}

// NewPGRoleStore constructs a PostgreSQL role store.
func NewPGRoleStore(pool *pgxpool.Pool) *PGRoleStore {
	return &PGRoleStore{pool: pool}
}

func (s *PGRoleStore) FindByID(ctx context.Context, id int64) (*Role, error) {
	return s.one(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, "find role by id", id)
}

func (s *PGRoleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	return s.one(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, "find role by name", name)
}

func (s *PGRoleStore) FindByRank(ctx context.Context, rank int) (*Role, error) {
	return s.one(ctx, `SELECT `+roleColumns+` FROM roles WHERE rank = $1 ORDER BY id LIMIT 1`, "find role by rank", rank)
}

func (s *PGRoleStore) FindByPermission(ctx context.Context, permission string) ([]Role, error) {
	return s.list(ctx, `SELECT `+roleColumns+` FROM roles WHERE $1 = ANY(permissions) ORDER BY rank DESC`, "find roles by permission", permission)
}

func (s *PGRoleStore) FindAll(ctx context.Context) ([]Role, error) {
	return s.list(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY rank DESC, name`, "find all roles")
}

func (s *PGRoleStore) DefaultRole(ctx context.Context) (*Role, error) {
	return s.one(ctx, `SELECT `+roleColumns+` FROM roles WHERE is_default LIMIT 1`, "find default role")
}

// Create inserts a role. Creating a new default clears the previous one in
// the same transaction so at most one default exists at a time.
func (s *PGRoleStore) Create(ctx context.Context, role *Role) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if role.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE roles SET is_default = false WHERE is_default`); err != nil {
				return err
			}
		}
		row := tx.QueryRow(ctx, `INSERT INTO roles (name, display_name, rank, permissions, is_default, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
			role.Name, role.DisplayName, role.Rank, role.Permissions, role.IsDefault, now)
		if err := row.Scan(&role.ID); err != nil {
			return err
		}
		role.CreatedAt = now
		role.UpdatedAt = now
		return nil
	})
	if err != nil {
		return &StoreError{Op: "create role", Err: err}
	}
	return nil
}

func (s *PGRoleStore) Update(ctx context.Context, role *Role) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if role.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE roles SET is_default = false WHERE is_default AND id <> $1`, role.ID); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `UPDATE roles SET name = $2, display_name = $3, rank = $4, permissions = $5, is_default = $6, updated_at = $7 WHERE id = $1`,
			role.ID, role.Name, role.DisplayName, role.Rank, role.Permissions, role.IsDefault, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrRoleNotFound
		}
		role.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return ErrRoleNotFound
		}
		return &StoreError{Op: "update role", Err: err}
	}
	return nil
}

func (s *PGRoleStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return &StoreError{Op: "delete role", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (s *PGRoleStore) one(ctx context.Context, query, op string, args ...any) (*Role, error) {
	role, err := scanRole(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &StoreError{Op: op, Err: err}
	}
	return role, nil
}

func (s *PGRoleStore) list(ctx context.Context, query, op string, args ...any) ([]Role, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, &StoreError{Op: op, Err: err}
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}
	return roles, nil
}

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Rank, &role.Permissions,
		&role.IsDefault, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return nil, err
	}
	return &role, nil
}

var _ RoleStore = (*PGRoleStore)(nil)
