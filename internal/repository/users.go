package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"go.uber.org/zap"
)

const userColumns = "id, tenant_id, name, email, password, phone, role, is_banned, created_at, updated_at"

type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

// List returns the tenant's users, optionally narrowed by role, ban flag and
// a name/email search, with the total before pagination.
func (r *UserRepository) List(ctx context.Context, tenantID int64, role, isBanned, search string, page, limit int) ([]models.User, int, error) {
	where := " WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if role != "" {
		where += " AND role = ?"
		args = append(args, role)
	}
	if isBanned != "" {
		where += " AND is_banned = ?"
		args = append(args, isBanned)
	}
	if search != "" {
		search = "%" + strings.TrimSpace(search) + "%"
		where += " AND (name LIKE ? OR email LIKE ?)"
		args = append(args, search, search)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users"+where+" ORDER BY name ASC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// Create stores a user whose Password is already hashed.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	if u.IsBanned == "" {
		u.IsBanned = "n"
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (tenant_id, name, email, password, phone, role, is_banned, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		u.TenantID, u.Name, u.Email, u.Password, u.Phone, u.Role, u.IsBanned, now, now,
	)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("email %s: %w", u.Email, ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (r *UserRepository) SetBanned(ctx context.Context, tenantID, id int64, banned bool) error {
	flag := "n"
	if banned {
		flag = "y"
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET is_banned = ?, updated_at = ? WHERE id = ? AND tenant_id = ?",
		flag, time.Now().UTC(), id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.Password, &u.Phone, &u.Role, &u.IsBanned, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, dispatch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}
