package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrUsernameExists = errors.New("username already exists")

const userSelect = `SELECT u.user_id, u.username, u.password_hash, u.full_name, u.email, u.mobile,
	u.role_id, COALESCE(r.role_name, ''), u.is_active, u.inserted_at, u.updated_at
	FROM m_user u LEFT JOIN m_role r ON r.role_id = u.role_id`

func scanUser(s rowScanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.FullName, &u.Email, &u.Mobile,
		&u.RoleID, &u.RoleName, &u.IsActive, &u.InsertedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// NormalizeUsername lower-cases and trims a username.
func NormalizeUsername(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// CreateTx inserts u with an already hashed password.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO m_user
		(user_id, username, password_hash, full_name, email, mobile, role_id, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		u.UserID, NormalizeUsername(u.Username), u.PasswordHash, u.FullName, u.Email, u.Mobile, u.RoleID, a.UserID, a.IP)
	if err != nil {
		if strings.Contains(err.Error(), "1062") {
			return ErrUsernameExists
		}
		return err
	}
	u.IsActive = true
	return nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, userSelect+` WHERE u.username = ? LIMIT 1`, NormalizeUsername(username)))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, userSelect+` WHERE u.user_id = ? LIMIT 1`, id))
}

func (r *UserRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.User, error) {
	return scanUser(tx.QueryRowContext(ctx, userSelect+` WHERE u.user_id = ?`+forUpdate, id))
}

// UsernameTakenTx reports whether another user already has username.
func (r *UserRepo) UsernameTakenTx(ctx context.Context, tx *sql.Tx, username, exceptID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM m_user WHERE username = ? AND user_id <> ?`,
		NormalizeUsername(username), exceptID).Scan(&n)
	return n > 0, err
}

func (r *UserRepo) List(ctx context.Context, all bool) ([]model.User, error) {
	q := userSelect
	if !all {
		q += ` WHERE u.is_active = 1`
	}
	q += ` ORDER BY u.user_id`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// UpdateTx writes profile columns and role. The password is changed through
// SetPasswordTx only.
func (r *UserRepo) UpdateTx(ctx context.Context, tx *sql.Tx, u *model.User, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_user SET username = ?, full_name = ?, email = ?, mobile = ?, role_id = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE user_id = ?`,
		NormalizeUsername(u.Username), u.FullName, u.Email, u.Mobile, u.RoleID, a.UserID, a.IP, u.UserID)
	return err
}

func (r *UserRepo) SetPasswordTx(ctx context.Context, tx *sql.Tx, id, hash string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_user SET password_hash = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE user_id = ?`, hash, a.UserID, a.IP, id)
	return err
}

func (r *UserRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_user SET is_active = 0,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE user_id = ?`, a.UserID, a.IP, id)
	return err
}

// CountActive returns the number of active users.
func (r *UserRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM m_user WHERE is_active = 1`).Scan(&n)
	return n, err
}

// CountActiveByRoleTx returns how many active users hold the role.
func (r *UserRepo) CountActiveByRoleTx(ctx context.Context, tx *sql.Tx, roleID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM m_user WHERE role_id = ? AND is_active = 1`, roleID).Scan(&n)
	return n, err
}
