package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// RoleRepo persists m_role, m_permission and m_role_permission.
type RoleRepo struct{ db *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

const roleSelect = `SELECT role_id, role_name, description, is_active FROM m_role`

func scanRole(s rowScanner) (*model.Role, error) {
	var rl model.Role
	if err := s.Scan(&rl.RoleID, &rl.RoleName, &rl.Description, &rl.IsActive); err != nil {
		return nil, err
	}
	return &rl, nil
}

func (r *RoleRepo) CreateTx(ctx context.Context, tx *sql.Tx, rl *model.Role, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO m_role (role_id, role_name, description, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, 1, ?, ?)`, rl.RoleID, rl.RoleName, rl.Description, a.UserID, a.IP)
	if err == nil {
		rl.IsActive = true
	}
	return err
}

func (r *RoleRepo) Get(ctx context.Context, id string) (*model.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, roleSelect+` WHERE role_id = ?`, id))
}

func (r *RoleRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.Role, error) {
	return scanRole(tx.QueryRowContext(ctx, roleSelect+` WHERE role_id = ?`+forUpdate, id))
}

// GetByNameTx returns the role named name, or sql.ErrNoRows.
func (r *RoleRepo) GetByNameTx(ctx context.Context, tx *sql.Tx, name string) (*model.Role, error) {
	return scanRole(tx.QueryRowContext(ctx, roleSelect+` WHERE role_name = ?`, name))
}

func (r *RoleRepo) List(ctx context.Context, all bool) ([]model.Role, error) {
	q := roleSelect
	if !all {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY role_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Role{}
	for rows.Next() {
		rl, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rl)
	}
	return out, rows.Err()
}

func (r *RoleRepo) UpdateTx(ctx context.Context, tx *sql.Tx, rl *model.Role, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_role SET role_name = ?, description = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE role_id = ?`,
		rl.RoleName, rl.Description, a.UserID, a.IP, rl.RoleID)
	return err
}

// DeactivateTx soft deletes the role together with its permission links.
func (r *RoleRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id string, a model.Actor) error {
	if _, err := tx.ExecContext(ctx, `UPDATE m_role SET is_active = 0,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE role_id = ?`, a.UserID, a.IP, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE m_role_permission SET is_active = 0,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE role_id = ?`, a.UserID, a.IP, id)
	return err
}

// RolePermissions lists every permission link of the role, active or not.
func (r *RoleRepo) RolePermissions(ctx context.Context, roleID string) ([]model.RolePermission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT rp.role_id, rp.permission_id, p.permission_name, rp.is_active
		FROM m_role_permission rp JOIN m_permission p ON p.permission_id = rp.permission_id
		WHERE rp.role_id = ? ORDER BY p.permission_name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RolePermission{}
	for rows.Next() {
		var rp model.RolePermission
		if err := rows.Scan(&rp.RoleID, &rp.PermissionID, &rp.PermissionName, &rp.IsActive); err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

// ActivePermissionNames returns the names of the role's active permissions.
// An inactive role yields none.
func (r *RoleRepo) ActivePermissionNames(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT p.permission_name
		FROM m_role_permission rp
		JOIN m_permission p ON p.permission_id = rp.permission_id
		JOIN m_role r ON r.role_id = rp.role_id
		WHERE rp.role_id = ? AND rp.is_active = 1 AND r.is_active = 1
		ORDER BY p.permission_name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SetPermissionTx upserts the role-permission link with the given state.
func (r *RoleRepo) SetPermissionTx(ctx context.Context, tx *sql.Tx, roleID string, permissionID int64, active bool, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO m_role_permission (role_id, permission_id, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE is_active = VALUES(is_active),
		updated_at = UTC_TIMESTAMP(), updated_by = VALUES(inserted_by), updated_ip = VALUES(inserted_ip)`,
		roleID, permissionID, active, a.UserID, a.IP)
	return err
}

// PermissionStateTx returns whether the link exists and is active.
func (r *RoleRepo) PermissionStateTx(ctx context.Context, tx *sql.Tx, roleID string, permissionID int64) (exists, active bool, err error) {
	err = tx.QueryRowContext(ctx, `SELECT is_active FROM m_role_permission WHERE role_id = ? AND permission_id = ?`+forUpdate,
		roleID, permissionID).Scan(&active)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	return err == nil, active, err
}

func (r *RoleRepo) Permissions(ctx context.Context) ([]model.Permission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT permission_id, permission_name, description FROM m_permission ORDER BY permission_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Permission{}
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.PermissionID, &p.PermissionName, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PermissionExistsTx reports whether permissionID is in the catalogue.
func (r *RoleRepo) PermissionExistsTx(ctx context.Context, tx *sql.Tx, permissionID int64) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM m_permission WHERE permission_id = ?`, permissionID).Scan(&n)
	return n > 0, err
}

// GrantAllTx links every catalogue permission to the role.
func (r *RoleRepo) GrantAllTx(ctx context.Context, tx *sql.Tx, roleID string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO m_role_permission (role_id, permission_id, is_active, inserted_by, inserted_ip)
		SELECT ?, permission_id, 1, ?, ? FROM m_permission
		ON DUPLICATE KEY UPDATE is_active = 1`, roleID, a.UserID, a.IP)
	return err
}
