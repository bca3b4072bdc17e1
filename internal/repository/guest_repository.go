package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// GuestRepo persists m_guest and t_guest_designation.
type GuestRepo struct{ db *sql.DB }

func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

const guestColumns = `g.guest_id, g.guest_name, g.mobile, g.email, g.address, g.nationality,
	g.id_type, g.id_number, g.is_active, g.inserted_at, g.updated_at`

func scanGuest(s rowScanner) (*model.Guest, error) {
	var g model.Guest
	if err := s.Scan(&g.GuestID, &g.GuestName, &g.Mobile, &g.Email, &g.Address, &g.Nationality,
		&g.IDType, &g.IDNumber, &g.IsActive, &g.InsertedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateTx inserts g. The caller assigns GuestID beforehand.
func (r *GuestRepo) CreateTx(ctx context.Context, tx *sql.Tx, g *model.Guest, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO m_guest
		(guest_id, guest_name, mobile, email, address, nationality, id_type, id_number, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		g.GuestID, g.GuestName, g.Mobile, g.Email, g.Address, g.Nationality, g.IDType, g.IDNumber, a.UserID, a.IP)
	return err
}

// Get returns the guest with its current designation, active or not.
func (r *GuestRepo) Get(ctx context.Context, id string) (*model.Guest, error) {
	g, err := r.get(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	d, err := r.currentDesignation(ctx, r.db, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	g.Designation = d
	return g, nil
}

// LockTx reads the guest row with FOR UPDATE.
func (r *GuestRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.Guest, error) {
	return r.get(ctx, tx, id, true)
}

func (r *GuestRepo) get(ctx context.Context, q Querier, id string, lock bool) (*model.Guest, error) {
	row := q.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM m_guest g WHERE g.guest_id = ?`+lockClause(lock), id)
	return scanGuest(row)
}

// List returns guests ordered by id; inactive ones only when all is set.
func (r *GuestRepo) List(ctx context.Context, all bool) ([]model.Guest, error) {
	q := `SELECT ` + guestColumns + ` FROM m_guest g`
	if !all {
		q += ` WHERE g.is_active = 1`
	}
	q += ` ORDER BY g.guest_id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// UpdateTx writes the editable columns of g.
func (r *GuestRepo) UpdateTx(ctx context.Context, tx *sql.Tx, g *model.Guest, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_guest SET
		guest_name = ?, mobile = ?, email = ?, address = ?, nationality = ?, id_type = ?, id_number = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE guest_id = ?`,
		g.GuestName, g.Mobile, g.Email, g.Address, g.Nationality, g.IDType, g.IDNumber, a.UserID, a.IP, g.GuestID)
	return err
}

// DeactivateTx soft deletes the guest.
func (r *GuestRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_guest SET is_active = 0,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE guest_id = ?`, a.UserID, a.IP, id)
	return err
}

func (r *GuestRepo) currentDesignation(ctx context.Context, q Querier, guestID string) (*model.GuestDesignation, error) {
	var d model.GuestDesignation
	err := q.QueryRowContext(ctx, `SELECT designation_id, guest_id, designation, department, organization, is_current
		FROM t_guest_designation WHERE guest_id = ? AND is_current = 1 AND is_active = 1
		ORDER BY designation_id DESC LIMIT 1`, guestID).
		Scan(&d.DesignationID, &d.GuestID, &d.Designation, &d.Department, &d.Organization, &d.IsCurrent)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CloseDesignationTx clears the current flag on the guest's designation rows.
func (r *GuestRepo) CloseDesignationTx(ctx context.Context, tx *sql.Tx, guestID string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE t_guest_designation SET is_current = 0,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE guest_id = ? AND is_current = 1`, a.UserID, a.IP, guestID)
	return err
}

// InsertDesignationTx stores d as the guest's current designation.
func (r *GuestRepo) InsertDesignationTx(ctx context.Context, tx *sql.Tx, d *model.GuestDesignation, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO t_guest_designation
		(designation_id, guest_id, designation, department, organization, is_current, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?, 1, 1, ?, ?)`,
		d.DesignationID, d.GuestID, d.Designation, d.Department, d.Organization, a.UserID, a.IP)
	if err == nil {
		d.IsCurrent = true
	}
	return err
}
