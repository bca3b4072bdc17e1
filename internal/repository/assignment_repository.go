package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// AssignmentTable names one t_guest_<kind> table and the master table of
// the resource it points at. Table and column names come from code, never
// from request input.
type AssignmentTable struct {
	Kind     string
	Table    string
	IDColumn string

	ResourceTable    string
	ResourceIDColumn string
	// ResourceStatusColumn is empty when the master has no status column.
	ResourceStatusColumn string
}

// AssignmentRepo is the persistence half of the generic resource
// assignment manager.
type AssignmentRepo struct {
	db *sql.DB
	t  AssignmentTable
}

func NewAssignmentRepo(db *sql.DB, t AssignmentTable) *AssignmentRepo {
	return &AssignmentRepo{db: db, t: t}
}

func (r *AssignmentRepo) Table() AssignmentTable { return r.t }

func (r *AssignmentRepo) columns() string {
	return r.t.IDColumn + `, guest_id, resource_id,
	DATE_FORMAT(start_date, '%Y-%m-%d'), TIME_FORMAT(start_time, '%H:%i:%s'),
	DATE_FORMAT(end_date, '%Y-%m-%d'), TIME_FORMAT(end_time, '%H:%i:%s'),
	location, remarks, status, is_active, inserted_at, updated_at`
}

func (r *AssignmentRepo) scan(s rowScanner) (*model.Assignment, error) {
	a := model.Assignment{Kind: r.t.Kind}
	if err := s.Scan(&a.AssignmentID, &a.GuestID, &a.ResourceID, &a.StartDate, &a.StartTime,
		&a.EndDate, &a.EndTime, &a.Location, &a.Remarks, &a.Status, &a.IsActive,
		&a.InsertedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepo) InsertTx(ctx context.Context, tx *sql.Tx, as *model.Assignment, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO `+r.t.Table+`
		(`+r.t.IDColumn+`, guest_id, resource_id, start_date, start_time, end_date, end_time,
		 location, remarks, status, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		as.AssignmentID, as.GuestID, as.ResourceID, as.StartDate, as.StartTime, as.EndDate, as.EndTime,
		as.Location, as.Remarks, as.Status, a.UserID, a.IP)
	if err == nil {
		as.IsActive = true
		as.Kind = r.t.Kind
	}
	return err
}

func (r *AssignmentRepo) Get(ctx context.Context, id string) (*model.Assignment, error) {
	return r.scan(r.db.QueryRowContext(ctx, `SELECT `+r.columns()+` FROM `+r.t.Table+` WHERE `+r.t.IDColumn+` = ?`, id))
}

func (r *AssignmentRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.Assignment, error) {
	return r.scan(tx.QueryRowContext(ctx, `SELECT `+r.columns()+` FROM `+r.t.Table+` WHERE `+r.t.IDColumn+` = ?`+forUpdate, id))
}

// LockActiveByGuestTx locks the guest's active row of this kind, returning
// sql.ErrNoRows when there is none.
func (r *AssignmentRepo) LockActiveByGuestTx(ctx context.Context, tx *sql.Tx, guestID string) (*model.Assignment, error) {
	return r.scan(tx.QueryRowContext(ctx, `SELECT `+r.columns()+` FROM `+r.t.Table+
		` WHERE guest_id = ? AND is_active = 1 ORDER BY `+r.t.IDColumn+` DESC LIMIT 1`+forUpdate, guestID))
}

// LockActiveByResourceTx locks every active row that references the
// resource and returns their count.
func (r *AssignmentRepo) LockActiveByResourceTx(ctx context.Context, tx *sql.Tx, resourceID string) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+r.t.IDColumn+` FROM `+r.t.Table+
		` WHERE resource_id = ? AND is_active = 1`+forUpdate, resourceID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	return n, rows.Err()
}

// ListByGuest returns the guest's history of this kind, newest first.
func (r *AssignmentRepo) ListByGuest(ctx context.Context, guestID string) ([]model.Assignment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+r.columns()+` FROM `+r.t.Table+
		` WHERE guest_id = ? ORDER BY `+r.t.IDColumn+` DESC`, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Assignment{}
	for rows.Next() {
		as, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *as)
	}
	return out, rows.Err()
}

// UpdateTx writes the editable columns of as, including resource and status.
func (r *AssignmentRepo) UpdateTx(ctx context.Context, tx *sql.Tx, as *model.Assignment, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE `+r.t.Table+` SET resource_id = ?, start_date = ?, start_time = ?,
		end_date = ?, end_time = ?, location = ?, remarks = ?, status = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE `+r.t.IDColumn+` = ?`,
		as.ResourceID, as.StartDate, as.StartTime, as.EndDate, as.EndTime, as.Location, as.Remarks, as.Status,
		a.UserID, a.IP, as.AssignmentID)
	return err
}

// CloseTx deactivates a row with its closing status and end timestamp.
func (r *AssignmentRepo) CloseTx(ctx context.Context, tx *sql.Tx, id, status, endDate, endTime string, remarks *string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE `+r.t.Table+` SET is_active = 0, status = ?, end_date = ?, end_time = ?,
		remarks = COALESCE(?, remarks), updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE `+r.t.IDColumn+` = ?`, status, endDate, endTime, remarks, a.UserID, a.IP, id)
	return err
}

// ExpireDue closes every active row whose end date and time have passed.
func (r *AssignmentRepo) ExpireDue(ctx context.Context, closedStatus string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE `+r.t.Table+` SET is_active = 0, status = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE is_active = 1 AND end_date IS NOT NULL
		AND TIMESTAMP(end_date, COALESCE(end_time, '23:59:59')) <= ?`,
		closedStatus, model.System.UserID, model.System.IP, now.Format(sqlDateTime))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LockResourceTx locks the resource master row and reports whether it is
// active. It returns sql.ErrNoRows when the resource does not exist.
func (r *AssignmentRepo) LockResourceTx(ctx context.Context, tx *sql.Tx, resourceID string) (bool, error) {
	var active bool
	err := tx.QueryRowContext(ctx, `SELECT is_active FROM `+r.t.ResourceTable+
		` WHERE `+r.t.ResourceIDColumn+` = ?`+forUpdate, resourceID).Scan(&active)
	return active, err
}

// SetResourceStatusTx updates the resource's status column, if it has one.
func (r *AssignmentRepo) SetResourceStatusTx(ctx context.Context, tx *sql.Tx, resourceID, status string, a model.Actor) error {
	if r.t.ResourceStatusColumn == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, `UPDATE `+r.t.ResourceTable+` SET `+r.t.ResourceStatusColumn+` = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE `+r.t.ResourceIDColumn+` = ?`, status, a.UserID, a.IP, resourceID)
	return err
}
