package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// InOutRepo persists t_guest_inout, one row per visit.
type InOutRepo struct{ db *sql.DB }

func NewInOutRepo(db *sql.DB) *InOutRepo { return &InOutRepo{db: db} }

// SQL layout used for DATETIME literals built from an injected clock.
const sqlDateTime = "2006-01-02 15:04:05"

const inoutColumns = `io.inout_id, io.guest_id, g.guest_name,
	DATE_FORMAT(io.entry_date, '%Y-%m-%d'), TIME_FORMAT(io.entry_time, '%H:%i:%s'),
	DATE_FORMAT(io.exit_date, '%Y-%m-%d'), TIME_FORMAT(io.exit_time, '%H:%i:%s'),
	io.status, io.room_id, io.companions, io.requires_driver, io.purpose, io.remarks,
	io.is_active, io.inserted_at, io.updated_at`

const inoutFrom = ` FROM t_guest_inout io JOIN m_guest g ON g.guest_id = io.guest_id`

func scanInOut(s rowScanner) (*model.GuestInOut, error) {
	var io model.GuestInOut
	if err := s.Scan(&io.InOutID, &io.GuestID, &io.GuestName,
		&io.EntryDate, &io.EntryTime, &io.ExitDate, &io.ExitTime,
		&io.Status, &io.RoomID, &io.Companions, &io.RequiresDriver, &io.Purpose, &io.Remarks,
		&io.IsActive, &io.InsertedAt, &io.UpdatedAt); err != nil {
		return nil, err
	}
	return &io, nil
}

// InsertTx stores a new active visit.
func (r *InOutRepo) InsertTx(ctx context.Context, tx *sql.Tx, io *model.GuestInOut, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO t_guest_inout
		(inout_id, guest_id, entry_date, entry_time, exit_date, exit_time, status, room_id, companions,
		 requires_driver, purpose, remarks, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		io.InOutID, io.GuestID, io.EntryDate, io.EntryTime, io.ExitDate, io.ExitTime, io.Status, io.RoomID,
		io.Companions, io.RequiresDriver, io.Purpose, io.Remarks, a.UserID, a.IP)
	if err == nil {
		io.IsActive = true
	}
	return err
}

func (r *InOutRepo) Get(ctx context.Context, id string) (*model.GuestInOut, error) {
	return scanInOut(r.db.QueryRowContext(ctx, `SELECT `+inoutColumns+inoutFrom+` WHERE io.inout_id = ?`, id))
}

// LockTx reads the visit with FOR UPDATE.
func (r *InOutRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.GuestInOut, error) {
	return scanInOut(tx.QueryRowContext(ctx, `SELECT `+inoutColumns+inoutFrom+` WHERE io.inout_id = ?`+forUpdate, id))
}

// LockActiveByGuestTx locks the guest's current visit. It returns
// sql.ErrNoRows when the guest has none.
func (r *InOutRepo) LockActiveByGuestTx(ctx context.Context, tx *sql.Tx, guestID string) (*model.GuestInOut, error) {
	return scanInOut(tx.QueryRowContext(ctx, `SELECT `+inoutColumns+inoutFrom+
		` WHERE io.guest_id = ? AND io.is_active = 1 ORDER BY io.inout_id DESC LIMIT 1`+forUpdate, guestID))
}

// ListByGuest returns the visit history of a guest, newest first.
func (r *InOutRepo) ListByGuest(ctx context.Context, guestID string) ([]model.GuestInOut, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+inoutColumns+inoutFrom+
		` WHERE io.guest_id = ? ORDER BY io.entry_date DESC, io.entry_time DESC`, guestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.GuestInOut{}
	for rows.Next() {
		io, err := scanInOut(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *io)
	}
	return out, rows.Err()
}

// UpdateTx writes every mutable column of io.
func (r *InOutRepo) UpdateTx(ctx context.Context, tx *sql.Tx, io *model.GuestInOut, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE t_guest_inout SET
		entry_date = ?, entry_time = ?, exit_date = ?, exit_time = ?, status = ?, room_id = ?,
		companions = ?, requires_driver = ?, purpose = ?, remarks = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE inout_id = ?`,
		io.EntryDate, io.EntryTime, io.ExitDate, io.ExitTime, io.Status, io.RoomID,
		io.Companions, io.RequiresDriver, io.Purpose, io.Remarks, a.UserID, a.IP, io.InOutID)
	return err
}

// DeactivateTx retires a visit that is being superseded by a new one.
func (r *InOutRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE t_guest_inout SET is_active = 0,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE inout_id = ?`, a.UserID, a.IP, id)
	return err
}

// SetRoomTx records roomID (or clears it) on the guest's current visit.
func (r *InOutRepo) SetRoomTx(ctx context.Context, tx *sql.Tx, guestID string, roomID *string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE t_guest_inout SET room_id = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE guest_id = ? AND is_active = 1`, roomID, a.UserID, a.IP, guestID)
	return err
}

// HasOpenVisitTx reports whether the guest has an active visit that is not
// Exited or Cancelled.
func (r *InOutRepo) HasOpenVisitTx(ctx context.Context, tx *sql.Tx, guestID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM t_guest_inout
		WHERE guest_id = ? AND is_active = 1 AND status NOT IN ('Exited', 'Cancelled')`, guestID).Scan(&n)
	return n > 0, err
}

// MarkEnteredDue moves every active Scheduled visit whose entry time has
// passed to Entered. The WHERE clause makes a repeated run a no-op.
func (r *InOutRepo) MarkEnteredDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE t_guest_inout SET status = 'Entered',
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE is_active = 1 AND status = 'Scheduled' AND TIMESTAMP(entry_date, entry_time) <= ?`,
		model.System.UserID, model.System.IP, now.Format(sqlDateTime))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkExitedDue moves every active Entered or Inside visit whose exit time
// is set and has passed to Exited.
func (r *InOutRepo) MarkExitedDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE t_guest_inout SET status = 'Exited',
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE is_active = 1 AND status IN ('Entered', 'Inside') AND exit_date IS NOT NULL
		AND TIMESTAMP(exit_date, COALESCE(exit_time, '00:00:00')) <= ?`,
		model.System.UserID, model.System.IP, now.Format(sqlDateTime))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
