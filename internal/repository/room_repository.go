package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// RoomRepo persists m_rooms and t_guest_room.
type RoomRepo struct{ db *sql.DB }

func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `room_id, room_no, room_name, building_name, room_type, capacity, status,
	is_active, inserted_at, updated_at`

func scanRoom(s rowScanner) (*model.Room, error) {
	var rm model.Room
	if err := s.Scan(&rm.RoomID, &rm.RoomNo, &rm.RoomName, &rm.BuildingName, &rm.RoomType,
		&rm.Capacity, &rm.Status, &rm.IsActive, &rm.InsertedAt, &rm.UpdatedAt); err != nil {
		return nil, err
	}
	return &rm, nil
}

func (r *RoomRepo) CreateTx(ctx context.Context, tx *sql.Tx, rm *model.Room, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO m_rooms
		(room_id, room_no, room_name, building_name, room_type, capacity, status, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		rm.RoomID, rm.RoomNo, rm.RoomName, rm.BuildingName, rm.RoomType, rm.Capacity, rm.Status, a.UserID, a.IP)
	if err == nil {
		rm.IsActive = true
	}
	return err
}

func (r *RoomRepo) Get(ctx context.Context, id string) (*model.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM m_rooms WHERE room_id = ?`, id))
}

// LockTx reads the room with FOR UPDATE.
func (r *RoomRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.Room, error) {
	return scanRoom(tx.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM m_rooms WHERE room_id = ?`+forUpdate, id))
}

func (r *RoomRepo) List(ctx context.Context, all bool) ([]model.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM m_rooms`
	if !all {
		q += ` WHERE is_active = 1`
	}
	q += ` ORDER BY room_no`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rm)
	}
	return out, rows.Err()
}

// UpdateTx writes the descriptive columns and status of rm.
func (r *RoomRepo) UpdateTx(ctx context.Context, tx *sql.Tx, rm *model.Room, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_rooms SET room_no = ?, room_name = ?, building_name = ?,
		room_type = ?, capacity = ?, status = ?, updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE room_id = ?`,
		rm.RoomNo, rm.RoomName, rm.BuildingName, rm.RoomType, rm.Capacity, rm.Status, a.UserID, a.IP, rm.RoomID)
	return err
}

func (r *RoomRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id, status string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_rooms SET status = ?,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE room_id = ?`, status, a.UserID, a.IP, id)
	return err
}

func (r *RoomRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_rooms SET is_active = 0,
		updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE room_id = ?`, a.UserID, a.IP, id)
	return err
}

const guestRoomColumns = `guest_room_id, guest_id, room_id,
	DATE_FORMAT(check_in_date, '%Y-%m-%d'), TIME_FORMAT(check_in_time, '%H:%i:%s'),
	DATE_FORMAT(check_out_date, '%Y-%m-%d'), TIME_FORMAT(check_out_time, '%H:%i:%s'),
	action_type, action_description, remarks, is_active, inserted_at, updated_at`

func scanGuestRoom(s rowScanner) (*model.GuestRoom, error) {
	var gr model.GuestRoom
	if err := s.Scan(&gr.GuestRoomID, &gr.GuestID, &gr.RoomID, &gr.CheckInDate, &gr.CheckInTime,
		&gr.CheckOutDate, &gr.CheckOutTime, &gr.ActionType, &gr.ActionDescription, &gr.Remarks,
		&gr.IsActive, &gr.InsertedAt, &gr.UpdatedAt); err != nil {
		return nil, err
	}
	return &gr, nil
}

func (r *RoomRepo) InsertAssignmentTx(ctx context.Context, tx *sql.Tx, gr *model.GuestRoom, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO t_guest_room
		(guest_room_id, guest_id, room_id, check_in_date, check_in_time, action_type, action_description,
		 remarks, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		gr.GuestRoomID, gr.GuestID, gr.RoomID, gr.CheckInDate, gr.CheckInTime, gr.ActionType,
		gr.ActionDescription, gr.Remarks, a.UserID, a.IP)
	if err == nil {
		gr.IsActive = true
	}
	return err
}

func (r *RoomRepo) GetAssignment(ctx context.Context, id string) (*model.GuestRoom, error) {
	return scanGuestRoom(r.db.QueryRowContext(ctx, `SELECT `+guestRoomColumns+` FROM t_guest_room WHERE guest_room_id = ?`, id))
}

func (r *RoomRepo) LockAssignmentTx(ctx context.Context, tx *sql.Tx, id string) (*model.GuestRoom, error) {
	return scanGuestRoom(tx.QueryRowContext(ctx, `SELECT `+guestRoomColumns+` FROM t_guest_room WHERE guest_room_id = ?`+forUpdate, id))
}

// LockActiveByGuestTx locks the guest's active room assignment, returning
// sql.ErrNoRows when there is none.
func (r *RoomRepo) LockActiveByGuestTx(ctx context.Context, tx *sql.Tx, guestID string) (*model.GuestRoom, error) {
	return scanGuestRoom(tx.QueryRowContext(ctx, `SELECT `+guestRoomColumns+
		` FROM t_guest_room WHERE guest_id = ? AND is_active = 1 LIMIT 1`+forUpdate, guestID))
}

// LockActiveByRoomTx locks every active assignment of a room and returns
// how many there are.
func (r *RoomRepo) LockActiveByRoomTx(ctx context.Context, tx *sql.Tx, roomID string) (int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT guest_room_id FROM t_guest_room
		WHERE room_id = ? AND is_active = 1`+forUpdate, roomID)
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

// CloseAssignmentTx deactivates an assignment with the given checkout
// date and time.
func (r *RoomRepo) CloseAssignmentTx(ctx context.Context, tx *sql.Tx, id, outDate, outTime string, remarks *string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE t_guest_room SET is_active = 0, check_out_date = ?, check_out_time = ?,
		remarks = COALESCE(?, remarks), updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE guest_room_id = ?`, outDate, outTime, remarks, a.UserID, a.IP, id)
	return err
}

// UpdateAssignmentTx writes the editable columns of an active assignment.
func (r *RoomRepo) UpdateAssignmentTx(ctx context.Context, tx *sql.Tx, gr *model.GuestRoom, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE t_guest_room SET check_in_date = ?, check_in_time = ?,
		action_description = ?, remarks = ?, updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE guest_room_id = ?`,
		gr.CheckInDate, gr.CheckInTime, gr.ActionDescription, gr.Remarks, a.UserID, a.IP, gr.GuestRoomID)
	return err
}
