package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

var roomCols = []string{"room_id", "room_no", "room_name", "building_name", "room_type", "capacity", "status",
	"is_active", "inserted_at", "updated_at"}

func roomRow(id, status string) *sqlmock.Rows {
	return sqlmock.NewRows(roomCols).AddRow(id, "105", nil, nil, nil, 1, status, true, testNow, nil)
}

var guestRoomCols = []string{"guest_room_id", "guest_id", "room_id", "check_in_date", "check_in_time",
	"check_out_date", "check_out_time", "action_type", "action_description", "remarks", "is_active",
	"inserted_at", "updated_at"}

func guestRoomRow(id, guestID, roomID string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(guestRoomCols).AddRow(id, guestID, roomID, "2026-10-19", "09:00:00", nil, nil,
		model.RoomActionAllocated, nil, nil, active, testNow, nil)
}

func newRoomService(t *testing.T) (*RoomService, sqlmock.Sqlmock) {
	d, db, mock := newMockDeps(t)
	return &RoomService{
		Deps:   d,
		Rooms:  repository.NewRoomRepo(db),
		Guests: repository.NewGuestRepo(db),
		InOut:  repository.NewInOutRepo(db),
	}, mock
}

func TestRoomAssignThenVacate(t *testing.T) {
	s, mock := newRoomService(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WithArgs("G020").WillReturnRows(guestRow("G020"))
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R005").WillReturnRows(roomRow("R005", model.RoomAvailable))
	mock.ExpectQuery("FROM t_guest_room WHERE guest_id").WithArgs("G020").WillReturnRows(sqlmock.NewRows(guestRoomCols))
	mock.ExpectQuery("SELECT guest_room_id FROM t_guest_room").WithArgs("R005").WillReturnRows(idRows("guest_room_id"))
	expectSeq(mock, "GR", 1)
	mock.ExpectExec("INSERT INTO t_guest_room").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE m_rooms SET status").
		WithArgs(model.RoomOccupied, "U001", "10.0.0.1", "R005").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE t_guest_inout SET room_id").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	gr, err := s.Assign(ctx, RoomAssignInput{GuestID: "G020", RoomID: "R005"}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "GR001", gr.GuestRoomID)
	assert.True(t, gr.IsActive)
	assert.Equal(t, "2026-10-19", gr.CheckInDate)

	mock.ExpectQuery("FROM t_guest_room WHERE guest_room_id").WithArgs("GR001").
		WillReturnRows(guestRoomRow("GR001", "G020", "R005", true))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R005").WillReturnRows(roomRow("R005", model.RoomOccupied))
	mock.ExpectQuery("FROM t_guest_room WHERE guest_room_id").WithArgs("GR001").
		WillReturnRows(guestRoomRow("GR001", "G020", "R005", true))
	mock.ExpectExec("UPDATE t_guest_room SET is_active = 0").
		WithArgs("2026-10-19", "10:00:00", sqlmock.AnyArg(), "U001", "10.0.0.1", "GR001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT guest_room_id FROM t_guest_room").WithArgs("R005").WillReturnRows(idRows("guest_room_id"))
	mock.ExpectExec("UPDATE m_rooms SET status").
		WithArgs(model.RoomAvailable, "U001", "10.0.0.1", "R005").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE t_guest_inout SET room_id").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	out, err := s.Vacate(ctx, "GR001", VacateInput{}, testActor)
	require.NoError(t, err)
	assert.False(t, out.IsActive)
	require.NotNil(t, out.CheckOutDate)
	assert.Equal(t, "2026-10-19", *out.CheckOutDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomAssign_OccupiedRoomIsAtCapacity(t *testing.T) {
	s, mock := newRoomService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G021"))
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WillReturnRows(roomRow("R005", model.RoomOccupied))
	mock.ExpectQuery("FROM t_guest_room WHERE guest_id").WillReturnRows(sqlmock.NewRows(guestRoomCols))
	mock.ExpectQuery("SELECT guest_room_id FROM t_guest_room").WillReturnRows(idRows("guest_room_id", "GR001"))
	mock.ExpectRollback()

	_, err := s.Assign(context.Background(), RoomAssignInput{GuestID: "G021", RoomID: "R005"}, testActor)
	assert.True(t, apperr.Is(err, apperr.CapacityExceeded), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomAssign_GuestAlreadyHasRoom(t *testing.T) {
	s, mock := newRoomService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G020"))
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WillReturnRows(roomRow("R006", model.RoomAvailable))
	mock.ExpectQuery("FROM t_guest_room WHERE guest_id").WillReturnRows(guestRoomRow("GR001", "G020", "R005", true))
	mock.ExpectRollback()

	_, err := s.Assign(context.Background(), RoomAssignInput{GuestID: "G020", RoomID: "R006"}, testActor)
	assert.True(t, apperr.Is(err, apperr.Conflict), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomAssign_MissingRoom(t *testing.T) {
	s, mock := newRoomService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G020"))
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WillReturnRows(sqlmock.NewRows(roomCols))
	mock.ExpectQuery("FROM t_guest_room WHERE guest_id").WillReturnRows(sqlmock.NewRows(guestRoomCols))
	mock.ExpectRollback()

	_, err := s.Assign(context.Background(), RoomAssignInput{GuestID: "G020", RoomID: "R999"}, testActor)
	assert.True(t, apperr.Is(err, apperr.NotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomUpdate_KeepsOmittedFields(t *testing.T) {
	s, mock := newRoomService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R005").WillReturnRows(roomRow("R005", model.RoomAvailable))
	mock.ExpectExec("UPDATE m_rooms SET room_no").
		WithArgs("105", "Garden View", nil, nil, int64(1), model.RoomAvailable, "U001", "10.0.0.1", "R005").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	// an unchanged status skips the assignment check
	rm, err := s.UpdateRoom(context.Background(), "R005",
		RoomInput{RoomName: strPtr("Garden View"), Status: strPtr(model.RoomAvailable)}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "105", rm.RoomNo)
	assert.Equal(t, "Garden View", *rm.RoomName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomUpdate_StatusChangeWhileAssigned(t *testing.T) {
	s, mock := newRoomService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R005").WillReturnRows(roomRow("R005", model.RoomOccupied))
	mock.ExpectQuery("SELECT guest_room_id FROM t_guest_room").WithArgs("R005").WillReturnRows(idRows("guest_room_id", "GR001"))
	mock.ExpectRollback()

	_, err := s.UpdateRoom(context.Background(), "R005", RoomInput{Status: strPtr(model.RoomMaintenance)}, testActor)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomUpdate_OccupiedIsNotManual(t *testing.T) {
	s, mock := newRoomService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R005").WillReturnRows(roomRow("R005", model.RoomAvailable))
	mock.ExpectRollback()

	_, err := s.UpdateRoom(context.Background(), "R005", RoomInput{Status: strPtr(model.RoomOccupied)}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomChange_Upgrade(t *testing.T) {
	s, mock := newRoomService(t)

	mock.ExpectQuery("FROM t_guest_room WHERE guest_room_id").WithArgs("GR001").
		WillReturnRows(guestRoomRow("GR001", "G020", "R005", true))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R002").WillReturnRows(roomRow("R002", model.RoomAvailable))
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R005").WillReturnRows(roomRow("R005", model.RoomOccupied))
	mock.ExpectQuery("FROM t_guest_room WHERE guest_room_id").WithArgs("GR001").
		WillReturnRows(guestRoomRow("GR001", "G020", "R005", true))
	mock.ExpectQuery("SELECT guest_room_id FROM t_guest_room").WithArgs("R002").WillReturnRows(idRows("guest_room_id"))
	mock.ExpectExec("UPDATE t_guest_room SET is_active = 0").
		WithArgs("2026-10-19", "10:00:00", nil, "U001", "10.0.0.1", "GR001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT guest_room_id FROM t_guest_room").WithArgs("R005").WillReturnRows(idRows("guest_room_id"))
	mock.ExpectExec("UPDATE m_rooms SET status").
		WithArgs(model.RoomAvailable, "U001", "10.0.0.1", "R005").WillReturnResult(sqlmock.NewResult(0, 1))
	expectSeq(mock, "GR", 2)
	mock.ExpectExec("INSERT INTO t_guest_room").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE m_rooms SET status").
		WithArgs(model.RoomOccupied, "U001", "10.0.0.1", "R002").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE t_guest_inout SET room_id").
		WithArgs("R002", "U001", "10.0.0.1", "G020").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	next, err := s.Change(context.Background(), "GR001",
		RoomChangeInput{RoomID: "R002", ActionType: model.RoomActionUpgraded}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "GR002", next.GuestRoomID)
	assert.Equal(t, "R002", next.RoomID)
	assert.Equal(t, model.RoomActionUpgraded, next.ActionType)
	assert.True(t, next.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomChange_TargetOccupied(t *testing.T) {
	s, mock := newRoomService(t)

	mock.ExpectQuery("FROM t_guest_room WHERE guest_room_id").WithArgs("GR001").
		WillReturnRows(guestRoomRow("GR001", "G020", "R005", true))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R005").WillReturnRows(roomRow("R005", model.RoomOccupied))
	mock.ExpectQuery("FROM m_rooms WHERE room_id").WithArgs("R009").WillReturnRows(roomRow("R009", model.RoomOccupied))
	mock.ExpectQuery("FROM t_guest_room WHERE guest_room_id").WithArgs("GR001").
		WillReturnRows(guestRoomRow("GR001", "G020", "R005", true))
	mock.ExpectQuery("SELECT guest_room_id FROM t_guest_room").WithArgs("R009").WillReturnRows(idRows("guest_room_id", "GR004"))
	mock.ExpectRollback()

	_, err := s.Change(context.Background(), "GR001", RoomChangeInput{RoomID: "R009"}, testActor)
	assert.Equal(t, apperr.CapacityExceeded, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomChange_Validation(t *testing.T) {
	s, mock := newRoomService(t)
	ctx := context.Background()

	_, err := s.Change(ctx, "GR001", RoomChangeInput{RoomID: "R002", ActionType: "Allocated"}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	mock.ExpectQuery("FROM t_guest_room WHERE guest_room_id").WithArgs("GR001").
		WillReturnRows(guestRoomRow("GR001", "G020", "R005", true))
	_, err = s.Change(ctx, "GR001", RoomChangeInput{RoomID: "R005"}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
