package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

var inoutCols = []string{"inout_id", "guest_id", "guest_name", "entry_date", "entry_time", "exit_date", "exit_time",
	"status", "room_id", "companions", "requires_driver", "purpose", "remarks", "is_active", "inserted_at", "updated_at"}

func inoutRow(id, guestID, status string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(inoutCols).AddRow(id, guestID, "Guest "+guestID, "2026-10-19", "08:00:00", nil, nil,
		status, nil, 0, false, nil, nil, active, testNow, nil)
}

func newInOutService(t *testing.T) (*InOutService, sqlmock.Sqlmock) {
	d, db, mock := newMockDeps(t)
	return NewInOutService(d, repository.NewGuestRepo(db), repository.NewInOutRepo(db)), mock
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{model.InOutScheduled, model.InOutInside, true},
		{model.InOutEntered, model.InOutInside, true},
		{model.InOutInside, model.InOutExited, true},
		{model.InOutScheduled, model.InOutExited, false},
		{model.InOutScheduled, model.InOutCancelled, true},
		{model.InOutExited, model.InOutCancelled, false},
		{model.InOutCancelled, model.InOutInside, false},
		{model.InOutInside, model.InOutScheduled, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestVisibleInActiveView(t *testing.T) {
	now := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)
	exited := func(ago time.Duration) model.GuestInOut {
		at := now.Add(-ago)
		d, c := dateOf(at), clockOf(at)
		return model.GuestInOut{Status: model.InOutExited, ExitDate: &d, ExitTime: &c, IsActive: true}
	}
	assert.False(t, VisibleInActiveView(exited(30*time.Hour), now))
	assert.True(t, VisibleInActiveView(exited(10*time.Hour), now))

	assert.True(t, VisibleInActiveView(model.GuestInOut{Status: model.InOutScheduled, EntryDate: "2026-10-19", IsActive: true}, now))
	assert.False(t, VisibleInActiveView(model.GuestInOut{Status: model.InOutScheduled, EntryDate: "2026-10-18", IsActive: true}, now))
	assert.True(t, VisibleInActiveView(model.GuestInOut{Status: model.InOutInside, IsActive: true}, now))
	assert.False(t, VisibleInActiveView(model.GuestInOut{Status: model.InOutCancelled, IsActive: true}, now))
	assert.False(t, VisibleInActiveView(model.GuestInOut{Status: model.InOutInside}, now))
}

func TestSchedule_SupersedesFinishedVisit(t *testing.T) {
	s, mock := newInOutService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G010"))
	mock.ExpectQuery("WHERE io.guest_id = \\? AND io.is_active = 1").WithArgs("G010").
		WillReturnRows(inoutRow("GIO001", "G010", model.InOutExited, true))
	mock.ExpectExec("UPDATE t_guest_inout SET is_active = 0").
		WithArgs("U001", "10.0.0.1", "GIO001").WillReturnResult(sqlmock.NewResult(0, 1))
	expectSeq(mock, "GIO", 2)
	mock.ExpectExec("INSERT INTO t_guest_inout").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	io, err := s.Schedule(context.Background(), VisitInput{GuestID: "G010", EntryDate: "2026-10-20", EntryTime: "09:30"}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "GIO002", io.InOutID)
	assert.Equal(t, "09:30:00", io.EntryTime)
	assert.Equal(t, model.InOutScheduled, io.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedule_RejectsOpenVisit(t *testing.T) {
	s, mock := newInOutService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G010"))
	mock.ExpectQuery("WHERE io.guest_id = \\? AND io.is_active = 1").
		WillReturnRows(inoutRow("GIO001", "G010", model.InOutInside, true))
	mock.ExpectRollback()

	_, err := s.Schedule(context.Background(), VisitInput{GuestID: "G010", EntryDate: "2026-10-20", EntryTime: "09:30"}, testActor)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedule_Validation(t *testing.T) {
	s, _ := newInOutService(t)
	ctx := context.Background()

	_, err := s.Schedule(ctx, VisitInput{GuestID: "G010", EntryDate: "20-10-2026", EntryTime: "09:30"}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	exit := "2026-10-19"
	_, err = s.Schedule(ctx, VisitInput{GuestID: "G010", EntryDate: "2026-10-20", EntryTime: "09:30", ExitDate: &exit}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestTransition(t *testing.T) {
	s, mock := newInOutService(t)
	ctx := context.Background()

	// same state is a no-op
	mock.ExpectBegin()
	mock.ExpectQuery("WHERE io.inout_id = \\?").WithArgs("GIO001").WillReturnRows(inoutRow("GIO001", "G010", model.InOutInside, true))
	mock.ExpectCommit()
	io, err := s.MarkInside(ctx, "GIO001", testActor)
	require.NoError(t, err)
	assert.Equal(t, model.InOutInside, io.Status)

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE io.inout_id = \\?").WillReturnRows(inoutRow("GIO001", "G010", model.InOutScheduled, true))
	mock.ExpectRollback()
	_, err = s.Exit(ctx, "GIO001", testActor)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE io.inout_id = \\?").WillReturnRows(inoutRow("GIO001", "G010", model.InOutInside, true))
	mock.ExpectExec("UPDATE t_guest_inout SET").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()
	io, err = s.Exit(ctx, "GIO001", testActor)
	require.NoError(t, err)
	assert.Equal(t, model.InOutExited, io.Status)
	require.NotNil(t, io.ExitDate)
	assert.Equal(t, "2026-10-19", *io.ExitDate)
	assert.Equal(t, "10:00:00", *io.ExitTime)

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE io.inout_id = \\?").WillReturnRows(inoutRow("GIO001", "G010", model.InOutScheduled, false))
	mock.ExpectRollback()
	_, err = s.Cancel(ctx, "GIO001", testActor)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweeper_RunOnce(t *testing.T) {
	d, db, mock := newMockDeps(t)
	assignments := NewAssignmentService(d, db, repository.NewGuestRepo(db), ResourceSpecs)
	sw := NewSweeper(d, repository.NewInOutRepo(db), assignments.Expiring()...)

	stamp := testNow.Format("2006-01-02 15:04:05")
	mock.ExpectExec("SET status = 'Entered'").WithArgs("SYSTEM", "127.0.0.1", stamp).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("SET status = 'Exited'").WithArgs("SYSTEM", "127.0.0.1", stamp).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE t_guest_messenger SET is_active = 0").
		WithArgs("Expired", "SYSTEM", "127.0.0.1", stamp).WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Entered)
	assert.Equal(t, int64(1), res.Exited)
	assert.Equal(t, map[string]int64{"messenger": 3}, res.Expired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitUpdate_KeepsOmittedFields(t *testing.T) {
	s, mock := newInOutService(t)
	two := 2

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE io.inout_id = \\?").WithArgs("GIO001").WillReturnRows(inoutRow("GIO001", "G010", model.InOutInside, true))
	mock.ExpectExec("UPDATE t_guest_inout SET").
		WithArgs("2026-10-19", "08:00:00", "2026-10-20", nil, model.InOutInside, nil, int64(2), false, nil, nil,
			"U001", "10.0.0.1", "GIO001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	io, err := s.Update(context.Background(), "GIO001", VisitPatch{Companions: &two, ExitDate: strPtr("2026-10-20")}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "08:00:00", io.EntryTime)
	assert.Equal(t, 2, io.Companions)
	assert.Equal(t, model.InOutInside, io.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitUpdate_FinishedIsReadOnly(t *testing.T) {
	s, mock := newInOutService(t)

	for _, status := range []string{model.InOutExited, model.InOutCancelled} {
		mock.ExpectBegin()
		mock.ExpectQuery("WHERE io.inout_id = \\?").WithArgs("GIO001").WillReturnRows(inoutRow("GIO001", "G010", status, true))
		mock.ExpectRollback()

		_, err := s.Update(context.Background(), "GIO001", VisitPatch{Remarks: strPtr("late")}, testActor)
		assert.Equal(t, apperr.Validation, apperr.KindOf(err), status)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVisitUpdate_ExitBeforeEntry(t *testing.T) {
	s, mock := newInOutService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("WHERE io.inout_id = \\?").WithArgs("GIO001").WillReturnRows(inoutRow("GIO001", "G010", model.InOutScheduled, true))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), "GIO001", VisitPatch{ExitDate: strPtr("2026-10-18")}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
