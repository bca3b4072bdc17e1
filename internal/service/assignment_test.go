package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

func newAssignmentService(t *testing.T) (*AssignmentService, sqlmock.Sqlmock) {
	d, db, mock := newMockDeps(t)
	return NewAssignmentService(d, db, repository.NewGuestRepo(db), ResourceSpecs), mock
}

// expectButlerAssign queues the statements of one butler assignment when
// the butler already serves `serving` guests.
func expectButlerAssign(mock sqlmock.Sqlmock, guestID string, serving []string, seq int64) {
	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WithArgs(guestID).WillReturnRows(guestRow(guestID))
	mock.ExpectQuery("SELECT is_active FROM m_butler").WithArgs("B001").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_butler WHERE guest_id").WithArgs(guestID).WillReturnRows(sqlmock.NewRows(assignmentCols))
	mock.ExpectQuery("SELECT butler_assignment_id FROM t_guest_butler WHERE resource_id").WithArgs("B001").
		WillReturnRows(idRows("butler_assignment_id", serving...))
	if len(serving) >= 3 {
		mock.ExpectRollback()
		return
	}
	expectSeq(mock, "GB", seq)
	mock.ExpectExec("INSERT INTO t_guest_butler").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()
}

func TestButlerCapacity(t *testing.T) {
	s, mock := newAssignmentService(t)
	ctx := context.Background()

	var serving []string
	for i := 1; i <= 3; i++ {
		guest := fmt.Sprintf("G%03d", 9+i)
		expectButlerAssign(mock, guest, serving, int64(i))
		as, err := s.Assign(ctx, "butler", AssignInput{GuestID: guest, ResourceID: "B001"}, testActor)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("GB%03d", i), as.AssignmentID)
		assert.Equal(t, "Assigned", as.Status)
		serving = append(serving, as.AssignmentID)
	}

	expectButlerAssign(mock, "G013", serving, 0)
	_, err := s.Assign(ctx, "butler", AssignInput{GuestID: "G013", ResourceID: "B001"}, testActor)
	require.Error(t, err)
	assert.Equal(t, apperr.CapacityExceeded, apperr.KindOf(err))

	// release GB001
	mock.ExpectQuery("FROM t_guest_butler WHERE butler_assignment_id").WithArgs("GB001").
		WillReturnRows(assignmentRow("GB001", "G010", "B001", "Assigned", true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_active FROM m_butler").WithArgs("B001").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_butler WHERE butler_assignment_id").WithArgs("GB001").
		WillReturnRows(assignmentRow("GB001", "G010", "B001", "Assigned", true))
	mock.ExpectExec("UPDATE t_guest_butler SET is_active = 0").
		WithArgs("Released", "2026-10-19", "10:00:00", sqlmock.AnyArg(), "U001", "10.0.0.1", "GB001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	closed, err := s.Close(ctx, "butler", "GB001", CloseInput{}, testActor)
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
	assert.Equal(t, "Released", closed.Status)

	expectButlerAssign(mock, "G013", serving[1:], 4)
	as, err := s.Assign(ctx, "butler", AssignInput{GuestID: "G013", ResourceID: "B001"}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "GB004", as.AssignmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssign_GuestAlreadyAssigned(t *testing.T) {
	s, mock := newAssignmentService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G010"))
	mock.ExpectQuery("SELECT is_active FROM m_driver").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_driver WHERE guest_id").
		WillReturnRows(assignmentRow("GD001", "G010", "D002", "Assigned", true))
	mock.ExpectRollback()

	_, err := s.Assign(context.Background(), "driver", AssignInput{GuestID: "G010", ResourceID: "D001"}, testActor)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssign_InactiveResource(t *testing.T) {
	s, mock := newAssignmentService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G010"))
	mock.ExpectQuery("SELECT is_active FROM m_vehicle").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))
	mock.ExpectQuery("FROM t_guest_vehicle WHERE guest_id").WillReturnRows(sqlmock.NewRows(assignmentCols))
	mock.ExpectRollback()

	_, err := s.Assign(context.Background(), "vehicle", AssignInput{GuestID: "G010", ResourceID: "V001"}, testActor)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssign_DriverMarksResourceBusy(t *testing.T) {
	s, mock := newAssignmentService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G010"))
	mock.ExpectQuery("SELECT is_active FROM m_driver").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_driver WHERE guest_id").WillReturnRows(sqlmock.NewRows(assignmentCols))
	mock.ExpectQuery("SELECT driver_assignment_id FROM t_guest_driver").WillReturnRows(idRows("driver_assignment_id"))
	expectSeq(mock, "GD", 1)
	mock.ExpectExec("INSERT INTO t_guest_driver").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT driver_assignment_id FROM t_guest_driver").WillReturnRows(idRows("driver_assignment_id", "GD001"))
	mock.ExpectExec("UPDATE m_driver SET status").
		WithArgs("On Duty", "U001", "10.0.0.1", "D001").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	as, err := s.Assign(context.Background(), "driver", AssignInput{GuestID: "G010", ResourceID: "D001"}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "GD001", as.AssignmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNetworkCloseReopensRequest(t *testing.T) {
	s, mock := newAssignmentService(t)

	mock.ExpectQuery("FROM t_guest_network WHERE network_assignment_id").
		WillReturnRows(assignmentRow("GN001", "G010", "NP001", "Active", true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_active FROM m_network_provider").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_network WHERE network_assignment_id").
		WillReturnRows(assignmentRow("GN001", "G010", "NP001", "Active", true))
	mock.ExpectExec("UPDATE t_guest_network SET is_active = 0").WillReturnResult(sqlmock.NewResult(0, 1))
	expectSeq(mock, "GN", 2)
	mock.ExpectExec("INSERT INTO t_guest_network").
		WithArgs("GN002", "G010", nil, "2026-10-19", nil, nil, nil, nil, nil, "Requested", "U001", "10.0.0.1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	out, err := s.Close(context.Background(), "network", "GN001", CloseInput{}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "Disconnected", out.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func pendingNetworkRow(id, guestID string) *sqlmock.Rows {
	return sqlmock.NewRows(assignmentCols).AddRow(id, guestID, nil, "2026-10-19", nil, nil, nil,
		nil, nil, "Requested", true, testNow, nil)
}

func TestNetworkClosePendingRequestEndsChain(t *testing.T) {
	s, mock := newAssignmentService(t)

	mock.ExpectQuery("FROM t_guest_network WHERE network_assignment_id").WillReturnRows(pendingNetworkRow("GN002", "G010"))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM t_guest_network WHERE network_assignment_id").WillReturnRows(pendingNetworkRow("GN002", "G010"))
	mock.ExpectExec("UPDATE t_guest_network SET is_active = 0").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	out, err := s.Close(context.Background(), "network", "GN002", CloseInput{}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "Disconnected", out.Status)
	assert.False(t, out.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentUpdate_KeepsOmittedFields(t *testing.T) {
	s, mock := newAssignmentService(t)
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(assignmentCols).AddRow("GV001", "G010", "V001", "2026-10-19", "09:00:00", "2026-10-21", nil,
			"Porch", nil, "Assigned", true, testNow, nil)
	}

	mock.ExpectQuery("FROM t_guest_vehicle WHERE vehicle_assignment_id").WithArgs("GV001").WillReturnRows(row())
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_active FROM m_vehicle").WithArgs("V001").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_vehicle WHERE vehicle_assignment_id").WithArgs("GV001").WillReturnRows(row())
	mock.ExpectExec("UPDATE t_guest_vehicle SET resource_id").
		WithArgs("V001", "2026-10-19", "09:00:00", "2026-10-21", nil, "Porch", "late checkout", "Assigned",
			"U001", "10.0.0.1", "GV001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	out, err := s.Update(context.Background(), "vehicle", "GV001", AssignmentPatch{Remarks: strPtr("late checkout")}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "V001", *out.ResourceID)
	assert.Equal(t, "Porch", *out.Location)
	assert.Equal(t, "2026-10-21", *out.EndDate)
	assert.Equal(t, "late checkout", *out.Remarks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentUpdate_MoveToFullResource(t *testing.T) {
	s, mock := newAssignmentService(t)

	mock.ExpectQuery("FROM t_guest_vehicle WHERE vehicle_assignment_id").WithArgs("GV001").
		WillReturnRows(assignmentRow("GV001", "G010", "V001", "Assigned", true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_active FROM m_vehicle").WithArgs("V001").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("SELECT is_active FROM m_vehicle").WithArgs("V002").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_vehicle WHERE vehicle_assignment_id").WithArgs("GV001").
		WillReturnRows(assignmentRow("GV001", "G010", "V001", "Assigned", true))
	mock.ExpectQuery("SELECT vehicle_assignment_id FROM t_guest_vehicle WHERE resource_id").WithArgs("V002").
		WillReturnRows(idRows("vehicle_assignment_id", "GV007"))
	mock.ExpectRollback()

	_, err := s.Update(context.Background(), "vehicle", "GV001", AssignmentPatch{ResourceID: strPtr("V002")}, testActor)
	assert.Equal(t, apperr.CapacityExceeded, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentUpdate_MoveSettlesBothResources(t *testing.T) {
	s, mock := newAssignmentService(t)

	mock.ExpectQuery("FROM t_guest_vehicle WHERE vehicle_assignment_id").WithArgs("GV001").
		WillReturnRows(assignmentRow("GV001", "G010", "V002", "Assigned", true))
	mock.ExpectBegin()
	// resources lock in id order, not patch order
	mock.ExpectQuery("SELECT is_active FROM m_vehicle").WithArgs("V001").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("SELECT is_active FROM m_vehicle").WithArgs("V002").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_vehicle WHERE vehicle_assignment_id").WithArgs("GV001").
		WillReturnRows(assignmentRow("GV001", "G010", "V002", "Assigned", true))
	mock.ExpectQuery("SELECT vehicle_assignment_id FROM t_guest_vehicle WHERE resource_id").WithArgs("V001").
		WillReturnRows(idRows("vehicle_assignment_id"))
	mock.ExpectExec("UPDATE t_guest_vehicle SET resource_id").
		WithArgs("V001", "2026-10-19", nil, nil, nil, nil, nil, "Assigned", "U001", "10.0.0.1", "GV001").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT vehicle_assignment_id FROM t_guest_vehicle WHERE resource_id").WithArgs("V002").
		WillReturnRows(idRows("vehicle_assignment_id"))
	mock.ExpectExec("UPDATE m_vehicle SET status").
		WithArgs("Available", "U001", "10.0.0.1", "V002").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT vehicle_assignment_id FROM t_guest_vehicle WHERE resource_id").WithArgs("V001").
		WillReturnRows(idRows("vehicle_assignment_id", "GV001"))
	mock.ExpectExec("UPDATE m_vehicle SET status").
		WithArgs("In Use", "U001", "10.0.0.1", "V001").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	out, err := s.Update(context.Background(), "vehicle", "GV001", AssignmentPatch{ResourceID: strPtr("V001")}, testActor)
	require.NoError(t, err)
	assert.Equal(t, "V001", *out.ResourceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessengerAssignEndsSameDay(t *testing.T) {
	s, mock := newAssignmentService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM m_guest g WHERE g.guest_id").WillReturnRows(guestRow("G010"))
	mock.ExpectQuery("SELECT is_active FROM m_messenger").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
	mock.ExpectQuery("FROM t_guest_messenger WHERE guest_id").WillReturnRows(sqlmock.NewRows(assignmentCols))
	mock.ExpectQuery("SELECT messenger_assignment_id FROM t_guest_messenger").WillReturnRows(idRows("messenger_assignment_id"))
	expectSeq(mock, "GM", 1)
	mock.ExpectExec("INSERT INTO t_guest_messenger").WillReturnResult(sqlmock.NewResult(0, 1))
	expectActivity(mock)
	mock.ExpectCommit()

	as, err := s.Assign(context.Background(), "messenger",
		AssignInput{GuestID: "G010", ResourceID: "M001", StartDate: strPtr("2026-10-20")}, testActor)
	require.NoError(t, err)
	require.NotNil(t, as.EndDate)
	assert.Equal(t, "2026-10-20", *as.EndDate)
	assert.Equal(t, "23:59:59", *as.EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssign_Validation(t *testing.T) {
	s, _ := newAssignmentService(t)
	ctx := context.Background()

	_, err := s.Assign(ctx, "spaceship", AssignInput{GuestID: "G1", ResourceID: "X"}, testActor)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))

	_, err = s.Assign(ctx, "driver", AssignInput{GuestID: "G1"}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = s.Assign(ctx, "driver", AssignInput{GuestID: "G1", ResourceID: "D1",
		StartDate: strPtr("2026-10-20"), EndDate: strPtr("2026-10-19")}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))

	_, err = s.Request(ctx, "butler", RequestInput{GuestID: "G1"}, testActor)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestExpiringKinds(t *testing.T) {
	s, _ := newAssignmentService(t)
	exp := s.Expiring()
	require.Len(t, exp, 1)
	assert.Equal(t, "messenger", exp[0].Repo.Table().Kind)
	assert.Equal(t, "Expired", exp[0].ClosedStatus)
}

func strPtr(s string) *string { return &s }
