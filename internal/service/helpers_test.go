package service

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/guesthouse-admin/internal/database"
	"github.com/iliyamo/guesthouse-admin/internal/model"
)

var (
	testNow   = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	testActor = model.Actor{UserID: "U001", Username: "admin", IP: "10.0.0.1"}
)

func newMockDeps(t *testing.T) (Deps, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	d := NewDeps(Deps{
		Gateway: database.NewGateway(db),
		Clock:   func() time.Time { return testNow },
	})
	return d, db, mock
}

func expectSeq(mock sqlmock.Sqlmock, prefix string, n int64) {
	mock.ExpectExec("INSERT INTO id_sequences").WithArgs(prefix).WillReturnResult(sqlmock.NewResult(n, 1))
	mock.ExpectQuery("SELECT LAST_INSERT_ID").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(n))
}

func expectActivity(mock sqlmock.Sqlmock) {
	expectSeq(mock, "ACT", 1)
	mock.ExpectExec("INSERT INTO t_activity_log").WillReturnResult(sqlmock.NewResult(0, 1))
}

var guestCols = []string{"guest_id", "guest_name", "mobile", "email", "address", "nationality",
	"id_type", "id_number", "is_active", "inserted_at", "updated_at"}

func guestRow(id string) *sqlmock.Rows {
	return sqlmock.NewRows(guestCols).AddRow(id, "Guest "+id, nil, nil, nil, nil, nil, nil, true, testNow, nil)
}

var assignmentCols = []string{"id", "guest_id", "resource_id", "start_date", "start_time", "end_date", "end_time",
	"location", "remarks", "status", "is_active", "inserted_at", "updated_at"}

func assignmentRow(id, guestID, resourceID, status string, active bool) *sqlmock.Rows {
	return sqlmock.NewRows(assignmentCols).AddRow(id, guestID, resourceID, "2026-10-19", nil, nil, nil,
		nil, nil, status, active, testNow, nil)
}

func idRows(col string, ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{col})
	for _, id := range ids {
		rows.AddRow(id)
	}
	return rows
}
