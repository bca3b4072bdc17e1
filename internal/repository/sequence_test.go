package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatID(t *testing.T) {
	assert.Equal(t, "G001", FormatID(PrefixGuest, 1))
	assert.Equal(t, "GR042", FormatID(PrefixGuestRoom, 42))
	assert.Equal(t, "G1000", FormatID(PrefixGuest, 1000))
	assert.Equal(t, "ACT00007", FormatID(PrefixActivity, 7))
}

func TestSequenceNextTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO id_sequences").
		WithArgs("GB").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT LAST_INSERT_ID").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	mock.ExpectCommit()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	id, err := NewSequenceRepo().NextTx(context.Background(), tx, "GB")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, "GB012", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSequenceNextTx_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO id_sequences").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	_, err = NewSequenceRepo().NextTx(context.Background(), tx, "G")
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}
