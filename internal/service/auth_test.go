package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
	"github.com/iliyamo/guesthouse-admin/internal/utils"
)

const testPepper = "pepper"

var userCols = []string{"user_id", "username", "password_hash", "full_name", "email", "mobile",
	"role_id", "role_name", "is_active", "inserted_at", "updated_at"}

var tokenCols = []string{"id", "user_id", "token_hash", "family_id", "expires_at", "revoked", "revoked_at", "replaced_by"}

func newAuthService(t *testing.T) (*AuthService, sqlmock.Sqlmock) {
	t.Helper()
	d, db, mock := newMockDeps(t)
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &AuthService{
		Deps: d,
		AuthSettings: AuthSettings{
			PrivateKey:     key,
			AccessTTL:      15 * time.Minute,
			RefreshTTLDays: 7,
			RefreshLength:  32,
			Pepper:         testPepper,
			ResetTTL:       30 * time.Minute,
			BcryptCost:     bcrypt.MinCost,
		},
		Users:  repository.NewUserRepo(db),
		Roles:  repository.NewRoleRepo(db),
		Tokens: repository.NewTokenRepo(db),
	}, mock
}

func userRow(t *testing.T, password string, active bool) *sqlmock.Rows {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return sqlmock.NewRows(userCols).AddRow("U001", "alice", hash, "Alice", nil, nil, "ROLE001", "Front Desk",
		active, testNow, nil)
}

func TestLogin_InvalidCredentialsAreGeneric(t *testing.T) {
	s, mock := newAuthService(t)
	ctx := context.Background()

	mock.ExpectQuery("FROM m_user u LEFT JOIN m_role").WithArgs("alice").WillReturnRows(userRow(t, "correct-horse", true))
	_, wrong := s.Login(ctx, "Alice", "battery-staple", "10.0.0.1")

	mock.ExpectQuery("FROM m_user u LEFT JOIN m_role").WithArgs("nobody").WillReturnRows(sqlmock.NewRows(userCols))
	_, missing := s.Login(ctx, "nobody", "battery-staple", "10.0.0.1")

	require.Error(t, wrong)
	require.Error(t, missing)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(wrong))
	assert.Equal(t, "Invalid credentials", wrong.Error())
	assert.Equal(t, wrong.Error(), missing.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_IssuesTokens(t *testing.T) {
	s, mock := newAuthService(t)

	mock.ExpectQuery("FROM m_user u LEFT JOIN m_role").WillReturnRows(userRow(t, "correct-horse", true))
	mock.ExpectQuery("SELECT p.permission_name").WithArgs("ROLE001").
		WillReturnRows(sqlmock.NewRows([]string{"permission_name"}).AddRow("guest.read").AddRow("room.assign"))
	mock.ExpectExec("INSERT INTO t_refresh_token").WillReturnResult(sqlmock.NewResult(1, 1))

	sess, err := s.Login(context.Background(), "alice", "correct-horse", "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, sess.RefreshToken, 64)
	assert.Equal(t, []string{"guest.read", "room.assign"}, sess.Payload.Permissions)

	claims, err := utils.ParseAccessToken(&s.PrivateKey.PublicKey, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "U001", claims.Subject)
	assert.Equal(t, "Front Desk", claims.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_RotatesToken(t *testing.T) {
	s, mock := newAuthService(t)
	hash := utils.HashToken(testPepper, "old-token")

	mock.ExpectBegin()
	mock.ExpectQuery("FROM t_refresh_token WHERE token_hash").WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(7, "U001", hash, "fam-1", testNow.Add(time.Hour), false, nil, nil))
	mock.ExpectQuery("FROM m_user u LEFT JOIN m_role").WithArgs("U001").WillReturnRows(userRow(t, "x", true))
	mock.ExpectQuery("SELECT p.permission_name").WillReturnRows(sqlmock.NewRows([]string{"permission_name"}).AddRow("guest.read"))
	mock.ExpectExec("INSERT INTO t_refresh_token").
		WithArgs("U001", sqlmock.AnyArg(), "fam-1", sqlmock.AnyArg(), "10.0.0.1").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec("replaced_by=\\?").WithArgs("8", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sess, err := s.Refresh(context.Background(), "old-token", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", sess.RefreshToken)
	assert.Equal(t, "U001", sess.Payload.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_ReuseRevokesFamily(t *testing.T) {
	s, mock := newAuthService(t)
	hash := utils.HashToken(testPepper, "stolen")

	mock.ExpectBegin()
	mock.ExpectQuery("FROM t_refresh_token WHERE token_hash").WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(7, "U001", hash, "fam-1", testNow.Add(time.Hour), true, testNow, "8"))
	mock.ExpectExec("WHERE family_id=\\? AND revoked=0").WithArgs("fam-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	_, err := s.Refresh(context.Background(), "stolen", "10.0.0.1")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefresh_Expired(t *testing.T) {
	s, mock := newAuthService(t)
	hash := utils.HashToken(testPepper, "old")

	mock.ExpectBegin()
	mock.ExpectQuery("FROM t_refresh_token WHERE token_hash").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(7, "U001", hash, "fam-1", testNow.Add(-time.Minute), false, nil, nil))
	mock.ExpectRollback()

	_, err := s.Refresh(context.Background(), "old", "10.0.0.1")
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestForgotPassword_SameMessage(t *testing.T) {
	s, mock := newAuthService(t)

	mock.ExpectQuery("FROM m_user u LEFT JOIN m_role").WillReturnRows(sqlmock.NewRows(userCols))
	assert.Equal(t, ForgotPasswordMessage, s.ForgotPassword(context.Background(), "ghost"))

	email := "alice@example.com"
	hash, _ := utils.HashPassword("x", bcrypt.MinCost)
	mock.ExpectQuery("FROM m_user u LEFT JOIN m_role").WillReturnRows(sqlmock.NewRows(userCols).
		AddRow("U001", "alice", hash, "Alice", email, nil, "ROLE001", "Admin", true, testNow, nil))
	mock.ExpectExec("INSERT INTO t_password_reset").WithArgs("U001", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	assert.Equal(t, ForgotPasswordMessage, s.ForgotPassword(context.Background(), "alice"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetPassword_UnknownToken(t *testing.T) {
	s, mock := newAuthService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM t_password_reset").WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}))
	mock.ExpectRollback()

	err := s.ResetPassword(context.Background(), "nope", "long-enough-pass", "10.0.0.1")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())

	err = s.ResetPassword(context.Background(), "nope", "short", "10.0.0.1")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestEnsureAdmin_SkipsWhenUsersExist(t *testing.T) {
	s, mock := newAuthService(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM m_user").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	require.NoError(t, s.EnsureAdmin(context.Background(), "admin", "bootstrap-pass"))
	require.NoError(t, s.EnsureAdmin(context.Background(), "admin", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}
