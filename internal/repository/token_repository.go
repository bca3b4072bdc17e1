package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// TokenRepo persists refresh tokens (t_refresh_token) and password reset
// tokens (t_password_reset). Only hashes of the raw tokens are stored.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, q Querier, t *model.RefreshToken, ip string) error {
	res, err := q.ExecContext(ctx,
		"INSERT INTO t_refresh_token (user_id, token_hash, family_id, expires_at, revoked, inserted_ip) VALUES (?,?,?,?,0,?)",
		t.UserID, t.TokenHash, t.FamilyID, t.ExpiresAt, ip)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		t.ID = uint64(id)
	}
	return nil
}

// LockByHashTx loads a refresh token by hash with FOR UPDATE so two
// concurrent refreshes of the same token serialize.
func (r *TokenRepo) LockByHashTx(ctx context.Context, tx *sql.Tx, tokenHash string) (*model.RefreshToken, error) {
	var t model.RefreshToken
	err := tx.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, family_id, expires_at, revoked, revoked_at, replaced_by FROM t_refresh_token WHERE token_hash=? LIMIT 1"+forUpdate,
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.FamilyID, &t.ExpiresAt, &t.Revoked, &t.RevokedAt, &t.ReplacedBy)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkReplacedTx revokes a token and points it at its successor.
func (r *TokenRepo) MarkReplacedTx(ctx context.Context, tx *sql.Tx, id uint64, replacedBy string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE t_refresh_token SET revoked=1, revoked_at=UTC_TIMESTAMP(), replaced_by=? WHERE id=?",
		replacedBy, id)
	return err
}

// RevokeFamily revokes every still-valid token in the family.
func (r *TokenRepo) RevokeFamily(ctx context.Context, q Querier, familyID string) (int64, error) {
	res, err := q.ExecContext(ctx,
		"UPDATE t_refresh_token SET revoked=1, revoked_at=UTC_TIMESTAMP() WHERE family_id=? AND revoked=0",
		familyID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RevokeByHash marks a single token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE t_refresh_token SET revoked=1, revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked=0",
		tokenHash)
	return err
}

// RevokeAllForUser revokes all of a user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, q Querier, userID string) error {
	_, err := q.ExecContext(ctx,
		"UPDATE t_refresh_token SET revoked=1, revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked=0",
		userID)
	return err
}

// StoreReset inserts a password reset token.
func (r *TokenRepo) StoreReset(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO t_password_reset (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// ConsumeResetTx marks an unused, unexpired reset token used and returns
// its user. It returns sql.ErrNoRows when no such token exists.
func (r *TokenRepo) ConsumeResetTx(ctx context.Context, tx *sql.Tx, tokenHash string) (string, error) {
	var (
		id     uint64
		userID string
	)
	err := tx.QueryRowContext(ctx,
		"SELECT id, user_id FROM t_password_reset WHERE token_hash=? AND used_at IS NULL AND expires_at > UTC_TIMESTAMP() LIMIT 1"+forUpdate,
		tokenHash).Scan(&id, &userID)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE t_password_reset SET used_at=UTC_TIMESTAMP() WHERE id=?", id); err != nil {
		return "", err
	}
	return userID, nil
}
