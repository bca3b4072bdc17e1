package service

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/queue"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
	"github.com/iliyamo/guesthouse-admin/internal/utils"
)

// ForgotPasswordMessage is returned whether or not the account exists.
const ForgotPasswordMessage = "If the account exists, a reset link has been sent."

// AdminRoleName is the role created for the bootstrap administrator.
const AdminRoleName = "Administrator"

// AuthSettings are the token lifetimes and secrets used by AuthService.
type AuthSettings struct {
	PrivateKey     *rsa.PrivateKey
	AccessTTL      time.Duration
	RefreshTTLDays int
	RefreshLength  int
	Pepper         string
	ResetTTL       time.Duration
	BcryptCost     int
}

type AuthService struct {
	Deps
	AuthSettings
	Users  *repository.UserRepo
	Roles  *repository.RoleRepo
	Tokens *repository.TokenRepo
}

// Payload is the identity embedded in the session response.
type Payload struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	FullName    string   `json:"full_name"`
	RoleID      string   `json:"role_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type Session struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	Payload          Payload   `json:"payload"`
}

func invalidCredentials() error {
	return apperr.New(apperr.Unauthorized, "Invalid credentials")
}

func invalidRefresh() error {
	return apperr.New(apperr.Unauthorized, "invalid refresh token")
}

// Login checks the password and starts a new token family. Unknown users,
// inactive users and wrong passwords all get the same error.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) (sess *Session, err error) {
	defer func() { s.Metrics.ObserveAuth("login", err) }()

	username = repository.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, apperr.Validationf("username and password are required")
	}
	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsNoRows(err) {
			utils.BurnPasswordCheck(password)
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || !u.IsActive {
		return nil, invalidCredentials()
	}

	sess, refresh, err := s.issue(ctx, u, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := s.Tokens.StoreRefresh(ctx, s.Tokens.DB, refresh, ip); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	s.Log.Info("user logged in", zap.String("user_id", u.UserID), zap.String("ip", ip))
	return sess, nil
}

// issue signs an access token with the role's current permissions and
// generates the next refresh token of family. The refresh row is returned
// for the caller to store.
func (s *AuthService) issue(ctx context.Context, u *model.User, family string) (*Session, *model.RefreshToken, error) {
	perms, err := s.Roles.ActivePermissionNames(ctx, u.RoleID)
	if err != nil {
		return nil, nil, fmt.Errorf("load permissions: %w", err)
	}
	now := s.Clock()
	access, err := utils.NewAccessToken(s.PrivateKey, u.UserID, u.Username, u.RoleName, perms, s.AccessTTL, now)
	if err != nil {
		return nil, nil, fmt.Errorf("sign access token: %w", err)
	}
	raw, err := utils.NewRefreshToken(s.RefreshLength, s.RefreshTTLDays, now)
	if err != nil {
		return nil, nil, fmt.Errorf("generate refresh token: %w", err)
	}
	row := &model.RefreshToken{
		UserID:    u.UserID,
		TokenHash: utils.HashToken(s.Pepper, raw.Raw),
		FamilyID:  family,
		ExpiresAt: raw.Exp,
	}
	return &Session{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     raw.Raw,
		RefreshExpiresAt: raw.Exp,
		Payload: Payload{
			UserID:      u.UserID,
			Username:    u.Username,
			FullName:    u.FullName,
			RoleID:      u.RoleID,
			Role:        u.RoleName,
			Permissions: perms,
		},
	}, row, nil
}

// Refresh rotates a refresh token. Presenting a token that was already
// revoked revokes its whole family; that revocation is committed before
// the caller is rejected.
func (s *AuthService) Refresh(ctx context.Context, raw, ip string) (sess *Session, err error) {
	defer func() { s.Metrics.ObserveAuth("refresh", err) }()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperr.Validationf("refreshToken is required")
	}
	hash := utils.HashToken(s.Pepper, raw)

	var reused bool
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		t, err := s.Tokens.LockByHashTx(ctx, tx, hash)
		if err != nil {
			if repository.IsNoRows(err) {
				return invalidRefresh()
			}
			return fmt.Errorf("load refresh token: %w", err)
		}
		if t.Revoked {
			n, err := s.Tokens.RevokeFamily(ctx, tx, t.FamilyID)
			if err != nil {
				return fmt.Errorf("revoke family: %w", err)
			}
			s.Log.Warn("refresh token reuse detected",
				zap.String("user_id", t.UserID), zap.String("family_id", t.FamilyID),
				zap.Int64("revoked", n), zap.String("ip", ip))
			reused = true
			return nil
		}
		if !s.Clock().Before(t.ExpiresAt) {
			return apperr.New(apperr.Unauthorized, "refresh token expired")
		}
		u, err := s.Users.LockTx(ctx, tx, t.UserID)
		if err != nil && !repository.IsNoRows(err) {
			return fmt.Errorf("load user: %w", err)
		}
		if err != nil || !u.IsActive {
			if _, err := s.Tokens.RevokeFamily(ctx, tx, t.FamilyID); err != nil {
				return fmt.Errorf("revoke family: %w", err)
			}
			reused = true
			return nil
		}

		var next *model.RefreshToken
		sess, next, err = s.issue(ctx, u, t.FamilyID)
		if err != nil {
			return err
		}
		if err := s.Tokens.StoreRefresh(ctx, tx, next, ip); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		return s.Tokens.MarkReplacedTx(ctx, tx, t.ID, strconv.FormatUint(next.ID, 10))
	})
	if err != nil {
		return nil, err
	}
	if reused {
		return nil, invalidRefresh()
	}
	return sess, nil
}

// Logout revokes the presented refresh token only.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.Validationf("refreshToken is required")
	}
	if err := s.Tokens.RevokeByHash(ctx, utils.HashToken(s.Pepper, raw)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Me reloads the caller's profile. Permissions reflect the role now, not
// the snapshot in the access token.
func (s *AuthService) Me(ctx context.Context, userID string) (*Payload, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	if !u.IsActive {
		return nil, apperr.NotFoundf("user %s not found", userID)
	}
	perms, err := s.Roles.ActivePermissionNames(ctx, u.RoleID)
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	return &Payload{UserID: u.UserID, Username: u.Username, FullName: u.FullName,
		RoleID: u.RoleID, Role: u.RoleName, Permissions: perms}, nil
}

// ChangePassword replaces the caller's password and ends every session.
func (s *AuthService) ChangePassword(ctx context.Context, current, next string, a model.Actor) error {
	if err := utils.CheckPasswordPolicy(next); err != nil {
		return apperr.Validationf("%s", err.Error())
	}
	u, err := s.Users.GetByID(ctx, a.UserID)
	if err != nil {
		return notFound(err, "user", a.UserID)
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return apperr.Validationf("current password is incorrect")
	}
	hash, err := utils.HashPassword(next, s.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.Users.SetPasswordTx(ctx, tx, u.UserID, hash, a); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if err := s.Tokens.RevokeAllForUser(ctx, tx, u.UserID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "auth", "change_password", u.UserID, "password changed", a)
	})
}

// ForgotPassword stores a reset token and emails it when the account
// exists and has an email address. The outcome is never revealed; store
// failures are logged.
func (s *AuthService) ForgotPassword(ctx context.Context, username string) string {
	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil || !u.IsActive || u.Email == nil || *u.Email == "" {
		if err != nil && !repository.IsNoRows(err) {
			s.Log.Error("forgot password lookup failed", zap.Error(err))
		}
		return ForgotPasswordMessage
	}
	raw, err := utils.RandomHex(32)
	if err != nil {
		s.Log.Error("generate reset token", zap.Error(err))
		return ForgotPasswordMessage
	}
	exp := s.Clock().UTC().Add(s.ResetTTL)
	if err := s.Tokens.StoreReset(ctx, u.UserID, utils.HashToken(s.Pepper, raw), exp); err != nil {
		s.Log.Error("store reset token", zap.String("user_id", u.UserID), zap.Error(err))
		return ForgotPasswordMessage
	}
	s.publish(ctx, queue.NotificationEvent{
		Type:      queue.EventPasswordReset,
		Channel:   queue.ChannelEmail,
		Recipient: *u.Email,
		Subject:   "Password reset",
		Body:      "Use this code to reset your password: " + raw + "\nIt expires at " + exp.Format(time.RFC1123) + ".",
		Data:      map[string]string{"user_id": u.UserID},
	})
	return ForgotPasswordMessage
}

// ResetPassword consumes a reset token, sets the password and revokes all
// of the user's refresh tokens.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, ip string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validationf("token is required")
	}
	if err := utils.CheckPasswordPolicy(password); err != nil {
		return apperr.Validationf("%s", err.Error())
	}
	hash, err := utils.HashPassword(password, s.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		userID, err := s.Tokens.ConsumeResetTx(ctx, tx, utils.HashToken(s.Pepper, token))
		if err != nil {
			if repository.IsNoRows(err) {
				return apperr.Validationf("invalid or expired reset token")
			}
			return fmt.Errorf("consume reset token: %w", err)
		}
		a := model.Actor{UserID: userID, IP: ip}
		if err := s.Users.SetPasswordTx(ctx, tx, userID, hash, a); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
		if err := s.Tokens.RevokeAllForUser(ctx, tx, userID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "auth", "reset_password", userID, "password reset", a)
	})
}

// EnsureAdmin creates an administrator holding every permission when no
// active user exists. It does nothing without a password.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if password == "" {
		return nil
	}
	n, err := s.Users.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	if err := utils.CheckPasswordPolicy(password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	hash, err := utils.HashPassword(password, s.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	a := model.System
	return s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		role, err := s.Roles.GetByNameTx(ctx, tx, AdminRoleName)
		if err != nil && !repository.IsNoRows(err) {
			return fmt.Errorf("load admin role: %w", err)
		}
		if err != nil {
			id, err := s.Seq.NextTx(ctx, tx, repository.PrefixRole)
			if err != nil {
				return err
			}
			desc := "Full access"
			role = &model.Role{RoleID: id, RoleName: AdminRoleName, Description: &desc}
			if err := s.Roles.CreateTx(ctx, tx, role, a); err != nil {
				return fmt.Errorf("create admin role: %w", err)
			}
		}
		if err := s.Roles.GrantAllTx(ctx, tx, role.RoleID, a); err != nil {
			return fmt.Errorf("grant permissions: %w", err)
		}
		id, err := s.Seq.NextTx(ctx, tx, repository.PrefixUser)
		if err != nil {
			return err
		}
		u := &model.User{UserID: id, Username: username, PasswordHash: hash, FullName: "Administrator", RoleID: role.RoleID}
		if err := s.Users.CreateTx(ctx, tx, u, a); err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}
		s.Log.Info("bootstrap administrator created", zap.String("user_id", id), zap.String("username", u.Username))
		return s.Activity.AppendTx(ctx, tx, "auth", "bootstrap", id, "administrator created", a)
	})
}
