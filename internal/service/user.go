package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/database"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
	"github.com/iliyamo/guesthouse-admin/internal/utils"
)

// UserService manages admin accounts.
type UserService struct {
	Deps
	Users      *repository.UserRepo
	Roles      *repository.RoleRepo
	Tokens     *repository.TokenRepo
	BcryptCost int
}

type UserInput struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Mobile   *string `json:"mobile"`
	RoleID   *string `json:"role_id"`
}

func (s *UserService) activeRole(ctx context.Context, tx *sql.Tx, id string) error {
	rl, err := s.Roles.LockTx(ctx, tx, id)
	if err != nil {
		return notFound(err, "role", id)
	}
	if !rl.IsActive {
		return apperr.NotFoundf("role %s not found", id)
	}
	return nil
}

func (s *UserService) Create(ctx context.Context, in UserInput, a model.Actor) (*model.User, error) {
	var u model.User
	var err error
	if u.Username, err = required("username", deref(in.Username)); err != nil {
		return nil, err
	}
	if u.FullName, err = required("full_name", deref(in.FullName)); err != nil {
		return nil, err
	}
	if u.RoleID, err = required("role_id", deref(in.RoleID)); err != nil {
		return nil, err
	}
	if err := utils.CheckPasswordPolicy(deref(in.Password)); err != nil {
		return nil, apperr.Validationf("%s", err.Error())
	}
	u.Email, u.Mobile = trimmed(in.Email), trimmed(in.Mobile)
	if u.PasswordHash, err = utils.HashPassword(*in.Password, s.BcryptCost); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.activeRole(ctx, tx, u.RoleID); err != nil {
			return err
		}
		taken, err := s.Users.UsernameTakenTx(ctx, tx, u.Username, "")
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return apperr.Conflictf("username %s already exists", repository.NormalizeUsername(u.Username))
		}
		if u.UserID, err = s.Seq.NextTx(ctx, tx, repository.PrefixUser); err != nil {
			return err
		}
		if err := s.Users.CreateTx(ctx, tx, &u, a); err != nil {
			if errors.Is(err, repository.ErrUsernameExists) {
				return apperr.Conflictf("username %s already exists", repository.NormalizeUsername(u.Username))
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "user", "create", u.UserID, "user "+u.Username+" created", a)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, u.UserID)
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, all bool) ([]model.User, error) {
	return s.Users.List(ctx, all)
}

// Update coalesces profile fields. A new password ends the user's
// sessions.
func (s *UserService) Update(ctx context.Context, id string, in UserInput, a model.Actor) (*model.User, error) {
	var hash string
	if in.Password != nil {
		if err := utils.CheckPasswordPolicy(*in.Password); err != nil {
			return nil, apperr.Validationf("%s", err.Error())
		}
		h, err := utils.HashPassword(*in.Password, s.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = h
	}
	err := s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		u, err := s.Users.LockTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "user", id)
		}
		if !u.IsActive {
			return apperr.NotFoundf("user %s not found", id)
		}
		if in.Username != nil {
			if u.Username, err = required("username", *in.Username); err != nil {
				return err
			}
			taken, err := s.Users.UsernameTakenTx(ctx, tx, u.Username, id)
			if err != nil {
				return fmt.Errorf("check username: %w", err)
			}
			if taken {
				return apperr.Conflictf("username %s already exists", repository.NormalizeUsername(u.Username))
			}
		}
		if in.FullName != nil {
			if u.FullName, err = required("full_name", *in.FullName); err != nil {
				return err
			}
		}
		if in.RoleID != nil {
			if err := s.activeRole(ctx, tx, *in.RoleID); err != nil {
				return err
			}
			u.RoleID = *in.RoleID
		}
		if in.Email != nil {
			u.Email = trimmed(in.Email)
		}
		if in.Mobile != nil {
			u.Mobile = trimmed(in.Mobile)
		}
		if err := s.Users.UpdateTx(ctx, tx, u, a); err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.Conflictf("username %s already exists", repository.NormalizeUsername(u.Username))
			}
			return fmt.Errorf("update user: %w", err)
		}
		if hash != "" {
			if err := s.Users.SetPasswordTx(ctx, tx, id, hash, a); err != nil {
				return fmt.Errorf("set password: %w", err)
			}
			if err := s.Tokens.RevokeAllForUser(ctx, tx, id); err != nil {
				return fmt.Errorf("revoke sessions: %w", err)
			}
		}
		return s.Activity.AppendTx(ctx, tx, "user", "update", id, "user "+u.Username+" updated", a)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete deactivates the user and revokes its refresh tokens. Users cannot
// delete themselves.
func (s *UserService) Delete(ctx context.Context, id string, a model.Actor) error {
	if id == a.UserID {
		return apperr.Conflictf("you cannot delete your own account")
	}
	return s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		u, err := s.Users.LockTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "user", id)
		}
		if !u.IsActive {
			return apperr.NotFoundf("user %s not found", id)
		}
		if err := s.Users.DeactivateTx(ctx, tx, id, a); err != nil {
			return fmt.Errorf("deactivate user: %w", err)
		}
		if err := s.Tokens.RevokeAllForUser(ctx, tx, id); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "user", "delete", id, "user "+u.Username+" deactivated", a)
	})
}
