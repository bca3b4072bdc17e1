package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

// RoleService manages roles and their permission links. Changes reach
// users on their next login or refresh.
type RoleService struct {
	Deps
	Roles *repository.RoleRepo
	Users *repository.UserRepo
}

type RoleInput struct {
	RoleName    *string `json:"role_name"`
	Description *string `json:"description"`
}

func (s *RoleService) Create(ctx context.Context, in RoleInput, a model.Actor) (*model.Role, error) {
	name, err := required("role_name", deref(in.RoleName))
	if err != nil {
		return nil, err
	}
	rl := model.Role{RoleName: name, Description: trimmed(in.Description)}
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.nameFreeTx(ctx, tx, name, ""); err != nil {
			return err
		}
		if rl.RoleID, err = s.Seq.NextTx(ctx, tx, repository.PrefixRole); err != nil {
			return err
		}
		if err := s.Roles.CreateTx(ctx, tx, &rl, a); err != nil {
			return fmt.Errorf("insert role: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "role", "create", rl.RoleID, "role "+name+" created", a)
	})
	if err != nil {
		return nil, err
	}
	return &rl, nil
}

func (s *RoleService) nameFreeTx(ctx context.Context, tx *sql.Tx, name, exceptID string) error {
	other, err := s.Roles.GetByNameTx(ctx, tx, name)
	switch {
	case repository.IsNoRows(err):
		return nil
	case err != nil:
		return fmt.Errorf("check role name: %w", err)
	case other.RoleID != exceptID && other.IsActive:
		return apperr.Conflictf("role %s already exists", name)
	}
	return nil
}

// Get returns the role with every permission link.
func (s *RoleService) Get(ctx context.Context, id string) (*model.Role, error) {
	rl, err := s.Roles.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "role", id)
	}
	if rl.Permissions, err = s.Roles.RolePermissions(ctx, id); err != nil {
		return nil, fmt.Errorf("load role permissions: %w", err)
	}
	return rl, nil
}

func (s *RoleService) List(ctx context.Context, all bool) ([]model.Role, error) {
	return s.Roles.List(ctx, all)
}

func (s *RoleService) Update(ctx context.Context, id string, in RoleInput, a model.Actor) (*model.Role, error) {
	err := s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		rl, err := s.lockActive(ctx, tx, id)
		if err != nil {
			return err
		}
		if in.RoleName != nil {
			if rl.RoleName, err = required("role_name", *in.RoleName); err != nil {
				return err
			}
			if err := s.nameFreeTx(ctx, tx, rl.RoleName, id); err != nil {
				return err
			}
		}
		if in.Description != nil {
			rl.Description = trimmed(in.Description)
		}
		if err := s.Roles.UpdateTx(ctx, tx, rl, a); err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "role", "update", id, "role "+rl.RoleName+" updated", a)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *RoleService) lockActive(ctx context.Context, tx *sql.Tx, id string) (*model.Role, error) {
	rl, err := s.Roles.LockTx(ctx, tx, id)
	if err != nil {
		return nil, notFound(err, "role", id)
	}
	if !rl.IsActive {
		return nil, apperr.NotFoundf("role %s not found", id)
	}
	return rl, nil
}

// Delete soft deletes the role and its permission links. A role still
// held by an active user is kept.
func (s *RoleService) Delete(ctx context.Context, id string, a model.Actor) error {
	return s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		rl, err := s.lockActive(ctx, tx, id)
		if err != nil {
			return err
		}
		holders, err := s.Users.CountActiveByRoleTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("count role users: %w", err)
		}
		if holders > 0 {
			return apperr.Conflictf("role %s is assigned to %d active user(s)", rl.RoleName, holders)
		}
		if err := s.Roles.DeactivateTx(ctx, tx, id, a); err != nil {
			return fmt.Errorf("deactivate role: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "role", "delete", id, "role "+rl.RoleName+" deactivated", a)
	})
}

// TogglePermission flips the link between the role and the permission.
// A missing link is created active. It returns the new state.
func (s *RoleService) TogglePermission(ctx context.Context, roleID string, permissionID int64, a model.Actor) (bool, error) {
	var active bool
	err := s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.lockActive(ctx, tx, roleID); err != nil {
			return err
		}
		ok, err := s.Roles.PermissionExistsTx(ctx, tx, permissionID)
		if err != nil {
			return fmt.Errorf("check permission: %w", err)
		}
		if !ok {
			return apperr.NotFoundf("permission %d not found", permissionID)
		}
		_, current, err := s.Roles.PermissionStateTx(ctx, tx, roleID, permissionID)
		if err != nil {
			return fmt.Errorf("load role permission: %w", err)
		}
		active = !current
		if err := s.Roles.SetPermissionTx(ctx, tx, roleID, permissionID, active, a); err != nil {
			return fmt.Errorf("set role permission: %w", err)
		}
		state := "revoked"
		if active {
			state = "granted"
		}
		return s.Activity.AppendTx(ctx, tx, "role", "permission", roleID,
			"permission "+strconv.FormatInt(permissionID, 10)+" "+state, a)
	})
	return active, err
}

// Permissions lists the catalogue.
func (s *RoleService) Permissions(ctx context.Context) ([]model.Permission, error) {
	return s.Roles.Permissions(ctx)
}
