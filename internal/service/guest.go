package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

// GuestService manages the guest master and its designation history.
type GuestService struct {
	Deps
	Guests *repository.GuestRepo
	InOut  *repository.InOutRepo
}

func NewGuestService(d Deps, guests *repository.GuestRepo, inout *repository.InOutRepo) *GuestService {
	return &GuestService{Deps: d, Guests: guests, InOut: inout}
}

type GuestInput struct {
	GuestName   *string `json:"guest_name"`
	Mobile      *string `json:"mobile"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
	Nationality *string `json:"nationality"`
	IDType      *string `json:"id_type"`
	IDNumber    *string `json:"id_number"`

	Designation *DesignationInput `json:"designation,omitempty"`
}

type DesignationInput struct {
	Designation  string  `json:"designation"`
	Department   *string `json:"department"`
	Organization *string `json:"organization"`
}

// Create inserts a guest and, when given, its first designation.
func (s *GuestService) Create(ctx context.Context, in GuestInput, a model.Actor) (*model.Guest, error) {
	if in.GuestName == nil {
		return nil, apperr.Validationf("guest_name is required")
	}
	name, err := required("guest_name", *in.GuestName)
	if err != nil {
		return nil, err
	}
	g := &model.Guest{
		GuestName: name, Mobile: trimmed(in.Mobile), Email: trimmed(in.Email), Address: trimmed(in.Address),
		Nationality: trimmed(in.Nationality), IDType: trimmed(in.IDType), IDNumber: trimmed(in.IDNumber),
	}
	var des *model.GuestDesignation
	if in.Designation != nil {
		title, err := required("designation", in.Designation.Designation)
		if err != nil {
			return nil, err
		}
		des = &model.GuestDesignation{Designation: title,
			Department: trimmed(in.Designation.Department), Organization: trimmed(in.Designation.Organization)}
	}

	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := s.Seq.NextTx(ctx, tx, repository.PrefixGuest)
		if err != nil {
			return err
		}
		g.GuestID = id
		if err := s.Guests.CreateTx(ctx, tx, g, a); err != nil {
			return fmt.Errorf("insert guest: %w", err)
		}
		if des != nil {
			if des.DesignationID, err = s.Seq.NextTx(ctx, tx, repository.PrefixDesignation); err != nil {
				return err
			}
			des.GuestID = id
			if err := s.Guests.InsertDesignationTx(ctx, tx, des, a); err != nil {
				return fmt.Errorf("insert designation: %w", err)
			}
		}
		return s.Activity.AppendTx(ctx, tx, "guest", "create", id, "Guest "+name+" created", a)
	})
	if err != nil {
		return nil, err
	}
	g.IsActive = true
	g.Designation = des
	s.Log.Info("guest created", zap.String("guest_id", g.GuestID), zap.String("by", a.UserID))
	return g, nil
}

func (s *GuestService) Get(ctx context.Context, id string) (*model.Guest, error) {
	g, err := s.Guests.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "guest", id)
	}
	return g, nil
}

func (s *GuestService) List(ctx context.Context, all bool) ([]model.Guest, error) {
	return s.Guests.List(ctx, all)
}

// Visits returns the guest's visit history.
func (s *GuestService) Visits(ctx context.Context, id string) ([]model.GuestInOut, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.InOut.ListByGuest(ctx, id)
}

// Update merges the provided fields over the stored guest.
func (s *GuestService) Update(ctx context.Context, id string, in GuestInput, a model.Actor) (*model.Guest, error) {
	var out *model.Guest
	err := s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := s.Guests.LockTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "guest", id)
		}
		if !g.IsActive {
			return apperr.NotFoundf("guest %s not found", id)
		}
		if in.GuestName != nil {
			if g.GuestName, err = required("guest_name", *in.GuestName); err != nil {
				return err
			}
		}
		g.Mobile = pick(g.Mobile, in.Mobile)
		g.Email = pick(g.Email, in.Email)
		g.Address = pick(g.Address, in.Address)
		g.Nationality = pick(g.Nationality, in.Nationality)
		g.IDType = pick(g.IDType, in.IDType)
		g.IDNumber = pick(g.IDNumber, in.IDNumber)
		if err := s.Guests.UpdateTx(ctx, tx, g, a); err != nil {
			return fmt.Errorf("update guest: %w", err)
		}
		out = g
		return s.Activity.AppendTx(ctx, tx, "guest", "update", id, "Guest updated", a)
	})
	return out, err
}

// Delete soft deletes the guest. A guest with an open visit cannot be
// removed.
func (s *GuestService) Delete(ctx context.Context, id string, a model.Actor) error {
	return s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := s.Guests.LockTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "guest", id)
		}
		if !g.IsActive {
			return apperr.NotFoundf("guest %s not found", id)
		}
		open, err := s.InOut.HasOpenVisitTx(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("check open visit: %w", err)
		}
		if open {
			return apperr.Conflictf("guest %s has an open visit", id)
		}
		if err := s.Guests.DeactivateTx(ctx, tx, id, a); err != nil {
			return fmt.Errorf("deactivate guest: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "guest", "delete", id, "Guest deactivated", a)
	})
}

// ChangeDesignation closes the current designation and opens a new one.
func (s *GuestService) ChangeDesignation(ctx context.Context, id string, in DesignationInput, a model.Actor) (*model.GuestDesignation, error) {
	title, err := required("designation", in.Designation)
	if err != nil {
		return nil, err
	}
	d := &model.GuestDesignation{GuestID: id, Designation: title,
		Department: trimmed(in.Department), Organization: trimmed(in.Organization)}
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := s.Guests.LockTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "guest", id)
		}
		if !g.IsActive {
			return apperr.NotFoundf("guest %s not found", id)
		}
		if err := s.Guests.CloseDesignationTx(ctx, tx, id, a); err != nil {
			return fmt.Errorf("close designation: %w", err)
		}
		if d.DesignationID, err = s.Seq.NextTx(ctx, tx, repository.PrefixDesignation); err != nil {
			return err
		}
		if err := s.Guests.InsertDesignationTx(ctx, tx, d, a); err != nil {
			return fmt.Errorf("insert designation: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "guest", "designation", id, "Designation changed to "+title, a)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
