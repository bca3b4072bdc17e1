package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/queue"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

// InOutService is the guest lifecycle manager:
//
//	Scheduled -> Entered -> Inside -> Exited
//
// Scheduled->Entered and Entered|Inside->Exited also happen in the sweep.
// Cancelled is reachable from every state before Exited, by request only.
type InOutService struct {
	Deps
	Guests *repository.GuestRepo
	InOut  *repository.InOutRepo
}

func NewInOutService(d Deps, guests *repository.GuestRepo, inout *repository.InOutRepo) *InOutService {
	return &InOutService{Deps: d, Guests: guests, InOut: inout}
}

// allowedFrom lists, per target state, the states a request may move from.
var allowedFrom = map[string][]string{
	model.InOutInside:    {model.InOutScheduled, model.InOutEntered},
	model.InOutExited:    {model.InOutEntered, model.InOutInside},
	model.InOutCancelled: {model.InOutScheduled, model.InOutEntered, model.InOutInside},
}

// CanTransition reports whether a request may move a visit from one state
// to another.
func CanTransition(from, to string) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

type VisitInput struct {
	GuestID        string  `json:"guest_id"`
	EntryDate      string  `json:"entry_date"`
	EntryTime      string  `json:"entry_time"`
	ExitDate       *string `json:"exit_date"`
	ExitTime       *string `json:"exit_time"`
	Companions     *int    `json:"companions"`
	RequiresDriver *bool   `json:"requires_driver"`
	Purpose        *string `json:"purpose"`
	Remarks        *string `json:"remarks"`
}

// VisitPatch carries the editable fields of a visit; nil fields are kept.
type VisitPatch struct {
	EntryDate      *string `json:"entry_date"`
	EntryTime      *string `json:"entry_time"`
	ExitDate       *string `json:"exit_date"`
	ExitTime       *string `json:"exit_time"`
	Companions     *int    `json:"companions"`
	RequiresDriver *bool   `json:"requires_driver"`
	Purpose        *string `json:"purpose"`
	Remarks        *string `json:"remarks"`
}

func (s *InOutService) checkWindow(io *model.GuestInOut) error {
	if io.Companions < 0 {
		return apperr.Validationf("companions must not be negative")
	}
	if io.ExitDate == nil {
		if io.ExitTime != nil {
			return apperr.Validationf("exit_time requires exit_date")
		}
		return nil
	}
	entry, err := combine(io.EntryDate, &io.EntryTime, s.Loc)
	if err != nil {
		return apperr.Validationf("invalid entry date or time")
	}
	exit, err := combine(*io.ExitDate, io.ExitTime, s.Loc)
	if err != nil {
		return apperr.Validationf("invalid exit date or time")
	}
	if exit.Before(entry) {
		return apperr.Validationf("exit must not be before entry")
	}
	return nil
}

// Schedule opens a new visit for a guest. A guest whose current visit is
// still open is rejected; a finished current visit is superseded in the
// same transaction so one active visit per guest remains.
func (s *InOutService) Schedule(ctx context.Context, in VisitInput, a model.Actor) (*model.GuestInOut, error) {
	if in.GuestID == "" {
		return nil, apperr.Validationf("guest_id is required")
	}
	io := &model.GuestInOut{GuestID: in.GuestID, Status: model.InOutScheduled,
		ExitDate: in.ExitDate, ExitTime: in.ExitTime, Purpose: trimmed(in.Purpose), Remarks: trimmed(in.Remarks)}
	var err error
	if io.EntryDate, err = parseDate("entry_date", in.EntryDate); err != nil {
		return nil, err
	}
	if io.EntryTime, err = parseClock("entry_time", in.EntryTime); err != nil {
		return nil, err
	}
	if err := optDate("exit_date", io.ExitDate); err != nil {
		return nil, err
	}
	if err := optClock("exit_time", io.ExitTime); err != nil {
		return nil, err
	}
	if in.Companions != nil {
		io.Companions = *in.Companions
	}
	if in.RequiresDriver != nil {
		io.RequiresDriver = *in.RequiresDriver
	}
	if err := s.checkWindow(io); err != nil {
		return nil, err
	}

	var guest *model.Guest
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := s.Guests.LockTx(ctx, tx, in.GuestID)
		if err != nil {
			return notFound(err, "guest", in.GuestID)
		}
		if !g.IsActive {
			return apperr.NotFoundf("guest %s not found", in.GuestID)
		}
		guest = g

		cur, err := s.InOut.LockActiveByGuestTx(ctx, tx, in.GuestID)
		switch {
		case err == nil && !cur.Terminal():
			return apperr.Conflictf("guest %s already has an open visit %s (%s)", in.GuestID, cur.InOutID, cur.Status)
		case err == nil:
			if err := s.InOut.DeactivateTx(ctx, tx, cur.InOutID, a); err != nil {
				return fmt.Errorf("supersede visit: %w", err)
			}
		case !repository.IsNoRows(err):
			return fmt.Errorf("load current visit: %w", err)
		}

		if io.InOutID, err = s.Seq.NextTx(ctx, tx, repository.PrefixInOut); err != nil {
			return err
		}
		if err := s.InOut.InsertTx(ctx, tx, io, a); err != nil {
			return fmt.Errorf("insert visit: %w", err)
		}
		return s.Activity.AppendTx(ctx, tx, "inout", "schedule", io.InOutID,
			"Visit scheduled for "+in.GuestID+" on "+io.EntryDate, a)
	})
	if err != nil {
		return nil, err
	}
	io.GuestName = guest.GuestName
	s.Metrics.ObserveTransition(model.InOutScheduled, "api", 1)
	s.Log.Info("visit scheduled", zap.String("inout_id", io.InOutID), zap.String("guest_id", io.GuestID))

	s.notifyGuest(ctx, queue.EventVisitScheduled, guest.Email, guest.Mobile, "Your visit is scheduled",
		fmt.Sprintf("Dear %s, your visit is scheduled for %s at %s.", guest.GuestName, io.EntryDate, io.EntryTime[:5]),
		map[string]string{"inout_id": io.InOutID, "guest_id": io.GuestID,
			"companions": strconv.Itoa(io.Companions)})
	return io, nil
}

func (s *InOutService) Get(ctx context.Context, id string) (*model.GuestInOut, error) {
	io, err := s.InOut.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "visit", id)
	}
	return io, nil
}

// lockCurrent locks a visit and requires it to be the guest's current one.
func (s *InOutService) lockCurrent(ctx context.Context, tx *sql.Tx, id string) (*model.GuestInOut, error) {
	io, err := s.InOut.LockTx(ctx, tx, id)
	if err != nil {
		return nil, notFound(err, "visit", id)
	}
	if !io.IsActive {
		return nil, apperr.Conflictf("visit %s has been superseded", id)
	}
	return io, nil
}

// Update merges p over the visit. Finished visits are read-only.
func (s *InOutService) Update(ctx context.Context, id string, p VisitPatch, a model.Actor) (*model.GuestInOut, error) {
	for _, f := range []struct {
		name string
		v    *string
		date bool
	}{{"entry_date", p.EntryDate, true}, {"entry_time", p.EntryTime, false},
		{"exit_date", p.ExitDate, true}, {"exit_time", p.ExitTime, false}} {
		var err error
		if f.date {
			err = optDate(f.name, f.v)
		} else {
			err = optClock(f.name, f.v)
		}
		if err != nil {
			return nil, err
		}
	}

	var out *model.GuestInOut
	err := s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		io, err := s.lockCurrent(ctx, tx, id)
		if err != nil {
			return err
		}
		if io.Terminal() {
			return apperr.Validationf("visit %s is %s and can no longer be edited", id, io.Status)
		}
		if p.EntryDate != nil {
			io.EntryDate = *p.EntryDate
		}
		if p.EntryTime != nil {
			io.EntryTime = *p.EntryTime
		}
		io.ExitDate = pick(io.ExitDate, p.ExitDate)
		io.ExitTime = pick(io.ExitTime, p.ExitTime)
		if p.Companions != nil {
			io.Companions = *p.Companions
		}
		if p.RequiresDriver != nil {
			io.RequiresDriver = *p.RequiresDriver
		}
		io.Purpose = pick(io.Purpose, p.Purpose)
		io.Remarks = pick(io.Remarks, p.Remarks)
		if err := s.checkWindow(io); err != nil {
			return err
		}
		if err := s.InOut.UpdateTx(ctx, tx, io, a); err != nil {
			return fmt.Errorf("update visit: %w", err)
		}
		out = io
		return s.Activity.AppendTx(ctx, tx, "inout", "update", id, "Visit updated", a)
	})
	return out, err
}

func (s *InOutService) MarkInside(ctx context.Context, id string, a model.Actor) (*model.GuestInOut, error) {
	return s.transition(ctx, id, model.InOutInside, a)
}

// Exit closes the visit now, overwriting any planned exit.
func (s *InOutService) Exit(ctx context.Context, id string, a model.Actor) (*model.GuestInOut, error) {
	return s.transition(ctx, id, model.InOutExited, a)
}

func (s *InOutService) Cancel(ctx context.Context, id string, a model.Actor) (*model.GuestInOut, error) {
	return s.transition(ctx, id, model.InOutCancelled, a)
}

func (s *InOutService) transition(ctx context.Context, id, to string, a model.Actor) (*model.GuestInOut, error) {
	var (
		out     *model.GuestInOut
		changed bool
	)
	err := s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		io, err := s.lockCurrent(ctx, tx, id)
		if err != nil {
			return err
		}
		out = io
		if io.Status == to {
			return nil
		}
		if !CanTransition(io.Status, to) {
			return apperr.Conflictf("visit %s cannot move from %s to %s", id, io.Status, to)
		}
		from := io.Status
		io.Status = to
		if to == model.InOutExited {
			now := s.now()
			d, c := dateOf(now), clockOf(now)
			io.ExitDate, io.ExitTime = &d, &c
		}
		if err := s.InOut.UpdateTx(ctx, tx, io, a); err != nil {
			return fmt.Errorf("update visit status: %w", err)
		}
		changed = true
		return s.Activity.AppendTx(ctx, tx, "inout", "status", id, from+" -> "+to, a)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.Metrics.ObserveTransition(to, "api", 1)
		s.Log.Info("visit status changed", zap.String("inout_id", id), zap.String("status", to))
	}
	return out, nil
}

// VisibleInActiveView reports whether the guest's visit belongs in the
// default "active guests" view at now: an active visit that is Scheduled
// for today or later, Entered, Inside, or Exited within the last 24 hours.
// The reporting query expresses the same window in SQL.
func VisibleInActiveView(io model.GuestInOut, now time.Time) bool {
	if !io.IsActive {
		return false
	}
	switch io.Status {
	case model.InOutScheduled:
		return io.EntryDate >= dateOf(now)
	case model.InOutEntered, model.InOutInside:
		return true
	case model.InOutExited:
		if io.ExitDate == nil {
			return false
		}
		exit, err := combine(*io.ExitDate, io.ExitTime, now.Location())
		if err != nil {
			return false
		}
		return !exit.Before(now.Add(-activeExitWindow))
	}
	return false
}

const activeExitWindow = 24 * time.Hour
