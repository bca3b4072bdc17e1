package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/queue"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

type resourceKind struct {
	spec ResourceSpec
	repo *repository.AssignmentRepo
}

// AssignmentService is the generic guest-to-resource assignment manager.
// Every kind follows the same rules: one active row per guest, at most
// Capacity active rows per resource, and closing never deletes a row.
// Resource rows are always locked before assignment rows.
type AssignmentService struct {
	Deps
	Guests *repository.GuestRepo
	kinds  map[string]resourceKind
}

func NewAssignmentService(d Deps, db *sql.DB, guests *repository.GuestRepo, specs map[string]ResourceSpec) *AssignmentService {
	s := &AssignmentService{Deps: d, Guests: guests, kinds: map[string]resourceKind{}}
	for k, spec := range specs {
		s.kinds[k] = resourceKind{spec: spec, repo: repository.NewAssignmentRepo(db, spec.AssignmentTable)}
	}
	return s
}

// Kinds returns the configured kinds in name order.
func (s *AssignmentService) Kinds() []string {
	out := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Spec returns the configuration of kind.
func (s *AssignmentService) Spec(kind string) (ResourceSpec, bool) {
	k, ok := s.kinds[kind]
	return k.spec, ok
}

// Expiring lists the kinds closed by the sweep.
func (s *AssignmentService) Expiring() []Expiring {
	var out []Expiring
	for _, name := range s.Kinds() {
		k := s.kinds[name]
		if k.spec.AutoExpire {
			out = append(out, Expiring{Repo: k.repo, ClosedStatus: k.spec.ExpiredStatus})
		}
	}
	return out
}

func (s *AssignmentService) kind(name string) (resourceKind, error) {
	k, ok := s.kinds[name]
	if !ok {
		return resourceKind{}, apperr.NotFoundf("unknown assignment type %q", name)
	}
	return k, nil
}

type AssignInput struct {
	GuestID    string  `json:"guest_id"`
	ResourceID string  `json:"resource_id"`
	StartDate  *string `json:"start_date"`
	StartTime  *string `json:"start_time"`
	EndDate    *string `json:"end_date"`
	EndTime    *string `json:"end_time"`
	Location   *string `json:"location"`
	Remarks    *string `json:"remarks"`
}

// RequestInput opens a pending row that a later Assign fulfils.
type RequestInput struct {
	GuestID   string  `json:"guest_id"`
	StartDate *string `json:"start_date"`
	Location  *string `json:"location"`
	Remarks   *string `json:"remarks"`
}

type CloseInput struct {
	Remarks *string `json:"remarks"`
}

// AssignmentPatch carries editable fields; nil fields are kept.
type AssignmentPatch struct {
	ResourceID *string `json:"resource_id"`
	StartDate  *string `json:"start_date"`
	StartTime  *string `json:"start_time"`
	EndDate    *string `json:"end_date"`
	EndTime    *string `json:"end_time"`
	Location   *string `json:"location"`
	Remarks    *string `json:"remarks"`
}

func (s *AssignmentService) validateWindow(as *model.Assignment) error {
	if as.EndDate == nil {
		return nil
	}
	start, err := combine(as.StartDate, as.StartTime, s.Loc)
	if err != nil {
		return apperr.Validationf("invalid start date or time")
	}
	end, err := combine(*as.EndDate, as.EndTime, s.Loc)
	if err != nil {
		return apperr.Validationf("invalid end date or time")
	}
	if end.Before(start) {
		return apperr.Validationf("end must not be before start")
	}
	return nil
}

// lockGuest locks an active guest.
func (s *AssignmentService) lockGuest(ctx context.Context, tx *sql.Tx, id string) (*model.Guest, error) {
	g, err := s.Guests.LockTx(ctx, tx, id)
	if err != nil {
		return nil, notFound(err, "guest", id)
	}
	if !g.IsActive {
		return nil, apperr.NotFoundf("guest %s not found", id)
	}
	return g, nil
}

// lockResource locks the resource row and reports whether it exists and
// is active.
func lockResource(ctx context.Context, tx *sql.Tx, k resourceKind, id string) (bool, error) {
	active, err := k.repo.LockResourceTx(ctx, tx, id)
	if repository.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock %s %s: %w", k.spec.Label, id, err)
	}
	return active, nil
}

// claim checks that one more row fits on the resource. The resource row
// must already be locked.
func claim(ctx context.Context, tx *sql.Tx, k resourceKind, id string) (int, error) {
	n, err := k.repo.LockActiveByResourceTx(ctx, tx, id)
	if err != nil {
		return 0, fmt.Errorf("count %s assignments: %w", k.spec.Label, err)
	}
	if n >= k.spec.Capacity {
		return n, apperr.Capacityf("%s %s is at capacity (%d of %d)", k.spec.Label, id, n, k.spec.Capacity)
	}
	return n, nil
}

// settle writes the resource's busy or free status from its current count.
func settle(ctx context.Context, tx *sql.Tx, k resourceKind, id string, a model.Actor) error {
	if k.spec.ResourceStatusColumn == "" {
		return nil
	}
	n, err := k.repo.LockActiveByResourceTx(ctx, tx, id)
	if err != nil {
		return fmt.Errorf("count %s assignments: %w", k.spec.Label, err)
	}
	status := k.spec.FreeStatus
	if n >= k.spec.Capacity {
		status = k.spec.BusyStatus
	}
	if err := k.repo.SetResourceStatusTx(ctx, tx, id, status, a); err != nil {
		return fmt.Errorf("set %s status: %w", k.spec.Label, err)
	}
	return nil
}

// Assign links a guest to a resource. A pending request of the guest is
// fulfilled instead of opening a second row.
func (s *AssignmentService) Assign(ctx context.Context, kind string, in AssignInput, a model.Actor) (out *model.Assignment, err error) {
	defer func() { s.Metrics.ObserveAssignment(kind, "assign", err) }()
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	if in.GuestID == "" || in.ResourceID == "" {
		return nil, apperr.Validationf("guest_id and resource_id are required")
	}
	now := s.now()
	as := &model.Assignment{GuestID: in.GuestID, ResourceID: &in.ResourceID, StartDate: dateOf(now),
		StartTime: in.StartTime, EndDate: in.EndDate, EndTime: in.EndTime,
		Location: trimmed(in.Location), Remarks: trimmed(in.Remarks), Status: k.spec.ActiveStatus}
	if in.StartDate != nil {
		if as.StartDate, err = parseDate("start_date", *in.StartDate); err != nil {
			return nil, err
		}
	}
	if err := optClock("start_time", as.StartTime); err != nil {
		return nil, err
	}
	if err := optDate("end_date", as.EndDate); err != nil {
		return nil, err
	}
	if err := optClock("end_time", as.EndTime); err != nil {
		return nil, err
	}
	if k.spec.AutoExpire {
		if as.EndDate == nil {
			d := as.StartDate
			as.EndDate = &d
		}
		if as.EndTime == nil {
			t := "23:59:59"
			as.EndTime = &t
		}
	}
	if err := s.validateWindow(as); err != nil {
		return nil, err
	}

	var guest *model.Guest
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := s.lockGuest(ctx, tx, in.GuestID)
		if err != nil {
			return err
		}
		guest = g

		active, err := lockResource(ctx, tx, k, in.ResourceID)
		if err != nil {
			return err
		}

		var pending *model.Assignment
		cur, err := k.repo.LockActiveByGuestTx(ctx, tx, in.GuestID)
		switch {
		case err == nil && pendingRequest(k, cur):
			pending = cur
		case err == nil:
			return apperr.Conflictf("guest %s already has an active %s assignment %s", in.GuestID, k.spec.Label, cur.AssignmentID)
		case !repository.IsNoRows(err):
			return fmt.Errorf("load guest %s assignment: %w", k.spec.Label, err)
		}

		if !active {
			return apperr.NotFoundf("%s %s not found", k.spec.Label, in.ResourceID)
		}
		if _, err := claim(ctx, tx, k, in.ResourceID); err != nil {
			return err
		}

		if pending != nil {
			as.AssignmentID = pending.AssignmentID
			as.InsertedAt = pending.InsertedAt
			as.Location = pick(pending.Location, as.Location)
			as.Remarks = pick(pending.Remarks, as.Remarks)
			if err := k.repo.UpdateTx(ctx, tx, as, a); err != nil {
				return fmt.Errorf("fulfil %s request: %w", k.spec.Label, err)
			}
			as.IsActive, as.Kind = true, k.spec.Kind
		} else {
			if as.AssignmentID, err = s.Seq.NextTx(ctx, tx, k.spec.Prefix); err != nil {
				return err
			}
			if err := k.repo.InsertTx(ctx, tx, as, a); err != nil {
				return fmt.Errorf("insert %s assignment: %w", k.spec.Label, err)
			}
		}
		if err := settle(ctx, tx, k, in.ResourceID, a); err != nil {
			return err
		}
		return s.Activity.AppendTx(ctx, tx, k.spec.Kind, "assign", as.AssignmentID,
			fmt.Sprintf("%s %s assigned to %s", k.spec.Label, in.ResourceID, in.GuestID), a)
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("resource assigned", zap.String("kind", kind), zap.String("assignment_id", as.AssignmentID),
		zap.String("guest_id", as.GuestID), zap.String("resource_id", in.ResourceID))
	s.notifyGuest(ctx, queue.EventResourceAssigned, guest.Email, guest.Mobile, "Assignment update",
		fmt.Sprintf("Dear %s, a %s has been assigned to you from %s.", guest.GuestName, k.spec.Label, as.StartDate),
		map[string]string{"kind": kind, "assignment_id": as.AssignmentID, "resource_id": in.ResourceID})
	return as, nil
}

// Request opens a pending row without a resource. Only kinds with a
// pending status accept requests.
func (s *AssignmentService) Request(ctx context.Context, kind string, in RequestInput, a model.Actor) (out *model.Assignment, err error) {
	defer func() { s.Metrics.ObserveAssignment(kind, "request", err) }()
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	if k.spec.PendingStatus == "" {
		return nil, apperr.Validationf("%s assignments cannot be requested", k.spec.Label)
	}
	if in.GuestID == "" {
		return nil, apperr.Validationf("guest_id is required")
	}
	as := &model.Assignment{GuestID: in.GuestID, StartDate: dateOf(s.now()), Location: trimmed(in.Location),
		Remarks: trimmed(in.Remarks), Status: k.spec.PendingStatus}
	if in.StartDate != nil {
		if as.StartDate, err = parseDate("start_date", *in.StartDate); err != nil {
			return nil, err
		}
	}
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.lockGuest(ctx, tx, in.GuestID); err != nil {
			return err
		}
		cur, err := k.repo.LockActiveByGuestTx(ctx, tx, in.GuestID)
		if err == nil {
			return apperr.Conflictf("guest %s already has an active %s assignment %s", in.GuestID, k.spec.Label, cur.AssignmentID)
		}
		if !repository.IsNoRows(err) {
			return fmt.Errorf("load guest %s assignment: %w", k.spec.Label, err)
		}
		if as.AssignmentID, err = s.Seq.NextTx(ctx, tx, k.spec.Prefix); err != nil {
			return err
		}
		if err := k.repo.InsertTx(ctx, tx, as, a); err != nil {
			return fmt.Errorf("insert %s request: %w", k.spec.Label, err)
		}
		return s.Activity.AppendTx(ctx, tx, k.spec.Kind, "request", as.AssignmentID,
			k.spec.Label+" requested for "+in.GuestID, a)
	})
	if err != nil {
		return nil, err
	}
	return as, nil
}

func (s *AssignmentService) Get(ctx context.Context, kind, id string) (*model.Assignment, error) {
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	as, err := k.repo.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, k.spec.Label+" assignment", id)
	}
	return as, nil
}

func (s *AssignmentService) ListByGuest(ctx context.Context, kind, guestID string) ([]model.Assignment, error) {
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	return k.repo.ListByGuest(ctx, guestID)
}

// lockWithResources locks the resources in ids (sorted, blanks skipped)
// and then the assignment row. seen is the resource of the row as read
// before locking; a row whose resource moved meanwhile is a conflict.
func (s *AssignmentService) lockWithResources(ctx context.Context, tx *sql.Tx, k resourceKind, id string, seen *string, ids ...string) (map[string]bool, *model.Assignment, error) {
	sort.Strings(ids)
	active := map[string]bool{}
	for _, rid := range ids {
		if rid == "" {
			continue
		}
		if _, done := active[rid]; done {
			continue
		}
		ok, err := lockResource(ctx, tx, k, rid)
		if err != nil {
			return nil, nil, err
		}
		active[rid] = ok
	}
	as, err := k.repo.LockTx(ctx, tx, id)
	if err != nil {
		return nil, nil, notFound(err, k.spec.Label+" assignment", id)
	}
	if !as.IsActive {
		return nil, nil, apperr.Conflictf("%s assignment %s is already closed", k.spec.Label, id)
	}
	if deref(as.ResourceID) != deref(seen) {
		return nil, nil, apperr.Conflictf("%s assignment %s changed concurrently, retry", k.spec.Label, id)
	}
	return active, as, nil
}

// pendingRequest reports whether as is an unfulfilled request.
func pendingRequest(k resourceKind, as *model.Assignment) bool {
	return k.spec.PendingStatus != "" && as.Status == k.spec.PendingStatus && as.ResourceID == nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Close ends an active assignment now and frees its resource. For kinds
// with ReopenOnClose a pending successor row is opened in the same
// transaction, unless the closed row was that pending request.
func (s *AssignmentService) Close(ctx context.Context, kind, id string, in CloseInput, a model.Actor) (out *model.Assignment, err error) {
	defer func() { s.Metrics.ObserveAssignment(kind, "close", err) }()
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	peek, err := k.repo.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, k.spec.Label+" assignment", id)
	}

	var successor *model.Assignment
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		_, as, err := s.lockWithResources(ctx, tx, k, id, peek.ResourceID, deref(peek.ResourceID))
		if err != nil {
			return err
		}
		now := s.now()
		d, c := dateOf(now), clockOf(now)
		remarks := trimmed(in.Remarks)
		if err := k.repo.CloseTx(ctx, tx, id, k.spec.ClosedStatus, d, c, remarks, a); err != nil {
			return fmt.Errorf("close %s assignment: %w", k.spec.Label, err)
		}
		if as.ResourceID != nil {
			if err := settle(ctx, tx, k, *as.ResourceID, a); err != nil {
				return err
			}
		}
		wasPending := pendingRequest(k, as)
		as.IsActive, as.Status = false, k.spec.ClosedStatus
		as.EndDate, as.EndTime = &d, &c
		as.Remarks = pick(as.Remarks, remarks)
		out = as

		// closing the pending request itself ends the chain
		if k.spec.ReopenOnClose && !wasPending {
			successor = &model.Assignment{GuestID: as.GuestID, StartDate: d, Location: as.Location,
				Status: k.spec.PendingStatus}
			if successor.AssignmentID, err = s.Seq.NextTx(ctx, tx, k.spec.Prefix); err != nil {
				return err
			}
			if err := k.repo.InsertTx(ctx, tx, successor, a); err != nil {
				return fmt.Errorf("reopen %s request: %w", k.spec.Label, err)
			}
		}
		msg := k.spec.Label + " assignment closed"
		if successor != nil {
			msg += ", reopened as " + successor.AssignmentID
		}
		return s.Activity.AppendTx(ctx, tx, k.spec.Kind, "close", id, msg, a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update merges p over an active assignment. Moving it to another resource
// is checked like a new assignment.
func (s *AssignmentService) Update(ctx context.Context, kind, id string, p AssignmentPatch, a model.Actor) (out *model.Assignment, err error) {
	defer func() { s.Metrics.ObserveAssignment(kind, "update", err) }()
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	if err := optDate("start_date", p.StartDate); err != nil {
		return nil, err
	}
	if err := optClock("start_time", p.StartTime); err != nil {
		return nil, err
	}
	if err := optDate("end_date", p.EndDate); err != nil {
		return nil, err
	}
	if err := optClock("end_time", p.EndTime); err != nil {
		return nil, err
	}
	if p.ResourceID != nil && *p.ResourceID == "" {
		return nil, apperr.Validationf("resource_id must not be empty")
	}
	peek, err := k.repo.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, k.spec.Label+" assignment", id)
	}

	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		active, as, err := s.lockWithResources(ctx, tx, k, id, peek.ResourceID, deref(peek.ResourceID), deref(p.ResourceID))
		if err != nil {
			return err
		}
		old := deref(as.ResourceID)
		moved := p.ResourceID != nil && *p.ResourceID != old
		if moved {
			if !active[*p.ResourceID] {
				return apperr.NotFoundf("%s %s not found", k.spec.Label, *p.ResourceID)
			}
			if _, err := claim(ctx, tx, k, *p.ResourceID); err != nil {
				return err
			}
			as.ResourceID = p.ResourceID
			if k.spec.PendingStatus != "" && as.Status == k.spec.PendingStatus {
				as.Status = k.spec.ActiveStatus
			}
		}
		if p.StartDate != nil {
			as.StartDate = *p.StartDate
		}
		as.StartTime = pick(as.StartTime, p.StartTime)
		as.EndDate = pick(as.EndDate, p.EndDate)
		as.EndTime = pick(as.EndTime, p.EndTime)
		as.Location = pick(as.Location, p.Location)
		as.Remarks = pick(as.Remarks, p.Remarks)
		if err := s.validateWindow(as); err != nil {
			return err
		}
		if err := k.repo.UpdateTx(ctx, tx, as, a); err != nil {
			return fmt.Errorf("update %s assignment: %w", k.spec.Label, err)
		}
		if moved {
			if old != "" {
				if err := settle(ctx, tx, k, old, a); err != nil {
					return err
				}
			}
			if err := settle(ctx, tx, k, *as.ResourceID, a); err != nil {
				return err
			}
		}
		out = as
		return s.Activity.AppendTx(ctx, tx, k.spec.Kind, "update", id, k.spec.Label+" assignment updated", a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveCountTx returns how many active rows of kind reference resourceID.
// The caller's transaction must hold the resource lock.
func (s *AssignmentService) ActiveCountTx(ctx context.Context, tx *sql.Tx, kind, resourceID string) (int, error) {
	k, err := s.kind(kind)
	if err != nil {
		return 0, err
	}
	return k.repo.LockActiveByResourceTx(ctx, tx, resourceID)
}
