package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/database"
	"github.com/iliyamo/guesthouse-admin/internal/model"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

type masterKind struct {
	spec MasterSpec
	repo *repository.MasterRepo
}

// MasterService is generic CRUD over the master tables. Staff-backed
// masters keep their person fields in m_staff; deleting one deactivates
// the staff row too.
type MasterService struct {
	Deps
	Assignments *AssignmentService
	kinds       map[string]masterKind
}

func NewMasterService(d Deps, db *sql.DB, assignments *AssignmentService, specs map[string]MasterSpec) *MasterService {
	s := &MasterService{Deps: d, Assignments: assignments, kinds: map[string]masterKind{}}
	for k, spec := range specs {
		s.kinds[k] = masterKind{spec: spec, repo: repository.NewMasterRepo(db, spec.MasterTable)}
	}
	return s
}

func (s *MasterService) Kinds() []string {
	out := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *MasterService) kind(name string) (masterKind, error) {
	k, ok := s.kinds[name]
	if !ok {
		return masterKind{}, apperr.NotFoundf("unknown master %q", name)
	}
	return k, nil
}

// clean checks field names against the whitelist, trims values and
// splits them into master and staff columns.
func clean(spec MasterSpec, in map[string]*string) (own, staff map[string]*string, err error) {
	writable := map[string]bool{}
	for _, c := range spec.Columns {
		writable[c] = true
	}
	for _, c := range spec.ReadOnly {
		delete(writable, c)
	}
	isStaff := map[string]bool{}
	if spec.StaffBacked {
		for _, c := range repository.StaffColumns {
			isStaff[c] = true
		}
	}
	own, staff = map[string]*string{}, map[string]*string{}
	for name, v := range in {
		switch {
		case writable[name]:
			own[name] = trimmed(v)
		case isStaff[name]:
			staff[name] = trimmed(v)
		default:
			return nil, nil, apperr.Validationf("unknown or read-only field %q for %s", name, spec.Label)
		}
	}
	return own, staff, nil
}

func field(own, staff map[string]*string, name string) (*string, bool) {
	if v, ok := own[name]; ok {
		return v, true
	}
	v, ok := staff[name]
	return v, ok
}

func (s *MasterService) Create(ctx context.Context, kind string, in map[string]*string, a model.Actor) (*model.Master, error) {
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	own, staff, err := clean(k.spec, in)
	if err != nil {
		return nil, err
	}
	for _, r := range k.spec.Required {
		if v, _ := field(own, staff, r); v == nil {
			return nil, apperr.Validationf("%s is required", r)
		}
	}

	var out *model.Master
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		var staffID *string
		if k.spec.StaffBacked {
			sid, err := s.Seq.NextTx(ctx, tx, repository.PrefixStaff)
			if err != nil {
				return err
			}
			if err := k.repo.InsertStaffTx(ctx, tx, sid, staff, a); err != nil {
				return fmt.Errorf("insert staff: %w", err)
			}
			staffID = &sid
		}
		id, err := s.Seq.NextTx(ctx, tx, k.spec.Prefix)
		if err != nil {
			return err
		}
		if err := k.repo.CreateTx(ctx, tx, id, staffID, own, a); err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.Conflictf("%s already exists", k.spec.Label)
			}
			return fmt.Errorf("insert %s: %w", k.spec.Label, err)
		}
		if out, err = k.repo.LockTx(ctx, tx, id); err != nil {
			return fmt.Errorf("reload %s: %w", k.spec.Label, err)
		}
		return s.Activity.AppendTx(ctx, tx, "master", "create", id, k.spec.Label+" created", a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MasterService) Get(ctx context.Context, kind, id string) (*model.Master, error) {
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	m, err := k.repo.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, k.spec.Label, id)
	}
	return m, nil
}

func (s *MasterService) List(ctx context.Context, kind string, all bool) ([]model.Master, error) {
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	return k.repo.List(ctx, all)
}

func (s *MasterService) lockActive(ctx context.Context, tx *sql.Tx, k masterKind, id string) (*model.Master, error) {
	m, err := k.repo.LockTx(ctx, tx, id)
	if err != nil {
		return nil, notFound(err, k.spec.Label, id)
	}
	if !m.IsActive {
		return nil, apperr.NotFoundf("%s %s not found", k.spec.Label, id)
	}
	return m, nil
}

// Update sets the provided fields; fields not present are kept.
func (s *MasterService) Update(ctx context.Context, kind, id string, in map[string]*string, a model.Actor) (*model.Master, error) {
	k, err := s.kind(kind)
	if err != nil {
		return nil, err
	}
	own, staff, err := clean(k.spec, in)
	if err != nil {
		return nil, err
	}
	for _, r := range k.spec.Required {
		if v, ok := field(own, staff, r); ok && v == nil {
			return nil, apperr.Validationf("%s must not be empty", r)
		}
	}

	var out *model.Master
	err = s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		m, err := s.lockActive(ctx, tx, k, id)
		if err != nil {
			return err
		}
		if err := k.repo.UpdateTx(ctx, tx, id, own, a); err != nil {
			if database.IsDuplicateKey(err) {
				return apperr.Conflictf("%s already exists", k.spec.Label)
			}
			return fmt.Errorf("update %s: %w", k.spec.Label, err)
		}
		if k.spec.StaffBacked && m.StaffID != nil && len(staff) > 0 {
			if err := k.repo.UpdateStaffTx(ctx, tx, *m.StaffID, staff, a); err != nil {
				return fmt.Errorf("update staff: %w", err)
			}
		}
		if out, err = k.repo.LockTx(ctx, tx, id); err != nil {
			return fmt.Errorf("reload %s: %w", k.spec.Label, err)
		}
		return s.Activity.AppendTx(ctx, tx, "master", "update", id,
			k.spec.Label+" updated: "+strings.Join(sortedNames(in), ", "), a)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete soft deletes the master. An assignable resource with active
// assignments is kept.
func (s *MasterService) Delete(ctx context.Context, kind, id string, a model.Actor) error {
	k, err := s.kind(kind)
	if err != nil {
		return err
	}
	return s.Gateway.WithTx(ctx, func(tx *sql.Tx) error {
		m, err := s.lockActive(ctx, tx, k, id)
		if err != nil {
			return err
		}
		if k.spec.AssignmentKind != "" && s.Assignments != nil {
			n, err := s.Assignments.ActiveCountTx(ctx, tx, k.spec.AssignmentKind, id)
			if err != nil {
				return fmt.Errorf("count assignments: %w", err)
			}
			if n > 0 {
				return apperr.Conflictf("%s %s has %d active assignment(s)", k.spec.Label, id, n)
			}
		}
		if err := k.repo.DeactivateTx(ctx, tx, id, a); err != nil {
			return fmt.Errorf("deactivate %s: %w", k.spec.Label, err)
		}
		if k.spec.StaffBacked && m.StaffID != nil {
			if err := k.repo.DeactivateStaffTx(ctx, tx, *m.StaffID, a); err != nil {
				return fmt.Errorf("deactivate staff: %w", err)
			}
		}
		return s.Activity.AppendTx(ctx, tx, "master", "delete", id, k.spec.Label+" deactivated", a)
	})
}

func sortedNames(m map[string]*string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
