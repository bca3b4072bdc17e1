package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/guesthouse-admin/internal/apperr"
	"github.com/iliyamo/guesthouse-admin/internal/export"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

// activeWindow is the default guest-list predicate: upcoming visits,
// guests on the premises, and guests who left less than 24 hours ago.
func activeWindow(now time.Time) (string, []any) {
	return `((io.status = 'Scheduled' AND io.entry_date >= ?)
		OR io.status IN ('Entered', 'Inside')
		OR (io.status = 'Exited' AND io.exit_date IS NOT NULL
			AND TIMESTAMP(io.exit_date, COALESCE(io.exit_time, '00:00:00')) >= ?))`,
		[]any{dateOf(now), now.Add(-activeExitWindow).Format(dateLayout + " " + timeLayout)}
}

var guestView = repository.TableSpec{
	From: `m_guest g
		JOIN t_guest_inout io ON io.guest_id = g.guest_id AND io.is_active = 1
		LEFT JOIN t_guest_designation d ON d.guest_id = g.guest_id AND d.is_current = 1 AND d.is_active = 1
		LEFT JOIN m_rooms r ON r.room_id = io.room_id`,
	Columns: []repository.Column{
		{Key: "guest_id", Expr: "g.guest_id"},
		{Key: "guest_name", Expr: "g.guest_name"},
		{Key: "mobile", Expr: "g.mobile"},
		{Key: "email", Expr: "g.email"},
		{Key: "designation", Expr: "d.designation"},
		{Key: "organization", Expr: "d.organization"},
		{Key: "inout_id", Expr: "io.inout_id"},
		{Key: "status", Expr: "io.status"},
		{Key: "entry_date", Expr: "DATE_FORMAT(io.entry_date, '%Y-%m-%d')"},
		{Key: "entry_time", Expr: "TIME_FORMAT(io.entry_time, '%H:%i:%s')"},
		{Key: "exit_date", Expr: "DATE_FORMAT(io.exit_date, '%Y-%m-%d')"},
		{Key: "exit_time", Expr: "TIME_FORMAT(io.exit_time, '%H:%i:%s')"},
		{Key: "room_no", Expr: "r.room_no"},
		{Key: "companions", Expr: "io.companions", Type: "int"},
		{Key: "requires_driver", Expr: "io.requires_driver", Type: "bool"},
	},
	SearchColumns: []string{"g.guest_name", "g.mobile", "g.email", "d.designation", "d.organization", "r.room_no"},
	SortColumns: map[string]string{
		"guest_id":   "g.guest_id",
		"guest_name": "g.guest_name",
		"status":     "io.status",
		"entry_date": "io.entry_date",
		"exit_date":  "io.exit_date",
	},
	DefaultSort:  "io.entry_date",
	Filters:      map[string]string{"status": "io.status", "room_id": "io.room_id"},
	DateColumn:   "io.entry_date",
	StatusColumn: "io.status",
	Where:        "g.is_active = 1",
	Window:       activeWindow,
}

var roomView = repository.TableSpec{
	From: `m_rooms r
		LEFT JOIN t_guest_room gr ON gr.room_id = r.room_id AND gr.is_active = 1
		LEFT JOIN m_guest g ON g.guest_id = gr.guest_id`,
	Columns: []repository.Column{
		{Key: "room_id", Expr: "r.room_id"},
		{Key: "room_no", Expr: "r.room_no"},
		{Key: "room_name", Expr: "r.room_name"},
		{Key: "building_name", Expr: "r.building_name"},
		{Key: "room_type", Expr: "r.room_type"},
		{Key: "capacity", Expr: "r.capacity", Type: "int"},
		{Key: "status", Expr: "r.status"},
		{Key: "guest_id", Expr: "g.guest_id"},
		{Key: "guest_name", Expr: "g.guest_name"},
	},
	SearchColumns: []string{"r.room_no", "r.room_name", "r.building_name", "g.guest_name"},
	SortColumns: map[string]string{
		"room_no":       "r.room_no",
		"building_name": "r.building_name",
		"status":        "r.status",
	},
	DefaultSort:  "r.room_no",
	Filters:      map[string]string{"status": "r.status", "room_type": "r.room_type", "building_name": "r.building_name"},
	StatusColumn: "r.status",
	Where:        "r.is_active = 1",
}

var guestRoomView = repository.TableSpec{
	From: `t_guest_room gr
		JOIN m_guest g ON g.guest_id = gr.guest_id
		JOIN m_rooms r ON r.room_id = gr.room_id`,
	Columns: []repository.Column{
		{Key: "guest_room_id", Expr: "gr.guest_room_id"},
		{Key: "guest_id", Expr: "g.guest_id"},
		{Key: "guest_name", Expr: "g.guest_name"},
		{Key: "room_id", Expr: "r.room_id"},
		{Key: "room_no", Expr: "r.room_no"},
		{Key: "check_in_date", Expr: "DATE_FORMAT(gr.check_in_date, '%Y-%m-%d')"},
		{Key: "check_in_time", Expr: "TIME_FORMAT(gr.check_in_time, '%H:%i:%s')"},
		{Key: "check_out_date", Expr: "DATE_FORMAT(gr.check_out_date, '%Y-%m-%d')"},
		{Key: "check_out_time", Expr: "TIME_FORMAT(gr.check_out_time, '%H:%i:%s')"},
		{Key: "action_type", Expr: "gr.action_type"},
		{Key: "is_active", Expr: "gr.is_active", Type: "bool"},
	},
	SearchColumns: []string{"g.guest_name", "r.room_no", "gr.action_type"},
	SortColumns: map[string]string{
		"guest_name":    "g.guest_name",
		"room_no":       "r.room_no",
		"check_in_date": "gr.check_in_date",
	},
	DefaultSort: "gr.check_in_date",
	Filters:     map[string]string{"guest_id": "gr.guest_id", "room_id": "gr.room_id", "action_type": "gr.action_type", "is_active": "gr.is_active"},
	DateColumn:  "gr.check_in_date",
}

var activityView = repository.TableSpec{
	From: `t_activity_log a LEFT JOIN m_user u ON u.user_id = a.performed_by`,
	Columns: []repository.Column{
		{Key: "activity_id", Expr: "a.activity_id"},
		{Key: "module", Expr: "a.module"},
		{Key: "action", Expr: "a.action"},
		{Key: "reference_id", Expr: "a.reference_id"},
		{Key: "message", Expr: "a.message"},
		{Key: "performed_by", Expr: "a.performed_by"},
		{Key: "username", Expr: "u.username"},
		{Key: "ip", Expr: "a.ip"},
		{Key: "inserted_at", Expr: "DATE_FORMAT(a.inserted_at, '%Y-%m-%d %H:%i:%s')"},
	},
	SearchColumns: []string{"a.message", "a.reference_id", "u.username"},
	SortColumns: map[string]string{
		"inserted_at": "a.inserted_at",
		"module":      "a.module",
		"action":      "a.action",
	},
	DefaultSort: "a.inserted_at",
	Filters:     map[string]string{"module": "a.module", "action": "a.action", "performed_by": "a.performed_by"},
	DateColumn:  "DATE(a.inserted_at)",
}

var userView = repository.TableSpec{
	From: `m_user u LEFT JOIN m_role r ON r.role_id = u.role_id`,
	Columns: []repository.Column{
		{Key: "user_id", Expr: "u.user_id"},
		{Key: "username", Expr: "u.username"},
		{Key: "full_name", Expr: "u.full_name"},
		{Key: "email", Expr: "u.email"},
		{Key: "mobile", Expr: "u.mobile"},
		{Key: "role_name", Expr: "r.role_name"},
		{Key: "is_active", Expr: "u.is_active", Type: "bool"},
	},
	SearchColumns: []string{"u.username", "u.full_name", "u.email", "r.role_name"},
	SortColumns: map[string]string{
		"username":  "u.username",
		"full_name": "u.full_name",
		"role_name": "r.role_name",
	},
	DefaultSort: "u.user_id",
	Filters:     map[string]string{"role_id": "u.role_id", "is_active": "u.is_active"},
}

// assignmentView builds the table for one assignment kind. The resource
// name comes from m_staff or from the resource's own name column.
func assignmentView(spec ResourceSpec) repository.TableSpec {
	from := spec.Table + ` x
		JOIN m_guest g ON g.guest_id = x.guest_id
		LEFT JOIN ` + spec.ResourceTable + ` res ON res.` + spec.ResourceIDColumn + ` = x.resource_id`
	name := "NULL"
	switch {
	case spec.StaffBacked:
		from += ` LEFT JOIN m_staff s ON s.staff_id = res.staff_id`
		name = "s.full_name"
	case spec.NameColumn != "":
		name = "res." + spec.NameColumn
	}
	search := []string{"g.guest_name", "x.location", "x.remarks"}
	if name != "NULL" {
		search = append(search, name)
	}
	return repository.TableSpec{
		From: from,
		Columns: []repository.Column{
			{Key: "assignment_id", Expr: "x." + spec.IDColumn},
			{Key: "guest_id", Expr: "g.guest_id"},
			{Key: "guest_name", Expr: "g.guest_name"},
			{Key: "resource_id", Expr: "x.resource_id"},
			{Key: "resource_name", Expr: name},
			{Key: "start_date", Expr: "DATE_FORMAT(x.start_date, '%Y-%m-%d')"},
			{Key: "start_time", Expr: "TIME_FORMAT(x.start_time, '%H:%i:%s')"},
			{Key: "end_date", Expr: "DATE_FORMAT(x.end_date, '%Y-%m-%d')"},
			{Key: "end_time", Expr: "TIME_FORMAT(x.end_time, '%H:%i:%s')"},
			{Key: "location", Expr: "x.location"},
			{Key: "status", Expr: "x.status"},
			{Key: "is_active", Expr: "x.is_active", Type: "bool"},
		},
		SearchColumns: search,
		SortColumns: map[string]string{
			"guest_name": "g.guest_name",
			"start_date": "x.start_date",
			"status":     "x.status",
		},
		DefaultSort:  "x.start_date",
		Filters:      map[string]string{"status": "x.status", "guest_id": "x.guest_id", "resource_id": "x.resource_id", "is_active": "x.is_active"},
		DateColumn:   "x.start_date",
		StatusColumn: "x.status",
	}
}

// ReportService serves the paginated table views and their exports.
type ReportService struct {
	Deps
	Tables *repository.TableRepo
	views  map[string]repository.TableSpec
	titles map[string]string
}

func NewReportService(d Deps, tables *repository.TableRepo, specs map[string]ResourceSpec) *ReportService {
	s := &ReportService{
		Deps:   d,
		Tables: tables,
		views: map[string]repository.TableSpec{
			"guests":      guestView,
			"rooms":       roomView,
			"guest-rooms": guestRoomView,
			"activity":    activityView,
			"users":       userView,
		},
		titles: map[string]string{
			"guests":      "Guests",
			"rooms":       "Rooms",
			"guest-rooms": "Room Allocations",
			"activity":    "Activity Log",
			"users":       "Users",
		},
	}
	for kind, spec := range specs {
		key := "assignments/" + kind
		s.views[key] = assignmentView(spec)
		s.titles[key] = strings.ToUpper(spec.Label[:1]) + spec.Label[1:] + " Assignments"
	}
	return s
}

// Views lists the view names accepted by Query and Export.
func (s *ReportService) Views() []string {
	out := make([]string, 0, len(s.views))
	for k := range s.views {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *ReportService) view(name string) (repository.TableSpec, error) {
	v, ok := s.views[name]
	if !ok {
		return repository.TableSpec{}, apperr.NotFoundf("unknown report %q", name)
	}
	return v, nil
}

func (s *ReportService) prepare(q *repository.TableQuery) error {
	if err := optDate("dateFrom", emptyNil(&q.DateFrom)); err != nil {
		return err
	}
	if err := optDate("dateTo", emptyNil(&q.DateTo)); err != nil {
		return err
	}
	if q.Now.IsZero() {
		q.Now = s.now()
	}
	return nil
}

// emptyNil returns nil for an empty string so optional parsing skips it.
func emptyNil(s *string) *string {
	if *s == "" {
		return nil
	}
	return s
}

// Query returns one page of the named view.
func (s *ReportService) Query(ctx context.Context, name string, q repository.TableQuery) (*repository.TableResult, error) {
	v, err := s.view(name)
	if err != nil {
		return nil, err
	}
	if err := s.prepare(&q); err != nil {
		return nil, err
	}
	res, err := s.Tables.Query(ctx, v, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	return res, nil
}

// Export renders every row matching q, up to MaxExportRows, as an xlsx
// workbook.
func (s *ReportService) Export(ctx context.Context, name string, q repository.TableQuery) ([]byte, string, error) {
	v, err := s.view(name)
	if err != nil {
		return nil, "", err
	}
	if err := s.prepare(&q); err != nil {
		return nil, "", err
	}
	q.Unpaged = true
	q.Limit = repository.MaxExportRows
	res, err := s.Tables.Query(ctx, v, q)
	if err != nil {
		return nil, "", fmt.Errorf("export %s: %w", name, err)
	}
	cols := make([]export.Column, len(v.Columns))
	for i, c := range v.Columns {
		cols[i] = export.Column{Key: c.Key, Title: columnTitle(c.Key)}
	}
	title := s.titles[name]
	b, err := export.XLSX(title, cols, res.Data)
	if err != nil {
		return nil, "", fmt.Errorf("render %s: %w", name, err)
	}
	file := strings.ReplaceAll(name, "/", "-") + "-" + q.Now.Format("20060102-1504") + ".xlsx"
	return b, file, nil
}

// columnTitle turns guest_name into "Guest Name".
func columnTitle(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "id" {
			parts[i] = "ID"
			continue
		}
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
