package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/guesthouse-admin/internal/model"
)

// StaffColumns are the m_staff columns exposed through every staff-backed
// master.
var StaffColumns = []string{"full_name", "mobile", "email", "designation"}

// MasterTable describes a master table. Columns is the whitelist of
// editable columns besides the id, staff_id and audit columns.
type MasterTable struct {
	Kind        string
	Table       string
	IDColumn    string
	Columns     []string
	StaffBacked bool
}

// MasterRepo is generic CRUD over one master table, optionally joined to
// its backing m_staff row.
type MasterRepo struct {
	db *sql.DB
	t  MasterTable
}

func NewMasterRepo(db *sql.DB, t MasterTable) *MasterRepo { return &MasterRepo{db: db, t: t} }

func (r *MasterRepo) Table() MasterTable { return r.t }

func (r *MasterRepo) selectSQL() string {
	cols := []string{"x." + r.t.IDColumn}
	if r.t.StaffBacked {
		cols = append(cols, "x.staff_id")
	} else {
		cols = append(cols, "NULL")
	}
	for _, c := range r.t.Columns {
		cols = append(cols, "CAST(x."+c+" AS CHAR)")
	}
	if r.t.StaffBacked {
		for _, c := range StaffColumns {
			cols = append(cols, "CAST(s."+c+" AS CHAR)")
		}
	}
	cols = append(cols, "x.is_active", "x.inserted_at", "x.updated_at")
	q := "SELECT " + strings.Join(cols, ", ") + " FROM " + r.t.Table + " x"
	if r.t.StaffBacked {
		q += " LEFT JOIN m_staff s ON s.staff_id = x.staff_id"
	}
	return q
}

func (r *MasterRepo) scan(s rowScanner) (*model.Master, error) {
	m := model.Master{Kind: r.t.Kind, Fields: map[string]*string{}}
	names := append([]string{}, r.t.Columns...)
	if r.t.StaffBacked {
		names = append(names, StaffColumns...)
	}
	vals := make([]*string, len(names))
	dest := []any{&m.ID, &m.StaffID}
	for i := range vals {
		dest = append(dest, &vals[i])
	}
	dest = append(dest, &m.IsActive, &m.InsertedAt, &m.UpdatedAt)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	for i, n := range names {
		m.Fields[n] = vals[i]
	}
	return &m, nil
}

func (r *MasterRepo) Get(ctx context.Context, id string) (*model.Master, error) {
	return r.scan(r.db.QueryRowContext(ctx, r.selectSQL()+" WHERE x."+r.t.IDColumn+" = ?", id))
}

func (r *MasterRepo) LockTx(ctx context.Context, tx *sql.Tx, id string) (*model.Master, error) {
	return r.scan(tx.QueryRowContext(ctx, r.selectSQL()+" WHERE x."+r.t.IDColumn+" = ?"+forUpdate, id))
}

func (r *MasterRepo) List(ctx context.Context, all bool) ([]model.Master, error) {
	q := r.selectSQL()
	if !all {
		q += " WHERE x.is_active = 1"
	}
	q += " ORDER BY x." + r.t.IDColumn
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Master{}
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// CreateTx inserts the master row. fields holds only whitelisted columns.
func (r *MasterRepo) CreateTx(ctx context.Context, tx *sql.Tx, id string, staffID *string, fields map[string]*string, a model.Actor) error {
	cols := []string{r.t.IDColumn}
	args := []any{id}
	if r.t.StaffBacked {
		cols = append(cols, "staff_id")
		args = append(args, staffID)
	}
	for _, c := range r.t.Columns {
		if v, ok := fields[c]; ok {
			cols = append(cols, c)
			args = append(args, v)
		}
	}
	cols = append(cols, "is_active", "inserted_by", "inserted_ip")
	args = append(args, 1, a.UserID, a.IP)
	q := "INSERT INTO " + r.t.Table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// UpdateTx sets the given whitelisted columns; other columns keep their
// values.
func (r *MasterRepo) UpdateTx(ctx context.Context, tx *sql.Tx, id string, fields map[string]*string, a model.Actor) error {
	return updateColumnsTx(ctx, tx, r.t.Table, r.t.IDColumn, id, r.t.Columns, fields, a)
}

func (r *MasterRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, "UPDATE "+r.t.Table+" SET is_active = 0, updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ? WHERE "+r.t.IDColumn+" = ?",
		a.UserID, a.IP, id)
	return err
}

// InsertStaffTx creates the m_staff row behind a staff-backed master.
func (r *MasterRepo) InsertStaffTx(ctx context.Context, tx *sql.Tx, staffID string, fields map[string]*string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO m_staff (staff_id, full_name, mobile, email, designation, is_active, inserted_by, inserted_ip)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		staffID, fields["full_name"], fields["mobile"], fields["email"], fields["designation"], a.UserID, a.IP)
	return err
}

func (r *MasterRepo) UpdateStaffTx(ctx context.Context, tx *sql.Tx, staffID string, fields map[string]*string, a model.Actor) error {
	return updateColumnsTx(ctx, tx, "m_staff", "staff_id", staffID, StaffColumns, fields, a)
}

func (r *MasterRepo) DeactivateStaffTx(ctx context.Context, tx *sql.Tx, staffID string, a model.Actor) error {
	_, err := tx.ExecContext(ctx, `UPDATE m_staff SET is_active = 0, updated_at = UTC_TIMESTAMP(), updated_by = ?, updated_ip = ?
		WHERE staff_id = ?`, a.UserID, a.IP, staffID)
	return err
}

func updateColumnsTx(ctx context.Context, tx *sql.Tx, table, idCol, id string, allowed []string, fields map[string]*string, a model.Actor) error {
	sets := []string{}
	args := []any{}
	for _, c := range allowed {
		if v, ok := fields[c]; ok {
			sets = append(sets, c+" = ?")
			args = append(args, v)
		}
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = UTC_TIMESTAMP()", "updated_by = ?", "updated_ip = ?")
	args = append(args, a.UserID, a.IP, id)
	_, err := tx.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE "+idCol+" = ?", args...)
	return err
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
