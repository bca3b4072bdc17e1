package repository

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Column is one selected column of a table view. Key is the JSON name,
// Expr the SQL expression. Type is "" (string), "int" or "bool".
type Column struct {
	Key  string
	Expr string
	Type string
}

// TableSpec describes a paginated read model. Every SQL fragment comes from
// code; caller input only ever selects among them or binds as arguments.
type TableSpec struct {
	From          string
	Columns       []Column
	SearchColumns []string
	// SortColumns maps public sort keys to SQL expressions.
	SortColumns map[string]string
	DefaultSort string
	// Filters maps public filter names to expressions compared by equality.
	Filters map[string]string
	// DateColumn is the expression restricted by DateFrom/DateTo.
	DateColumn string
	// StatusColumn, when set, produces per-status counts.
	StatusColumn string
	// Where is always applied.
	Where string
	// Window is applied unless TableQuery.All is set.
	Window func(now time.Time) (string, []any)
}

// TableQuery is the caller-controlled part of a table request.
type TableQuery struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string
	SortOrder string
	Filters   map[string]string
	DateFrom  string
	DateTo    string
	All       bool
	Now       time.Time
	// Unpaged returns up to Limit rows from the first one; used by exports.
	Unpaged bool
}

// TableResult is the page of rows plus the total matching count.
type TableResult struct {
	Data       []map[string]any `json:"data"`
	TotalCount int64            `json:"totalCount"`
	Stats      map[string]int64 `json:"stats,omitempty"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxExportRows   = 10000
	// MaxPage keeps (Page-1)*Limit far from overflowing.
	MaxPage         = 1000000
)

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Normalize clamps paging values into their valid ranges.
func (q *TableQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Unpaged {
		if q.Limit <= 0 || q.Limit > MaxExportRows {
			q.Limit = MaxExportRows
		}
		q.Page = 1
		return
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
}

// TableRepo runs TableSpec queries.
type TableRepo struct{ db *sql.DB }

func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// BuildWhere renders the predicate shared by the data, count and stats
// queries.
func (s TableSpec) BuildWhere(q TableQuery) (string, []any) {
	where := []string{}
	args := []any{}
	if s.Where != "" {
		where = append(where, s.Where)
	}
	if s.Window != nil && !q.All {
		now := q.Now
		if now.IsZero() {
			now = time.Now()
		}
		w, wargs := s.Window(now)
		where = append(where, w)
		args = append(args, wargs...)
	}
	if term := strings.TrimSpace(q.Search); term != "" && len(s.SearchColumns) > 0 {
		ors := make([]string, 0, len(s.SearchColumns))
		like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		for _, c := range s.SearchColumns {
			ors = append(ors, "LOWER("+c+`) LIKE ? ESCAPE '\\'`)
			args = append(args, like)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}
	// deterministic order keeps argument positions stable
	for _, name := range sortedKeys(s.Filters) {
		v, ok := q.Filters[name]
		if !ok || v == "" {
			continue
		}
		where = append(where, s.Filters[name]+" = ?")
		args = append(args, v)
	}
	if s.DateColumn != "" {
		if q.DateFrom != "" {
			where = append(where, s.DateColumn+" >= ?")
			args = append(args, q.DateFrom)
		}
		if q.DateTo != "" {
			where = append(where, s.DateColumn+" <= ?")
			args = append(args, q.DateTo)
		}
	}
	if len(where) == 0 {
		return "1=1", args
	}
	return strings.Join(where, " AND "), args
}

// OrderBy resolves the sort through the whitelist. Unknown keys fall back
// to the default sort.
func (s TableSpec) OrderBy(q TableQuery) string {
	expr, ok := s.SortColumns[q.SortBy]
	if !ok {
		expr = s.DefaultSort
	}
	dir := "ASC"
	if strings.EqualFold(q.SortOrder, "desc") {
		dir = "DESC"
	}
	return expr + " " + dir
}

// Query returns one page of rows, the total count and, when the TableSpec has a
// status column, counts per status over the same predicate.
func (r *TableRepo) Query(ctx context.Context, s TableSpec, q TableQuery) (*TableResult, error) {
	q.Normalize()
	cond, args := s.BuildWhere(q)

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.From+" WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, err
	}

	exprs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		exprs[i] = c.Expr + " AS " + c.Key
	}
	dataSQL := "SELECT " + strings.Join(exprs, ", ") + " FROM " + s.From + " WHERE " + cond +
		" ORDER BY " + s.OrderBy(q) + " LIMIT ? OFFSET ?"
	dataArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)

	rows, err := r.db.QueryContext(ctx, dataSQL, dataArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := &TableResult{Data: make([]map[string]any, 0, q.Limit), TotalCount: total}
	for rows.Next() {
		vals := make([]sql.NullString, len(s.Columns))
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(s.Columns))
		for i, c := range s.Columns {
			m[c.Key] = convertCell(vals[i], c.Type)
		}
		out.Data = append(out.Data, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.StatusColumn != "" {
		stats, err := r.stats(ctx, s, cond, args)
		if err != nil {
			return nil, err
		}
		out.Stats = stats
	}
	return out, nil
}

func (r *TableRepo) stats(ctx context.Context, s TableSpec, cond string, args []any) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+s.StatusColumn+", COUNT(*) FROM "+s.From+" WHERE "+cond+
		" GROUP BY "+s.StatusColumn, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := map[string]int64{}
	for rows.Next() {
		var (
			status sql.NullString
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats[status.String] = n
	}
	return stats, rows.Err()
}

func convertCell(v sql.NullString, typ string) any {
	if !v.Valid {
		return nil
	}
	switch typ {
	case "int":
		if n, err := strconv.ParseInt(v.String, 10, 64); err == nil {
			return n
		}
	case "bool":
		return v.String == "1" || strings.EqualFold(v.String, "true")
	}
	return v.String
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
