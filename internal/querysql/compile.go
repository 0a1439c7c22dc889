package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/xpbd/internal/ir"
)

// Table is a trace table.
type Table string

const (
	Runs    Table = "runs"
	Frames  Table = "frames"
	Samples Table = "samples"
	Events  Table = "events"
)

type tableSchema struct {
	columns []string
	// order is the logical key; text columns use COLLATE BINARY.
	order string
	// scoped tables carry a run_id column.
	scoped bool
}

var tables = map[Table]tableSchema{
	Runs: {
		columns: []string{"id", "scene", "scene_hash", "backend", "step_time", "substeps", "engine_version", "ir_version"},
		order:   "id COLLATE BINARY ASC",
	},
	Frames: {
		columns: []string{"run_id", "step", "state_hash", "particles", "contacts", "kinetic_energy"},
		order:   "run_id COLLATE BINARY ASC, step ASC",
		scoped:  true,
	},
	Samples: {
		columns: []string{"run_id", "step", "actor", "particle", "px", "py", "pz", "vx", "vy", "vz"},
		order:   "run_id COLLATE BINARY ASC, step ASC, actor COLLATE BINARY ASC, particle ASC",
		scoped:  true,
	},
	Events: {
		columns: []string{"run_id", "seq", "step", "kind", "actor", "detail"},
		order:   "run_id COLLATE BINARY ASC, seq ASC",
		scoped:  true,
	},
}

// ParseTable validates a table name.
func ParseTable(s string) (Table, error) {
	if _, ok := tables[Table(s)]; !ok {
		return "", fmt.Errorf("unknown table %q (want runs, frames, samples or events)", s)
	}
	return Table(s), nil
}

// Columns returns the columns of t in schema order.
func Columns(t Table) []string {
	return append([]string(nil), tables[t].columns...)
}

// Query selects rows of one table.
type Query struct {
	From Table
	// Columns to return, in order. Empty means every column.
	Columns []string
	Filter  Predicate
	// Limit caps the row count when positive.
	Limit int
}

// SQLCompiler compiles queries to parameterized SQL for SQLite.
//
// CRITICAL: every query ends in ORDER BY on the table's logical key.
// CRITICAL: values are parameterized, never interpolated.
type SQLCompiler struct {
	// RunID, when set, restricts queries on run-scoped tables to one run.
	RunID string
}

// NewSQLCompiler creates a compiler over all runs.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts q to SQL. Returns (sql, params, error).
func (c *SQLCompiler) Compile(q Query) (string, []any, error) {
	schema, ok := tables[q.From]
	if !ok {
		return "", nil, fmt.Errorf("unknown table %q", q.From)
	}

	cols := q.Columns
	if len(cols) == 0 {
		cols = schema.columns
	}
	for _, col := range cols {
		if !schema.has(col) {
			return "", nil, fmt.Errorf("unknown column %q in %s", col, q.From)
		}
	}

	var where []string
	var params []any
	if c.RunID != "" && schema.scoped {
		where = append(where, "run_id = ?")
		params = append(params, c.RunID)
	}
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(schema, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		where = append(where, filterSQL)
		params = append(params, filterParams...)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", strings.Join(cols, ", "), q.From)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY " + schema.order)
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}
	return sb.String(), params, nil
}

func (s tableSchema) has(col string) bool {
	for _, c := range s.columns {
		if c == col {
			return true
		}
	}
	return false
}

// compilePredicate compiles p to a WHERE fragment.
// CRITICAL: values are never interpolated.
func (c *SQLCompiler) compilePredicate(schema tableSchema, p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		return c.compileEquals(schema, pred)
	case *Equals:
		return c.compileEquals(schema, *pred)
	case Compare:
		return c.compileCompare(schema, pred)
	case *Compare:
		return c.compileCompare(schema, *pred)
	case And:
		return c.compileAnd(schema, pred)
	case *And:
		return c.compileAnd(schema, *pred)
	case nil:
		return "1 = 1", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(schema tableSchema, eq Equals) (string, []any, error) {
	if !schema.has(eq.Field) {
		return "", nil, fmt.Errorf("unknown column %q", eq.Field)
	}
	if _, ok := eq.Value.(ir.IRNull); ok {
		return eq.Field + " IS NULL", nil, nil
	}
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileCompare(schema tableSchema, cmp Compare) (string, []any, error) {
	if !schema.has(cmp.Field) {
		return "", nil, fmt.Errorf("unknown column %q", cmp.Field)
	}
	if !cmp.Op.valid() {
		return "", nil, fmt.Errorf("unknown operator %q", cmp.Op)
	}
	switch cmp.Value.(type) {
	case string, int64, float64:
	default:
		return "", nil, fmt.Errorf("unsupported comparison value type: %T", cmp.Value)
	}
	return fmt.Sprintf("%s %s ?", cmp.Field, cmp.Op), []any{cmp.Value}, nil
}

// compileAnd joins its predicates with AND. An empty And is true.
func (c *SQLCompiler) compileAnd(schema tableSchema, and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var parts []string
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := c.compilePredicate(schema, pred)
		if err != nil {
			return "", nil, err
		}
		if _, nested := pred.(And); nested && len(and.Predicates) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, " AND "), params, nil
}

// irValueToParam converts an ir.IRValue to a Go native type for SQL parameter.
// Supports string, int, bool. Arrays and objects are not directly supported
// as SQL parameters.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
