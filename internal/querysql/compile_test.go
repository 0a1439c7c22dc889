package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/ir"
)

func TestCompile_GoldenSQL(t *testing.T) {
	compiler := NewSQLCompiler()

	testCases := []struct {
		name       string
		query      Query
		wantSQL    string
		wantParams []any
	}{
		{
			name:    "all columns",
			query:   Query{From: Runs},
			wantSQL: "SELECT id, scene, scene_hash, backend, step_time, substeps, engine_version, ir_version FROM runs ORDER BY id COLLATE BINARY ASC",
		},
		{
			name: "frames by step range",
			query: Query{
				From:    Frames,
				Columns: []string{"step", "state_hash"},
				Filter: And{Predicates: []Predicate{
					Compare{Field: "step", Op: OpGe, Value: int64(10)},
					Compare{Field: "step", Op: OpLt, Value: int64(20)},
				}},
			},
			wantSQL:    "SELECT step, state_hash FROM frames WHERE step >= ? AND step < ? ORDER BY run_id COLLATE BINARY ASC, step ASC",
			wantParams: []any{int64(10), int64(20)},
		},
		{
			name: "samples of one actor with limit",
			query: Query{
				From:    Samples,
				Columns: []string{"step", "particle", "py"},
				Filter:  Equals{Field: "actor", Value: ir.IRString("rope")},
				Limit:   5,
			},
			wantSQL:    "SELECT step, particle, py FROM samples WHERE actor = ? ORDER BY run_id COLLATE BINARY ASC, step ASC, actor COLLATE BINARY ASC, particle ASC LIMIT ?",
			wantParams: []any{"rope", 5},
		},
		{
			name:       "events by kind",
			query:      Query{From: Events, Columns: []string{"seq", "detail"}, Filter: &Equals{Field: "kind", Value: ir.IRString("pin_broken")}},
			wantSQL:    "SELECT seq, detail FROM events WHERE kind = ? ORDER BY run_id COLLATE BINARY ASC, seq ASC",
			wantParams: []any{"pin_broken"},
		},
		{
			name:    "null match",
			query:   Query{From: Events, Columns: []string{"seq"}, Filter: Equals{Field: "actor", Value: ir.IRNull{}}},
			wantSQL: "SELECT seq FROM events WHERE actor IS NULL ORDER BY run_id COLLATE BINARY ASC, seq ASC",
		},
		{
			name:    "empty and",
			query:   Query{From: Frames, Columns: []string{"step"}, Filter: And{}},
			wantSQL: "SELECT step FROM frames WHERE 1 = 1 ORDER BY run_id COLLATE BINARY ASC, step ASC",
		},
		{
			name: "nested and",
			query: Query{From: Frames, Columns: []string{"step"}, Filter: And{Predicates: []Predicate{
				And{Predicates: []Predicate{Equals{Field: "contacts", Value: ir.IRInt(0)}, Compare{Field: "kinetic_energy", Op: OpGt, Value: 0.5}}},
				Compare{Field: "state_hash", Op: OpNe, Value: "x"},
			}}},
			wantSQL:    "SELECT step FROM frames WHERE (contacts = ? AND kinetic_energy > ?) AND state_hash != ? ORDER BY run_id COLLATE BINARY ASC, step ASC",
			wantParams: []any{int64(0), 0.5, "x"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sql, params, err := compiler.Compile(tc.query)
			require.NoError(t, err)

			assert.Equal(t, tc.wantSQL, sql, "SQL mismatch")
			assert.Equal(t, tc.wantParams, params, "Parameters mismatch")
		})
	}
}

func TestCompile_RunScope(t *testing.T) {
	compiler := &SQLCompiler{RunID: "run-1"}

	sql, params, err := compiler.Compile(Query{
		From:    Frames,
		Columns: []string{"step"},
		Filter:  Compare{Field: "step", Op: OpGt, Value: int64(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT step FROM frames WHERE run_id = ? AND step > ? ORDER BY run_id COLLATE BINARY ASC, step ASC", sql)
	assert.Equal(t, []any{"run-1", int64(3)}, params)

	// The runs table has no run_id column and is never scoped.
	sql, params, err = compiler.Compile(Query{From: Runs, Columns: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM runs ORDER BY id COLLATE BINARY ASC", sql)
	assert.Empty(t, params)
}

func TestCompile_OrderByMandatory(t *testing.T) {
	compiler := NewSQLCompiler()
	for _, table := range []Table{Runs, Frames, Samples, Events} {
		t.Run(string(table), func(t *testing.T) {
			sql, _, err := compiler.Compile(Query{From: table})
			require.NoError(t, err)
			assert.Contains(t, sql, " ORDER BY ")
			assert.Contains(t, sql, "COLLATE BINARY")
		})
	}
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	compiler := NewSQLCompiler()
	dangerousValue := "'; DROP TABLE frames; --"

	sql, params, err := compiler.Compile(Query{
		From:   Events,
		Filter: Equals{Field: "actor", Value: ir.IRString(dangerousValue)},
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{dangerousValue}, params)
}

func TestCompile_RejectsUnknownNames(t *testing.T) {
	compiler := NewSQLCompiler()

	testCases := []struct {
		name    string
		query   Query
		wantErr string
	}{
		{"table", Query{From: "sqlite_master"}, `unknown table "sqlite_master"`},
		{"column", Query{From: Frames, Columns: []string{"step; DROP TABLE runs"}}, "unknown column"},
		{"filter field", Query{From: Frames, Filter: Equals{Field: "1=1 OR step", Value: ir.IRInt(1)}}, "unknown column"},
		{"compare field", Query{From: Frames, Filter: Compare{Field: "actor", Op: OpGt, Value: int64(1)}}, `unknown column "actor"`},
		{"operator", Query{From: Frames, Filter: Compare{Field: "step", Op: "LIKE", Value: "x"}}, `unknown operator "LIKE"`},
		{"compare value", Query{From: Frames, Filter: Compare{Field: "step", Op: OpGt, Value: []int{1}}}, "unsupported comparison value type"},
		{"array value", Query{From: Frames, Filter: Equals{Field: "step", Value: ir.IRArray{}}}, "IRArray cannot be used"},
		{"object value", Query{From: Frames, Filter: Equals{Field: "step", Value: ir.IRObject{}}}, "IRObject cannot be used"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := compiler.Compile(tc.query)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable("samples")
	require.NoError(t, err)
	assert.Equal(t, Samples, table)

	_, err = ParseTable("invocations")
	assert.Error(t, err)

	cols := Columns(Frames)
	cols[0] = "mutated"
	assert.Equal(t, "run_id", Columns(Frames)[0])
}

func TestIRValueToParam(t *testing.T) {
	testCases := []struct {
		value ir.IRValue
		want  any
	}{
		{ir.IRString("a"), "a"},
		{ir.IRInt(-3), int64(-3)},
		{ir.IRBool(true), true},
		{ir.IRNull{}, nil},
	}
	for _, tc := range testCases {
		got, err := irValueToParam(tc.value)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}
