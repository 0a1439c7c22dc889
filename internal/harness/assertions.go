package harness

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/querysql"
	"github.com/roach88/xpbd/internal/store"
	"github.com/roach88/xpbd/internal/vmath"
)

// defaultTolerance applies when an assertion leaves Tolerance at zero.
const defaultTolerance = 1e-6

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] step %d %s", event.Seq, event.Step, event.Kind)
			if event.Actor != "" {
				fmt.Fprintf(&buf, " %s", event.Actor)
			}
			if event.Detail != "" {
				fmt.Fprintf(&buf, " %s", event.Detail)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

func tolerance(a Assertion) float64 {
	if a.Tolerance > 0 {
		return a.Tolerance
	}
	return defaultTolerance
}

// assertEventCount checks that Kind (of Actor, if set) occurs exactly Count
// times.
func assertEventCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind != assertion.Kind {
			continue
		}
		if assertion.Actor != "" && event.Actor != assertion.Actor {
			continue
		}
		count++
	}

	if count != assertion.Count {
		what := assertion.Kind
		if assertion.Actor != "" {
			what += " of " + assertion.Actor
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertEventOrder checks that the first event of each kind appears in the
// given order. Intervening events are allowed.
func assertEventOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Kind]; !seen {
			positions[event.Kind] = i + 1 // 1-indexed for readability
		}
	}

	for _, kind := range assertion.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all kinds present: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Kinds); i++ {
		prev := assertion.Kinds[i-1]
		curr := assertion.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertNoStepFailure(result *Result) error {
	if result.Failure == "" {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoStepFailure,
		Expected: "every step to complete",
		Actual:   fmt.Sprintf("step %d failed: %s", result.Steps+1, result.Failure),
		Trace:    result.Trace,
	}
}

// actorPositions returns the final positions of an attached actor.
func actorPositions(result *Result, typ, actor string) ([]ir.Vec3, error) {
	pos, ok := result.Positions[actor]
	if !ok {
		return nil, &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("actor %q attached at the end of the run", actor),
			Actual:   fmt.Sprintf("attached actors: %v", sortedKeys(result.Positions)),
		}
	}
	return pos, nil
}

func particleAt(typ string, pos []ir.Vec3, actor string, i int) (ir.Vec3, error) {
	if i < 0 || i >= len(pos) {
		return ir.Vec3{}, &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("particle %d of %s", i, actor),
			Actual:   fmt.Sprintf("%s has %d particles", actor, len(pos)),
		}
	}
	return pos[i], nil
}

func assertParticlePosition(result *Result, assertion Assertion) error {
	pos, err := actorPositions(result, AssertParticlePosition, assertion.Actor)
	if err != nil {
		return err
	}
	p, err := particleAt(AssertParticlePosition, pos, assertion.Actor, assertion.Particle)
	if err != nil {
		return err
	}
	want := vmath.Vec3{assertion.Position[0], assertion.Position[1], assertion.Position[2]}
	tol := tolerance(assertion)
	if d := vmath.Vec3(p).Sub(want).Len(); d > tol {
		return &AssertionError{
			Type:     AssertParticlePosition,
			Expected: fmt.Sprintf("%s[%d] within %g of %v", assertion.Actor, assertion.Particle, tol, assertion.Position),
			Actual:   fmt.Sprintf("%v (off by %g)", p, d),
		}
	}
	return nil
}

func assertDistance(result *Result, assertion Assertion) error {
	pos, err := actorPositions(result, AssertDistance, assertion.Actor)
	if err != nil {
		return err
	}
	a, err := particleAt(AssertDistance, pos, assertion.Actor, assertion.Particles[0])
	if err != nil {
		return err
	}
	b, err := particleAt(AssertDistance, pos, assertion.Actor, assertion.Particles[1])
	if err != nil {
		return err
	}
	d := vmath.Vec3(a).Sub(vmath.Vec3(b)).Len()
	tol := tolerance(assertion)
	if math.Abs(d-assertion.Value) > tol {
		return &AssertionError{
			Type: AssertDistance,
			Expected: fmt.Sprintf("|%s[%d] - %s[%d]| = %g ± %g", assertion.Actor, assertion.Particles[0],
				assertion.Actor, assertion.Particles[1], assertion.Value, tol),
			Actual: fmt.Sprintf("%g", d),
		}
	}
	return nil
}

func assertWithinBounds(result *Result, assertion Assertion) error {
	pos, err := actorPositions(result, AssertWithinBounds, assertion.Actor)
	if err != nil {
		return err
	}
	for i, p := range pos {
		for k := 0; k < 3; k++ {
			if p[k] < assertion.Min[k] || p[k] > assertion.Max[k] {
				return &AssertionError{
					Type:     AssertWithinBounds,
					Expected: fmt.Sprintf("every particle of %s inside %v..%v", assertion.Actor, assertion.Min, assertion.Max),
					Actual:   fmt.Sprintf("particle %d at %v", i, p),
				}
			}
		}
	}
	return nil
}

func assertMinHeight(result *Result, assertion Assertion) error {
	pos, err := actorPositions(result, AssertMinHeight, assertion.Actor)
	if err != nil {
		return err
	}
	for i, p := range pos {
		if p[1] < assertion.Value {
			return &AssertionError{
				Type:     AssertMinHeight,
				Expected: fmt.Sprintf("every particle of %s at y >= %g", assertion.Actor, assertion.Value),
				Actual:   fmt.Sprintf("particle %d at y = %g", i, p[1]),
			}
		}
	}
	return nil
}

func assertKineticEnergy(result *Result, assertion Assertion) error {
	f, ok := result.LastFrame()
	if !ok {
		return &AssertionError{
			Type:     AssertKineticEnergy,
			Expected: fmt.Sprintf("kinetic energy below %g", assertion.Value),
			Actual:   "no frames recorded",
		}
	}
	if f.KineticEnergy >= assertion.Value {
		return &AssertionError{
			Type:     AssertKineticEnergy,
			Expected: fmt.Sprintf("kinetic energy below %g", assertion.Value),
			Actual:   fmt.Sprintf("%g at step %d", f.KineticEnergy, f.Step),
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of a trace table, restricted
// to this run, matches Where and carries the Expect values.
// The query is built by querysql, so column names are whitelisted and
// values parameterized.
func assertFinalState(ctx context.Context, st *store.Store, runID string, assertion Assertion) error {
	table, err := querysql.ParseTable(assertion.Table)
	if err != nil {
		return err
	}

	filter, err := buildFilter(assertion.Where)
	if err != nil {
		return err
	}
	compiler := &querysql.SQLCompiler{RunID: runID}
	query, params, err := compiler.Compile(querysql.Query{From: table, Filter: filter, Limit: 2})
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("valid query on %s", assertion.Table),
			Actual:   err.Error(),
		}
	}

	rows, err := st.Query(ctx, query, params...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(expectedValue, actualValue, tolerance(assertion)) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}
	return nil
}

// buildFilter turns a where map into an equality conjunction. Keys are
// sorted for deterministic SQL.
func buildFilter(where map[string]any) (querysql.Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}
	var and querysql.And
	for _, key := range sortedKeys(where) {
		switch v := where[key].(type) {
		case string:
			and.Predicates = append(and.Predicates, querysql.Equals{Field: key, Value: ir.IRString(v)})
		case int:
			and.Predicates = append(and.Predicates, querysql.Equals{Field: key, Value: ir.IRInt(v)})
		case int64:
			and.Predicates = append(and.Predicates, querysql.Equals{Field: key, Value: ir.IRInt(v)})
		case bool:
			and.Predicates = append(and.Predicates, querysql.Equals{Field: key, Value: ir.IRBool(v)})
		case float64:
			and.Predicates = append(and.Predicates, querysql.Compare{Field: key, Op: querysql.OpEq, Value: v})
		case nil:
			and.Predicates = append(and.Predicates, querysql.Equals{Field: key, Value: ir.IRNull{}})
		default:
			return nil, fmt.Errorf("where %s: unsupported value type %T", key, v)
		}
	}
	return and, nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected YAML value with a SQLite column
// value. Integers and booleans are coerced the way SQLite stores them;
// floats compare within tol.
func stateValuesEqual(expected, actual any, tol float64) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case int:
		return stateValuesEqual(int64(exp), actual, tol)
	case int64:
		switch act := actual.(type) {
		case int64:
			return exp == act
		case float64:
			return math.Abs(float64(exp)-act) <= tol
		}
		return false
	case float64:
		switch act := actual.(type) {
		case float64:
			return math.Abs(exp-act) <= tol
		case int64:
			return math.Abs(exp-float64(act)) <= tol
		}
		return false
	case bool:
		switch act := actual.(type) {
		case bool:
			return exp == act
		case int64:
			return exp == (act != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func queryShape(a Assertion) queryir.Shape {
	center := vec3(a.Center)
	switch a.Shape {
	case "box":
		return queryir.Box{Center: center, Size: vec3(a.Size)}
	case "ray":
		return queryir.Ray{Origin: center, Direction: vec3(a.Direction), Length: a.Length, Thickness: a.Radius}
	default:
		return queryir.Sphere{Center: center, Radius: a.Radius}
	}
}

func vec3(v []float64) vmath.Vec3 {
	var out vmath.Vec3
	copy(out[:], v)
	return out
}

// assertSpatialQuery counts the particles one query matches, optionally
// only those of Actor.
func assertSpatialQuery(e *engine.Engine, assertion Assertion) error {
	hits, err := e.SpatialQuery([]queryir.Query{{
		Shape:       queryShape(assertion),
		Transform:   vmath.IdentityAffine(),
		MaxDistance: assertion.MaxDistance,
	}})
	if err != nil {
		return fmt.Errorf("spatial_query: %w", err)
	}
	var matched []string
	for _, h := range hits {
		if assertion.Actor == "" || h.Actor == assertion.Actor {
			matched = append(matched, fmt.Sprintf("%s[%d]", h.Actor, h.Local))
		}
	}
	if len(matched) != assertion.Count {
		scope := "all actors"
		if assertion.Actor != "" {
			scope = assertion.Actor
		}
		return &AssertionError{
			Type:     AssertSpatialQuery,
			Expected: fmt.Sprintf("%d particle(s) of %s within the %s", assertion.Count, scope, assertion.Shape),
			Actual:   fmt.Sprintf("%d: %v", len(matched), matched),
		}
	}
	return nil
}

// assertSmoothedHeight smooths the actor's particle heights over Radius and
// checks each against Value. Lone outliers are averaged with their
// neighbours.
func assertSmoothedHeight(e *engine.Engine, assertion Assertion) error {
	a, ok := e.Actor(assertion.Actor)
	if !ok || a.Solver() == nil {
		return &AssertionError{
			Type:     AssertSmoothedHeight,
			Expected: fmt.Sprintf("actor %q attached at the end of the run", assertion.Actor),
			Actual:   "not attached",
		}
	}
	pos := a.SimulatedPositions()
	heights := make([]float64, len(pos))
	for i, p := range pos {
		heights[i] = p[1]
	}
	smoothed, err := e.SmoothProperty(assertion.Actor, heights, assertion.Radius)
	if err != nil {
		return fmt.Errorf("smoothed_min_height: %w", err)
	}
	for i, h := range smoothed {
		if h < assertion.Value {
			return &AssertionError{
				Type:     AssertSmoothedHeight,
				Expected: fmt.Sprintf("smoothed heights of %s >= %g", assertion.Actor, assertion.Value),
				Actual:   fmt.Sprintf("particle %d at %g", i, h),
			}
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	// Engine is the finished run's engine, still open, for assertions that
	// query live solver state.
	Engine *engine.Engine
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		case AssertNoStepFailure:
			err = assertNoStepFailure(result)
		case AssertParticlePosition:
			err = assertParticlePosition(result, assertion)
		case AssertDistance:
			err = assertDistance(result, assertion)
		case AssertWithinBounds:
			err = assertWithinBounds(result, assertion)
		case AssertMinHeight:
			err = assertMinHeight(result, assertion)
		case AssertKineticEnergy:
			err = assertKineticEnergy(result, assertion)
		case AssertSpatialQuery, AssertSmoothedHeight:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
			} else if assertion.Type == AssertSpatialQuery {
				err = assertSpatialQuery(actx.Engine, assertion)
			} else {
				err = assertSmoothedHeight(actx.Engine, assertion)
			}
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, result.RunID, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
