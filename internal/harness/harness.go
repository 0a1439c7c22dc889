package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/xpbd/internal/compiler"
	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/store"
	"github.com/roach88/xpbd/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fixed run ID and a
// deterministic clock.
//
// Execution flow:
// 1. Compile and validate the scene
// 2. Create the engine recording into the database
// 3. Step, queueing each command after its step count
// 4. Read the trace back and evaluate the assertions
//
// A failed step ends the run early and is reported in Result.Failure; it is
// an assertion matter, not an execution error.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context for database access.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	scene, err := LoadScene(scenario.Scene)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	opts := []engine.Option{
		engine.WithLogger(testutil.DiscardLogger()),
		engine.WithRecorder(st.Recorder(ctx)),
		engine.WithRunIDGenerator(testutil.NewFixedRunGenerator(scenario.RunID)),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithSampleEvery(scenario.SampleEvery),
	}
	if scenario.Backend != "" {
		opts = append(opts, engine.WithBackend(scenario.Backend))
	}
	eng, err := engine.New(scene, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()

	byStep := make(map[int][]engine.Command)
	for i, step := range scenario.Commands {
		cmd, err := step.Command()
		if err != nil {
			return nil, fmt.Errorf("commands[%d]: %w", i, err)
		}
		byStep[step.At] = append(byStep[step.At], cmd)
	}

	result := NewResult()
	result.RunID = eng.RunID()
	for i := 0; i < scenario.Steps; i++ {
		for _, cmd := range byStep[i] {
			eng.Enqueue(cmd)
		}
		if err := eng.Step(); err != nil {
			if !engine.IsStepError(err) {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			result.Failure = err.Error()
			break
		}
	}
	result.Steps = eng.StepCount()

	for _, a := range eng.Actors() {
		if a.Solver() == nil {
			continue
		}
		pos := a.SimulatedPositions()
		out := make([]ir.Vec3, len(pos))
		for i, p := range pos {
			out[i] = ir.Vec3(p)
		}
		result.Positions[a.Name()] = out
	}

	events, err := st.ReadEvents(ctx, result.RunID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	for _, ev := range events {
		result.AddEvent(ev)
	}
	if result.Frames, err = st.ReadFrames(ctx, result.RunID); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}

	actx := &AssertionContext{
		Store:  st,
		Ctx:    ctx,
		Engine: eng,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// LoadScene compiles and validates a CUE scene file. Validation problems
// are joined into one error.
func LoadScene(path string) (*ir.Scene, error) {
	scene, err := compiler.CompileFile(path)
	if err != nil {
		return nil, fmt.Errorf("compile scene: %w", err)
	}
	if problems := compiler.ValidateScene(scene); len(problems) > 0 {
		errs := make([]error, len(problems))
		for i, p := range problems {
			errs[i] = p
		}
		return nil, fmt.Errorf("invalid scene %s:\n%w", path, errors.Join(errs...))
	}
	return scene, nil
}

// Summary formats a one-line description of a result.
func (r *Result) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run %s: %d steps, %d events", r.RunID, r.Steps, len(r.Trace))
	if r.Failure != "" {
		fmt.Fprintf(&sb, ", step failed: %s", r.Failure)
	}
	if !r.Pass {
		fmt.Fprintf(&sb, ", %d assertion(s) failed", len(r.Errors))
	}
	return sb.String()
}
