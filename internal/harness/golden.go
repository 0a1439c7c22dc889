package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/xpbd/internal/ir"
)

// TraceSnapshot captures the event trace of a scenario execution.
// Physical quantities are left out; they belong to state hashes, not to
// golden files.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id"`
	Steps        int          `json:"steps"`
	Trace        []TraceEvent `json:"trace"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		Steps:        result.Steps,
		Trace:        result.Trace,
	}
}

// toIR converts the snapshot for canonical JSON serialization.
func (s *TraceSnapshot) toIR() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, event := range s.Trace {
		obj := ir.IRObject{
			"seq":  ir.IRInt(event.Seq),
			"step": ir.IRInt(event.Step),
			"kind": ir.IRString(event.Kind),
		}
		if event.Actor != "" {
			obj["actor"] = ir.IRString(event.Actor)
		}
		if event.Detail != "" {
			obj["detail"] = ir.IRString(event.Detail)
		}
		trace[i] = obj
	}

	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"run_id":        ir.IRString(s.RunID),
		"steps":         ir.IRInt(s.Steps),
		"trace":         trace,
	}
}

// MarshalCanonical encodes the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toIR())
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := RunContext(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
