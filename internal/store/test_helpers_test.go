package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/xpbd/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with minimal required fields.
func createTestRun(id string) ir.Run {
	return ir.Run{
		ID:            id,
		Scene:         "test",
		SceneHash:     "test-hash",
		Backend:       "native",
		StepTime:      1.0 / 60,
		Substeps:      4,
		EngineVersion: "0.1.0",
		IRVersion:     "1",
	}
}

// createTestFrame creates a frame for step.
func createTestFrame(runID string, step int64) ir.Frame {
	return ir.Frame{
		RunID:         runID,
		Step:          step,
		StateHash:     fmt.Sprintf("hash-%d", step),
		Particles:     3,
		Contacts:      int(step % 2),
		KineticEnergy: float64(step) * 0.5,
	}
}
