package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/ir"
)

// RunSummary describes a recorded run for listing and inspection.
type RunSummary struct {
	Run       ir.Run
	Frames    int
	LastStep  int64
	LastHash  string
	Events    map[string]int // count per kind
	Failed    bool           // a step_failed event was recorded
	MaxEnergy float64
}

// Summarize aggregates the frames and events of a run.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) Summarize(ctx context.Context, runID string) (RunSummary, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunSummary{}, err
	}
	sum := RunSummary{Run: run, Events: make(map[string]int)}

	var maxEnergy *float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(step), 0), MAX(kinetic_energy)
		FROM frames
		WHERE run_id = ?
	`, runID).Scan(&sum.Frames, &sum.LastStep, &maxEnergy)
	if err != nil {
		return sum, fmt.Errorf("summarize frames: %w", err)
	}
	if maxEnergy != nil {
		sum.MaxEnergy = *maxEnergy
	}
	if sum.Frames > 0 {
		f, err := s.ReadFrame(ctx, runID, sum.LastStep)
		if err != nil {
			return sum, fmt.Errorf("summarize last frame: %w", err)
		}
		sum.LastHash = f.StateHash
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM events
		WHERE run_id = ?
		GROUP BY kind
		ORDER BY kind COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return sum, fmt.Errorf("summarize events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return sum, fmt.Errorf("scan event count: %w", err)
		}
		sum.Events[kind] = n
	}
	if err := rows.Err(); err != nil {
		return sum, fmt.Errorf("iterate event counts: %w", err)
	}
	sum.Failed = sum.Events[ir.EventStepFailed] > 0
	return sum, nil
}

// RecordedRun is everything needed to re-simulate a run.
type RecordedRun struct {
	Run    ir.Run
	Scene  *ir.Scene
	Frames []ir.Frame
	Events []ir.Event
}

// LoadRun reads a run with its scene, frames and events.
func (s *Store) LoadRun(ctx context.Context, runID string) (*RecordedRun, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	scene, err := DecodeScene(run)
	if err != nil {
		return nil, err
	}
	frames, err := s.ReadFrames(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &RecordedRun{Run: run, Scene: scene, Frames: frames, Events: events}, nil
}

// Replay re-simulates a stored run and compares it frame by frame. The
// recorded backend is used unless opts override it.
func (s *Store) Replay(ctx context.Context, runID string, opts ...engine.Option) (*engine.ReplayResult, error) {
	rec, err := s.LoadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(rec.Frames) == 0 {
		return nil, fmt.Errorf("replay %s: run has no frames", runID)
	}
	opts = append([]engine.Option{engine.WithBackend(rec.Run.Backend)}, slices.Clone(opts)...)
	return engine.Replay(rec.Scene, rec.Frames, rec.Events, opts...)
}
