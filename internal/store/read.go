package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/xpbd/internal/ir"
)

// ErrAmbiguousRun is returned by ResolveRun when a prefix matches more than
// one run.
var ErrAmbiguousRun = errors.New("ambiguous run id")

const runColumns = `id, scene, scene_hash, backend, step_time, substeps, engine_version, ir_version, scene_json`

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns every run ordered by ID. Run IDs are UUIDv7, so this is
// creation order.
//
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ResolveRun expands ref to a full run ID. ref is "latest", a full ID or a
// unique ID prefix.
//
// Returns sql.ErrNoRows if nothing matches and ErrAmbiguousRun if a prefix
// matches several runs.
func (s *Store) ResolveRun(ctx context.Context, ref string) (string, error) {
	if ref == "latest" {
		var id string
		err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id COLLATE BINARY DESC LIMIT 1`).Scan(&id)
		return id, err
	}

	// Escape LIKE wildcards so a prefix only ever matches literally.
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(ref)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM runs
		WHERE id LIKE ? ESCAPE '\'
		ORDER BY id COLLATE BINARY ASC
		LIMIT 2
	`, escaped+"%")
	if err != nil {
		return "", fmt.Errorf("resolve run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate run ids: %w", err)
	}

	switch {
	case len(ids) == 0:
		return "", sql.ErrNoRows
	case ids[0] == ref:
		return ref, nil
	case len(ids) > 1:
		return "", fmt.Errorf("%w: %q", ErrAmbiguousRun, ref)
	}
	return ids[0], nil
}

// ReadFrames returns the frames of a run ordered by step.
//
// Returns an empty slice (not nil) if the run has no frames.
func (s *Store) ReadFrames(ctx context.Context, runID string) ([]ir.Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step, state_hash, particles, contacts, kinetic_energy
		FROM frames
		WHERE run_id = ?
		ORDER BY step ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []ir.Frame{}
	for rows.Next() {
		var f ir.Frame
		if err := rows.Scan(&f.RunID, &f.Step, &f.StateHash, &f.Particles, &f.Contacts, &f.KineticEnergy); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}

// ReadFrame retrieves the frame of one step.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadFrame(ctx context.Context, runID string, step int64) (ir.Frame, error) {
	var f ir.Frame
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, step, state_hash, particles, contacts, kinetic_energy
		FROM frames
		WHERE run_id = ? AND step = ?
	`, runID, step).Scan(&f.RunID, &f.Step, &f.StateHash, &f.Particles, &f.Contacts, &f.KineticEnergy)
	return f, err
}

// ReadEvents returns the events of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run has no events.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]ir.Event, error) {
	return s.readEvents(ctx, `
		SELECT run_id, seq, step, kind, actor, detail
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadEventsByKind returns the events of one kind ordered by seq.
func (s *Store) ReadEventsByKind(ctx context.Context, runID, kind string) ([]ir.Event, error) {
	return s.readEvents(ctx, `
		SELECT run_id, seq, step, kind, actor, detail
		FROM events
		WHERE run_id = ? AND kind = ?
		ORDER BY seq ASC
	`, runID, kind)
}

func (s *Store) readEvents(ctx context.Context, query string, args ...any) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var ev ir.Event
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Step, &ev.Kind, &ev.Actor, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadSamples returns the samples of a run ordered by (step, actor,
// particle). An empty actor selects every actor.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadSamples(ctx context.Context, runID, actor string) ([]ir.Sample, error) {
	query := `
		SELECT run_id, step, actor, particle, px, py, pz, vx, vy, vz
		FROM samples
		WHERE run_id = ?`
	args := []any{runID}
	if actor != "" {
		query += ` AND actor = ?`
		args = append(args, actor)
	}
	query += `
		ORDER BY step ASC, actor COLLATE BINARY ASC, particle ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []ir.Sample{}
	for rows.Next() {
		smp, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// ReadTrajectory returns the samples of one particle ordered by step.
func (s *Store) ReadTrajectory(ctx context.Context, runID, actor string, particle int) ([]ir.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step, actor, particle, px, py, pz, vx, vy, vz
		FROM samples
		WHERE run_id = ? AND actor = ? AND particle = ?
		ORDER BY step ASC
	`, runID, actor, particle)
	if err != nil {
		return nil, fmt.Errorf("query trajectory: %w", err)
	}
	defer rows.Close()

	samples := []ir.Sample{}
	for rows.Next() {
		smp, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trajectory: %w", err)
	}
	return samples, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.Run, error) {
	var r ir.Run
	err := row.Scan(
		&r.ID,
		&r.Scene,
		&r.SceneHash,
		&r.Backend,
		&r.StepTime,
		&r.Substeps,
		&r.EngineVersion,
		&r.IRVersion,
		&r.SceneJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

func scanSample(row scanner) (ir.Sample, error) {
	var smp ir.Sample
	p, v := &smp.Position, &smp.Velocity
	err := row.Scan(
		&smp.RunID, &smp.Step, &smp.Actor, &smp.Particle,
		&p[0], &p[1], &p[2],
		&v[0], &v[1], &v[2],
	)
	if err != nil {
		return smp, fmt.Errorf("scan sample: %w", err)
	}
	return smp, nil
}
