package store

import (
	"context"
	"fmt"

	"github.com/roach88/xpbd/internal/ir"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, scene, scene_hash, backend, step_time, substeps, engine_version, ir_version, scene_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Scene,
		run.SceneHash,
		run.Backend,
		run.StepTime,
		run.Substeps,
		run.EngineVersion,
		run.IRVersion,
		run.SceneJSON,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteFrame inserts the summary of one step.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteFrame(ctx context.Context, f ir.Frame) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frames
		(run_id, step, state_hash, particles, contacts, kinetic_energy)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		f.RunID,
		f.Step,
		f.StateHash,
		f.Particles,
		f.Contacts,
		f.KineticEnergy,
	)
	if err != nil {
		return fmt.Errorf("write frame %d: %w", f.Step, err)
	}
	return nil
}

// WriteSamples inserts per-particle samples in one transaction; either all
// rows land or none do.
func (s *Store) WriteSamples(ctx context.Context, samples []ir.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write samples: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples
		(run_id, step, actor, particle, px, py, pz, vx, vy, vz)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write samples: prepare: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		p, v := smp.Position, smp.Velocity
		if _, err := stmt.ExecContext(ctx,
			smp.RunID, smp.Step, smp.Actor, smp.Particle,
			p[0], p[1], p[2],
			v[0], v[1], v[2],
		); err != nil {
			return fmt.Errorf("write sample %s[%d] step %d: %w", smp.Actor, smp.Particle, smp.Step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write samples: commit: %w", err)
	}
	return nil
}

// WriteEvent inserts an event. Events are keyed by (run_id, seq).
func (s *Store) WriteEvent(ctx context.Context, ev ir.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(run_id, seq, step, kind, actor, detail)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ev.RunID,
		ev.Seq,
		ev.Step,
		ev.Kind,
		ev.Actor,
		ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("write event seq %d: %w", ev.Seq, err)
	}
	return nil
}

// DeleteRun removes a run and, by cascade, its frames, samples and events.
// Returns false if no such run exists.
func (s *Store) DeleteRun(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete run: %w", err)
	}
	return n > 0, nil
}

// Recorder binds a Store to a context so it can receive an engine's trace.
//
// Thread-safety: same as the Store; the engine writes from one goroutine.
type Recorder struct {
	store *Store
	ctx   context.Context
}

// Recorder returns a trace sink writing through s with ctx.
func (s *Store) Recorder(ctx context.Context) *Recorder {
	return &Recorder{store: s, ctx: ctx}
}

func (r *Recorder) WriteRun(run ir.Run) error { return r.store.WriteRun(r.ctx, run) }
func (r *Recorder) WriteFrame(f ir.Frame) error { return r.store.WriteFrame(r.ctx, f) }
func (r *Recorder) WriteEvent(ev ir.Event) error { return r.store.WriteEvent(r.ctx, ev) }
func (r *Recorder) WriteSamples(s []ir.Sample) error { return r.store.WriteSamples(r.ctx, s) }
