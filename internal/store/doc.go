// Package store provides SQLite-backed durable storage for simulation
// traces.
//
// A trace is append-only and made of:
//   - Runs: one per engine instance, with the compiled scene and versions
//   - Frames: one per completed step, keyed by (run_id, step)
//   - Samples: per-particle positions and velocities at sampled steps
//   - Events: discrete occurrences (commands, pin breaks, failed steps)
//
// # Ordering
//
// Every read orders by logical keys only: step for frames, (step, actor,
// particle) for samples and seq for events, with COLLATE BINARY on text.
// Wall time is never stored, so a replayed run produces identical rows.
//
// # Idempotency
//
// Writes use ON CONFLICT DO NOTHING on the natural key. Writing the same
// frame twice is a no-op, which lets a crashed recorder resume.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: frames, samples and events cascade with their run
//
// Store methods take a context. Recorder binds a context once so a Store
// can be handed to the engine as its trace sink.
package store
