// Package harness runs scenario files against the engine and checks the
// recorded trace and the final particle state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: pendulum_impulse
//	description: "A pinned rope keeps its pivot after a kick"
//	scene: ../scenes/pendulum.cue
//	steps: 30
//	run_id: test-run-pendulum
//	commands:
//	  - at: 10
//	    kind: impulse
//	    actor: rope
//	    particles: [6]
//	    vector: [0, 0, 2]
//	assertions:
//	  - type: event_count
//	    kind: command
//	    count: 1
//	  - type: particle_position
//	    actor: rope
//	    particle: 0
//	    position: [0, 1.9, 0]
//	    tolerance: 0.02
//	  - type: final_state
//	    table: frames
//	    where: { step: 30 }
//	    expect: { particles: 7 }
//
// The scene path is resolved relative to the scenario file. A command with
// at: N is queued after N steps, so it applies before step N+1.
//
// # Assertion Types
//
//   - event_count: exactly Count events of Kind (optionally of Actor)
//   - event_order: the first event of each kind in Kinds appears in order
//   - no_step_failure: every step completed
//   - particle_position: a particle ends within Tolerance of Position
//   - distance: two particles end Value apart, within Tolerance
//   - within_bounds: every particle of an actor ends inside [Min, Max]
//   - min_height: every particle of an actor ends at y >= Value
//   - kinetic_energy_below: the last frame's kinetic energy is below Value
//   - final_state: one row of a trace table matches Expect
//   - spatial_query: a sphere, box or ray matches exactly Count particles
//     (optionally of Actor)
//   - smoothed_min_height: every Poly6-smoothed particle height of an actor
//     is at least Value
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory store with a fixed run ID
// and testutil.DeterministicClock, so the event trace is byte-identical
// between runs and can be compared against golden files.
package harness
