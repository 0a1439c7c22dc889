package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/compiler"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/solver"
	"github.com/roach88/xpbd/internal/vmath"
)

// Engine drives one scene: it owns the collider world, the solver and the
// actors built from the scene, and advances them with a fixed step.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Stop(): safe from any goroutine
//   - Tick(), Step(), Run(), Close(): must be called from exactly one goroutine
//   - Read accessors (Positions, StepCount, ...) belong to that goroutine
//
// INVARIANTS:
//   - Every step uses the same step time
//   - Commands apply between steps, never during one
//   - Actor order is scene declaration order and never changes
type Engine struct {
	scene  *ir.Scene
	logger *slog.Logger
	clock  Sequencer
	queue  *commandQueue

	recorder    Recorder
	runIDs      RunIDGenerator
	runID       string
	sampleEvery int

	backendName string
	world       *collider.World
	solver      *solver.Solver
	bodies      []boundBody
	colliders   []boundCollider
	shapes      map[string]int
	actors      []*solver.Actor
	actorIndex  map[string]int

	stepTime    float64
	accumulator float64
	// frame is the solver transform the next step moves to.
	frame vmath.Affine
	quota       *QuotaEnforcer
	frames      int64

	// pins tracks active pin constraints per actor, to report breaks.
	pins map[*solver.Actor][]pinRef
}

type pinRef struct {
	batch, id int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger of the engine, solver and collider world.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithBackend overrides the scene's backend.
func WithBackend(name string) Option {
	return func(e *Engine) {
		e.backendName = name
	}
}

// WithMaxStepsPerFrame sets how many fixed steps one Tick may run.
//
// Default: the scene's max_steps_per_frame, else DefaultMaxStepsPerFrame.
func WithMaxStepsPerFrame(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.quota = NewQuotaEnforcer(n)
		}
	}
}

// WithRecorder records the run, one frame per step, and events.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithSampleEvery records per-particle samples every n steps. Zero
// disables sampling.
func WithSampleEvery(n int) Option {
	return func(e *Engine) {
		e.sampleEvery = n
	}
}

// WithRunIDGenerator sets how recorded runs are named.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithClock sets the event sequence clock.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New builds the scene's world, solver and actors. The scene is not copied;
// callers must not modify it afterwards.
func New(scene *ir.Scene, opts ...Option) (*Engine, error) {
	e := &Engine{
		scene:       scene,
		logger:      slog.Default(),
		clock:       NewClock(),
		queue:       newCommandQueue(),
		runIDs:      UUIDv7Generator{},
		backendName: scene.Settings.Backend,
		stepTime:    scene.Settings.StepTime,
		pins:        make(map[*solver.Actor][]pinRef),
		frame:       compiler.SolverTransform(scene.Settings.Transform),
	}
	if scene.Settings.MaxStepsPerFrame > 0 {
		e.quota = NewQuotaEnforcer(scene.Settings.MaxStepsPerFrame)
	} else {
		e.quota = NewQuotaEnforcer(DefaultMaxStepsPerFrame)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.stepTime <= 0 {
		return nil, fmt.Errorf("scene %q: step time must be positive", scene.Name)
	}

	be, err := solver.NewBackend(e.backendName)
	if err != nil {
		return nil, &RuntimeError{
			Code:    ErrCodeBackendUnavailable,
			Message: fmt.Sprintf("backend %q", e.backendName),
			Err:     err,
		}
	}
	settings, err := SolverSettings(scene.Settings)
	if err != nil {
		return nil, err
	}

	e.world = collider.NewWorld(collider.WithLogger(e.logger))
	e.solver = solver.New(be, e.world,
		solver.WithSettings(settings),
		solver.WithLogger(e.logger),
		solver.WithCapacity(scene.ParticleCount()),
	)
	e.backendName = e.solver.Backend()
	e.solver.UpdateFrame(e.frame, 0)

	if err := e.buildWorld(); err != nil {
		e.solver.Destroy()
		return nil, fmt.Errorf("scene %q: %w", scene.Name, err)
	}
	if err := e.buildActors(); err != nil {
		e.solver.Destroy()
		return nil, fmt.Errorf("scene %q: %w", scene.Name, err)
	}
	for _, a := range e.actors {
		e.trackPins(a)
	}

	if err := e.beginRun(); err != nil {
		e.solver.Destroy()
		return nil, err
	}

	e.logger.Debug("engine ready",
		"scene", scene.Name,
		"backend", e.backendName,
		"actors", len(e.actors),
		"colliders", len(e.colliders),
		"particles", scene.ParticleCount(),
	)
	return e, nil
}

// beginRun writes the run record and one actor_added event per actor.
func (e *Engine) beginRun() error {
	if e.recorder == nil {
		return nil
	}
	hash, err := ir.SceneHash(e.scene)
	if err != nil {
		return fmt.Errorf("hash scene: %w", err)
	}
	sceneJSON, err := json.Marshal(e.scene)
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	e.runID = e.runIDs.Generate()
	run := ir.Run{
		ID:            e.runID,
		Scene:         e.scene.Name,
		SceneHash:     hash,
		Backend:       e.backendName,
		StepTime:      e.stepTime,
		Substeps:      e.solver.Settings().Substeps,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		SceneJSON:     string(sceneJSON),
	}
	if err := e.recorder.WriteRun(run); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	for _, a := range e.actors {
		e.event(ir.EventActorAdded, a.Name(), "")
	}
	return nil
}

// Enqueue submits a command for the next tick.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been closed.
func (e *Engine) Enqueue(c Command) bool {
	return e.queue.Enqueue(c)
}

// Tick drains the command queue, then runs as many fixed steps as the
// accumulated time allows, up to the frame budget, and interpolates the
// renderable positions by the remainder. It returns the number of steps
// taken.
//
// A failed step stops the tick and returns a STEP_FAILED error; the solver
// has already restored its state. Running out of frame budget drops the
// backlog and returns a QUOTA_EXCEEDED error after the allowed steps ran.
func (e *Engine) Tick(dt float64) (int, error) {
	if err := e.drain(); err != nil {
		return 0, err
	}
	return e.advance(dt)
}

func (e *Engine) advance(dt float64) (int, error) {
	e.frames++
	if dt > 0 {
		e.accumulator += dt
	}
	e.quota.Reset()

	steps := 0
	for e.accumulator >= e.stepTime {
		if err := e.quota.Check(e.frames); err != nil {
			wanted := steps + int(e.accumulator/e.stepTime)
			e.accumulator = 0
			e.logger.Warn("frame budget exceeded, dropping backlog",
				"frame", e.frames, "steps", steps, "wanted", wanted)
			return steps, fmt.Errorf("%w: %w", NewQuotaError(e.solver.StepCount(), wanted, e.quota.MaxSteps()), err)
		}
		if err := e.step(); err != nil {
			e.accumulator = 0
			return steps, err
		}
		e.accumulator -= e.stepTime
		steps++
	}

	e.solver.Interpolate(e.stepTime, e.accumulator)
	return steps, nil
}

// Step runs exactly one fixed step after applying queued commands.
func (e *Engine) Step() error {
	if err := e.drain(); err != nil {
		return err
	}
	if err := e.step(); err != nil {
		return err
	}
	e.solver.Interpolate(e.stepTime, 0)
	return nil
}

func (e *Engine) step() error {
	e.solver.UpdateFrame(e.frame, e.stepTime)
	e.integrateBodies()
	e.updateColliders()

	if err := e.solver.Step(e.stepTime); err != nil {
		step := e.solver.StepCount()
		e.event(ir.EventStepFailed, "", err.Error())
		return NewStepError(step, err)
	}
	e.detectBrokenPins()
	return e.record()
}

// integrateBodies moves rigidbodies by one step: dynamic bodies under
// gravity plus the pin reactions of the previous step, the rest at their
// set velocity. Reactions are cleared afterwards.
func (e *Engine) integrateBodies() {
	h := e.stepTime
	gravity := e.solver.Settings().Parameters.Gravity
	for _, b := range e.bodies {
		rb, ok := e.world.Rigidbody(b.handle)
		if !ok {
			continue
		}
		if !rb.Kinematic && rb.InvMass > 0 {
			rb.Velocity = rb.Velocity.Add(gravity.Add(rb.Force.Mul(rb.InvMass)).Mul(h))
			rb.AngularVelocity = rb.AngularVelocity.Add(rb.Torque.Mul(rb.InvMass * h))
		}
		rb.Transform.Translation = rb.Transform.Translation.Add(rb.Velocity.Mul(h))
		rb.Transform.Rotation = vmath.IntegrateSpin(rb.Transform.Rotation, rb.AngularVelocity, h)
		rb.Force = vmath.Vec3{}
		rb.Torque = vmath.Vec3{}
	}
}

// updateColliders moves body-attached colliders with their body and pushes
// every changed description into the world.
func (e *Engine) updateColliders() {
	for _, c := range e.colliders {
		if c.body != collider.NoRigidbody {
			if rb, ok := e.world.Rigidbody(c.body); ok {
				c.common.Transform = composePose(rb.Transform, c.local)
			}
		}
		c.tracker.UpdateIfNeeded()
	}
}

// Run processes commands until ctx is cancelled or Close is called. Tick
// commands advance the simulation; other commands are applied as they
// arrive.
//
// ERROR HANDLING: a failing command is logged and the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "scene", e.scene.Name)

	for {
		c, ok := e.queue.TryDequeue()
		if ok {
			if err := e.process(c); err != nil {
				e.logger.Error("command failed", "kind", c.Kind, "actor", c.Actor, "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue.
			if e.closedAndEmpty() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

func (e *Engine) closedAndEmpty() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed && len(e.queue.commands) == 0
}

// Stop closes the command queue. Run returns once it has applied every
// command queued before the call.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Close stops Run and releases the solver. The engine is unusable
// afterwards.
func (e *Engine) Close() {
	e.queue.Close()
	for _, c := range e.colliders {
		c.tracker.Destroy()
	}
	e.solver.Destroy()
	e.world.Teardown()
}

// drain applies every queued command. The first failure stops draining;
// later commands stay queued.
func (e *Engine) drain() error {
	for {
		c, ok := e.queue.TryDequeue()
		if !ok {
			return nil
		}
		if c.Kind == CommandTick {
			// Ticks queued behind the caller's own tick fold into it.
			e.accumulator += c.Dt
			continue
		}
		if err := e.process(c); err != nil {
			return err
		}
	}
}

// process applies one command.
func (e *Engine) process(c Command) error {
	step := e.solver.StepCount()
	if c.Kind != CommandTick {
		// The detail carries the whole command so replay can reissue it.
		detail, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode command: %w", err)
		}
		e.event(ir.EventCommand, c.Actor, string(detail))
	}

	switch c.Kind {
	case CommandTick:
		_, err := e.advance(c.Dt)
		return err

	case CommandSetGravity, CommandSetWind:
		p := e.solver.Settings().Parameters
		if c.Kind == CommandSetGravity {
			p.Gravity = c.Vector
		} else {
			p.Wind = c.Vector
		}
		e.solver.SetParameters(p)
		return nil

	case CommandSetSolverTransform:
		e.frame.Translation = c.Vector
		if c.Rotation != nil {
			e.frame.Rotation = vmath.FromEulerDegrees(*c.Rotation)
		}
		return nil

	case CommandSetBodyVelocity:
		for _, b := range e.bodies {
			if b.name == c.Rigidbody {
				rb, _ := e.world.Rigidbody(b.handle)
				rb.Velocity = c.Vector
				return nil
			}
		}
		return &RuntimeError{Code: ErrCodeInvalidCommand, Message: fmt.Sprintf("no such rigidbody %q", c.Rigidbody), Step: step}
	}

	a, ok := e.Actor(c.Actor)
	if !ok {
		return NewUnknownActorError(step, c.Actor)
	}

	switch c.Kind {
	case CommandForce, CommandImpulse:
		locals, err := e.selectParticles(a, c)
		if err != nil {
			return err
		}
		if a.Solver() == nil {
			return nil
		}
		for _, l := range locals {
			if c.Kind == CommandForce {
				a.AddExternalForce(l, c.Vector)
				continue
			}
			i := a.SolverIndices()[l]
			buf := e.solver.Particles()
			if buf.InvMasses[i] > 0 {
				buf.Velocities[i] = buf.Velocities[i].Add(c.Vector)
			}
		}
		return nil

	case CommandRemoveActor:
		if a.Solver() == nil {
			return nil
		}
		a.RemoveFromSolver()
		e.event(ir.EventActorRemoved, a.Name(), "")
		return nil

	case CommandAddActor:
		if a.Solver() != nil {
			return nil
		}
		if err := a.AddToSolver(e.solver); err != nil {
			return &RuntimeError{Code: ErrCodeInvalidCommand, Message: "attach failed", Step: step, Actor: a.Name(), Err: err}
		}
		e.trackPins(a)
		e.event(ir.EventActorAdded, a.Name(), "")
		// Stitches were dropped on removal; restore those whose actors are
		// both attached again.
		for _, st := range e.scene.Stitches {
			if st.ActorA == a.Name() || st.ActorB == a.Name() {
				if _, err := e.addStitch(st); err != nil {
					return err
				}
			}
		}
		return nil

	case CommandActivateConstraint, CommandDeactivateConstraint:
		t, ok := constraints.ParseType(c.Constraint)
		if !ok {
			return &RuntimeError{Code: ErrCodeInvalidCommand, Message: fmt.Sprintf("unknown constraint type %q", c.Constraint), Step: step, Actor: a.Name()}
		}
		var changed bool
		if c.Kind == CommandActivateConstraint {
			changed = a.ActivateConstraint(t, c.Batch, c.Index)
		} else {
			changed = a.DeactivateConstraint(t, c.Batch, c.Index)
		}
		if t == constraints.Pin {
			e.trackPins(a)
		}
		if !changed {
			e.logger.Debug("constraint state unchanged", "actor", a.Name(), "type", t, "batch", c.Batch, "id", c.Index)
		}
		return nil

	default:
		return &RuntimeError{Code: ErrCodeInvalidCommand, Message: fmt.Sprintf("unknown command %q", c.Kind), Step: step}
	}
}

func (e *Engine) selectParticles(a *solver.Actor, c Command) ([]int, error) {
	n := a.ParticleCount()
	if len(c.Particles) == 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	for _, p := range c.Particles {
		if p < 0 || p >= n {
			return nil, &RuntimeError{
				Code:    ErrCodeInvalidCommand,
				Message: fmt.Sprintf("particle %d out of range for %d particles", p, n),
				Step:    e.solver.StepCount(),
				Actor:   a.Name(),
			}
		}
	}
	return c.Particles, nil
}

// trackPins snapshots the active pins of a so breaks can be detected.
func (e *Engine) trackPins(a *solver.Actor) {
	var refs []pinRef
	for k, b := range a.Constraints().Pin.Batches() {
		for j := 0; j < b.ActiveConstraintCount(); j++ {
			refs = append(refs, pinRef{batch: k, id: b.ID(j)})
		}
	}
	e.pins[a] = refs
}

// detectBrokenPins emits a pin_broken event for every tracked pin the
// solver deactivated during the last step.
func (e *Engine) detectBrokenPins() {
	for _, a := range e.actors {
		refs := e.pins[a]
		if len(refs) == 0 || a.Solver() == nil {
			continue
		}
		kept := refs[:0]
		for _, r := range refs {
			if a.IsConstraintActive(constraints.Pin, r.batch, r.id) {
				kept = append(kept, r)
				continue
			}
			e.logger.Info("pin broken", "actor", a.Name(), "batch", r.batch, "id", r.id)
			e.event(ir.EventPinBroken, a.Name(), fmt.Sprintf("batch=%d id=%d", r.batch, r.id))
		}
		e.pins[a] = kept
	}
}

// Actor returns the actor named name.
func (e *Engine) Actor(name string) (*solver.Actor, bool) {
	i, ok := e.actorIndex[name]
	if !ok {
		return nil, false
	}
	return e.actors[i], true
}

// Actors returns the actors in scene order.
func (e *Engine) Actors() []*solver.Actor { return slices.Clone(e.actors) }

// Solver returns the underlying solver.
func (e *Engine) Solver() *solver.Solver { return e.solver }

// World returns the collider world.
func (e *Engine) World() *collider.World { return e.world }

// Scene returns the scene the engine was built from.
func (e *Engine) Scene() *ir.Scene { return e.scene }

// RunID returns the recorded run ID, or "" when not recording.
func (e *Engine) RunID() string { return e.runID }

// StepTime returns the fixed step time.
func (e *Engine) StepTime() float64 { return e.stepTime }

// StepCount returns the number of completed steps.
func (e *Engine) StepCount() int { return e.solver.StepCount() }

// Rigidbody returns the scene rigidbody named name.
func (e *Engine) Rigidbody(name string) (*collider.Rigidbody, bool) {
	for _, b := range e.bodies {
		if b.name == name {
			return e.world.Rigidbody(b.handle)
		}
	}
	return nil, false
}

// StateHash hashes the simulated positions of all attached actors, in
// scene order, at the current step.
func (e *Engine) StateHash() (string, error) {
	return ir.StateHash(int64(e.solver.StepCount()), e.simulatedPositions())
}

func (e *Engine) simulatedPositions() []ir.Vec3 {
	var out []ir.Vec3
	for _, a := range e.actors {
		if a.Solver() == nil {
			continue
		}
		for _, p := range a.SimulatedPositions() {
			out = append(out, ir.Vec3(p))
		}
	}
	return out
}
