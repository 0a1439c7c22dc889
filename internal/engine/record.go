package engine

import (
	"github.com/roach88/xpbd/internal/ir"
)

// Recorder receives the trace of a run. store.Store implements it.
//
// Calls come from the engine's single writer, in order: WriteRun once, then
// per step one WriteFrame, optionally WriteSamples, and WriteEvent whenever
// something happens.
type Recorder interface {
	WriteRun(run ir.Run) error
	WriteFrame(frame ir.Frame) error
	WriteSamples(samples []ir.Sample) error
	WriteEvent(event ir.Event) error
}

// record writes the frame of the step just taken and, on sampling steps,
// one sample per attached particle.
func (e *Engine) record() error {
	if e.recorder == nil {
		return nil
	}
	step := int64(e.solver.StepCount())
	positions := e.simulatedPositions()
	hash, err := ir.StateHash(step, positions)
	if err != nil {
		return NewStepError(int(step), err)
	}
	frame := ir.Frame{
		RunID:         e.runID,
		Step:          step,
		StateHash:     hash,
		Particles:     len(positions),
		Contacts:      e.solver.ContactCount(),
		KineticEnergy: e.kineticEnergy(),
	}
	if err := e.recorder.WriteFrame(frame); err != nil {
		e.logger.Error("record frame failed", "step", step, "error", err)
		return err
	}

	if e.sampleEvery <= 0 || step%int64(e.sampleEvery) != 0 {
		return nil
	}
	var samples []ir.Sample
	for _, a := range e.actors {
		if a.Solver() == nil {
			continue
		}
		pos := a.SimulatedPositions()
		vel := a.Velocities()
		for i := range pos {
			samples = append(samples, ir.Sample{
				RunID:    e.runID,
				Step:     step,
				Actor:    a.Name(),
				Particle: i,
				Position: ir.Vec3(pos[i]),
				Velocity: ir.Vec3(vel[i]),
			})
		}
	}
	if err := e.recorder.WriteSamples(samples); err != nil {
		e.logger.Error("record samples failed", "step", step, "error", err)
		return err
	}
	return nil
}

// event records a discrete occurrence stamped with the next clock value.
// Recording errors are logged, not returned.
func (e *Engine) event(kind, actor, detail string) {
	if e.recorder == nil {
		return
	}
	ev := ir.Event{
		RunID:  e.runID,
		Step:   int64(e.solver.StepCount()),
		Seq:    e.clock.Next(),
		Kind:   kind,
		Actor:  actor,
		Detail: detail,
	}
	if err := e.recorder.WriteEvent(ev); err != nil {
		e.logger.Error("record event failed", "kind", kind, "error", err)
	}
}

// kineticEnergy sums ½|v|² over attached dynamic particles.
func (e *Engine) kineticEnergy() float64 {
	buf := e.solver.Particles()
	var sum float64
	for _, a := range e.actors {
		for _, i := range a.SolverIndices() {
			if buf.InvMasses[i] > 0 {
				v := buf.Velocities[i]
				sum += 0.5 * v.Dot(v)
			}
		}
	}
	return sum
}
