package engine

import (
	"github.com/roach88/xpbd/internal/queryir"
	"github.com/roach88/xpbd/internal/solver"
)

// ParticleHit is a spatial query match resolved to the actor that owns the
// particle.
type ParticleHit struct {
	queryir.Result
	Actor string
	// Local is the particle's index within the actor.
	Local int
}

type particleOwner struct {
	actor *solver.Actor
	local int
}

// SpatialQuery runs world-space queries against the particles of every
// attached actor. Hits keep the solver's ordering: query index, then solver
// particle index.
func (e *Engine) SpatialQuery(queries []queryir.Query) ([]ParticleHit, error) {
	results, err := e.solver.SpatialQuery(queries)
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidCommand, Message: "spatial query", Step: e.solver.StepCount(), Err: err}
	}

	owners := make(map[int]particleOwner)
	for _, a := range e.actors {
		if a.Solver() == nil {
			continue
		}
		for l, i := range a.SolverIndices() {
			owners[i] = particleOwner{actor: a, local: l}
		}
	}

	hits := make([]ParticleHit, 0, len(results))
	for _, r := range results {
		o, ok := owners[r.Particle]
		if !ok {
			continue
		}
		hits = append(hits, ParticleHit{Result: r, Actor: o.actor.Name(), Local: o.local})
	}
	return hits, nil
}

// SmoothProperty smooths one value per particle of the named actor, given
// in actor-local order, over that actor's particles within radius.
func (e *Engine) SmoothProperty(actor string, values []float64, radius float64) ([]float64, error) {
	step := e.solver.StepCount()
	a, ok := e.Actor(actor)
	if !ok {
		return nil, NewUnknownActorError(step, actor)
	}
	if a.Solver() == nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidCommand, Message: "actor is detached", Step: step, Actor: actor}
	}
	out, err := e.solver.SmoothProperty(a.SolverIndices(), values, radius)
	if err != nil {
		return nil, &RuntimeError{Code: ErrCodeInvalidCommand, Message: "smooth property", Step: step, Actor: actor, Err: err}
	}
	return out, nil
}
