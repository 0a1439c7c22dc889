package solver

import (
	"log/slog"

	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/kernels"
)

// DefaultSubsteps is the substep count of a new solver.
const DefaultSubsteps = 4

// Settings are the tunables of a solver.
type Settings struct {
	Parameters  kernels.Parameters
	Substeps    int
	Constraints map[constraints.Type]kernels.ConstraintParameters
}

// DefaultSettings returns default parameters for every constraint type.
func DefaultSettings() Settings {
	s := Settings{
		Parameters:  kernels.DefaultParameters(),
		Substeps:    DefaultSubsteps,
		Constraints: make(map[constraints.Type]kernels.ConstraintParameters),
	}
	for _, t := range constraints.Types() {
		s.Constraints[t] = kernels.DefaultConstraintParameters(t)
	}
	return s
}

// Option configures a Solver.
type Option func(*Solver)

// WithSettings replaces the default settings. Types missing from
// s.Constraints keep their defaults.
func WithSettings(s Settings) Option {
	return func(sv *Solver) {
		sv.settings.Parameters = s.Parameters
		if s.Substeps > 0 {
			sv.settings.Substeps = s.Substeps
		}
		for t, p := range s.Constraints {
			sv.settings.Constraints[t] = p
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCapacity pre-allocates particle slots.
func WithCapacity(n int) Option {
	return func(s *Solver) {
		s.capacity = n
	}
}

// WithForceProvider registers a force provider.
func WithForceProvider(p ForceProvider) Option {
	return func(s *Solver) {
		s.providers = append(s.providers, p)
	}
}
