package compiler

import (
	"fmt"

	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/solver"
)

// Validation error codes (E200-E299)
const (
	ErrInvalidSettings    = "E200" // step time, substeps, backend or per-type settings
	ErrDuplicateName      = "E201" // two materials, bodies, colliders or actors share a name
	ErrUnknownReference   = "E202" // a name that does not resolve
	ErrInvalidGeometry    = "E203" // collider geometry missing or inconsistent
	ErrEmptyActor         = "E204" // actor without particles
	ErrUnknownConstraint  = "E205" // unknown or non-authorable constraint type
	ErrConstraintArity    = "E206" // wrong particle count for the type
	ErrParticleOutOfRange = "E207" // constraint particle index outside the actor
	ErrInvalidTriangles   = "E208" // volume triangle list malformed
	ErrInvalidStitch      = "E209" // stitch particle outside its actor
	ErrInvalidZone        = "E210" // zone parameters unusable
)

// ValidationError represents a scene validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// arity is the exact particle count of fixed-size types. minArity covers
// the variable-size ones.
var arity = map[constraints.Type]int{
	constraints.Distance:    2,
	constraints.Bend:        3,
	constraints.Tether:      2,
	constraints.Pin:         1,
	constraints.Stitch:      2,
	constraints.Skin:        1,
	constraints.Aerodynamic: 1,
}

var minArity = map[constraints.Type]int{
	constraints.Volume:        3,
	constraints.ShapeMatching: 2,
}

// ValidateScene checks a compiled scene for errors the schema cannot
// express: references, index ranges and per-type arity. It returns every
// error found.
func ValidateScene(s *ir.Scene) []ValidationError {
	v := &validator{}
	v.settings(&s.Settings)

	materials := v.names("materials", len(s.Materials), func(i int) string { return s.Materials[i].Name })
	bodies := v.names("rigidbodies", len(s.Rigidbodies), func(i int) string { return s.Rigidbodies[i].Name })
	colliders := v.names("colliders", len(s.Colliders), func(i int) string { return s.Colliders[i].Name })
	actors := v.names("actors", len(s.Actors), func(i int) string { return s.Actors[i].Name })

	for i := range s.Colliders {
		c := &s.Colliders[i]
		field := "colliders." + c.Name
		if c.Rigidbody != "" && !bodies[c.Rigidbody] {
			v.add(field+".rigidbody", ErrUnknownReference, "unknown rigidbody %q", c.Rigidbody)
		}
		if c.Material != "" && !materials[c.Material] {
			v.add(field+".material", ErrUnknownReference, "unknown material %q", c.Material)
		}
		v.geometry(field, c)
	}

	for i := range s.Actors {
		v.actor(&s.Actors[i], colliders)
	}

	for i, st := range s.Stitches {
		field := fmt.Sprintf("stitches[%d]", i)
		v.stitchEnd(s, field+".actor_a", actors, st.ActorA, st.ParticleA)
		v.stitchEnd(s, field+".actor_b", actors, st.ActorB, st.ParticleB)
	}

	for i, z := range s.Zones {
		field := fmt.Sprintf("zones[%d]", i)
		switch z.Kind {
		case ir.ZoneWind:
			for k := 0; k < 3; k++ {
				if z.Min[k] > z.Max[k] {
					v.add(field, ErrInvalidZone, "min exceeds max on axis %d", k)
					break
				}
			}
		case ir.ZoneGravityWell:
			if z.Radius <= 0 {
				v.add(field+".radius", ErrInvalidZone, "gravity well radius must be positive")
			}
		default:
			v.add(field+".kind", ErrInvalidZone, "unknown zone kind %q", z.Kind)
		}
	}
	return v.errs
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

// names reports duplicates and returns the set of names.
func (v *validator) names(section string, n int, name func(int) string) map[string]bool {
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		nm := name(i)
		if seen[nm] {
			v.add(section+"."+nm, ErrDuplicateName, "duplicate name %q", nm)
		}
		seen[nm] = true
	}
	return seen
}

func (v *validator) settings(s *ir.Settings) {
	if s.StepTime <= 0 {
		v.add("settings.step_time", ErrInvalidSettings, "step time must be positive, got %g", s.StepTime)
	}
	if s.Substeps < 1 {
		v.add("settings.substeps", ErrInvalidSettings, "substeps must be at least 1, got %d", s.Substeps)
	}
	if s.Backend != "" {
		if _, err := solver.NewBackend(s.Backend); err != nil {
			v.add("settings.backend", ErrInvalidSettings, "%v", err)
		}
	}
	if s.LinearInertiaScale < 0 || s.AngularInertiaScale < 0 {
		v.add("settings", ErrInvalidSettings, "inertia scales must not be negative")
	}
	for name, c := range s.Constraints {
		field := "settings.constraints." + name
		if _, ok := constraints.ParseType(name); !ok {
			v.add(field, ErrInvalidSettings, "unknown constraint type %q", name)
		}
		if c.Mode != "" && c.Mode != "sequential" && c.Mode != "parallel" {
			v.add(field+".mode", ErrInvalidSettings, "mode must be sequential or parallel, got %q", c.Mode)
		}
		if c.Iterations < 0 {
			v.add(field+".iterations", ErrInvalidSettings, "iterations must not be negative")
		}
	}
}

func (v *validator) geometry(field string, c *ir.ColliderSpec) {
	switch c.Kind {
	case ir.ColliderSphere:
		if c.Radius <= 0 {
			v.add(field+".radius", ErrInvalidGeometry, "sphere needs a positive radius")
		}
	case ir.ColliderBox:
		if c.Size[0] <= 0 || c.Size[1] <= 0 || c.Size[2] <= 0 {
			v.add(field+".size", ErrInvalidGeometry, "box needs a positive size")
		}
	case ir.ColliderCapsule:
		if c.Radius <= 0 {
			v.add(field+".radius", ErrInvalidGeometry, "capsule needs a positive radius")
		}
		if c.Direction < 0 || c.Direction > 2 {
			v.add(field+".direction", ErrInvalidGeometry, "direction must be 0, 1 or 2")
		}
	case ir.ColliderHeightmap:
		if c.ResolutionX < 2 || c.ResolutionZ < 2 {
			v.add(field, ErrInvalidGeometry, "heightmap resolution must be at least 2x2")
			return
		}
		if want := c.ResolutionX * c.ResolutionZ; len(c.Heights) != want {
			v.add(field+".heights", ErrInvalidGeometry, "want %d heights, got %d", want, len(c.Heights))
		}
	case ir.ColliderMesh, ir.ColliderEdges:
		stride := 3
		if c.Kind == ir.ColliderEdges {
			stride = 2
		}
		if len(c.Indices) == 0 || len(c.Indices)%stride != 0 {
			v.add(field+".indices", ErrInvalidGeometry, "index count must be a positive multiple of %d", stride)
		}
		for _, idx := range c.Indices {
			if idx < 0 || idx >= len(c.Vertices) {
				v.add(field+".indices", ErrInvalidGeometry, "index %d out of range for %d vertices", idx, len(c.Vertices))
				break
			}
		}
	default:
		v.add(field+".kind", ErrInvalidGeometry, "unknown collider kind %q", c.Kind)
	}
}

func (v *validator) actor(a *ir.ActorSpec, colliders map[string]bool) {
	field := "actors." + a.Name
	n := len(a.Particles)
	if n == 0 {
		v.add(field, ErrEmptyActor, "actor has no particles")
	}
	for i, c := range a.Constraints {
		cf := fmt.Sprintf("%s.constraints[%d]", field, i)
		t, ok := constraints.ParseType(c.Type)
		if !ok {
			v.add(cf+".type", ErrUnknownConstraint, "unknown constraint type %q", c.Type)
			continue
		}
		if t.Generated() {
			v.add(cf+".type", ErrUnknownConstraint, "%s constraints are generated, not authored", t)
			continue
		}
		if want, exact := arity[t]; exact && len(c.Particles) != want {
			v.add(cf+".particles", ErrConstraintArity, "%s takes %d particles, got %d", t, want, len(c.Particles))
		}
		if least, ok := minArity[t]; ok && len(c.Particles) < least {
			v.add(cf+".particles", ErrConstraintArity, "%s takes at least %d particles, got %d", t, least, len(c.Particles))
		}
		for _, p := range c.Particles {
			if p < 0 || p >= n {
				v.add(cf+".particles", ErrParticleOutOfRange, "particle %d out of range for %d particles", p, n)
				break
			}
		}
		switch t {
		case constraints.Pin:
			if !colliders[c.Collider] {
				v.add(cf+".collider", ErrUnknownReference, "unknown collider %q", c.Collider)
			}
		case constraints.Volume:
			if len(c.Triangles) == 0 || len(c.Triangles)%3 != 0 {
				v.add(cf+".triangles", ErrInvalidTriangles, "triangle index count must be a positive multiple of 3")
			}
			for _, k := range c.Triangles {
				if k < 0 || k >= len(c.Particles) {
					v.add(cf+".triangles", ErrInvalidTriangles, "triangle index %d out of range for %d constraint particles", k, len(c.Particles))
					break
				}
			}
		}
	}
}

func (v *validator) stitchEnd(s *ir.Scene, field string, actors map[string]bool, name string, particle int) {
	if !actors[name] {
		v.add(field, ErrUnknownReference, "unknown actor %q", name)
		return
	}
	a, _ := s.Actor(name)
	if particle < 0 || particle >= len(a.Particles) {
		v.add(field, ErrInvalidStitch, "particle %d out of range for %d particles", particle, len(a.Particles))
	}
}
