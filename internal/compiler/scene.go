package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/vmath"
)

//go:embed schema.cue
var schemaSource string

// CompileFile reads and compiles a single CUE scene file.
func CompileFile(path string) (*ir.Scene, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return CompileSource(path, src)
}

// CompileSource compiles scene source text. name is used for positions in
// error messages.
func CompileSource(name string, src []byte) (*ir.Scene, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileScene(v)
}

// CompileScene compiles a CUE value holding one scene. The value is unified
// with the scene schema first, so defaults apply and unknown fields are
// rejected.
func CompileScene(v cue.Value) (*ir.Scene, error) {
	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("scene schema: %w", err)
	}
	v = schema.LookupPath(cue.ParsePath("#Scene")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	scene := &ir.Scene{}
	if name := v.LookupPath(cue.ParsePath("name")); name.Exists() {
		s, err := name.String()
		if err != nil {
			return nil, fieldError("name", err, name)
		}
		scene.Name = s
	}

	settings, err := compileSettings(v.LookupPath(cue.ParsePath("settings")))
	if err != nil {
		return nil, err
	}
	scene.Settings = settings

	err = eachField(v, "materials", func(name string, f cue.Value) error {
		var in materialInput
		if err := f.Decode(&in); err != nil {
			return fieldError("materials."+name, err, f)
		}
		scene.Materials = append(scene.Materials, ir.MaterialSpec{
			Name:            name,
			DynamicFriction: in.DynamicFriction,
			StaticFriction:  in.StaticFriction,
			Stickiness:      in.Stickiness,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "rigidbodies", func(name string, f cue.Value) error {
		var in rigidbodyInput
		if err := f.Decode(&in); err != nil {
			return fieldError("rigidbodies."+name, err, f)
		}
		scene.Rigidbodies = append(scene.Rigidbodies, ir.RigidbodySpec{
			Name:            name,
			Position:        vec(in.Position),
			Rotation:        vec(in.Rotation),
			Velocity:        vec(in.Velocity),
			AngularVelocity: vec(in.AngularVelocity),
			InvMass:         in.InvMass,
			Kinematic:       in.Kinematic,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "colliders", func(name string, f cue.Value) error {
		var in colliderInput
		if err := f.Decode(&in); err != nil {
			return fieldError("colliders."+name, err, f)
		}
		scene.Colliders = append(scene.Colliders, in.spec(name))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachField(v, "actors", func(name string, f cue.Value) error {
		actor, err := compileActor(scene, name, f)
		if err != nil {
			return err
		}
		scene.Actors = append(scene.Actors, *actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	stitches := v.LookupPath(cue.ParsePath("stitches"))
	if err := stitches.Decode(&scene.Stitches); err != nil {
		return nil, fieldError("stitches", err, stitches)
	}

	zones := v.LookupPath(cue.ParsePath("zones"))
	var zoneIn []zoneInput
	if err := zones.Decode(&zoneIn); err != nil {
		return nil, fieldError("zones", err, zones)
	}
	for _, z := range zoneIn {
		scene.Zones = append(scene.Zones, z.spec())
	}

	return scene, nil
}

// eachField calls fn for every field of the struct at path, in declaration
// order. A missing struct is not an error.
func eachField(v cue.Value, path string, fn func(name string, f cue.Value) error) error {
	s := v.LookupPath(cue.ParsePath(path))
	if !s.Exists() {
		return nil
	}
	iter, err := s.Fields()
	if err != nil {
		return fieldError(path, err, s)
	}
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func fieldError(field string, err error, v cue.Value) *CompileError {
	return &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
}

func compileSettings(v cue.Value) (ir.Settings, error) {
	var in settingsInput
	if err := v.Decode(&in); err != nil {
		return ir.Settings{}, fieldError("settings", err, v)
	}
	s := ir.Settings{
		Backend:            in.Backend,
		StepTime:           in.StepTime,
		Substeps:           in.Substeps,
		MaxStepsPerFrame:   in.MaxStepsPerFrame,
		Gravity:            vec(in.Gravity),
		Damping:            in.Damping,
		MaxVelocity:        in.MaxVelocity,
		MaxAngularVelocity: in.MaxAngularVelocity,
		SleepThreshold:     in.SleepThreshold,
		CollisionMargin:    in.CollisionMargin,
		MaxDepenetration:   in.MaxDepenetration,
		ParticleFriction:   in.ParticleFriction,
		Wind:               vec(in.Wind),
		AirDensity:         in.AirDensity,
		Interpolate:        in.Interpolate,

		Transform:           in.Transform.spec(),
		LinearInertiaScale:  in.LinearInertia,
		AngularInertiaScale: in.AngularInertia,
	}
	if len(in.Constraints) > 0 {
		s.Constraints = in.Constraints
	}
	return s, nil
}

func compileActor(scene *ir.Scene, name string, v cue.Value) (*ir.ActorSpec, error) {
	field := "actors." + name
	var in actorInput
	if err := v.Decode(&in); err != nil {
		return nil, fieldError(field, err, v)
	}

	sources := 0
	for _, set := range []bool{in.Particles != nil, in.Rope != nil, in.Cloth != nil} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, &CompileError{
			Field:   field,
			Message: "exactly one of particles, rope or cloth is required",
			Pos:     v.Pos(),
		}
	}

	actor := &ir.ActorSpec{
		Name:          name,
		SelfCollision: in.SelfCollision,
		OneSided:      in.OneSided,
		Category:      uint16(in.Category),
		Mask:          uint16(in.Mask),
	}
	switch {
	case in.Rope != nil:
		actor.Particles, actor.Constraints = Rope(in.Rope.options())
	case in.Cloth != nil:
		actor.Particles, actor.Constraints = Cloth(in.Cloth.options())
	default:
		for _, p := range in.Particles {
			actor.Particles = append(actor.Particles, p.spec())
		}
	}
	for _, c := range in.Constraints {
		actor.Constraints = append(actor.Constraints, c.spec())
	}

	for i, pin := range in.Pins {
		c, err := compilePin(scene, actor, pin)
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.pins[%d]", field, i),
				Message: err.Error(),
				Pos:     v.LookupPath(cue.ParsePath("pins")).Pos(),
			}
		}
		actor.Constraints = append(actor.Constraints, c)
	}
	return actor, nil
}

// compilePin resolves a pin's particle and, when no offset is given,
// computes it from the particle's rest position in the collider's frame.
func compilePin(scene *ir.Scene, actor *ir.ActorSpec, in pinInput) (ir.ConstraintSpec, error) {
	var collider *ir.ColliderSpec
	for i := range scene.Colliders {
		if scene.Colliders[i].Name == in.Collider {
			collider = &scene.Colliders[i]
			break
		}
	}
	if collider == nil {
		return ir.ConstraintSpec{}, fmt.Errorf("unknown collider %q", in.Collider)
	}

	n := len(actor.Particles)
	index := in.Particle
	if index < 0 {
		index += n
	}
	if index < 0 || index >= n {
		return ir.ConstraintSpec{}, fmt.Errorf("particle %d out of range for %d particles", in.Particle, n)
	}

	c := ir.ConstraintSpec{
		Type:           "pin",
		Particles:      []int{index},
		Compliance:     in.Compliance,
		Collider:       in.Collider,
		BreakThreshold: in.BreakThreshold,
	}
	if in.Offset != nil {
		c.Offset = vec(in.Offset)
	} else {
		local := ColliderTransform(collider).InverseTransformPoint(vmath.Vec3(actor.Particles[index].Position))
		c.Offset = ir.Vec3(local)
	}
	return c, nil
}

// ColliderTransform is the local-to-world transform of a collider spec. A
// zero scale component counts as 1.
func ColliderTransform(c *ir.ColliderSpec) vmath.Affine {
	return affine(c.Position, c.Rotation, c.Scale)
}

// SolverTransform is the transform of the solver's local space.
func SolverTransform(t ir.TransformSpec) vmath.Affine {
	return affine(t.Position, t.Rotation, t.Scale)
}

func affine(position, rotation, scale ir.Vec3) vmath.Affine {
	s := vmath.Vec3(scale)
	for i := range s {
		if s[i] == 0 {
			s[i] = 1
		}
	}
	return vmath.NewAffine(vmath.Vec3(position), vmath.FromEulerDegrees(vmath.Vec3(rotation)), s)
}

func vec(v []float64) ir.Vec3 {
	var out ir.Vec3
	copy(out[:], v)
	return out
}

func vecs(in [][]float64) []ir.Vec3 {
	if len(in) == 0 {
		return nil
	}
	out := make([]ir.Vec3, len(in))
	for i, v := range in {
		out[i] = vec(v)
	}
	return out
}
