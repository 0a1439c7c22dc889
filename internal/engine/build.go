package engine

import (
	"fmt"

	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/compiler"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/ir"
	"github.com/roach88/xpbd/internal/kernels"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/solver"
	"github.com/roach88/xpbd/internal/vmath"
)

// boundBody is a scene rigidbody living in the collider world.
type boundBody struct {
	name   string
	handle int
}

// boundCollider is a scene collider and the tracker mirroring it. Colliders
// attached to a body follow it at their build-time pose relative to it.
type boundCollider struct {
	name    string
	tracker collider.Tracker
	common  *collider.Collider
	body    int
	local   vmath.Affine
}

// SolverSettings converts scene settings. Fields left at zero keep their
// zero value, except Substeps, which falls back to the solver default.
func SolverSettings(s ir.Settings) (solver.Settings, error) {
	out := solver.DefaultSettings()
	out.Parameters = kernels.Parameters{
		Gravity:             vmath.Vec3(s.Gravity),
		Damping:             s.Damping,
		MaxVelocity:         s.MaxVelocity,
		MaxAngularVelocity:  s.MaxAngularVelocity,
		SleepThreshold:      s.SleepThreshold,
		CollisionMargin:     s.CollisionMargin,
		MaxDepenetration:    s.MaxDepenetration,
		ParticleFriction:    s.ParticleFriction,
		LinearInertiaScale:  s.LinearInertiaScale,
		AngularInertiaScale: s.AngularInertiaScale,
		Wind:                vmath.Vec3(s.Wind),
		AirDensity:          s.AirDensity,
		Interpolate:         s.Interpolate,
	}
	if s.Substeps > 0 {
		out.Substeps = s.Substeps
	}
	for name, c := range s.Constraints {
		t, ok := constraints.ParseType(name)
		if !ok {
			return out, fmt.Errorf("settings: unknown constraint type %q", name)
		}
		p := kernels.DefaultConstraintParameters(t)
		p.Enabled = c.Enabled
		p.Iterations = c.Iterations
		if c.SOR > 0 {
			p.SOR = c.SOR
		}
		switch c.Mode {
		case "":
		case kernels.Sequential.String():
			p.Mode = kernels.Sequential
		case kernels.Parallel.String():
			p.Mode = kernels.Parallel
		default:
			return out, fmt.Errorf("settings: %s: unknown mode %q", name, c.Mode)
		}
		out.Constraints[t] = p
	}
	return out, nil
}

// Blueprint converts an actor spec. shapes maps collider names to world
// shape handles for pin constraints.
func Blueprint(a *ir.ActorSpec, shapes map[string]int) (*solver.Blueprint, error) {
	bp := &solver.Blueprint{
		Name:          a.Name,
		Constraints:   constraints.NewSet(),
		SelfCollision: a.SelfCollision,
		OneSided:      a.OneSided,
		Filter:        filter(a.Category, a.Mask),
	}
	positions := make([]vmath.Vec3, len(a.Particles))
	invMasses := make([]float64, len(a.Particles))
	for i, p := range a.Particles {
		positions[i] = vmath.Vec3(p.Position)
		invMasses[i] = p.InvMass
		bp.Particles = append(bp.Particles, solver.ParticleDef{
			Position:          vmath.Vec3(p.Position),
			Velocity:          vmath.Vec3(p.Velocity),
			Orientation:       vmath.Identity(),
			InvMass:           p.InvMass,
			InvRotationalMass: p.InvRotationalMass,
			Radius:            p.Radius,
		})
	}

	set := bp.Constraints
	for i, c := range a.Constraints {
		ps := c.Particles
		for _, p := range ps {
			if p < 0 || p >= len(positions) {
				return nil, fmt.Errorf("actor %q constraint %d: particle %d out of range", a.Name, i, p)
			}
		}
		switch c.Type {
		case constraints.Distance.String():
			set.Distance.Add(ps, constraints.DistanceParams{
				RestLength:     c.RestLength,
				Compliance:     c.Compliance,
				MaxCompression: c.MaxCompression,
			})
		case constraints.Bend.String():
			set.Bend.Add(ps, constraints.BendParams{
				RestBend:   c.RestBend,
				MaxBending: c.MaxBending,
				Compliance: c.Compliance,
			})
		case constraints.Tether.String():
			set.Tether.Add(ps, constraints.TetherParams{
				MaxLength:  c.MaxLength,
				Scale:      c.Scale,
				Compliance: c.Compliance,
			})
		case constraints.Volume.String():
			set.Volume.Add(ps, constraints.VolumeParams{
				Triangles:  c.Triangles,
				RestVolume: kernels.Volume(positions, ps, c.Triangles),
				Pressure:   c.Pressure,
				Compliance: c.Compliance,
			})
		case constraints.ShapeMatching.String():
			rest := make([]vmath.Vec3, len(ps))
			w := make([]float64, len(ps))
			for k, p := range ps {
				rest[k] = positions[p]
				w[k] = invMasses[p]
			}
			set.ShapeMatching.Add(ps, constraints.ShapeMatchingParams{
				RestOffsets:  kernels.RestOffsets(rest, w),
				Compliance:   c.Compliance,
				PlasticYield: c.PlasticYield,
				PlasticCreep: c.PlasticCreep,
			})
		case constraints.Pin.String():
			shape, ok := shapes[c.Collider]
			if !ok {
				return nil, fmt.Errorf("actor %q constraint %d: unknown collider %q", a.Name, i, c.Collider)
			}
			set.Pin.Add(ps, constraints.PinParams{
				Shape:          shape,
				Offset:         vmath.Vec3(c.Offset),
				Compliance:     c.Compliance,
				BreakThreshold: c.BreakThreshold,
			})
		case constraints.Skin.String():
			set.Skin.Add(ps, constraints.SkinParams{
				Point:          vmath.Vec3(c.Point),
				Normal:         vmath.Vec3(c.Normal),
				Radius:         c.Radius,
				BackstopRadius: c.BackstopRadius,
				BackstopOffset: c.BackstopOffset,
				Compliance:     c.Compliance,
			})
		case constraints.Aerodynamic.String():
			set.Aerodynamic.Add(ps, constraints.AerodynamicParams{
				Area:            c.Area,
				DragCoefficient: c.Drag,
				LiftCoefficient: c.Lift,
			})
		case constraints.Stitch.String():
			set.Stitch.Add(ps, constraints.StitchParams{Compliance: c.Compliance})
		default:
			return nil, fmt.Errorf("actor %q constraint %d: type %q cannot be authored", a.Name, i, c.Type)
		}
	}
	return bp, bp.Validate()
}

func filter(category, mask uint16) particles.Filter {
	if category == 0 && mask == 0 {
		return particles.FilterAll
	}
	return particles.MakeFilter(category, mask)
}

func bodyTransform(rb ir.RigidbodySpec) vmath.Affine {
	return vmath.NewAffine(vmath.Vec3(rb.Position), vmath.FromEulerDegrees(vmath.Vec3(rb.Rotation)), vmath.Vec3{1, 1, 1})
}

// buildWorld creates materials, rigidbodies and collider trackers, and runs
// the first tracker update so every collider has a shape handle.
func (e *Engine) buildWorld() error {
	materials := make(map[string]int, len(e.scene.Materials))
	for _, m := range e.scene.Materials {
		materials[m.Name] = e.world.CreateMaterial(collider.Material{
			DynamicFriction: m.DynamicFriction,
			StaticFriction:  m.StaticFriction,
			Stickiness:      m.Stickiness,
		})
	}

	bodies := make(map[string]int, len(e.scene.Rigidbodies))
	for _, rb := range e.scene.Rigidbodies {
		h := e.world.CreateRigidbody(collider.Rigidbody{
			Transform:       bodyTransform(rb),
			Velocity:        vmath.Vec3(rb.Velocity),
			AngularVelocity: vmath.Vec3(rb.AngularVelocity),
			InvMass:         rb.InvMass,
			Kinematic:       rb.Kinematic,
		})
		bodies[rb.Name] = h
		e.bodies = append(e.bodies, boundBody{name: rb.Name, handle: h})
	}

	e.shapes = make(map[string]int, len(e.scene.Colliders))
	for i := range e.scene.Colliders {
		spec := &e.scene.Colliders[i]
		common := collider.DefaultCollider()
		common.Transform = compiler.ColliderTransform(spec)
		common.ContactOffset = spec.ContactOffset
		common.Filter = filter(spec.Category, spec.Mask)
		if spec.Material != "" {
			h, ok := materials[spec.Material]
			if !ok {
				return fmt.Errorf("collider %q: unknown material %q", spec.Name, spec.Material)
			}
			common.Material = h
		}
		bc := boundCollider{name: spec.Name, body: collider.NoRigidbody}
		if spec.Rigidbody != "" {
			h, ok := bodies[spec.Rigidbody]
			if !ok {
				return fmt.Errorf("collider %q: unknown rigidbody %q", spec.Name, spec.Rigidbody)
			}
			common.Rigidbody = h
			bc.body = h
			rb, _ := e.world.Rigidbody(h)
			bc.local = relativePose(rb.Transform, common.Transform)
		}

		tracker, c, err := newTracker(e.world, spec, common)
		if err != nil {
			return err
		}
		bc.tracker, bc.common = tracker, c
		tracker.UpdateIfNeeded()
		e.shapes[spec.Name] = tracker.Shape()
		e.colliders = append(e.colliders, bc)
	}
	return nil
}

func newTracker(w *collider.World, spec *ir.ColliderSpec, common collider.Collider) (collider.Tracker, *collider.Collider, error) {
	switch spec.Kind {
	case ir.ColliderSphere:
		src := &collider.SphereCollider{Collider: common, Radius: spec.Radius}
		return collider.NewSphereTracker(w, src), &src.Collider, nil
	case ir.ColliderBox:
		src := &collider.BoxCollider{Collider: common, Size: vmath.Vec3(spec.Size)}
		return collider.NewBoxTracker(w, src), &src.Collider, nil
	case ir.ColliderCapsule:
		src := &collider.CapsuleCollider{Collider: common, Radius: spec.Radius, Height: spec.Height, Direction: spec.Direction}
		return collider.NewCapsuleTracker(w, src), &src.Collider, nil
	case ir.ColliderHeightmap:
		src := &collider.TerrainCollider{
			Collider: common,
			Data: &collider.HeightFieldSource{
				ResolutionX: spec.ResolutionX,
				ResolutionZ: spec.ResolutionZ,
				Heights:     spec.Heights,
			},
			Size: vmath.Vec3(spec.Size),
		}
		return collider.NewTerrainTracker(w, src), &src.Collider, nil
	case ir.ColliderMesh:
		src := &collider.MeshCollider{
			Collider: common,
			Mesh:     &collider.MeshSource{Vertices: toVecs(spec.Vertices), Triangles: spec.Indices},
		}
		return collider.NewMeshTracker(w, src), &src.Collider, nil
	case ir.ColliderEdges:
		src := &collider.EdgeCollider{
			Collider: common,
			Mesh:     &collider.EdgeMeshSource{Vertices: toVecs(spec.Vertices), Edges: spec.Indices},
		}
		return collider.NewEdgeMeshTracker(w, src), &src.Collider, nil
	default:
		return nil, nil, fmt.Errorf("collider %q: unknown kind %q", spec.Name, spec.Kind)
	}
}

// relativePose expresses child in parent's frame, ignoring parent scale.
func relativePose(parent, child vmath.Affine) vmath.Affine {
	inv := parent.Rotation.Inverse()
	return vmath.Affine{
		Translation: inv.Rotate(child.Translation.Sub(parent.Translation)),
		Rotation:    inv.Mul(child.Rotation),
		Scale:       child.Scale,
	}
}

// composePose is the inverse of relativePose.
func composePose(parent, local vmath.Affine) vmath.Affine {
	return vmath.Affine{
		Translation: parent.Translation.Add(parent.Rotation.Rotate(local.Translation)),
		Rotation:    parent.Rotation.Mul(local.Rotation).Normalize(),
		Scale:       local.Scale,
	}
}

func toVecs(in []ir.Vec3) []vmath.Vec3 {
	out := make([]vmath.Vec3, len(in))
	for i, v := range in {
		out[i] = vmath.Vec3(v)
	}
	return out
}

// buildActors instantiates every actor, attaches it, then registers zones
// and stitches.
func (e *Engine) buildActors() error {
	e.actorIndex = make(map[string]int, len(e.scene.Actors))
	for i := range e.scene.Actors {
		spec := &e.scene.Actors[i]
		bp, err := Blueprint(spec, e.shapes)
		if err != nil {
			return err
		}
		a := solver.NewActor(bp)
		if err := a.AddToSolver(e.solver); err != nil {
			return fmt.Errorf("attach %q: %w", spec.Name, err)
		}
		e.actorIndex[spec.Name] = len(e.actors)
		e.actors = append(e.actors, a)
	}

	for _, z := range e.scene.Zones {
		switch z.Kind {
		case ir.ZoneWind:
			e.solver.AddForceProvider(&solver.WindZone{
				Velocity: vmath.Vec3(z.Velocity),
				Bounds:   vmath.AABB{Min: vmath.Vec3(z.Min), Max: vmath.Vec3(z.Max)},
				Drag:     z.Drag,
			})
		case ir.ZoneGravityWell:
			e.solver.AddForceProvider(&solver.GravityWell{
				Center:   vmath.Vec3(z.Center),
				Radius:   z.Radius,
				Strength: z.Strength,
			})
		default:
			return fmt.Errorf("zone: unknown kind %q", z.Kind)
		}
	}

	for _, st := range e.scene.Stitches {
		if _, err := e.addStitch(st); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) addStitch(st ir.StitchSpec) (bool, error) {
	ai, ok := e.actorIndex[st.ActorA]
	if !ok {
		return false, fmt.Errorf("stitch: unknown actor %q", st.ActorA)
	}
	bi, ok := e.actorIndex[st.ActorB]
	if !ok {
		return false, fmt.Errorf("stitch: unknown actor %q", st.ActorB)
	}
	return e.solver.AddStitch(&solver.Stitch{
		A:          e.actors[ai],
		B:          e.actors[bi],
		PA:         st.ParticleA,
		PB:         st.ParticleB,
		Compliance: st.Compliance,
	}), nil
}
