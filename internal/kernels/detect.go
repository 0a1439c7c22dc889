package kernels

import (
	"github.com/roach88/xpbd/internal/collider"
	"github.com/roach88/xpbd/internal/constraints"
	"github.com/roach88/xpbd/internal/particles"
	"github.com/roach88/xpbd/internal/vmath"
)

// Contacts holds the constraints generated by the latest collision
// detection, already split into conflict-free batches.
type Contacts struct {
	Particle *constraints.Container[constraints.ParticleContact]
	Collider *constraints.Container[constraints.ColliderContact]
}

// NewContacts returns empty contact containers.
func NewContacts() *Contacts {
	return &Contacts{
		Particle: constraints.NewContainer[constraints.ParticleContact](constraints.ParticleCollision),
		Collider: constraints.NewContainer[constraints.ColliderContact](constraints.Collision),
	}
}

// Containers returns both containers in evaluation order.
func (c *Contacts) Containers() []constraints.AnyContainer {
	return []constraints.AnyContainer{c.Particle, c.Collider}
}

// Count returns the total number of contacts.
func (c *Contacts) Count() int {
	return c.Particle.ConstraintCount() + c.Collider.ConstraintCount()
}

// sweptBounds is the box a particle may occupy over the coming step.
func sweptBounds(ctx *Context, i int) vmath.AABB {
	buf := ctx.Particles
	r := buf.Radii[i] + ctx.Params.CollisionMargin
	p := buf.Positions[i]
	next := p.Add(buf.Velocities[i].Mul(ctx.StepTime))
	return vmath.AABBFromPoint(p, r).EncapsulateBounds(vmath.AABBFromPoint(next, r))
}

// Detect rebuilds both contact containers from the current particle state
// and the collider world. Results depend only on the inputs, never on map
// iteration or scheduling order.
func (c *Contacts) Detect(ctx *Context) {
	c.Particle.Clear()
	c.Collider.Clear()

	buf := ctx.Particles
	active := buf.ActiveIndices()
	if len(active) == 0 {
		return
	}

	bounds := make([]vmath.AABB, buf.Capacity())
	maxRadius := 0.0
	finite := active[:0:0]
	for _, i := range active {
		b := sweptBounds(ctx, i)
		// A diverged particle fails the step later; it must not reach
		// the grid, whose cell range would be unbounded.
		if !vmath.IsFiniteVec(b.Min) || !vmath.IsFiniteVec(b.Max) {
			continue
		}
		bounds[i] = b
		finite = append(finite, i)
		maxRadius = max(maxRadius, buf.Radii[i])
	}
	active = finite

	c.detectParticlePairs(ctx, active, bounds, 2*maxRadius+ctx.Params.CollisionMargin)
	if ctx.World != nil {
		c.detectColliders(ctx, active, bounds)
	}
}

func canCollide(buf *particles.Buffer, i, j int) bool {
	if buf.InvMasses[i] == 0 && buf.InvMasses[j] == 0 {
		return false
	}
	pi, pj := buf.Phases[i], buf.Phases[j]
	if pi.Group() == pj.Group() && !(pi.Has(particles.SelfCollide) && pj.Has(particles.SelfCollide)) {
		return false
	}
	return buf.Filters[i].CollidesWith(buf.Filters[j])
}

func (c *Contacts) detectParticlePairs(ctx *Context, active []int, bounds []vmath.AABB, cell float64) {
	buf := ctx.Particles
	grid := newHashGrid(cell)
	for _, i := range active {
		grid.insert(i, bounds[i])
	}

	var pairs [][]int
	var normals []vmath.Vec3
	var scratch []int
	for _, i := range active {
		scratch = grid.candidates(i, bounds[i], scratch)
		for _, j := range scratch {
			if !bounds[i].Intersects(bounds[j]) || !canCollide(buf, i, j) {
				continue
			}
			n, _ := vmath.SafeNormalize(buf.Positions[i].Sub(buf.Positions[j]))
			pairs = append(pairs, []int{i, j})
			normals = append(normals, n)
		}
	}

	friction := ctx.Params.ParticleFriction
	for _, group := range constraints.Partition(pairs) {
		b := constraints.NewBatch[constraints.ParticleContact](constraints.ParticleCollision)
		for _, k := range group {
			b.Add(pairs[k], constraints.ParticleContact{Normal: normals[k], Friction: friction})
		}
		c.Particle.AddBatch(b)
	}
}

func (c *Contacts) detectColliders(ctx *Context, active []int, bounds []vmath.AABB) {
	buf := ctx.Particles
	world := ctx.World

	var particlesOf [][]int
	var contacts []constraints.ColliderContact
	for _, i := range active {
		if buf.InvMasses[i] == 0 {
			continue
		}
		box := bounds[i]
		if ctx.Frame != nil {
			box = box.Transformed(ctx.Frame.Frame)
		}
		scale := 1.0
		if ctx.Frame != nil {
			scale = ctx.Frame.Frame.MaxScale()
		}
		reach := (buf.Radii[i] + ctx.Params.CollisionMargin + buf.Velocities[i].Len()*ctx.StepTime) * scale
		pos := ctx.toWorld(buf.Positions[i])

		world.Overlapping(box, func(shape int, s *collider.Shape) {
			if !buf.Filters[i].CollidesWith(s.Filter) {
				return
			}
			pr, ok := world.ProjectShape(s, pos)
			if !ok {
				return
			}
			if pr.Distance < 0 && buf.Phases[i].Has(particles.OneSided) {
				return
			}
			if pr.Distance > reach+s.ContactOffset {
				return
			}
			m := world.Material(s.Material)
			particlesOf = append(particlesOf, []int{i})
			contacts = append(contacts, constraints.ColliderContact{
				Shape:    shape,
				Point:    ctx.toLocal(pr.Point),
				Normal:   ctx.directionToLocal(pr.Normal),
				Offset:   s.ContactOffset,
				Friction: m.DynamicFriction,
				Static:   m.StaticFriction,
			})
		})
	}

	for _, group := range constraints.Partition(particlesOf) {
		b := constraints.NewBatch[constraints.ColliderContact](constraints.Collision)
		for _, k := range group {
			b.Add(particlesOf[k], contacts[k])
		}
		c.Collider.AddBatch(b)
	}
}
