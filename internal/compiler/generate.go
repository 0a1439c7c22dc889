package compiler

import (
	"math"

	"github.com/roach88/xpbd/internal/ir"
)

// RopeOptions describe a straight rope of Segments+1 particles.
type RopeOptions struct {
	Start, End     ir.Vec3
	Segments       int
	Radius         float64
	ParticleMass   float64
	Compliance     float64
	BendCompliance float64
	MaxBending     float64
}

// Rope lays particles evenly from Start to End, chains them with distance
// constraints at their spawn spacing and adds a bend constraint per
// consecutive triple.
func Rope(o RopeOptions) ([]ir.ParticleSpec, []ir.ConstraintSpec) {
	if o.Segments < 1 {
		return nil, nil
	}
	n := o.Segments + 1
	ps := make([]ir.ParticleSpec, n)
	for i := range ps {
		t := float64(i) / float64(o.Segments)
		ps[i] = ir.ParticleSpec{
			Position: lerp(o.Start, o.End, t),
			InvMass:  invMass(o.ParticleMass),
			Radius:   o.Radius,
		}
	}

	rest := distance(o.Start, o.End) / float64(o.Segments)
	cs := make([]ir.ConstraintSpec, 0, 2*n)
	for i := 0; i+1 < n; i++ {
		cs = append(cs, ir.ConstraintSpec{
			Type:       "distance",
			Particles:  []int{i, i + 1},
			Compliance: o.Compliance,
			RestLength: rest,
		})
	}
	for i := 0; i+2 < n; i++ {
		cs = append(cs, ir.ConstraintSpec{
			Type:       "bend",
			Particles:  []int{i, i + 1, i + 2},
			Compliance: o.BendCompliance,
			MaxBending: o.MaxBending,
		})
	}
	return ps, cs
}

// ClothOptions describe a rectangular sheet in the XZ plane starting at
// Origin.
type ClothOptions struct {
	Origin                   ir.Vec3
	Width, Depth             float64
	ResolutionX, ResolutionZ int
	Radius                   float64
	ParticleMass             float64
	Compliance               float64
	BendCompliance           float64
	// Shear adds diagonal distance constraints to every cell.
	Shear bool
	// Drag and Lift add an aerodynamic constraint per particle when either
	// is non-zero.
	Drag, Lift float64
}

// Cloth builds a ResolutionX by ResolutionZ particle grid. Particle (x, z)
// has index z*ResolutionX + x.
func Cloth(o ClothOptions) ([]ir.ParticleSpec, []ir.ConstraintSpec) {
	rx, rz := o.ResolutionX, o.ResolutionZ
	if rx < 2 || rz < 2 {
		return nil, nil
	}
	dx := o.Width / float64(rx-1)
	dz := o.Depth / float64(rz-1)
	at := func(x, z int) int { return z*rx + x }

	ps := make([]ir.ParticleSpec, 0, rx*rz)
	for z := 0; z < rz; z++ {
		for x := 0; x < rx; x++ {
			p := o.Origin
			p[0] += float64(x) * dx
			p[2] += float64(z) * dz
			ps = append(ps, ir.ParticleSpec{
				Position: p,
				InvMass:  invMass(o.ParticleMass),
				Radius:   o.Radius,
			})
		}
	}

	var cs []ir.ConstraintSpec
	link := func(a, b int) {
		cs = append(cs, ir.ConstraintSpec{
			Type:       "distance",
			Particles:  []int{a, b},
			Compliance: o.Compliance,
			RestLength: distance(ps[a].Position, ps[b].Position),
		})
	}
	bend := func(a, b, c int) {
		cs = append(cs, ir.ConstraintSpec{
			Type:       "bend",
			Particles:  []int{a, b, c},
			Compliance: o.BendCompliance,
		})
	}

	for z := 0; z < rz; z++ {
		for x := 0; x < rx; x++ {
			if x+1 < rx {
				link(at(x, z), at(x+1, z))
			}
			if z+1 < rz {
				link(at(x, z), at(x, z+1))
			}
			if o.Shear && x+1 < rx && z+1 < rz {
				link(at(x, z), at(x+1, z+1))
				link(at(x+1, z), at(x, z+1))
			}
		}
	}
	for z := 0; z < rz; z++ {
		for x := 0; x+2 < rx; x++ {
			bend(at(x, z), at(x+1, z), at(x+2, z))
		}
	}
	for x := 0; x < rx; x++ {
		for z := 0; z+2 < rz; z++ {
			bend(at(x, z), at(x, z+1), at(x, z+2))
		}
	}

	if o.Drag != 0 || o.Lift != 0 {
		area := dx * dz
		for i := range ps {
			cs = append(cs, ir.ConstraintSpec{
				Type:      "aerodynamic",
				Particles: []int{i},
				Area:      area,
				Drag:      o.Drag,
				Lift:      o.Lift,
			})
		}
	}
	return ps, cs
}

func invMass(mass float64) float64 {
	if mass <= 0 {
		return 0
	}
	return 1 / mass
}

func lerp(a, b ir.Vec3, t float64) ir.Vec3 {
	return ir.Vec3{
		a[0] + (b[0]-a[0])*t,
		a[1] + (b[1]-a[1])*t,
		a[2] + (b[2]-a[2])*t,
	}
}

func distance(a, b ir.Vec3) float64 {
	dx, dy, dz := b[0]-a[0], b[1]-a[1], b[2]-a[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
