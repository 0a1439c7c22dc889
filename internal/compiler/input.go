package compiler

import "github.com/roach88/xpbd/internal/ir"

// The input types mirror the schema definitions. Vectors decode as slices;
// the schema guarantees their length.

type settingsInput struct {
	Backend            string                           `json:"backend"`
	StepTime           float64                          `json:"step_time"`
	Substeps           int                              `json:"substeps"`
	MaxStepsPerFrame   int                              `json:"max_steps_per_frame"`
	Gravity            []float64                        `json:"gravity"`
	Damping            float64                          `json:"damping"`
	MaxVelocity        float64                          `json:"max_velocity"`
	MaxAngularVelocity float64                          `json:"max_angular_velocity"`
	SleepThreshold     float64                          `json:"sleep_threshold"`
	CollisionMargin    float64                          `json:"collision_margin"`
	MaxDepenetration   float64                          `json:"max_depenetration"`
	ParticleFriction   float64                          `json:"particle_friction"`
	Wind               []float64                        `json:"wind"`
	AirDensity         float64                          `json:"air_density"`
	Interpolate        bool                             `json:"interpolate"`
	Transform          transformInput                   `json:"transform"`
	LinearInertia      float64                          `json:"linear_inertia_scale"`
	AngularInertia     float64                          `json:"angular_inertia_scale"`
	Constraints        map[string]ir.ConstraintSettings `json:"constraints"`
}

type transformInput struct {
	Position []float64 `json:"position"`
	Rotation []float64 `json:"rotation"`
	Scale    []float64 `json:"scale"`
}

func (in transformInput) spec() ir.TransformSpec {
	return ir.TransformSpec{
		Position: vec(in.Position),
		Rotation: vec(in.Rotation),
		Scale:    vec(in.Scale),
	}
}

type materialInput struct {
	DynamicFriction float64 `json:"dynamic_friction"`
	StaticFriction  float64 `json:"static_friction"`
	Stickiness      float64 `json:"stickiness"`
}

type rigidbodyInput struct {
	Position        []float64 `json:"position"`
	Rotation        []float64 `json:"rotation"`
	Velocity        []float64 `json:"velocity"`
	AngularVelocity []float64 `json:"angular_velocity"`
	InvMass         float64   `json:"inv_mass"`
	Kinematic       bool      `json:"kinematic"`
}

type colliderInput struct {
	Kind          string      `json:"kind"`
	Position      []float64   `json:"position"`
	Rotation      []float64   `json:"rotation"`
	Scale         []float64   `json:"scale"`
	Radius        float64     `json:"radius"`
	Size          []float64   `json:"size"`
	Height        float64     `json:"height"`
	Direction     int         `json:"direction"`
	ResolutionX   int         `json:"resolution_x"`
	ResolutionZ   int         `json:"resolution_z"`
	Heights       []float64   `json:"heights"`
	Vertices      [][]float64 `json:"vertices"`
	Indices       []int       `json:"indices"`
	ContactOffset float64     `json:"contact_offset"`
	Category      int         `json:"category"`
	Mask          int         `json:"mask"`
	Rigidbody     string      `json:"rigidbody"`
	Material      string      `json:"material"`
}

func (in colliderInput) spec(name string) ir.ColliderSpec {
	return ir.ColliderSpec{
		Name:          name,
		Kind:          in.Kind,
		Position:      vec(in.Position),
		Rotation:      vec(in.Rotation),
		Scale:         vec(in.Scale),
		Radius:        in.Radius,
		Size:          vec(in.Size),
		Height:        in.Height,
		Direction:     in.Direction,
		ResolutionX:   in.ResolutionX,
		ResolutionZ:   in.ResolutionZ,
		Heights:       in.Heights,
		Vertices:      vecs(in.Vertices),
		Indices:       in.Indices,
		ContactOffset: in.ContactOffset,
		Category:      uint16(in.Category),
		Mask:          uint16(in.Mask),
		Rigidbody:     in.Rigidbody,
		Material:      in.Material,
	}
}

type particleInput struct {
	Position          []float64 `json:"position"`
	Velocity          []float64 `json:"velocity"`
	InvMass           float64   `json:"inv_mass"`
	InvRotationalMass float64   `json:"inv_rotational_mass"`
	Radius            float64   `json:"radius"`
}

func (in particleInput) spec() ir.ParticleSpec {
	return ir.ParticleSpec{
		Position:          vec(in.Position),
		Velocity:          vec(in.Velocity),
		InvMass:           in.InvMass,
		InvRotationalMass: in.InvRotationalMass,
		Radius:            in.Radius,
	}
}

type constraintInput struct {
	Type           string    `json:"type"`
	Particles      []int     `json:"particles"`
	Compliance     float64   `json:"compliance"`
	RestLength     float64   `json:"rest_length"`
	MaxCompression float64   `json:"max_compression"`
	RestBend       float64   `json:"rest_bend"`
	MaxBending     float64   `json:"max_bending"`
	MaxLength      float64   `json:"max_length"`
	Scale          *float64  `json:"scale"`
	Pressure       *float64  `json:"pressure"`
	Triangles      []int     `json:"triangles"`
	Collider       string    `json:"collider"`
	Offset         []float64 `json:"offset"`
	BreakThreshold float64   `json:"break_threshold"`
	Point          []float64 `json:"point"`
	Normal         []float64 `json:"normal"`
	Radius         float64   `json:"radius"`
	BackstopRadius float64   `json:"backstop_radius"`
	BackstopOffset float64   `json:"backstop_offset"`
	PlasticYield   float64   `json:"plastic_yield"`
	PlasticCreep   float64   `json:"plastic_creep"`
	Area           float64   `json:"area"`
	Drag           float64   `json:"drag"`
	Lift           float64   `json:"lift"`
}

// spec fills the unit defaults of tether scale and volume pressure.
func (in constraintInput) spec() ir.ConstraintSpec {
	c := ir.ConstraintSpec{
		Type:           in.Type,
		Particles:      in.Particles,
		Compliance:     in.Compliance,
		RestLength:     in.RestLength,
		MaxCompression: in.MaxCompression,
		RestBend:       in.RestBend,
		MaxBending:     in.MaxBending,
		MaxLength:      in.MaxLength,
		Scale:          1,
		Pressure:       1,
		Triangles:      in.Triangles,
		Collider:       in.Collider,
		Offset:         vec(in.Offset),
		BreakThreshold: in.BreakThreshold,
		Point:          vec(in.Point),
		Normal:         vec(in.Normal),
		Radius:         in.Radius,
		BackstopRadius: in.BackstopRadius,
		BackstopOffset: in.BackstopOffset,
		PlasticYield:   in.PlasticYield,
		PlasticCreep:   in.PlasticCreep,
		Area:           in.Area,
		Drag:           in.Drag,
		Lift:           in.Lift,
	}
	if in.Scale != nil {
		c.Scale = *in.Scale
	}
	if in.Pressure != nil {
		c.Pressure = *in.Pressure
	}
	return c
}

type pinInput struct {
	Collider       string    `json:"collider"`
	Particle       int       `json:"particle"`
	Offset         []float64 `json:"offset"`
	Compliance     float64   `json:"compliance"`
	BreakThreshold float64   `json:"break_threshold"`
}

type ropeInput struct {
	Start          []float64 `json:"start"`
	End            []float64 `json:"end"`
	Segments       int       `json:"segments"`
	Radius         float64   `json:"radius"`
	ParticleMass   float64   `json:"particle_mass"`
	Compliance     float64   `json:"compliance"`
	BendCompliance float64   `json:"bend_compliance"`
	MaxBending     float64   `json:"max_bending"`
}

func (in *ropeInput) options() RopeOptions {
	return RopeOptions{
		Start:          vec(in.Start),
		End:            vec(in.End),
		Segments:       in.Segments,
		Radius:         in.Radius,
		ParticleMass:   in.ParticleMass,
		Compliance:     in.Compliance,
		BendCompliance: in.BendCompliance,
		MaxBending:     in.MaxBending,
	}
}

type clothInput struct {
	Origin         []float64 `json:"origin"`
	Size           []float64 `json:"size"`
	Resolution     []int     `json:"resolution"`
	Radius         float64   `json:"radius"`
	ParticleMass   float64   `json:"particle_mass"`
	Compliance     float64   `json:"compliance"`
	BendCompliance float64   `json:"bend_compliance"`
	Shear          bool      `json:"shear"`
	Drag           float64   `json:"drag"`
	Lift           float64   `json:"lift"`
}

func (in *clothInput) options() ClothOptions {
	return ClothOptions{
		Origin:         vec(in.Origin),
		Width:          in.Size[0],
		Depth:          in.Size[1],
		ResolutionX:    in.Resolution[0],
		ResolutionZ:    in.Resolution[1],
		Radius:         in.Radius,
		ParticleMass:   in.ParticleMass,
		Compliance:     in.Compliance,
		BendCompliance: in.BendCompliance,
		Shear:          in.Shear,
		Drag:           in.Drag,
		Lift:           in.Lift,
	}
}

type actorInput struct {
	Category      int               `json:"category"`
	Mask          int               `json:"mask"`
	SelfCollision bool              `json:"self_collision"`
	OneSided      bool              `json:"one_sided"`
	Particles     []particleInput   `json:"particles"`
	Constraints   []constraintInput `json:"constraints"`
	Rope          *ropeInput        `json:"rope"`
	Cloth         *clothInput       `json:"cloth"`
	Pins          []pinInput        `json:"pins"`
}

type zoneInput struct {
	Kind     string    `json:"kind"`
	Velocity []float64 `json:"velocity"`
	Min      []float64 `json:"min"`
	Max      []float64 `json:"max"`
	Drag     float64   `json:"drag"`
	Center   []float64 `json:"center"`
	Radius   float64   `json:"radius"`
	Strength float64   `json:"strength"`
}

func (in zoneInput) spec() ir.ZoneSpec {
	return ir.ZoneSpec{
		Kind:     in.Kind,
		Velocity: vec(in.Velocity),
		Min:      vec(in.Min),
		Max:      vec(in.Max),
		Drag:     in.Drag,
		Center:   vec(in.Center),
		Radius:   in.Radius,
		Strength: in.Strength,
	}
}
