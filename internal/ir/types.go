package ir

// Vec3 is a plain three-component vector.
type Vec3 = [3]float64

// Scene is a compiled simulation scene: solver settings plus everything the
// engine instantiates at startup.
type Scene struct {
	Name        string          `json:"name"`
	Settings    Settings        `json:"settings"`
	Materials   []MaterialSpec  `json:"materials,omitempty"`
	Rigidbodies []RigidbodySpec `json:"rigidbodies,omitempty"`
	Colliders   []ColliderSpec  `json:"colliders,omitempty"`
	Actors      []ActorSpec     `json:"actors"`
	Stitches    []StitchSpec    `json:"stitches,omitempty"`
	Zones       []ZoneSpec      `json:"zones,omitempty"`
}

// Settings are the solver-wide parameters of a scene.
type Settings struct {
	Backend  string  `json:"backend,omitempty"`
	StepTime float64 `json:"step_time"`
	Substeps int     `json:"substeps"`
	// MaxStepsPerFrame bounds how many fixed steps one engine tick may run.
	MaxStepsPerFrame int `json:"max_steps_per_frame,omitempty"`

	Gravity            Vec3    `json:"gravity"`
	Damping            float64 `json:"damping,omitempty"`
	MaxVelocity        float64 `json:"max_velocity,omitempty"`
	MaxAngularVelocity float64 `json:"max_angular_velocity,omitempty"`
	SleepThreshold     float64 `json:"sleep_threshold,omitempty"`
	CollisionMargin    float64 `json:"collision_margin,omitempty"`
	MaxDepenetration   float64 `json:"max_depenetration,omitempty"`
	ParticleFriction   float64 `json:"particle_friction,omitempty"`
	Wind               Vec3    `json:"wind"`
	AirDensity         float64 `json:"air_density,omitempty"`
	Interpolate        bool    `json:"interpolate"`

	// Transform places the solver's local space in the world. Particles
	// simulate in that space; moving it applies fictitious forces weighted
	// by the inertia scales.
	Transform           TransformSpec `json:"transform"`
	LinearInertiaScale  float64       `json:"linear_inertia_scale,omitempty"`
	AngularInertiaScale float64       `json:"angular_inertia_scale,omitempty"`

	// Constraints holds per-type solve settings keyed by type name.
	Constraints map[string]ConstraintSettings `json:"constraints,omitempty"`
}

// TransformSpec is a translation, Euler XYZ rotation in degrees and scale.
type TransformSpec struct {
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"` // zero means 1
}

// ConstraintSettings configure how one constraint type is solved.
type ConstraintSettings struct {
	Enabled    bool    `json:"enabled"`
	Iterations int     `json:"iterations"`
	SOR        float64 `json:"sor"`
	Mode       string  `json:"mode"` // "sequential" or "parallel"
}

// MaterialSpec is a named friction material.
type MaterialSpec struct {
	Name            string  `json:"name"`
	DynamicFriction float64 `json:"dynamic_friction"`
	StaticFriction  float64 `json:"static_friction"`
	Stickiness      float64 `json:"stickiness,omitempty"`
}

// RigidbodySpec is a named body colliders and pins can attach to.
type RigidbodySpec struct {
	Name            string  `json:"name"`
	Position        Vec3    `json:"position"`
	Rotation        Vec3    `json:"rotation"` // Euler XYZ, degrees
	Velocity        Vec3    `json:"velocity"`
	AngularVelocity Vec3    `json:"angular_velocity"`
	InvMass         float64 `json:"inv_mass"`
	Kinematic       bool    `json:"kinematic,omitempty"`
}

// Collider kinds.
const (
	ColliderSphere    = "sphere"
	ColliderBox       = "box"
	ColliderCapsule   = "capsule"
	ColliderHeightmap = "heightmap"
	ColliderMesh      = "triangle_mesh"
	ColliderEdges     = "edge_mesh"
)

// ColliderSpec is one collider shape. Which geometry fields apply depends
// on Kind.
type ColliderSpec struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"` // Euler XYZ, degrees
	Scale    Vec3   `json:"scale"`    // zero means 1

	Radius    float64 `json:"radius,omitempty"`
	Size      Vec3    `json:"size"`
	Height    float64 `json:"height,omitempty"`
	Direction int     `json:"direction,omitempty"`

	// Heightmap: Size spans the grid, Heights are normalized samples.
	ResolutionX int       `json:"resolution_x,omitempty"`
	ResolutionZ int       `json:"resolution_z,omitempty"`
	Heights     []float64 `json:"heights,omitempty"`

	// Triangle and edge meshes.
	Vertices []Vec3 `json:"vertices,omitempty"`
	Indices  []int  `json:"indices,omitempty"`

	ContactOffset float64 `json:"contact_offset,omitempty"`
	Category      uint16  `json:"category,omitempty"`
	Mask          uint16  `json:"mask,omitempty"`
	Rigidbody     string  `json:"rigidbody,omitempty"`
	Material      string  `json:"material,omitempty"`
}

// ActorSpec is an actor with explicit particles and constraints. Generated
// actors (rope, cloth) are expanded by the compiler.
type ActorSpec struct {
	Name          string           `json:"name"`
	Particles     []ParticleSpec   `json:"particles"`
	Constraints   []ConstraintSpec `json:"constraints,omitempty"`
	SelfCollision bool             `json:"self_collision,omitempty"`
	OneSided      bool             `json:"one_sided,omitempty"`
	Category      uint16           `json:"category,omitempty"`
	Mask          uint16           `json:"mask,omitempty"`
}

// ParticleSpec is the initial state of one particle.
type ParticleSpec struct {
	Position          Vec3    `json:"position"`
	Velocity          Vec3    `json:"velocity"`
	InvMass           float64 `json:"inv_mass"`
	InvRotationalMass float64 `json:"inv_rotational_mass,omitempty"`
	Radius            float64 `json:"radius"`
}

// ConstraintSpec is one authored constraint. Type is a constraint type
// name; which parameter fields apply depends on it.
type ConstraintSpec struct {
	Type       string  `json:"type"`
	Particles  []int   `json:"particles"`
	Compliance float64 `json:"compliance,omitempty"`

	RestLength     float64 `json:"rest_length,omitempty"`
	MaxCompression float64 `json:"max_compression,omitempty"`
	RestBend       float64 `json:"rest_bend,omitempty"`
	MaxBending     float64 `json:"max_bending,omitempty"`
	MaxLength      float64 `json:"max_length,omitempty"`
	Scale          float64 `json:"scale,omitempty"`
	Pressure       float64 `json:"pressure,omitempty"`
	Triangles      []int   `json:"triangles,omitempty"`

	// Pin.
	Collider       string  `json:"collider,omitempty"`
	Offset         Vec3    `json:"offset"`
	BreakThreshold float64 `json:"break_threshold,omitempty"`

	// Skin.
	Point          Vec3    `json:"point"`
	Normal         Vec3    `json:"normal"`
	Radius         float64 `json:"radius,omitempty"`
	BackstopRadius float64 `json:"backstop_radius,omitempty"`
	BackstopOffset float64 `json:"backstop_offset,omitempty"`

	// Shape matching.
	PlasticYield float64 `json:"plastic_yield,omitempty"`
	PlasticCreep float64 `json:"plastic_creep,omitempty"`

	// Aerodynamic.
	Area float64 `json:"area,omitempty"`
	Drag float64 `json:"drag,omitempty"`
	Lift float64 `json:"lift,omitempty"`
}

// StitchSpec ties particle A of one actor to particle B of another.
type StitchSpec struct {
	ActorA     string  `json:"actor_a"`
	ParticleA  int     `json:"particle_a"`
	ActorB     string  `json:"actor_b"`
	ParticleB  int     `json:"particle_b"`
	Compliance float64 `json:"compliance,omitempty"`
}

// Zone kinds.
const (
	ZoneWind        = "wind"
	ZoneGravityWell = "gravity_well"
)

// ZoneSpec is a force provider.
type ZoneSpec struct {
	Kind string `json:"kind"`

	// Wind.
	Velocity Vec3    `json:"velocity"`
	Min      Vec3    `json:"min"`
	Max      Vec3    `json:"max"`
	Drag     float64 `json:"drag,omitempty"`

	// Gravity well.
	Center   Vec3    `json:"center"`
	Radius   float64 `json:"radius,omitempty"`
	Strength float64 `json:"strength,omitempty"`
}

// Actor returns the actor named name.
func (s *Scene) Actor(name string) (*ActorSpec, bool) {
	for i := range s.Actors {
		if s.Actors[i].Name == name {
			return &s.Actors[i], true
		}
	}
	return nil, false
}

// ParticleCount sums the particles of every actor.
func (s *Scene) ParticleCount() int {
	n := 0
	for _, a := range s.Actors {
		n += len(a.Particles)
	}
	return n
}
