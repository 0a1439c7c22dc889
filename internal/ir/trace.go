package ir

// NOTE: Trace records are store-layer types. Runs are identified by a
// UUIDv7; frames and samples by (run, step).

// Run describes one recorded simulation.
type Run struct {
	ID            string  `json:"id"`
	Scene         string  `json:"scene"`
	SceneHash     string  `json:"scene_hash"`
	Backend       string  `json:"backend"`
	StepTime      float64 `json:"step_time"`
	Substeps      int     `json:"substeps"`
	EngineVersion string  `json:"engine_version"`
	IRVersion     string  `json:"ir_version"`
	// SceneJSON is the compiled scene, so a run can be replayed without
	// its source file.
	SceneJSON string `json:"scene_json,omitempty"`
}

// Frame summarizes the state after one step.
type Frame struct {
	RunID     string `json:"run_id"`
	Step      int64  `json:"step"`
	StateHash string `json:"state_hash"`
	Particles int    `json:"particles"`
	Contacts  int    `json:"contacts"`
	// KineticEnergy is per unit mass, summed over dynamic particles.
	KineticEnergy float64 `json:"kinetic_energy"`
}

// Sample is the state of one particle at one step.
type Sample struct {
	RunID    string `json:"run_id"`
	Step     int64  `json:"step"`
	Actor    string `json:"actor"`
	Particle int    `json:"particle"` // actor-local index
	Position Vec3   `json:"position"`
	Velocity Vec3   `json:"velocity"`
}

// Event kinds.
const (
	EventActorAdded   = "actor_added"
	EventActorRemoved = "actor_removed"
	EventPinBroken    = "pin_broken"
	EventStepFailed   = "step_failed"
	EventCommand      = "command"
)

// Event is a discrete occurrence during a run.
type Event struct {
	RunID  string `json:"run_id"`
	Step   int64  `json:"step"`
	Seq    int64  `json:"seq"` // order within the run
	Kind   string `json:"kind"`
	Actor  string `json:"actor,omitempty"`
	Detail string `json:"detail,omitempty"`
}
