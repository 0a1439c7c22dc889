package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/querysql"
	"github.com/roach88/xpbd/internal/vmath"
)

// Scenario defines a scripted run of one scene and what must hold after it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scene is the path of the CUE scene file.
	// LoadScenario resolves it relative to the scenario file.
	Scene string `yaml:"scene"`

	// Backend overrides the scene's backend when set.
	Backend string `yaml:"backend,omitempty"`

	// Steps is the number of fixed steps to run.
	Steps int `yaml:"steps"`

	// RunID is the fixed run ID. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// SampleEvery records particle samples every N steps when positive.
	SampleEvery int `yaml:"sample_every,omitempty"`

	// Commands are issued between steps.
	Commands []CommandStep `yaml:"commands,omitempty"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// CommandStep is an engine command queued after At steps.
type CommandStep struct {
	At         int       `yaml:"at"`
	Kind       string    `yaml:"kind"`
	Actor      string    `yaml:"actor,omitempty"`
	Particles  []int     `yaml:"particles,omitempty"`
	Vector     []float64 `yaml:"vector,omitempty"`
	Rotation   []float64 `yaml:"rotation,omitempty"`
	Constraint string    `yaml:"constraint,omitempty"`
	Batch      int       `yaml:"batch,omitempty"`
	Index      int       `yaml:"index,omitempty"`
	Rigidbody  string    `yaml:"rigidbody,omitempty"`
}

// Command converts the step to an engine command.
func (c CommandStep) Command() (engine.Command, error) {
	kind, err := engine.ParseCommandKind(c.Kind)
	if err != nil {
		return engine.Command{}, err
	}
	cmd := engine.Command{
		Kind:       kind,
		Actor:      c.Actor,
		Particles:  c.Particles,
		Constraint: c.Constraint,
		Batch:      c.Batch,
		Index:      c.Index,
		Rigidbody:  c.Rigidbody,
	}
	switch len(c.Vector) {
	case 0:
	case 3:
		copy(cmd.Vector[:], c.Vector)
	default:
		return engine.Command{}, fmt.Errorf("vector must have 3 components, got %d", len(c.Vector))
	}
	switch len(c.Rotation) {
	case 0:
	case 3:
		cmd.Rotation = &vmath.Vec3{c.Rotation[0], c.Rotation[1], c.Rotation[2]}
	default:
		return engine.Command{}, fmt.Errorf("rotation must have 3 components, got %d", len(c.Rotation))
	}
	return cmd, nil
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type selects the check; see the package documentation.
	Type string `yaml:"type"`

	// Kind is the event kind (event_count).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected event order (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Actor names the actor whose particles are checked. For event_count
	// it narrows the count to one actor.
	Actor string `yaml:"actor,omitempty"`

	// Particle is an actor-local index (particle_position).
	Particle int `yaml:"particle,omitempty"`

	// Particles holds the two actor-local indices of a distance check.
	Particles []int `yaml:"particles,omitempty"`

	// Position is the expected position (particle_position).
	Position []float64 `yaml:"position,omitempty"`

	// Value is the expected distance, the minimum height or the energy bound.
	Value float64 `yaml:"value,omitempty"`

	// Tolerance bounds the allowed deviation. Defaults to 1e-6.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Min and Max bound every particle (within_bounds).
	Min []float64 `yaml:"min,omitempty"`
	Max []float64 `yaml:"max,omitempty"`

	// Table is the trace table (final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects exactly one row of Table (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values; subset match (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Shape is "sphere", "box" or "ray" (spatial_query). Center places a
	// sphere or box and is the ray origin; Size is the box extent;
	// Direction and Length span the ray.
	Shape     string    `yaml:"shape,omitempty"`
	Center    []float64 `yaml:"center,omitempty"`
	Size      []float64 `yaml:"size,omitempty"`
	Direction []float64 `yaml:"direction,omitempty"`
	Length    float64   `yaml:"length,omitempty"`

	// Radius is the sphere radius or ray thickness (spatial_query) and the
	// smoothing radius (smoothed_min_height).
	Radius float64 `yaml:"radius,omitempty"`

	// MaxDistance widens a spatial query past overlap (spatial_query).
	MaxDistance float64 `yaml:"max_distance,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount       = "event_count"
	AssertEventOrder       = "event_order"
	AssertNoStepFailure    = "no_step_failure"
	AssertParticlePosition = "particle_position"
	AssertDistance         = "distance"
	AssertWithinBounds     = "within_bounds"
	AssertMinHeight        = "min_height"
	AssertKineticEnergy    = "kinetic_energy_below"
	AssertFinalState       = "final_state"
	AssertSpatialQuery     = "spatial_query"
	AssertSmoothedHeight   = "smoothed_min_height"
)

// LoadScenario reads and parses a scenario YAML file, resolving the scene
// path relative to the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the scene path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Scene != "" && !filepath.IsAbs(scenario.Scene) && basePath != "" {
		scenario.Scene = filepath.Join(basePath, scenario.Scene)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Scene == "" {
		return fmt.Errorf("scene is required")
	}
	if _, err := os.Stat(s.Scene); os.IsNotExist(err) {
		return fmt.Errorf("scene file not found: %s", s.Scene)
	}

	if s.Steps <= 0 {
		return fmt.Errorf("steps must be positive")
	}
	if s.SampleEvery < 0 {
		return fmt.Errorf("sample_every must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, c := range s.Commands {
		if c.At < 0 || c.At >= s.Steps {
			return fmt.Errorf("commands[%d]: at must be in [0, %d)", i, s.Steps)
		}
		if c.Kind == string(engine.CommandTick) {
			return fmt.Errorf("commands[%d]: tick is not allowed, scenarios step explicitly", i)
		}
		if _, err := c.Command(); err != nil {
			return fmt.Errorf("commands[%d]: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Tolerance < 0 {
		return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
	}

	switch a.Type {
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for event_order", index)
		}
	case AssertNoStepFailure, AssertKineticEnergy:
	case AssertParticlePosition:
		if a.Actor == "" {
			return fmt.Errorf("assertions[%d]: actor is required for particle_position", index)
		}
		if len(a.Position) != 3 {
			return fmt.Errorf("assertions[%d]: position must have 3 components", index)
		}
	case AssertDistance:
		if a.Actor == "" {
			return fmt.Errorf("assertions[%d]: actor is required for distance", index)
		}
		if len(a.Particles) != 2 {
			return fmt.Errorf("assertions[%d]: distance needs exactly 2 particles", index)
		}
	case AssertWithinBounds:
		if a.Actor == "" {
			return fmt.Errorf("assertions[%d]: actor is required for within_bounds", index)
		}
		if len(a.Min) != 3 || len(a.Max) != 3 {
			return fmt.Errorf("assertions[%d]: min and max must have 3 components", index)
		}
	case AssertMinHeight:
		if a.Actor == "" {
			return fmt.Errorf("assertions[%d]: actor is required for min_height", index)
		}
	case AssertSpatialQuery:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for spatial_query", index)
		}
		if len(a.Center) != 3 {
			return fmt.Errorf("assertions[%d]: center must have 3 components", index)
		}
		switch a.Shape {
		case "sphere":
		case "box":
			if len(a.Size) != 3 {
				return fmt.Errorf("assertions[%d]: box size must have 3 components", index)
			}
		case "ray":
			if len(a.Direction) != 3 {
				return fmt.Errorf("assertions[%d]: ray direction must have 3 components", index)
			}
		default:
			return fmt.Errorf("assertions[%d]: shape must be sphere, box or ray, got %q", index, a.Shape)
		}
	case AssertSmoothedHeight:
		if a.Actor == "" {
			return fmt.Errorf("assertions[%d]: actor is required for smoothed_min_height", index)
		}
		if a.Radius <= 0 {
			return fmt.Errorf("assertions[%d]: radius must be positive for smoothed_min_height", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if _, err := querysql.ParseTable(a.Table); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
