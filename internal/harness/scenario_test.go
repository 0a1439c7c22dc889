package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/vmath"
)

const testScene = `
name: "drop"
settings: backend: "native"
actors: ball: particles: [{position: [0, 2, 0]}, {position: [0.5, 2, 0]}]
`

// createTestScene writes a small CUE scene into dir/scenes.
func createTestScene(t *testing.T, dir, name, src string) string {
	t.Helper()
	scenesDir := filepath.Join(dir, "scenes")
	require.NoError(t, os.MkdirAll(scenesDir, 0755))
	path := filepath.Join(scenesDir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	scenePath := createTestScene(t, dir, "drop.cue", testScene)
	scenarioPath := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
scene: scenes/drop.cue
steps: 12
run_id: fixed-run
commands:
  - at: 3
    kind: impulse
    actor: ball
    particles: [1]
    vector: [1, 0, 0]
assertions:
  - type: event_count
    kind: command
    count: 1
`)

	scenario, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, scenePath, scenario.Scene)
	assert.Equal(t, 12, scenario.Steps)
	assert.Equal(t, "fixed-run", scenario.RunID)
	require.Len(t, scenario.Commands, 1)
	assert.Equal(t, 3, scenario.Commands[0].At)
	assert.Equal(t, []int{1}, scenario.Commands[0].Particles)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	dir := t.TempDir()
	createTestScene(t, dir, "drop.cue", testScene)
	path := writeScenario(t, dir, `
name: typo
description: "misspelled key"
scene: scenes/drop.cue
steps: 1
assertion:
  - type: no_step_failure
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	scenePath := createTestScene(t, dir, "drop.cue", testScene)
	other := t.TempDir()
	path := writeScenario(t, other, `
name: based
description: "scene relative to another directory"
scene: scenes/drop.cue
steps: 1
assertions:
  - type: no_step_failure
`)

	scenario, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, scenePath, scenario.Scene)

	_, err = LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scene file not found")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing name",
			body: "description: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: no_step_failure}]",
			want: "name is required",
		},
		{
			name: "missing description",
			body: "name: n\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: no_step_failure}]",
			want: "description is required",
		},
		{
			name: "missing scene",
			body: "name: n\ndescription: d\nsteps: 1\nassertions: [{type: no_step_failure}]",
			want: "scene is required",
		},
		{
			name: "zero steps",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nassertions: [{type: no_step_failure}]",
			want: "steps must be positive",
		},
		{
			name: "no assertions",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1",
			want: "assertions list is required",
		},
		{
			name: "command past the end",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 2\ncommands: [{at: 2, kind: impulse, actor: ball}]\nassertions: [{type: no_step_failure}]",
			want: "commands[0]: at must be in [0, 2)",
		},
		{
			name: "unknown command",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 2\ncommands: [{at: 0, kind: explode}]\nassertions: [{type: no_step_failure}]",
			want: `unknown command "explode"`,
		},
		{
			name: "tick command",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 2\ncommands: [{at: 0, kind: tick}]\nassertions: [{type: no_step_failure}]",
			want: "tick is not allowed",
		},
		{
			name: "short vector",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 2\ncommands: [{at: 0, kind: set_gravity, vector: [0, 1]}]\nassertions: [{type: no_step_failure}]",
			want: "vector must have 3 components",
		},
		{
			name: "unknown assertion",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: looks_right}]",
			want: `unknown assertion type "looks_right"`,
		},
		{
			name: "event_count without kind",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: event_count, count: 1}]",
			want: "kind is required for event_count",
		},
		{
			name: "position without vector",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: particle_position, actor: ball}]",
			want: "position must have 3 components",
		},
		{
			name: "distance with one particle",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: distance, actor: ball, particles: [0]}]",
			want: "exactly 2 particles",
		},
		{
			name: "unknown table",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: final_state, table: contacts, expect: {a: 1}}]",
			want: `unknown table "contacts"`,
		},
		{
			name: "short rotation",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 2\ncommands: [{at: 0, kind: set_solver_transform, vector: [0, 0, 0], rotation: [90]}]\nassertions: [{type: no_step_failure}]",
			want: "rotation must have 3 components",
		},
		{
			name: "spatial_query with unknown shape",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: spatial_query, shape: cone, center: [0, 0, 0]}]",
			want: "shape must be sphere, box or ray",
		},
		{
			name: "spatial_query box without size",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: spatial_query, shape: box, center: [0, 0, 0]}]",
			want: "box size must have 3 components",
		},
		{
			name: "smoothed_min_height without radius",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: smoothed_min_height, actor: ball}]",
			want: "radius must be positive",
		},
		{
			name: "final_state without expect",
			body: "name: n\ndescription: d\nscene: scenes/drop.cue\nsteps: 1\nassertions: [{type: final_state, table: frames}]",
			want: "expect is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			createTestScene(t, dir, "drop.cue", testScene)
			path := writeScenario(t, dir, tt.body)

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCommandStep_Command(t *testing.T) {
	cmd, err := CommandStep{
		Kind:      "force",
		Actor:     "ball",
		Particles: []int{0},
		Vector:    []float64{0, 3, 0},
	}.Command()
	require.NoError(t, err)
	assert.Equal(t, engine.CommandForce, cmd.Kind)
	assert.Equal(t, "ball", cmd.Actor)
	assert.Equal(t, vmath.Vec3{0, 3, 0}, cmd.Vector)

	cmd, err = CommandStep{Kind: "deactivate_constraint", Actor: "ball", Constraint: "distance", Batch: 1, Index: 2}.Command()
	require.NoError(t, err)
	assert.Equal(t, vmath.Vec3{}, cmd.Vector)
	assert.Equal(t, "distance", cmd.Constraint)
	assert.Equal(t, 1, cmd.Batch)
	assert.Equal(t, 2, cmd.Index)
	assert.Nil(t, cmd.Rotation)

	cmd, err = CommandStep{Kind: "set_solver_transform", Vector: []float64{1, 2, 3}, Rotation: []float64{0, 90, 0}}.Command()
	require.NoError(t, err)
	assert.Equal(t, engine.CommandSetSolverTransform, cmd.Kind)
	require.NotNil(t, cmd.Rotation)
	assert.Equal(t, vmath.Vec3{0, 90, 0}, *cmd.Rotation)
}
