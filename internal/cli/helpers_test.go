package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/xpbd/internal/engine"
)

var (
	scenesDir    = filepath.Join("..", "..", "testdata", "scenes")
	scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
)

func scenePath(name string) string {
	return filepath.Join(scenesDir, name)
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

// recordRun simulates scene for steps ticks into the database at dbPath
// under a fixed run ID.
func recordRun(t *testing.T, dbPath, scene, runID string, steps int, commands ...string) RunReport {
	t.Helper()
	opts := &RunOptions{
		RootOptions:    &RootOptions{Format: "json"},
		Database:       dbPath,
		Steps:          steps,
		Commands:       commands,
		RunIDGenerator: engine.NewFixedGenerator(runID),
	}
	cmd := &cobra.Command{}
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetContext(t.Context())

	require.NoError(t, runEngine(opts, scenePath(scene), cmd))

	var resp struct {
		Status string    `json:"status"`
		Data   RunReport `json:"data"`
	}
	decodeJSON(t, out.Bytes(), &resp)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func decodeJSON(t *testing.T, data []byte, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(data, v), "output: %s", data)
}
