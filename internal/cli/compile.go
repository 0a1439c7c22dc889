package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/xpbd/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Actors      int `json:"actors"`
	Particles   int `json:"particles"`
	Constraints int `json:"constraints"`
	Colliders   int `json:"colliders"`
	Stitches    int `json:"stitches"`
	Zones       int `json:"zones"`
}

// CompilationResult describes one compiled scene.
type CompilationResult struct {
	Name      string           `json:"name"`
	SceneHash string           `json:"scene_hash"`
	Backend   string           `json:"backend,omitempty"`
	Stats     CompilationStats `json:"stats"`
	Output    string           `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <scene.cue>",
		Short: "Compile a CUE scene to JSON IR",
		Long: `Compile a CUE scene file to its JSON intermediate representation.

Generators such as rope and cloth are expanded, defaults applied and pin
offsets resolved. The scene hash identifies the compiled scene in traces.

Examples:
  xpbd compile ./scenes/pendulum.cue
  xpbd compile ./scenes/pendulum.cue -o pendulum.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	scene, err := LoadScene(path)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	formatter.VerboseLog("Compiled %s from %s", scene.Name, path)

	hash, err := ir.SceneHash(scene)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	result := CompilationResult{
		Name:      scene.Name,
		SceneHash: hash,
		Backend:   scene.Settings.Backend,
		Stats:     calculateStats(scene),
	}

	if opts.Output != "" {
		if err := writeIRToFile(scene, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		result.Output = opts.Output
	}

	return outputCompileSuccess(formatter, result)
}

// calculateStats computes summary statistics of a scene.
func calculateStats(scene *ir.Scene) CompilationStats {
	stats := CompilationStats{
		Actors:    len(scene.Actors),
		Particles: scene.ParticleCount(),
		Colliders: len(scene.Colliders),
		Stitches:  len(scene.Stitches),
		Zones:     len(scene.Zones),
	}
	for _, a := range scene.Actors {
		stats.Constraints += len(a.Constraints)
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result CompilationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	s := result.Stats
	fmt.Fprintf(formatter.Writer, "✓ Compiled scene %s\n", result.Name)
	fmt.Fprintf(formatter.Writer, "  hash: %s\n", result.SceneHash)
	fmt.Fprintf(formatter.Writer, "  %d actor(s), %d particle(s), %d constraint(s)\n", s.Actors, s.Particles, s.Constraints)
	fmt.Fprintf(formatter.Writer, "  %d collider(s), %d stitch(es), %d zone(s)\n", s.Colliders, s.Stitches, s.Zones)
	if result.Output != "" {
		fmt.Fprintf(formatter.Writer, "Wrote scene IR to %s\n", result.Output)
	}
	return nil
}

// outputCompileError outputs a compilation error.
func outputCompileError(formatter *OutputFormatter, err error) error {
	code, message := errorCode(err)
	if formatter.JSON() {
		_ = formatter.Error(code, message, toIssue(err))
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintf(formatter.Writer, "  %s\n", err)
	}
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, "compilation failed", err)
}

// writeIRToFile writes the scene as indented JSON. Canonical JSON is only
// used for hashing.
func writeIRToFile(scene *ir.Scene, filename string) error {
	data, err := json.MarshalIndent(scene, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
