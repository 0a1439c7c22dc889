package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/xpbd/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Run      string
	Backend  string
}

// ReplayReport holds the outcome of replaying one run.
type ReplayReport struct {
	RunID         string `json:"run_id"`
	Scene         string `json:"scene"`
	Backend       string `json:"backend"`
	Frames        int    `json:"frames"`
	Steps         int    `json:"steps"`
	Deterministic bool   `json:"deterministic"`
	FirstMismatch int64  `json:"first_mismatch,omitempty"`
	Expected      string `json:"expected,omitempty"`
	Actual        string `json:"actual,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded run and verify determinism",
		Long: `Re-simulate a recorded run and compare state hashes step by step.

The scene stored with the run is rebuilt, each recorded command is reissued
before the step that followed it, and the state hash after every step is
compared with the recorded frame. The recorded backend is used unless
--backend overrides it.

Exit codes:
  0 - Every step matched
  1 - A state hash differed
  2 - Command error (database not found, unknown run, etc.)

Examples:
  xpbd replay --db ./trace.db
  xpbd replay --db ./trace.db --run 0192f3a1
  xpbd replay --db ./trace.db --backend null --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Run, "run", "latest", "run ID, unique ID prefix or \"latest\"")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "replay on another backend")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	st, err := openStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := resolveRun(ctx, st, opts.Run)
	if err != nil {
		_ = formatter.Error(storeErrorCode(err), err.Error(), nil)
		return err
	}
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading run", err)
	}
	frames, err := st.ReadFrames(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading frames", err)
	}

	replayOpts := []engine.Option{engine.WithLogger(opts.logger(cmd.ErrOrStderr()))}
	backend := run.Backend
	if opts.Backend != "" {
		replayOpts = append(replayOpts, engine.WithBackend(opts.Backend))
		backend = opts.Backend
	}
	formatter.VerboseLog("Replaying run %s (%d frames) on %s", runID, len(frames), backend)

	res, err := st.Replay(ctx, runID, replayOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", runID), err)
	}

	report := ReplayReport{
		RunID:         runID,
		Scene:         run.Scene,
		Backend:       backend,
		Frames:        len(frames),
		Steps:         res.Steps,
		Deterministic: res.Match,
		FirstMismatch: res.FirstMismatch,
		Expected:      res.Expected,
		Actual:        res.Actual,
	}

	if formatter.JSON() {
		return outputReplayJSON(formatter, report)
	}
	return outputReplayText(formatter, report)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, report ReplayReport) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
	}

	if !report.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := f.encode(response); err != nil {
		return err
	}

	if !report.Deterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(f *OutputFormatter, report ReplayReport) error {
	w := f.Writer

	fmt.Fprintf(w, "Replay of run %s (%s, %s backend)\n", report.RunID, report.Scene, report.Backend)
	fmt.Fprintf(w, "  Steps replayed: %d of %d\n", report.Steps, report.Frames)

	if report.Deterministic {
		fmt.Fprintln(w, "✓ All steps verified deterministic")
		return nil
	}

	fmt.Fprintf(w, "  First mismatch at step %d\n", report.FirstMismatch)
	fmt.Fprintf(w, "    recorded: %s\n", report.Expected)
	fmt.Fprintf(w, "    replayed: %s\n", report.Actual)
	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
