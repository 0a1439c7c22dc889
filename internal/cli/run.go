package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Steps       int
	Dt          float64
	Backend     string
	SampleEvery int
	MaxSteps    int
	Commands    []string

	// RunIDGenerator allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID     string `json:"run_id"`
	Scene     string `json:"scene"`
	Backend   string `json:"backend"`
	Ticks     int    `json:"ticks"`
	Steps     int    `json:"steps"`
	StateHash string `json:"state_hash"`
	Failed    bool   `json:"failed"`
	Error     string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scene.cue>",
		Short: "Simulate a scene and record the trace",
		Long: `Simulate a scene and record its trace to a SQLite database.

With --steps the engine is ticked that many times, each tick advancing
--dt seconds (one fixed step by default), and commands given with --cmd
are queued before their tick. Without --steps the engine runs in real
time until interrupted.

Examples:
  xpbd run --db ./trace.db --steps 120 ./scenes/pendulum.cue
  xpbd run --db ./trace.db --steps 60 \
      --cmd '{at: 10, kind: impulse, actor: rope, particles: [6], vector: [0, 0, 2]}' \
      ./scenes/pendulum.cue
  xpbd run --db ./trace.db ./scenes/cloth_drop.cue --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "number of ticks to run (0 runs in real time)")
	cmd.Flags().Float64Var(&opts.Dt, "dt", 0, "seconds per tick (default: scene step time)")
	cmd.Flags().StringVar(&opts.Backend, "backend", "", "solver backend override (null|native|parallel)")
	cmd.Flags().IntVar(&opts.SampleEvery, "sample-every", 0, "record particle samples every N steps (0 disables)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps-per-frame", 0, "fixed steps one tick may run (0: scene setting)")
	cmd.Flags().StringArrayVar(&opts.Commands, "cmd", nil, "command to queue, as a YAML mapping (repeatable)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runEngine(opts *RunOptions, scenePath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	if opts.Steps < 0 {
		return NewExitError(ExitCommandError, "--steps must not be negative")
	}
	if opts.Dt < 0 {
		return NewExitError(ExitCommandError, "--dt must not be negative")
	}
	scheduled, err := ParseCommandFlags(opts.Commands)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid command", err)
	}

	scene, err := LoadScene(scenePath)
	if err != nil {
		code, message := errorCode(err)
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitCommandError, "failed to load scene", err)
	}
	logger.Debug("scene loaded", "scene", scene.Name, "path", scenePath)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	runIDs := opts.RunIDGenerator
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithRecorder(st.Recorder(ctx)),
		engine.WithRunIDGenerator(runIDs),
		engine.WithSampleEvery(opts.SampleEvery),
	}
	if opts.Backend != "" {
		engineOpts = append(engineOpts, engine.WithBackend(opts.Backend))
	}
	if opts.MaxSteps > 0 {
		engineOpts = append(engineOpts, engine.WithMaxStepsPerFrame(opts.MaxSteps))
	}
	eng, err := engine.New(scene, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	defer eng.Close()

	dt := opts.Dt
	if dt == 0 {
		dt = eng.StepTime()
	}

	report := RunReport{
		RunID:   eng.RunID(),
		Scene:   scene.Name,
		Backend: eng.Solver().Backend(),
	}
	logger.Info("run started", "run_id", report.RunID, "backend", report.Backend, "dt", dt)

	if opts.Steps > 0 {
		report.Ticks, err = tickSteps(eng, scheduled, opts.Steps, dt, logger)
	} else {
		report.Ticks, err = tickRealtime(ctx, cancel, eng, scheduled, dt, logger)
	}
	if err != nil {
		if !engine.IsStepError(err) {
			return WrapExitError(ExitCommandError, "run failed", err)
		}
		report.Failed = true
		report.Error = err.Error()
	}

	report.Steps = eng.StepCount()
	if report.StateHash, err = eng.StateHash(); err != nil {
		return WrapExitError(ExitCommandError, "hashing final state", err)
	}
	logger.Info("run finished", "run_id", report.RunID, "steps", report.Steps)

	if err := outputRunReport(formatter, report); err != nil {
		return err
	}
	if report.Failed {
		return NewExitError(ExitFailure, report.Error)
	}
	return nil
}

// tickSteps runs a fixed number of ticks. A failed step ends the run; a
// tick over its step budget is logged and the run goes on.
func tickSteps(eng *engine.Engine, scheduled []ScheduledCommand, ticks int, dt float64, logger *slog.Logger) (int, error) {
	next := 0
	for i := 0; i < ticks; i++ {
		for next < len(scheduled) && scheduled[next].At <= i {
			eng.Enqueue(scheduled[next].Command)
			next++
		}
		if _, err := eng.Tick(dt); err != nil {
			if engine.IsQuotaError(err) {
				logger.Warn("tick over budget", "tick", i, "error", err)
				continue
			}
			return i + 1, err
		}
	}
	return ticks, nil
}

// tickRealtime feeds the engine one tick per dt of wall time until ctx is
// cancelled or a signal arrives. Only commands scheduled at tick 0 are
// accepted; they are queued before the first tick.
func tickRealtime(ctx context.Context, cancel context.CancelFunc, eng *engine.Engine, scheduled []ScheduledCommand, dt float64, logger *slog.Logger) (int, error) {
	for _, sc := range scheduled {
		if sc.At != 0 {
			return 0, fmt.Errorf("command %s at tick %d needs --steps", sc.Command.Kind, sc.At)
		}
		eng.Enqueue(sc.Command)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	ticks := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Duration(dt * float64(time.Second)))
		defer ticker.Stop()
		for {
			select {
			case sig := <-sigChan:
				logger.Info("received signal, shutting down", "signal", sig)
				eng.Stop()
				return
			case <-ctx.Done():
				eng.Stop()
				return
			case <-ticker.C:
				if eng.Enqueue(engine.Command{Kind: engine.CommandTick, Dt: dt}) {
					ticks++
				}
			}
		}
	}()

	err := eng.Run(ctx)
	cancel()
	<-done
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return ticks, err
	}
	return ticks, nil
}

func outputRunReport(f *OutputFormatter, r RunReport) error {
	if f.JSON() {
		return f.Success(r)
	}
	mark := "✓"
	if r.Failed {
		mark = "✗"
	}
	fmt.Fprintf(f.Writer, "%s Run %s (%s, %s backend)\n", mark, r.RunID, r.Scene, r.Backend)
	fmt.Fprintf(f.Writer, "  ticks: %d, steps: %d\n", r.Ticks, r.Steps)
	fmt.Fprintf(f.Writer, "  state hash: %s\n", r.StateHash)
	if r.Error != "" {
		fmt.Fprintf(f.Writer, "  error: %s\n", r.Error)
	}
	return nil
}
