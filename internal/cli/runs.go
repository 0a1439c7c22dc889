package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Delete   string
}

// RunListing is one row of the runs listing.
type RunListing struct {
	ID        string  `json:"id"`
	Scene     string  `json:"scene"`
	Backend   string  `json:"backend"`
	StepTime  float64 `json:"step_time"`
	Frames    int     `json:"frames"`
	Events    int     `json:"events"`
	LastHash  string  `json:"last_hash,omitempty"`
	MaxEnergy float64 `json:"max_kinetic_energy"`
	Failed    bool    `json:"failed"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List or delete recorded runs",
		Long: `List the runs recorded in a trace database, oldest first.

With --delete the referenced run and all of its frames, samples and events
are removed instead.

Examples:
  xpbd runs --db ./trace.db
  xpbd runs --db ./trace.db --format json
  xpbd runs --db ./trace.db --delete 0192f3a1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete the run with this ID, prefix or \"latest\"")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
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

	if opts.Delete != "" {
		id, err := resolveRun(ctx, st, opts.Delete)
		if err != nil {
			_ = formatter.Error(storeErrorCode(err), err.Error(), nil)
			return err
		}
		if _, err := st.DeleteRun(ctx, id); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to delete run", err)
		}
		if formatter.JSON() {
			return formatter.Success(map[string]string{"deleted": id})
		}
		fmt.Fprintf(formatter.Writer, "Deleted run %s\n", id)
		return nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	listing := make([]RunListing, 0, len(runs))
	for _, run := range runs {
		sum, err := st.Summarize(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to summarize run %s", run.ID), err)
		}
		events := 0
		for _, n := range sum.Events {
			events += n
		}
		listing = append(listing, RunListing{
			ID:        run.ID,
			Scene:     run.Scene,
			Backend:   run.Backend,
			StepTime:  run.StepTime,
			Frames:    sum.Frames,
			Events:    events,
			LastHash:  sum.LastHash,
			MaxEnergy: sum.MaxEnergy,
			Failed:    sum.Failed,
		})
	}

	if formatter.JSON() {
		return formatter.Success(listing)
	}
	if len(listing) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs found in database.")
		return nil
	}
	rows := make([][]string, len(listing))
	for i, r := range listing {
		status := "ok"
		if r.Failed {
			status = "failed"
		}
		rows[i] = []string{
			r.ID, r.Scene, r.Backend,
			strconv.Itoa(r.Frames), strconv.Itoa(r.Events),
			truncateID(r.LastHash), status,
		}
	}
	return formatter.Table([]string{"ID", "SCENE", "BACKEND", "FRAMES", "EVENTS", "LAST HASH", "STATUS"}, rows)
}
