package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/xpbd/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Run      string
	Kind     string // optional - filter to one event kind
	Actor    string // optional - filter to one actor
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Step   int64          `json:"step"`
	Kind   string         `json:"kind"`
	Actor  string         `json:"actor,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
	Text   string         `json:"text,omitempty"` // detail that is not a JSON object
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID     string       `json:"run_id"`
	Scene     string       `json:"scene"`
	SceneHash string       `json:"scene_hash"`
	Backend   string       `json:"backend"`
	Timeline  []TraceEvent `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Frames    int            `json:"frames"`
	LastStep  int64          `json:"last_step"`
	LastHash  string         `json:"last_hash,omitempty"`
	MaxEnergy float64        `json:"max_kinetic_energy"`
	Events    map[string]int `json:"events"`
	Failed    bool           `json:"failed"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the event timeline of a run",
		Long: `Show the recorded events of a run with summary statistics.

The output includes:
- Timeline: actor lifecycle, commands, broken pins and failed steps in order
- Stats: frame count, final state hash, peak kinetic energy, events per kind

Examples:
  xpbd trace --db ./trace.db
  xpbd trace --db ./trace.db --run 0192f3a1 --kind command
  xpbd trace --db ./trace.db --actor rope --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Run, "run", "latest", "run ID, unique ID prefix or \"latest\"")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "filter to one actor")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
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

	sum, err := st.Summarize(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize run", err)
	}

	var events []ir.Event
	if opts.Kind != "" {
		events, err = st.ReadEventsByKind(ctx, runID, opts.Kind)
	} else {
		events, err = st.ReadEvents(ctx, runID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		RunID:     runID,
		Scene:     sum.Run.Scene,
		SceneHash: sum.Run.SceneHash,
		Backend:   sum.Run.Backend,
		Timeline:  buildTimeline(events, opts.Actor),
		Stats: TraceStats{
			Frames:    sum.Frames,
			LastStep:  sum.LastStep,
			LastHash:  sum.LastHash,
			MaxEnergy: sum.MaxEnergy,
			Events:    sum.Events,
			Failed:    sum.Failed,
		},
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// buildTimeline converts store events to timeline entries, keeping only
// those of actorFilter when it is set.
func buildTimeline(events []ir.Event, actorFilter string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, ev := range events {
		if actorFilter != "" && ev.Actor != actorFilter {
			continue
		}
		te := TraceEvent{Seq: ev.Seq, Step: ev.Step, Kind: ev.Kind, Actor: ev.Actor}
		if ev.Detail != "" {
			var detail map[string]any
			if err := json.Unmarshal([]byte(ev.Detail), &detail); err == nil {
				te.Detail = detail
			} else {
				te.Text = ev.Detail
			}
		}
		timeline = append(timeline, te)
	}
	return timeline
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Scene: %s (%s backend)\n", result.Scene, result.Backend)
	fmt.Fprintf(w, "Status: %s\n", failedStatus(result.Stats.Failed))
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Frames:      %d\n", result.Stats.Frames)
	fmt.Fprintf(w, "  Last Step:   %d\n", result.Stats.LastStep)
	if result.Stats.LastHash != "" {
		fmt.Fprintf(w, "  Last Hash:   %s\n", truncateID(result.Stats.LastHash))
	}
	fmt.Fprintf(w, "  Peak Energy: %.6g\n", result.Stats.MaxEnergy)
	kinds := make([]string, 0, len(result.Stats.Events))
	for k := range result.Stats.Events {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %d\n", k, result.Stats.Events[k])
	}

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	label := strings.ToUpper(event.Kind)
	if event.Actor != "" {
		fmt.Fprintf(w, "  [%d] step %d %s %s\n", event.Seq, event.Step, label, event.Actor)
	} else {
		fmt.Fprintf(w, "  [%d] step %d %s\n", event.Seq, event.Step, label)
	}
	if !verbose {
		return
	}
	if len(event.Detail) > 0 {
		fmt.Fprintf(w, "       Detail: %s\n", formatArgs(event.Detail))
	}
	if event.Text != "" {
		fmt.Fprintf(w, "       Detail: %s\n", event.Text)
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

// failedStatus returns a human-readable run status.
func failedStatus(failed bool) string {
	if failed {
		return "Failed (step_failed recorded)"
	}
	return "OK"
}
