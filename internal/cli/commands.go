package cli

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/xpbd/internal/engine"
	"github.com/roach88/xpbd/internal/harness"
)

// ScheduledCommand is an engine command queued before tick At.
type ScheduledCommand struct {
	At      int
	Command engine.Command
}

// ParseCommandFlags parses --cmd values. Each value is a YAML or JSON
// mapping in the scenario command format:
//
//	{at: 10, kind: impulse, actor: rope, particles: [6], vector: [0, 0, 2]}
//
// The result is ordered by At; commands sharing a tick keep flag order.
func ParseCommandFlags(values []string) ([]ScheduledCommand, error) {
	out := make([]ScheduledCommand, 0, len(values))
	for i, v := range values {
		var step harness.CommandStep
		if err := yaml.Unmarshal([]byte(v), &step); err != nil {
			return nil, fmt.Errorf("invalid --cmd %d: %w", i+1, err)
		}
		if step.At < 0 {
			return nil, fmt.Errorf("invalid --cmd %d: at must not be negative", i+1)
		}
		c, err := step.Command()
		if err != nil {
			return nil, fmt.Errorf("invalid --cmd %d: %w", i+1, err)
		}
		if c.Kind == engine.CommandTick {
			return nil, fmt.Errorf("invalid --cmd %d: ticks are driven by --steps", i+1)
		}
		out = append(out, ScheduledCommand{At: step.At, Command: c})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out, nil
}
