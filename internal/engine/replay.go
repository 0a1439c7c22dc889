package engine

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/xpbd/internal/ir"
)

// Replay and determinism
//
// A recorded run is the scene, one frame per step and the event log. The
// scene and the command events are enough to reproduce it: commands apply
// between steps and carry their full arguments, and every step uses the
// same fixed step time. Replay rebuilds the scene, reissues each command
// before the step that followed it and compares the state hash after every
// step with the recorded one.
//
// State hashes quantize positions to ir.Quantum, so runs on different
// backends normally replay against each other too.

// ReplayResult reports how a replay compared with its recording.
type ReplayResult struct {
	// Steps is the number of steps replayed.
	Steps int
	// Match is true when every state hash matched.
	Match bool
	// FirstMismatch is the first step whose hash differed, or 0.
	FirstMismatch int64
	Expected      string
	Actual        string
}

// Replay re-simulates a recorded run and compares state hashes. Frames
// must be in step order starting at step 1. Options configure the replay
// engine; WithRecorder is ignored.
func Replay(scene *ir.Scene, frames []ir.Frame, events []ir.Event, opts ...Option) (*ReplayResult, error) {
	opts = append(slices.Clone(opts), WithRecorder(nil))
	e, err := New(scene, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	defer e.Close()

	commands, err := commandsByStep(events)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{Match: true}
	for i, f := range frames {
		if want := int64(i + 1); f.Step != want {
			return nil, fmt.Errorf("replay: frame %d has step %d, want %d", i, f.Step, want)
		}
		for _, c := range commands[f.Step-1] {
			e.Enqueue(c)
		}
		if err := e.Step(); err != nil {
			return nil, fmt.Errorf("replay: step %d: %w", f.Step, err)
		}
		result.Steps++

		hash, err := e.StateHash()
		if err != nil {
			return nil, fmt.Errorf("replay: hash step %d: %w", f.Step, err)
		}
		if hash != f.StateHash {
			result.Match = false
			result.FirstMismatch = f.Step
			result.Expected = f.StateHash
			result.Actual = hash
			return result, nil
		}
	}
	return result, nil
}

// commandsByStep decodes command events, keyed by the step count at which
// they were issued, in sequence order.
func commandsByStep(events []ir.Event) (map[int64][]Command, error) {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b ir.Event) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	out := make(map[int64][]Command)
	for _, ev := range sorted {
		if ev.Kind != ir.EventCommand {
			continue
		}
		var c Command
		if err := json.Unmarshal([]byte(ev.Detail), &c); err != nil {
			return nil, fmt.Errorf("replay: decode command seq %d: %w", ev.Seq, err)
		}
		out[ev.Step] = append(out[ev.Step], c)
	}
	return out, nil
}
