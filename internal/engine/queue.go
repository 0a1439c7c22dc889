package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/xpbd/internal/vmath"
)

// CommandKind names what a Command does.
type CommandKind string

const (
	// CommandTick advances the engine by Dt seconds.
	CommandTick CommandKind = "tick"
	// CommandForce adds Vector as an external force on the next step.
	CommandForce CommandKind = "force"
	// CommandImpulse adds Vector to the particle velocities.
	CommandImpulse CommandKind = "impulse"
	// CommandRemoveActor detaches an actor from the solver.
	CommandRemoveActor CommandKind = "remove_actor"
	// CommandAddActor re-attaches a removed actor.
	CommandAddActor CommandKind = "add_actor"
	// CommandSetGravity replaces the solver gravity with Vector.
	CommandSetGravity CommandKind = "set_gravity"
	// CommandSetWind replaces the solver ambient wind with Vector.
	CommandSetWind CommandKind = "set_wind"
	// CommandActivateConstraint and CommandDeactivateConstraint toggle
	// constraint Index of batch Batch of type Constraint in an actor.
	CommandActivateConstraint   CommandKind = "activate_constraint"
	CommandDeactivateConstraint CommandKind = "deactivate_constraint"
	// CommandSetBodyVelocity sets a rigidbody's linear velocity to Vector.
	CommandSetBodyVelocity CommandKind = "set_body_velocity"
	// CommandSetSolverTransform moves the solver's local space to Vector
	// and, when set, Rotation. Later steps see the inertial response.
	CommandSetSolverTransform CommandKind = "set_solver_transform"
)

var commandKinds = []CommandKind{
	CommandTick, CommandForce, CommandImpulse, CommandRemoveActor,
	CommandAddActor, CommandSetGravity, CommandSetWind,
	CommandActivateConstraint, CommandDeactivateConstraint,
	CommandSetBodyVelocity, CommandSetSolverTransform,
}

// ParseCommandKind validates a command kind name.
func ParseCommandKind(s string) (CommandKind, error) {
	for _, k := range commandKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// Command is one host request to the engine. Which fields apply depends on
// Kind.
type Command struct {
	Kind  CommandKind `json:"kind"`
	Actor string      `json:"actor,omitempty"`
	// Particles selects actor-local particles; empty means all.
	Particles []int      `json:"particles,omitempty"`
	Vector    vmath.Vec3 `json:"vector"`
	// Rotation is Euler XYZ in degrees; nil keeps the current rotation.
	Rotation *vmath.Vec3 `json:"rotation,omitempty"`

	Constraint string `json:"constraint,omitempty"`
	Batch      int    `json:"batch,omitempty"`
	Index      int    `json:"index,omitempty"`

	Rigidbody string  `json:"rigidbody,omitempty"`
	Dt        float64 `json:"dt,omitempty"`
}

// commandQueue is a thread-safe FIFO queue of commands.
//
// The queue is unbounded; producers never block on the engine.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type commandQueue struct {
	mu       sync.Mutex
	commands []Command
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		commands: make([]Command, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a command to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *commandQueue) Enqueue(c Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.commands = append(q.commands, c)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front command without blocking.
// Returns (Command{}, false) if the queue is empty.
func (q *commandQueue) TryDequeue() (Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return Command{}, false
	}

	c := q.commands[0]
	// Release the slot's slice references.
	q.commands[0] = Command{}
	if len(q.commands) == 1 {
		q.commands = q.commands[:0]
	} else {
		q.commands = q.commands[1:]
	}
	return c, true
}

// Wait returns a channel that signals when commands may be available.
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Close signals that no more commands will be enqueued and wakes waiters.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
