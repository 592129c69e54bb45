package agent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/graphmind/pkg/scheduler"
)

// State is the agent lifecycle.
type State string

const (
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateBusy         State = "busy"
	StateError        State = "error"
	StateShutdown     State = "shutdown"
)

// Agent is a specialist worker registered with the coordinator. An agent
// declares the task kinds it serves and may refuse individual requests
// via CanHandle.
type Agent interface {
	// ID is the unique registration key.
	ID() string

	// Kinds enumerates the task kinds this agent serves.
	Kinds() []scheduler.Kind

	// State reports the current lifecycle state.
	State() State

	// CanHandle decides whether this agent takes a specific request.
	CanHandle(kind scheduler.Kind, description string) bool

	// Execute runs the request. Failures are carried inside the result,
	// never as a panic or a bare error across the boundary.
	Execute(ctx context.Context, req *TaskRequest) *Result
}

// TaskRequest describes one unit of agent work.
type TaskRequest struct {
	Kind        scheduler.Kind `json:"kind"`
	Description string         `json:"description"`
	Context     map[string]any `json:"context,omitempty"`
}

// Result is the outcome of one agent task.
type Result struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
	Elapsed  time.Duration  `json:"elapsed"`
}

func success(output string, metadata map[string]any, elapsed time.Duration) *Result {
	return &Result{Success: true, Output: output, Metadata: metadata, Elapsed: elapsed}
}

func failure(err error, elapsed time.Duration) *Result {
	return &Result{Error: err.Error(), Elapsed: elapsed}
}

// baseAgent carries the id, kind set and lifecycle state shared by the
// built-in agents.
type baseAgent struct {
	id    string
	kinds []scheduler.Kind
	state atomic.Value
}

func newBaseAgent(id string, kinds ...scheduler.Kind) baseAgent {
	b := baseAgent{id: id, kinds: kinds}
	b.state.Store(StateReady)
	return b
}

func (b *baseAgent) ID() string { return b.id }

func (b *baseAgent) Kinds() []scheduler.Kind { return b.kinds }

func (b *baseAgent) State() State { return b.state.Load().(State) }

func (b *baseAgent) setState(s State) { b.state.Store(s) }

func (b *baseAgent) CanHandle(kind scheduler.Kind, _ string) bool {
	for _, k := range b.kinds {
		if k == kind {
			return true
		}
	}
	return false
}
