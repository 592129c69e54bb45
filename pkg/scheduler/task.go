package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the task taxonomy the scheduler routes on.
type Kind string

const (
	KindEntityIdentification Kind = "entity_identification"
	KindRelationExploration  Kind = "relation_exploration"
	KindSimilarityCalc       Kind = "similarity_calculation"
	KindEvidenceCollection   Kind = "evidence_collection"
	KindAnswerGeneration     Kind = "answer_generation"
	KindValidation           Kind = "validation"
	KindGraphTraversal       Kind = "graph_traversal"
	KindPathScoring          Kind = "path_scoring"
	KindResultAggregation    Kind = "result_aggregation"
	KindLLMGeneration        Kind = "llm_generation"
	KindDatabaseQuery        Kind = "database_query"
	KindEmbeddingCalc        Kind = "embedding_calculation"
)

// State is the task lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Fn is the work a task carries. The context is cancelled on task timeout
// and on session cancellation.
type Fn func(ctx context.Context) (any, error)

// Task is a typed unit of work. Priority orders tasks within a pool
// (higher runs first, FIFO among equals); Timeout is the per-task
// wall-clock cap.
type Task struct {
	ID        string
	Kind      Kind
	SessionID string
	Priority  int
	Timeout   time.Duration
	Context   map[string]any
	Fn        Fn

	mu          sync.Mutex
	state       State
	err         error
	submittedAt time.Time
	startedAt   time.Time
	endedAt     time.Time
}

// NewTask builds a pending task with a fresh id.
func NewTask(kind Kind, sessionID string, fn Fn) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		SessionID: sessionID,
		Timeout:   DefaultTaskTimeout,
		Fn:        fn,
		state:     StatePending,
	}
}

// WithPriority sets the scheduling priority. Chainable before submission.
func (t *Task) WithPriority(p int) *Task {
	t.Priority = p
	return t
}

// WithTimeout sets the wall-clock cap. Chainable before submission.
func (t *Task) WithTimeout(d time.Duration) *Task {
	t.Timeout = d
	return t
}

// WithContext attaches free-form task context. Chainable before submission.
func (t *Task) WithContext(ctx map[string]any) *Task {
	t.Context = ctx
	return t
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the task's terminal error, nil unless failed or cancelled.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Elapsed is the run duration, zero until the task starts.
func (t *Task) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startedAt.IsZero() {
		return 0
	}
	if t.endedAt.IsZero() {
		return time.Since(t.startedAt)
	}
	return t.endedAt.Sub(t.startedAt)
}

func (t *Task) markSubmitted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submittedAt = time.Now()
}

func (t *Task) markRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateRunning
	t.startedAt = time.Now()
}

func (t *Task) markDone(state State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	t.err = err
	t.endedAt = time.Now()
}

// Future is the handle for an asynchronous task result.
type Future struct {
	task   *Task
	done   chan struct{}
	result any
	err    error
}

func newFuture(t *Task) *Future {
	return &Future{task: t, done: make(chan struct{})}
}

func (f *Future) resolve(result any, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// Task returns the underlying task for state and timing inspection.
func (f *Future) Task() *Task { return f.task }

// Done reports without blocking whether the result is available.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the task finishes or the context is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
