package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults for pool sizing and timeouts.
const (
	DefaultTaskTimeout  = 30 * time.Second
	DefaultCPUWorkers   = 4
	defaultQueueFactor  = 8
	minEffectiveWorkers = 1
)

// Errors surfaced by the scheduler.
var (
	ErrShuttingDown    = errors.New("scheduler is shutting down")
	ErrTaskTimeout     = errors.New("timeout")
	ErrTaskCancelled   = errors.New("task cancelled")
	ErrShutdownTimeout = errors.New("shutdown drain timed out")
)

// Options sizes the scheduler. Zero values take defaults; IOWorkers
// defaults to half the CPU workers.
type Options struct {
	CPUWorkers    int
	IOWorkers     int
	QueueCapacity int
	Monitor       *ResourceMonitor
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Cancelled int64
	CPUQueued int
	IOQueued  int
}

// Scheduler runs typed tasks on two bounded worker pools: a CPU pool for
// traversal, scoring and aggregation, and an I/O pool for store,
// embedding and LLM calls. Executor selection is load-aware; submission
// applies backpressure when a queue is full.
type Scheduler struct {
	cpu     *pool
	io      *pool
	monitor *ResourceMonitor

	baseCtx context.Context
	cancel  context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]*sessionHandle

	closed atomic.Bool
	wg     sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

type sessionHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func New(opts Options) *Scheduler {
	cpuWorkers := opts.CPUWorkers
	if cpuWorkers <= 0 {
		cpuWorkers = DefaultCPUWorkers
	}
	ioWorkers := opts.IOWorkers
	if ioWorkers <= 0 {
		ioWorkers = cpuWorkers / 2
		if ioWorkers < 1 {
			ioWorkers = 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		monitor:  opts.Monitor,
		baseCtx:  ctx,
		cancel:   cancel,
		sessions: make(map[string]*sessionHandle),
	}

	capacity := opts.QueueCapacity
	s.cpu = newPool("cpu", cpuWorkers, capacity, func() int {
		// Under high load new CPU work runs on a halved pool.
		if s.level() >= LevelHigh {
			half := cpuWorkers / 2
			if half < minEffectiveWorkers {
				half = minEffectiveWorkers
			}
			return half
		}
		return cpuWorkers
	})
	s.io = newPool("io", ioWorkers, capacity, func() int { return ioWorkers })

	for i := 0; i < cpuWorkers; i++ {
		s.wg.Add(1)
		go s.worker(s.cpu)
	}
	for i := 0; i < ioWorkers; i++ {
		s.wg.Add(1)
		go s.worker(s.io)
	}
	return s
}

func (s *Scheduler) level() Level {
	if s.monitor == nil {
		return LevelLow
	}
	return s.monitor.Level()
}

// Submit queues a task and returns its future. Blocks while the chosen
// queue is full, up to the submission context's deadline.
func (s *Scheduler) Submit(ctx context.Context, task *Task) (*Future, error) {
	if s.closed.Load() {
		return nil, ErrShuttingDown
	}
	if task.Fn == nil {
		return nil, fmt.Errorf("task %s has no work function", task.ID)
	}
	if task.Timeout <= 0 {
		task.Timeout = DefaultTaskTimeout
	}

	p := s.pickPool(task.Kind)
	f := newFuture(task)
	task.markSubmitted()
	// The session context is bound at submission so a later cancel
	// reaches queued tasks without re-registering the session.
	item := &queueItem{task: task, future: f, sctx: s.sessionContext(task.SessionID)}
	if err := p.push(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to queue %s task: %w", task.Kind, err)
	}
	s.submitted.Add(1)
	return f, nil
}

// SubmitBatch queues tasks and returns their futures in input order. A
// task that cannot be queued gets a pre-failed future in its slot; the
// rest of the batch is unaffected.
func (s *Scheduler) SubmitBatch(ctx context.Context, tasks []*Task) []*Future {
	futures := make([]*Future, len(tasks))
	for i, task := range tasks {
		f, err := s.Submit(ctx, task)
		if err != nil {
			task.markDone(StateFailed, err)
			f = newFuture(task)
			f.resolve(nil, err)
			s.failed.Add(1)
		}
		futures[i] = f
	}
	return futures
}

// pickPool applies the load-aware decision table.
func (s *Scheduler) pickPool(kind Kind) *pool {
	switch kind {
	case KindDatabaseQuery, KindEmbeddingCalc:
		// I/O by default; spill to CPU when the I/O pool is saturated
		// and the CPU pool is not.
		if s.io.saturated() && !s.cpu.saturated() {
			return s.cpu
		}
		return s.io
	case KindLLMGeneration:
		if s.io.loadFactor() <= s.cpu.loadFactor() {
			return s.io
		}
		return s.cpu
	case KindGraphTraversal, KindPathScoring, KindResultAggregation,
		KindSimilarityCalc, KindEvidenceCollection, KindValidation:
		return s.cpu
	default:
		// Identification, exploration and answer generation are
		// adapter-bound.
		return s.io
	}
}

func (s *Scheduler) worker(p *pool) {
	defer s.wg.Done()
	for {
		item, ok := p.pop()
		if !ok {
			return
		}
		s.run(item)
		p.release()
	}
}

func (s *Scheduler) run(item *queueItem) {
	task := item.task
	sctx := item.sctx

	if sctx.Err() != nil {
		task.markDone(StateCancelled, ErrTaskCancelled)
		s.cancelled.Add(1)
		item.future.resolve(nil, ErrTaskCancelled)
		return
	}

	runCtx, cancel := context.WithTimeout(sctx, task.Timeout)
	task.markRunning()
	result, err := task.Fn(runCtx)
	cancel()

	switch {
	case err == nil:
		task.markDone(StateCompleted, nil)
		s.completed.Add(1)
		item.future.resolve(result, nil)
	case sctx.Err() != nil || errors.Is(err, ErrTaskCancelled):
		task.markDone(StateCancelled, ErrTaskCancelled)
		s.cancelled.Add(1)
		item.future.resolve(nil, ErrTaskCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		terr := fmt.Errorf("%w after %s", ErrTaskTimeout, task.Timeout)
		task.markDone(StateFailed, terr)
		s.failed.Add(1)
		item.future.resolve(nil, terr)
	default:
		task.markDone(StateFailed, err)
		s.failed.Add(1)
		item.future.resolve(nil, err)
	}
}

// sessionContext returns (registering if needed) the context all tasks
// of a session run under. The empty session id shares the scheduler's
// base context.
func (s *Scheduler) sessionContext(sessionID string) context.Context {
	if sessionID == "" {
		return s.baseCtx
	}
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	if h, ok := s.sessions[sessionID]; ok {
		return h.ctx
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.sessions[sessionID] = &sessionHandle{ctx: ctx, cancel: cancel}
	return ctx
}

// CancelSession cancels every in-flight and queued task tagged with the
// session and clears it from the registry.
func (s *Scheduler) CancelSession(sessionID string) {
	s.sessionsMu.Lock()
	h, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.sessionsMu.Unlock()
	if ok {
		h.cancel()
		slog.Debug("session cancelled", "session_id", sessionID)
	}
}

// Stats snapshots the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		Cancelled: s.cancelled.Load(),
		CPUQueued: s.cpu.queued(),
		IOQueued:  s.io.queued(),
	}
}

// Shutdown stops accepting work, drains the queues within the timeout,
// then hard-cancels whatever is still running.
func (s *Scheduler) Shutdown(timeout time.Duration) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cpu.close()
	s.io.close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-time.After(timeout):
	}

	slog.Warn("scheduler drain timed out, cancelling in-flight tasks", "timeout", timeout)
	s.cancel()
	select {
	case <-done:
	case <-time.After(timeout):
	}
	return ErrShutdownTimeout
}

// queueItem pairs a task with its future inside a pool queue.
type queueItem struct {
	task   *Task
	future *Future
	sctx   context.Context
	seq    uint64
}

// pool is a bounded priority queue with a fixed worker count and a
// dynamic effective-concurrency limit.
type pool struct {
	name     string
	workers  int
	capacity int
	limit    func() int

	mu      sync.Mutex
	cond    *sync.Cond
	items   taskHeap
	seq     uint64
	running int
	closed  bool
}

func newPool(name string, workers, capacity int, limit func() int) *pool {
	if capacity <= 0 {
		capacity = workers * defaultQueueFactor
	}
	p := &pool{name: name, workers: workers, capacity: capacity, limit: limit}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// push enqueues an item, blocking while the queue is full. The context
// bounds the wait.
func (p *pool) push(ctx context.Context, item *queueItem) error {
	stop := context.AfterFunc(ctx, func() { p.cond.Broadcast() })
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.items) >= p.capacity && !p.closed {
		if ctx.Err() != nil {
			return fmt.Errorf("%s queue full: %w", p.name, ctx.Err())
		}
		p.cond.Wait()
	}
	if p.closed {
		return ErrShuttingDown
	}
	p.seq++
	item.seq = p.seq
	heap.Push(&p.items, item)
	p.cond.Broadcast()
	return nil
}

// pop blocks for the next runnable item; ok is false once the pool is
// closed and drained.
func (p *pool) pop() (*queueItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.closed && len(p.items) == 0 {
			return nil, false
		}
		if len(p.items) > 0 && p.running < p.limit() {
			item := heap.Pop(&p.items).(*queueItem)
			p.running++
			p.cond.Broadcast()
			return item, true
		}
		p.cond.Wait()
	}
}

func (p *pool) release() {
	p.mu.Lock()
	p.running--
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *pool) close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *pool) queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *pool) saturated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running >= p.workers && len(p.items) > 0
}

// loadFactor is outstanding work per worker; lower means lighter loaded.
func (p *pool) loadFactor() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.running+len(p.items)) / float64(p.workers)
}

// taskHeap orders by priority descending, submission order ascending.
type taskHeap []*queueItem

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*queueItem)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
