package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, cpu, io int) *Scheduler {
	t.Helper()
	s := New(Options{CPUWorkers: cpu, IOWorkers: io})
	t.Cleanup(func() { _ = s.Shutdown(time.Second) })
	return s
}

func TestScheduler_BatchPreservesOrder(t *testing.T) {
	s := newTestScheduler(t, 4, 2)
	ctx := context.Background()

	tasks := make([]*Task, 8)
	for i := range tasks {
		i := i
		tasks[i] = NewTask(KindPathScoring, "sess", func(context.Context) (any, error) {
			return i, nil
		})
	}

	futures := s.SubmitBatch(ctx, tasks)
	if len(futures) != len(tasks) {
		t.Fatalf("futures = %d, want %d", len(futures), len(tasks))
	}
	for i, f := range futures {
		got, err := f.Wait(ctx)
		if err != nil {
			t.Fatalf("task %d error: %v", i, err)
		}
		if got != i {
			t.Errorf("futures[%d] = %v, want %d (index correspondence)", i, got, i)
		}
	}
}

func TestScheduler_PriorityOrdersQueuedWork(t *testing.T) {
	s := newTestScheduler(t, 1, 1)
	ctx := context.Background()

	gate := make(chan struct{})
	blocker := NewTask(KindPathScoring, "", func(context.Context) (any, error) {
		<-gate
		return nil, nil
	})
	bf, err := s.Submit(ctx, blocker)
	if err != nil {
		t.Fatalf("Submit(blocker) error: %v", err)
	}

	var mu sync.Mutex
	var order []string
	record := func(name string) Fn {
		return func(context.Context) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil, nil
		}
	}

	// Queued while the single CPU worker is blocked; the high-priority
	// task must run first despite being submitted last.
	lowF, _ := s.Submit(ctx, NewTask(KindPathScoring, "", record("low")).WithPriority(1))
	highF, _ := s.Submit(ctx, NewTask(KindPathScoring, "", record("high")).WithPriority(10))

	close(gate)
	for _, f := range []*Future{bf, lowF, highF} {
		if _, err := f.Wait(ctx); err != nil {
			t.Fatalf("Wait() error: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Errorf("execution order = %v, want [high low]", order)
	}
}

func TestScheduler_TimeoutFailsTask(t *testing.T) {
	s := newTestScheduler(t, 2, 1)
	ctx := context.Background()

	task := NewTask(KindGraphTraversal, "sess", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}).WithTimeout(20 * time.Millisecond)

	f, err := s.Submit(ctx, task)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if _, err := f.Wait(ctx); !errors.Is(err, ErrTaskTimeout) {
		t.Fatalf("Wait() error = %v, want timeout", err)
	}
	if task.State() != StateFailed {
		t.Errorf("state = %s, want failed", task.State())
	}
	if !errors.Is(task.Err(), ErrTaskTimeout) {
		t.Errorf("task error = %v, want timeout recorded", task.Err())
	}
}

func TestScheduler_CancelSession(t *testing.T) {
	s := newTestScheduler(t, 1, 1)
	ctx := context.Background()

	started := make(chan struct{})
	running := NewTask(KindGraphTraversal, "victim", func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	rf, err := s.Submit(ctx, running)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	<-started

	// Queued behind the running task on the single worker.
	queued := NewTask(KindGraphTraversal, "victim", func(context.Context) (any, error) {
		return "should not run", nil
	})
	qf, err := s.Submit(ctx, queued)
	if err != nil {
		t.Fatalf("Submit(queued) error: %v", err)
	}

	s.CancelSession("victim")

	if _, err := rf.Wait(ctx); !errors.Is(err, ErrTaskCancelled) {
		t.Errorf("running task error = %v, want cancelled", err)
	}
	if _, err := qf.Wait(ctx); !errors.Is(err, ErrTaskCancelled) {
		t.Errorf("queued task error = %v, want cancelled", err)
	}
	if st := queued.State(); st != StateCancelled {
		t.Errorf("queued task state = %s, want cancelled", st)
	}
}

func TestScheduler_SessionsAreIsolated(t *testing.T) {
	s := newTestScheduler(t, 2, 2)
	ctx := context.Background()

	s.CancelSession("other")

	task := NewTask(KindResultAggregation, "alive", func(context.Context) (any, error) {
		return "ok", nil
	})
	f, err := s.Submit(ctx, task)
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	got, err := f.Wait(ctx)
	if err != nil || got != "ok" {
		t.Errorf("result = (%v, %v), want ok", got, err)
	}
}

func TestScheduler_ShutdownRejectsNewWork(t *testing.T) {
	s := New(Options{CPUWorkers: 1, IOWorkers: 1})
	if err := s.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if _, err := s.Submit(context.Background(), NewTask(KindDatabaseQuery, "", func(context.Context) (any, error) {
		return nil, nil
	})); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Submit() after shutdown = %v, want ErrShuttingDown", err)
	}
}

func TestScheduler_StatsCounters(t *testing.T) {
	s := newTestScheduler(t, 2, 1)
	ctx := context.Background()

	ok := NewTask(KindSimilarityCalc, "", func(context.Context) (any, error) { return nil, nil })
	bad := NewTask(KindSimilarityCalc, "", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	f1, _ := s.Submit(ctx, ok)
	f2, _ := s.Submit(ctx, bad)
	_, _ = f1.Wait(ctx)
	_, _ = f2.Wait(ctx)

	stats := s.Stats()
	if stats.Submitted != 2 || stats.Completed != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 2 submitted, 1 completed, 1 failed", stats)
	}
}

func TestPickPool_DecisionTable(t *testing.T) {
	s := newTestScheduler(t, 2, 1)
	tests := []struct {
		kind Kind
		want string
	}{
		{KindDatabaseQuery, "io"},
		{KindEmbeddingCalc, "io"},
		{KindGraphTraversal, "cpu"},
		{KindPathScoring, "cpu"},
		{KindResultAggregation, "cpu"},
		{KindEntityIdentification, "io"},
		{KindAnswerGeneration, "io"},
	}
	for _, tt := range tests {
		if got := s.pickPool(tt.kind); got.name != tt.want {
			t.Errorf("pickPool(%s) = %s, want %s", tt.kind, got.name, tt.want)
		}
	}
}
