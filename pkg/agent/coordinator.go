package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/graphmind/pkg/registry"
	"github.com/kadirpekel/graphmind/pkg/scheduler"
)

// Agent-specific task kinds, beyond the scheduler's planner kinds.
const (
	KindEntitySearch         scheduler.Kind = "entity_search"
	KindSemanticSearch       scheduler.Kind = "semantic_search"
	KindRelationshipAnalysis scheduler.Kind = "relationship_analysis"
	KindPathFinding          scheduler.Kind = "path_finding"
	KindConnectionDiscovery  scheduler.Kind = "connection_discovery"
	KindRelationSummary      scheduler.Kind = "relation_summary"
)

// ErrNoAgentForKind is returned when no ready agent accepts a task kind.
var ErrNoAgentForKind = errors.New("no_agent_for_kind")

// DefaultParallelism caps concurrent dispatches in ExecuteTasksParallel.
const DefaultParallelism = 8

// Coordinator routes typed tasks to registered agents. Selection walks
// agents in registration order and takes the first ready one whose
// CanHandle accepts the request.
type Coordinator struct {
	agents *registry.BaseRegistry[Agent]

	mu    sync.RWMutex
	order []string

	parallelism int
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		agents:      registry.NewBaseRegistry[Agent](),
		parallelism: DefaultParallelism,
	}
}

// Register adds an agent under its own id. Ids must be unique.
func (c *Coordinator) Register(a Agent) error {
	if err := c.agents.Register(a.ID(), a); err != nil {
		return fmt.Errorf("failed to register agent: %w", err)
	}
	c.mu.Lock()
	c.order = append(c.order, a.ID())
	c.mu.Unlock()
	slog.Debug("agent registered", "agent_id", a.ID(), "kinds", a.Kinds())
	return nil
}

// Agent looks up a registered agent by id.
func (c *Coordinator) Agent(id string) (Agent, bool) {
	return c.agents.Get(id)
}

// ExecuteTask dispatches one request to the first ready capable agent.
// When no agent qualifies the result is a failure carrying
// ErrNoAgentForKind; the coordinator itself never errors.
func (c *Coordinator) ExecuteTask(ctx context.Context, req *TaskRequest) *Result {
	start := time.Now()
	a := c.pick(req.Kind, req.Description)
	if a == nil {
		return failure(fmt.Errorf("%w: %s", ErrNoAgentForKind, req.Kind), time.Since(start))
	}
	return a.Execute(ctx, req)
}

// ExecuteTasksParallel dispatches every request concurrently and gathers
// all results keyed exactly like the input. A failing task is reported
// in-place and does not cancel the rest.
func (c *Coordinator) ExecuteTasksParallel(ctx context.Context, reqs map[string]*TaskRequest) map[string]*Result {
	results := make(map[string]*Result, len(reqs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for id, req := range reqs {
		id, req := id, req
		g.Go(func() error {
			res := c.ExecuteTask(ctx, req)
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Coordinator) pick(kind scheduler.Kind, description string) Agent {
	c.mu.RLock()
	order := make([]string, len(c.order))
	copy(order, c.order)
	c.mu.RUnlock()

	for _, id := range order {
		a, ok := c.agents.Get(id)
		if !ok {
			continue
		}
		if a.State() == StateReady && a.CanHandle(kind, description) {
			return a
		}
	}
	return nil
}

// Shutdown transitions every agent that supports it out of service.
func (c *Coordinator) Shutdown() {
	for _, a := range c.agents.List() {
		if s, ok := a.(interface{ Close() }); ok {
			s.Close()
		}
	}
}
