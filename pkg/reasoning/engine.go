// Package reasoning is the question-answering core: the engine wires the
// graph store, embedding and LLM adapters, schema inspection, search and
// the task scheduler together, and hands out cancellable sessions that
// answer natural-language questions over the graph.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/graphmind/pkg/agent"
	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/embedders"
	"github.com/kadirpekel/graphmind/pkg/graph"
	"github.com/kadirpekel/graphmind/pkg/llms"
	"github.com/kadirpekel/graphmind/pkg/observability"
	"github.com/kadirpekel/graphmind/pkg/prompts"
	"github.com/kadirpekel/graphmind/pkg/schema"
	"github.com/kadirpekel/graphmind/pkg/scheduler"
	"github.com/kadirpekel/graphmind/pkg/search"
)

// DefaultShutdownTimeout bounds the scheduler drain on engine shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Engine owns the full stack. Sessions share all of it; the engine is
// safe for concurrent use once construction returns.
type Engine struct {
	cfg *config.Config

	store       graph.Store
	embedder    embedders.Embedder
	llm         llms.LLM
	inspector   *schema.Inspector
	search      search.Engine
	monitor     *scheduler.ResourceMonitor
	sched       *scheduler.Scheduler
	coordinator *agent.Coordinator
	prompts     *prompts.Registry
	metrics     observability.Recorder
	reasoner    *SchemaReasoner
}

// NewEngine builds every adapter from configuration and wires the stack.
func NewEngine(ctx context.Context, cfg *config.Config) (*Engine, error) {
	if _, err := config.ProcessConfigPipeline(cfg); err != nil {
		return nil, err
	}

	store, err := newStore(&cfg.Store)
	if err != nil {
		return nil, err
	}

	embedder, err := embedders.NewEmbedderFromConfig(&cfg.Embedder)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	llm, err := llms.NewLLMFromConfig(&cfg.LLM)
	if err != nil {
		embedder.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create llm: %w", err)
	}

	e, err := NewEngineWithAdapters(ctx, cfg, store, embedder, llm)
	if err != nil {
		llm.Close()
		embedder.Close()
		store.Close()
		return nil, err
	}
	return e, nil
}

// NewEngineWithAdapters wires an engine around pre-built adapters. The
// engine takes ownership of them: Shutdown closes all three.
func NewEngineWithAdapters(ctx context.Context, cfg *config.Config, store graph.Store, embedder embedders.Embedder, llm llms.LLM) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	inspector := schema.NewInspector(store, 0)
	searchEngine := search.NewSchemaGuidedEngine(store, embedder, inspector, 0)
	if err := searchEngine.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize search: %w", err)
	}

	monitor := scheduler.NewResourceMonitor(
		time.Duration(cfg.Scheduler.MonitorIntervalMs) * time.Millisecond)
	sched := scheduler.New(scheduler.Options{
		CPUWorkers:    cfg.Scheduler.CPUPoolSize,
		IOWorkers:     cfg.Scheduler.IOPoolSize,
		QueueCapacity: cfg.Scheduler.QueueSize,
		Monitor:       monitor,
	})

	coordinator := agent.NewCoordinator()
	if err := coordinator.Register(agent.NewEntitySearchAgent(searchEngine)); err != nil {
		return nil, fmt.Errorf("failed to register entity search agent: %w", err)
	}
	if err := coordinator.Register(agent.NewRelationshipAnalysisAgent(store)); err != nil {
		return nil, fmt.Errorf("failed to register relationship agent: %w", err)
	}

	metrics, err := observability.NewRecorder(cfg.Metrics.Enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics recorder: %w", err)
	}

	reg := prompts.NewRegistry(cfg.Prompts.Dir)
	basic := NewBasicReasoner(store, searchEngine, llm, reg, cfg.Reasoning).
		WithMetrics(metrics)
	reasoner := NewSchemaReasoner(store, searchEngine, inspector, llm, reg,
		sched, basic, cfg.Reasoning).
		WithMetrics(metrics)

	slog.Info("engine ready",
		"store", store.DatabaseType(),
		"llm", cfg.LLM.Type,
		"embedder", cfg.Embedder.Type,
		"metrics", cfg.Metrics.Enabled)

	return &Engine{
		cfg:         cfg,
		store:       store,
		embedder:    embedder,
		llm:         llm,
		inspector:   inspector,
		search:      searchEngine,
		monitor:     monitor,
		sched:       sched,
		coordinator: coordinator,
		prompts:     reg,
		metrics:     metrics,
		reasoner:    reasoner,
	}, nil
}

func newStore(cfg *config.StoreConfig) (graph.Store, error) {
	switch cfg.Type {
	case "memory", "":
		return graph.NewMemoryStore(), nil
	case "sqlite":
		s, err := graph.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

// NewSession opens a fresh cancellable question scope.
func (e *Engine) NewSession() *Session {
	return newSession(e.reasoner, e.sched, e.metrics, e.cfg.Reasoning)
}

// Schema returns the (cached) graph schema.
func (e *Engine) Schema(ctx context.Context) *schema.GraphSchema {
	return e.inspector.Schema(ctx)
}

// RefreshSchema invalidates the schema cache.
func (e *Engine) RefreshSchema() { e.inspector.Refresh() }

// Store exposes the underlying graph store, e.g. for data loading.
func (e *Engine) Store() graph.Store { return e.store }

// Search exposes the entity search engine.
func (e *Engine) Search() search.Engine { return e.search }

// Coordinator exposes the multi-agent coordinator for direct task routing.
func (e *Engine) Coordinator() *agent.Coordinator { return e.coordinator }

// Metrics exposes the metrics recorder.
func (e *Engine) Metrics() observability.Recorder { return e.metrics }

// Stats snapshots the scheduler counters.
func (e *Engine) Stats() scheduler.Stats { return e.sched.Stats() }

// Shutdown drains the scheduler, stops the monitor and closes every
// adapter. Safe to call once; errors are joined.
func (e *Engine) Shutdown(ctx context.Context) error {
	var errs []error

	if err := e.sched.Shutdown(DefaultShutdownTimeout); err != nil {
		errs = append(errs, err)
	}
	e.monitor.Stop()
	e.coordinator.Shutdown()

	if err := e.llm.Close(); err != nil {
		errs = append(errs, fmt.Errorf("llm close: %w", err))
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("embedder close: %w", err))
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}
	if err := e.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
	}
	return errors.Join(errs...)
}
