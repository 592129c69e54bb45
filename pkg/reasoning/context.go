package reasoning

import (
	"sync"
	"time"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/graph"
)

// Context is the per-question mutable state: visited entities with visit
// counts, the ordered reasoning path, evidences and per-depth frontier
// buckets. It is the single serialization point for a session; every
// mutation is mutex-guarded so parallel tasks observe a total order.
type Context struct {
	question  string
	cfg       config.ReasoningConfig
	startedAt time.Time

	mu        sync.Mutex
	visited   map[string]int
	steps     []*ReasoningStep
	stepSeen  map[string]bool
	evidences []Evidence
	frontier  map[int][]*graph.Entity
	depth     int

	confidence     float64
	totalEntities  int
	totalRelations int
}

func NewContext(question string, cfg config.ReasoningConfig) *Context {
	return &Context{
		question:  question,
		cfg:       cfg,
		startedAt: time.Now(),
		visited:   make(map[string]int),
		stepSeen:  make(map[string]bool),
		frontier:  make(map[int][]*graph.Entity),
	}
}

func (c *Context) Question() string { return c.question }

// Elapsed is the wall-clock time since the context was created.
func (c *Context) Elapsed() time.Duration { return time.Since(c.startedAt) }

// AddEntities records entities as known, idempotent on id: the first
// observation marks the entity visited, duplicates only bump the visit
// counter. Returns how many were new.
func (c *Context) AddEntities(entities []*graph.Entity) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, e := range entities {
		if e == nil {
			continue
		}
		if _, seen := c.visited[e.ID]; !seen {
			added++
			c.totalEntities++
		}
		c.visited[e.ID]++
	}
	return added
}

// Visited reports whether the entity has been observed.
func (c *Context) Visited(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visited[id] > 0
}

// VisitCount returns how many times the entity was observed.
func (c *Context) VisitCount(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visited[id]
}

// AddStep appends a reasoning step, marks the target visited and derives
// an evidence line. Steps are deduplicated by their (source, relation,
// target) triple; a duplicate only bumps the target's visit counter and
// returns false.
//
// Confidence accumulates depth-weighted: score / (depth + 1).
func (c *Context) AddStep(step *ReasoningStep) bool {
	if !step.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := step.Triple()
	if c.stepSeen[key] {
		c.visited[step.Target.ID]++
		return false
	}
	c.stepSeen[key] = true

	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}
	c.steps = append(c.steps, step)
	c.totalRelations++

	if _, seen := c.visited[step.Target.ID]; !seen {
		c.totalEntities++
	}
	c.visited[step.Target.ID]++

	c.evidences = append(c.evidences, Evidence{
		Text:      step.Describe(),
		Score:     step.Score,
		Depth:     step.Depth,
		Timestamp: step.Timestamp,
	})
	c.confidence += step.Score / float64(step.Depth+1)
	return true
}

// AddEvidence appends a free-form evidence line outside the step path,
// such as an indirect-connection discovery.
func (c *Context) AddEvidence(ev Evidence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	c.evidences = append(c.evidences, ev)
}

// SetFrontier replaces the entity bucket at a depth.
func (c *Context) SetFrontier(depth int, entities []*graph.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frontier[depth] = entities
	if depth > c.depth {
		c.depth = depth
	}
}

// Frontier returns the entity bucket at a depth.
func (c *Context) Frontier(depth int) []*graph.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frontier[depth]
}

// Depth is the deepest frontier recorded so far.
func (c *Context) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth
}

// HasEnoughEvidence is true once the session gathered enough signal:
// evidence count, cumulative confidence or depth past their stops.
func (c *Context) HasEnoughEvidence() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasEnoughLocked()
}

func (c *Context) hasEnoughLocked() bool {
	minEvidences := c.cfg.MinEvidences
	if minEvidences <= 0 {
		minEvidences = 5
	}
	confidenceStop := c.cfg.ConfidenceStop
	if confidenceStop <= 0 {
		confidenceStop = 2.0
	}
	depthStop := c.cfg.DepthStop
	if depthStop <= 0 {
		depthStop = 3
	}
	return len(c.evidences) >= minEvidences ||
		c.confidence > confidenceStop ||
		c.depth >= depthStop
}

// ShouldStop is the session-wide termination check: depth or entity caps
// reached, enough evidence, or budget exhausted.
func (c *Context) ShouldStop(maxDepth, maxEntities int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.depth >= maxDepth || c.totalEntities >= maxEntities {
		return true
	}
	if c.hasEnoughLocked() {
		return true
	}
	if budget := c.cfg.SessionBudgetMs; budget > 0 {
		return time.Since(c.startedAt) > time.Duration(budget)*time.Millisecond
	}
	return false
}

// Steps returns a copy of the ordered reasoning path.
func (c *Context) Steps() []*ReasoningStep {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ReasoningStep, len(c.steps))
	copy(out, c.steps)
	return out
}

// Evidences returns a copy of the collected evidence lines, in
// observation order.
func (c *Context) Evidences() []Evidence {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Evidence, len(c.evidences))
	copy(out, c.evidences)
	return out
}

// Confidence is the cumulative depth-weighted confidence.
func (c *Context) Confidence() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confidence
}

// Explored is the number of distinct entities observed.
func (c *Context) Explored() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalEntities
}
