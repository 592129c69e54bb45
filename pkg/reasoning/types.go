package reasoning

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kadirpekel/graphmind/pkg/graph"
)

// ReasoningStep is one traversal hop: a scored (source, relation, target)
// triple at a given depth. Two steps are the same observation when their
// triples match, regardless of score or timing.
type ReasoningStep struct {
	Source     *graph.Entity   `json:"source"`
	Relation   *graph.Relation `json:"relation"`
	Target     *graph.Entity   `json:"target"`
	Score      float64         `json:"score"`
	Depth      int             `json:"depth"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Valid reports whether the step has all three endpoints.
func (s *ReasoningStep) Valid() bool {
	return s != nil && s.Source != nil && s.Relation != nil && s.Target != nil
}

// Triple is the step's identity key.
func (s *ReasoningStep) Triple() string {
	return s.Source.ID + "|" + s.Relation.Type + "|" + s.Target.ID
}

// Describe renders the step in evidence form.
func (s *ReasoningStep) Describe() string {
	return fmt.Sprintf("%s -[%s]-> %s", s.Source.Name, s.Relation.Type, s.Target.Name)
}

// ReasoningPath is an ordered chain of steps with a derived final score.
type ReasoningPath struct {
	Steps       []*ReasoningStep `json:"steps"`
	Score       float64          `json:"score"`
	Description string           `json:"description,omitempty"`
}

// Valid reports whether every step is valid and adjacent steps chain:
// the target of step i is the source of step i+1.
func (p *ReasoningPath) Valid() bool {
	if p == nil || len(p.Steps) == 0 {
		return false
	}
	for i, s := range p.Steps {
		if !s.Valid() {
			return false
		}
		if i > 0 && p.Steps[i-1].Target.ID != s.Source.ID {
			return false
		}
	}
	return true
}

// Describe renders the whole chain as "A -[R]-> B -[R2]-> C".
func (p *ReasoningPath) Describe() string {
	if len(p.Steps) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(p.Steps[0].Source.Name)
	for _, s := range p.Steps {
		fmt.Fprintf(&b, " -[%s]-> %s", s.Relation.Type, s.Target.Name)
	}
	return b.String()
}

// BaseScore is the mean of the step scores.
func (p *ReasoningPath) BaseScore() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	var sum float64
	for _, s := range p.Steps {
		sum += s.Score
	}
	return sum / float64(len(p.Steps))
}

// LengthPenalty favors shorter chains: 1/sqrt(len).
func (p *ReasoningPath) LengthPenalty() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	return 1 / math.Sqrt(float64(len(p.Steps)))
}

// Evidence is one collected observation with its score and depth.
type Evidence struct {
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	Depth     int       `json:"depth"`
	Timestamp time.Time `json:"timestamp"`
}

// ReasoningResult is the session-level answer bundle. Immutable once
// returned; the session API always returns one, even on degradation.
type ReasoningResult struct {
	Question   string           `json:"question"`
	Answer     string           `json:"answer"`
	Steps      []*ReasoningStep `json:"steps,omitempty"`
	Evidences  []string         `json:"evidences,omitempty"`
	Confidence float64          `json:"confidence"`

	// Fallback marks answers produced by a degraded pipeline: schema
	// unavailable, no entities extracted, or LLM unavailable.
	Fallback bool `json:"fallback,omitempty"`

	// Cancelled marks results of a cancelled session.
	Cancelled bool `json:"cancelled,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// MultiHopResult is the traversal engine's output: ranked paths plus the
// evidence collected while expanding.
type MultiHopResult struct {
	Question  string           `json:"question"`
	Paths     []*ReasoningPath `json:"paths"`
	Evidences []Evidence       `json:"evidences"`
	Explored  int              `json:"explored"`
	Elapsed   time.Duration    `json:"elapsed"`
}
