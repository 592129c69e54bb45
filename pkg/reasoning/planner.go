package reasoning

import (
	"github.com/kadirpekel/graphmind/pkg/schema"
	"github.com/kadirpekel/graphmind/pkg/scheduler"
)

// Strategy tags how a plan's steps should be executed.
type Strategy string

const (
	StrategySequential Strategy = "sequential"
	StrategyParallel   Strategy = "parallel"
	StrategyAdaptive   Strategy = "adaptive"
)

// PlanStep is one typed unit of a plan. DependsOn lists indexes of
// earlier steps that must finish first.
type PlanStep struct {
	Kind      scheduler.Kind `json:"kind"`
	DependsOn []int          `json:"depends_on,omitempty"`
	Priority  int            `json:"priority,omitempty"`
}

// Plan is an ordered list of typed steps plus an execution strategy.
type Plan struct {
	Question string     `json:"question"`
	Steps    []PlanStep `json:"steps"`
	Strategy Strategy   `json:"strategy"`
}

// CriticalPath returns the indexes of steps with incoming dependencies,
// in order. Used by the adaptive strategy to decide what runs first.
func (p *Plan) CriticalPath() []int {
	var out []int
	for i, s := range p.Steps {
		if len(s.DependsOn) > 0 {
			out = append(out, i)
		}
	}
	return out
}

// Independent returns the indexes of steps with no dependencies.
func (p *Plan) Independent() []int {
	var out []int
	for i, s := range p.Steps {
		if len(s.DependsOn) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// FanOut reports whether a step's work may be dispatched in parallel.
// Sequential plans never fan out and parallel plans always do; adaptive
// plans fan out only the independent steps, keeping the critical path
// one task at a time.
func (p *Plan) FanOut(step PlanStep) bool {
	switch p.Strategy {
	case StrategySequential:
		return false
	case StrategyParallel:
		return true
	default:
		for _, i := range p.Independent() {
			if p.Steps[i].Kind == step.Kind {
				return true
			}
		}
		return false
	}
}

// Thresholds for strategy selection.
const (
	shortQuestionTokens = 6
	smallSchemaTypes    = 4
)

// BuildPlan derives the canonical six-step plan for a question:
// identification, exploration, similarity, evidence, answer, validation,
// each depending on its predecessor. The strategy tag reflects question
// and schema shape.
func BuildPlan(question string, sch *schema.GraphSchema) *Plan {
	plan := &Plan{
		Question: question,
		Steps: []PlanStep{
			{Kind: scheduler.KindEntityIdentification, Priority: 10},
			{Kind: scheduler.KindRelationExploration, DependsOn: []int{0}, Priority: 8},
			{Kind: scheduler.KindSimilarityCalc, DependsOn: []int{1}, Priority: 6},
			{Kind: scheduler.KindEvidenceCollection, DependsOn: []int{2}, Priority: 4},
			{Kind: scheduler.KindAnswerGeneration, DependsOn: []int{3}, Priority: 2},
			{Kind: scheduler.KindValidation, DependsOn: []int{4}, Priority: 1},
		},
	}
	plan.Strategy = selectStrategy(question, sch)
	return plan
}

// selectStrategy picks sequential for short questions over small
// schemas, parallel when the question touches multiple entity families,
// and adaptive otherwise.
func selectStrategy(question string, sch *schema.GraphSchema) Strategy {
	var stops []string
	if sch != nil {
		stops = sch.StopWords
	}
	tokens := schema.Tokenize(question, stops)

	families := 0
	if sch != nil {
		strategy := sch.DeriveStrategy(question)
		for _, nt := range strategy.NodeTypes {
			if nt.Score >= schema.EffectiveNodeScore {
				families++
			}
		}
	}

	switch {
	case families >= 2:
		return StrategyParallel
	case len(tokens) < shortQuestionTokens && (sch == nil || len(sch.NodeTypes) < smallSchemaTypes):
		return StrategySequential
	default:
		return StrategyAdaptive
	}
}
