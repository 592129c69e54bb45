package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kadirpekel/graphmind/pkg/config"
	"github.com/kadirpekel/graphmind/pkg/llms"
	"github.com/kadirpekel/graphmind/pkg/prompts"
	"github.com/kadirpekel/graphmind/pkg/search"
)

// Answer-synthesis defaults. Config values override all of them.
const (
	defaultSearchK        = 10
	defaultTemperature    = 0.2
	defaultMaxTokens      = 1024
	defaultMaxRetries     = 2
	defaultEvidenceBudget = 2048
	summaryEvidenceLines  = 5
)

var errLLMUnavailable = errors.New("llm unavailable")

// generateAnswer renders the answer template with token-budgeted evidence
// and calls the LLM with retry. Errors mean the caller should degrade to
// an evidence summary.
func generateAnswer(ctx context.Context, llm llms.LLM, reg *prompts.Registry, cfg config.ReasoningConfig, question, entities, relations, intent string, evidences []Evidence) (string, error) {
	if llm == nil || !llm.Available() {
		return "", errLLMUnavailable
	}

	budgeted := BudgetEvidences(evidences, defaultEvidenceBudget)
	lines := make([]string, len(budgeted))
	for i, ev := range budgeted {
		lines[i] = fmt.Sprintf("- %s (score %.2f, depth %d)", ev.Text, ev.Score, ev.Depth)
	}

	prompt, err := reg.Render(prompts.TemplateAnswerGeneration, map[string]string{
		"question":  question,
		"entities":  entities,
		"relations": relations,
		"intent":    intent,
		"evidence":  strings.Join(lines, "\n"),
	})
	if err != nil {
		return "", err
	}

	text, err := llms.GenerateWithRetry(ctx, llm, prompt,
		temperatureOf(cfg), maxTokensOf(cfg), retriesOf(cfg))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty llm answer")
	}
	return text, nil
}

// summarizeEvidences is the non-LLM answer: the strongest evidence lines
// rendered directly. Always returns a non-empty string.
func summarizeEvidences(question string, evidences []Evidence) string {
	if len(evidences) == 0 {
		return "No supporting evidence was found in the graph for this question."
	}
	n := len(evidences)
	if n > summaryEvidenceLines {
		n = summaryEvidenceLines
	}
	var b strings.Builder
	b.WriteString("Based on the graph evidence:\n")
	for _, ev := range evidences[:n] {
		b.WriteString("- ")
		b.WriteString(ev.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderHits formats matched entities for the answer prompt.
func renderHits(hits []search.Result) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("%s (%s)", h.Entity.Name, h.Entity.Type)
	}
	return strings.Join(parts, ", ")
}

// belowConfidenceFloor reports whether a result that did gather steps
// still sits under the configured confidence minimum.
func belowConfidenceFloor(cfg config.ReasoningConfig, result *ReasoningResult) bool {
	return cfg.ConfidenceThreshold > 0 && len(result.Steps) > 0 &&
		result.Confidence < cfg.ConfidenceThreshold
}

// answerNamesEntity reports whether the answer text mentions at least
// one of the matched entities. Strict validation rejects answers that
// name none of them.
func answerNamesEntity(answer string, hits []search.Result) bool {
	lower := strings.ToLower(answer)
	for _, h := range hits {
		if h.Entity.Name != "" && strings.Contains(lower, strings.ToLower(h.Entity.Name)) {
			return true
		}
	}
	return false
}

func temperatureOf(cfg config.ReasoningConfig) float64 {
	if cfg.LLMTemperature > 0 {
		return cfg.LLMTemperature
	}
	return defaultTemperature
}

func maxTokensOf(cfg config.ReasoningConfig) int {
	if cfg.LLMMaxTokens > 0 {
		return cfg.LLMMaxTokens
	}
	return defaultMaxTokens
}

func retriesOf(cfg config.ReasoningConfig) int {
	if cfg.MaxRetries > 0 {
		return cfg.MaxRetries
	}
	return defaultMaxRetries
}
