package reasoning

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens estimates the token footprint of a text using the
// cl100k_base encoding. When the encoding cannot be loaded (offline
// environments) it degrades to a whitespace-split estimate.
func CountTokens(text string) int {
	encOnce.Do(func() {
		if t, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			enc = t
		}
	})
	if enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// BudgetEvidences keeps the leading evidences whose cumulative token
// count fits the budget. The first evidence always survives so the
// answer prompt is never empty; budget <= 0 keeps everything.
func BudgetEvidences(evidences []Evidence, budget int) []Evidence {
	if budget <= 0 || len(evidences) == 0 {
		return evidences
	}
	total := 0
	for i, ev := range evidences {
		total += CountTokens(ev.Text)
		if total > budget && i > 0 {
			return evidences[:i]
		}
	}
	return evidences
}
