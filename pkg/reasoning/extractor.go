package reasoning

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/kadirpekel/graphmind/pkg/llms"
	"github.com/kadirpekel/graphmind/pkg/schema"
)

// AnyLabel marks a mention whose node type could not be inferred; search
// treats it as unconstrained.
const AnyLabel = "ANY"

// Type-inference confidences, strongest signal first.
const (
	patternConfidence  = 0.9
	labelConfidence    = 0.6
	fallbackConfidence = 0.3
)

// ExtractedEntity is one question-side mention with its inferred label.
type ExtractedEntity struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Extraction is the structured reading of a question: entity mentions,
// relation hints and the detected intent.
type Extraction struct {
	Entities  []ExtractedEntity `json:"entities"`
	Relations []string          `json:"relations,omitempty"`
	Intent    string            `json:"intent,omitempty"`
}

// patternCache holds compiled extraction regexes; an invalid pattern
// caches as nil so it is rejected once, not recompiled per question.
var patternCache sync.Map

func compilePattern(p string) *regexp.Regexp {
	if v, ok := patternCache.Load(p); ok {
		re, _ := v.(*regexp.Regexp)
		return re
	}
	re, err := regexp.Compile(p)
	if err != nil {
		slog.Debug("invalid extraction pattern", "pattern", p, "error", err)
		re = nil
	}
	patternCache.Store(p, re)
	return re
}

// InferLabel resolves a mention to a node label: extraction patterns
// first, then label substring match, then the unconstrained fallback.
// Patterns are tried in sorted order so inference is deterministic.
func InferLabel(sch *schema.GraphSchema, text string) (string, float64) {
	patterns := make([]string, 0, len(sch.ExtractionPatterns))
	for p := range sch.ExtractionPatterns {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		if re := compilePattern(p); re != nil && re.MatchString(text) {
			return sch.ExtractionPatterns[p], patternConfidence
		}
	}

	lower := strings.ToLower(text)
	for _, label := range sch.Labels() {
		if strings.Contains(lower, strings.ToLower(label)) {
			return label, labelConfidence
		}
	}
	return AnyLabel, fallbackConfidence
}

// ParseExtraction reads the LLM's extraction response tolerantly: the
// entities and relationships lists plus the intent key, whatever else the
// model wrapped them in.
func ParseExtraction(sch *schema.GraphSchema, text string) Extraction {
	var ex Extraction
	for _, ent := range llms.ExtractList(text, "entities") {
		label, conf := InferLabel(sch, ent)
		ex.Entities = append(ex.Entities, ExtractedEntity{Text: ent, Label: label, Confidence: conf})
	}
	ex.Relations = llms.ExtractList(text, "relationships")
	ex.Intent = llms.ExtractKeyValues(text)["intent"]
	return ex
}

// ExtractFromQuestion derives entity mentions from the question tokens
// alone. It backs up the LLM extraction so a parse miss never leaves the
// pipeline without candidates. Single ASCII letters are noise; single CJK
// characters are real tokens and pass the length gate by byte width.
func ExtractFromQuestion(sch *schema.GraphSchema, question string) []ExtractedEntity {
	tokens := schema.Tokenize(question, sch.StopWords)
	seen := make(map[string]bool, len(tokens))
	var out []ExtractedEntity
	for _, tok := range tokens {
		if len(tok) < 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		label, conf := InferLabel(sch, tok)
		out = append(out, ExtractedEntity{Text: tok, Label: label, Confidence: conf})
	}
	return out
}

// mergeExtractions unions two extractions, deduplicating mentions
// case-insensitively and keeping the higher-confidence reading. The
// primary's relations and intent win when present.
func mergeExtractions(primary, supplement Extraction) Extraction {
	out := Extraction{
		Relations: primary.Relations,
		Intent:    primary.Intent,
	}
	if len(out.Relations) == 0 {
		out.Relations = supplement.Relations
	}
	if out.Intent == "" {
		out.Intent = supplement.Intent
	}

	index := make(map[string]int)
	for _, ent := range append(append([]ExtractedEntity{}, primary.Entities...), supplement.Entities...) {
		key := strings.ToLower(ent.Text)
		if i, ok := index[key]; ok {
			if ent.Confidence > out.Entities[i].Confidence {
				out.Entities[i] = ent
			}
			continue
		}
		index[key] = len(out.Entities)
		out.Entities = append(out.Entities, ent)
	}
	return out
}
