package schema

import (
	"sort"
	"strings"
	"unicode"
)

// ScoredName is a candidate (label, relation type or property) with its
// relevance score in [0, 1].
type ScoredName struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// SearchStrategy ranks the schema elements relevant to a question. Derived
// by cheap word-overlap heuristics; the search layer uses it to focus
// lookups before any embedding work happens.
type SearchStrategy struct {
	NodeTypes     []ScoredName `json:"node_types"`
	RelationTypes []ScoredName `json:"relation_types"`
	Properties    []ScoredName `json:"properties"`
}

// Effectiveness thresholds: a strategy is worth following when at least
// one node type and one relation type clear these scores.
const (
	EffectiveNodeScore     = 0.3
	EffectiveRelationScore = 0.2
)

// IsEffective reports whether the strategy is strong enough to guide
// search, per the default thresholds.
func (st *SearchStrategy) IsEffective() bool {
	return st.IsEffectiveAt(EffectiveNodeScore, EffectiveRelationScore)
}

// IsEffectiveAt applies custom thresholds.
func (st *SearchStrategy) IsEffectiveAt(nodeThreshold, relationThreshold float64) bool {
	nodeOK := false
	for _, nt := range st.NodeTypes {
		if nt.Score >= nodeThreshold {
			nodeOK = true
			break
		}
	}
	if !nodeOK {
		return false
	}
	for _, rt := range st.RelationTypes {
		if rt.Score >= relationThreshold {
			return true
		}
	}
	return false
}

// DeriveStrategy scores the schema's node types, relation types and search
// properties against a free-text question.
//
// Node types score by word overlap with the label plus substring matches of
// question tokens against sampled property values. Relation types score by
// word overlap with the type name, biased by the schema's relation weights.
func (s *GraphSchema) DeriveStrategy(question string) *SearchStrategy {
	tokens := Tokenize(question, s.StopWords)
	st := &SearchStrategy{}

	for _, nt := range s.NodeTypes {
		score := overlapScore(tokens, splitName(nt.Label))

		// Sampled values that contain a question token are strong signal
		// that entities of this label are mentioned.
		for _, p := range nt.Properties {
			for _, sample := range p.Samples {
				lower := strings.ToLower(sample)
				for _, tok := range tokens {
					if strings.Contains(lower, tok) || strings.Contains(tok, lower) {
						score += 0.5
					}
				}
			}
		}
		if score > 1 {
			score = 1
		}
		if score > 0 {
			st.NodeTypes = append(st.NodeTypes, ScoredName{Name: nt.Label, Score: score})
		}
	}

	for _, rt := range s.RelationshipTypes {
		score := overlapScore(tokens, splitName(rt.Type))
		if w, ok := s.RelationWeights[rt.Type]; ok {
			score *= w
		}
		if score > 1 {
			score = 1
		}
		if score > 0 {
			st.RelationTypes = append(st.RelationTypes, ScoredName{Name: rt.Type, Score: score})
		}
	}

	propSeen := make(map[string]bool)
	for _, nt := range st.NodeTypes {
		for _, prop := range s.SearchProperties[nt.Name] {
			if !propSeen[prop] {
				propSeen[prop] = true
				st.Properties = append(st.Properties, ScoredName{Name: prop, Score: nt.Score})
			}
		}
	}

	sortScored(st.NodeTypes)
	sortScored(st.RelationTypes)
	sortScored(st.Properties)
	return st
}

func sortScored(items []ScoredName) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Name < items[j].Name
	})
}

// Tokenize lowercases and splits a question into tokens, filtering the
// given stop words. CJK runs split into single characters so substring
// matching works without word boundaries.
func Tokenize(text string, stopWords []string) []string {
	stops := make(map[string]bool, len(stopWords))
	for _, w := range stopWords {
		stops[strings.ToLower(w)] = true
	}

	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tok := strings.ToLower(current.String())
			if !stops[tok] {
				tokens = append(tokens, tok)
			}
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r):
			current.WriteRune(r)
		case unicode.Is(unicode.Han, r):
			flush()
			tok := string(r)
			if !stops[tok] {
				tokens = append(tokens, tok)
			}
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// splitName breaks a label or relation type into lowercase words:
// "WORKED_AT" -> [worked, at], "PersonName" -> [person, name].
func splitName(name string) []string {
	var words []string
	var current strings.Builder
	for i, r := range name {
		if r == '_' || r == '-' || r == ' ' {
			if current.Len() > 0 {
				words = append(words, strings.ToLower(current.String()))
				current.Reset()
			}
			continue
		}
		if unicode.IsUpper(r) && i > 0 && current.Len() > 0 {
			prev := rune(name[i-1])
			if !unicode.IsUpper(prev) {
				words = append(words, strings.ToLower(current.String()))
				current.Reset()
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		words = append(words, strings.ToLower(current.String()))
	}
	return words
}

// overlapScore is the fraction of name words matched by question tokens,
// counting prefix matches ("develop" ~ "developed") as full matches.
func overlapScore(tokens, words []string) float64 {
	if len(words) == 0 || len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, w := range words {
		for _, tok := range tokens {
			if w == tok || strings.HasPrefix(w, tok) || strings.HasPrefix(tok, w) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(words))
}
