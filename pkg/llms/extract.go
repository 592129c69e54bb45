package llms

import (
	"regexp"
	"strings"
)

// Tolerant extraction over LLM responses. Model output is treated as loose
// text, never as a strict JSON document: a response that is almost JSON,
// wrapped in prose or markdown fences, still yields its useful parts.

var (
	keyValuePattern = regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"]*)"`)
	bracketPattern  = regexp.MustCompile(`\[([^\[\]]*)\]`)
	quotedPattern   = regexp.MustCompile(`"([^"]+)"`)
)

// ExtractKeyValues collects `"key": "value"` pairs anywhere in the text.
// Repeated keys keep the first occurrence.
func ExtractKeyValues(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range keyValuePattern.FindAllStringSubmatch(text, -1) {
		key := strings.TrimSpace(m[1])
		if _, seen := out[key]; !seen {
			out[key] = strings.TrimSpace(m[2])
		}
	}
	return out
}

// ExtractList collects the quoted items of the first bracketed enumeration
// following the given key, e.g. `"entities": ["A", "B"]`. Returns nil when
// the key or a bracketed list is absent.
func ExtractList(text, key string) []string {
	idx := strings.Index(text, `"`+key+`"`)
	if idx < 0 {
		return nil
	}
	rest := text[idx:]

	loc := bracketPattern.FindStringIndex(rest)
	if loc == nil {
		return nil
	}
	return ExtractQuoted(rest[loc[0]:loc[1]])
}

// ExtractQuoted collects all double-quoted strings in order, deduplicated.
func ExtractQuoted(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(m[1])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
