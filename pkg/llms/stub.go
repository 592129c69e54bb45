package llms

import (
	"context"
	"strings"
	"sync"
)

// StubLLM is a deterministic in-process LLM for tests and offline runs.
//
// Responses resolve in order: exact scripted response for the prompt,
// earliest-registered scripted response whose key is a substring of the
// prompt, then the echo fallback which summarizes the prompt's evidence
// lines. Records every prompt it sees.
type StubLLM struct {
	mu        sync.Mutex
	keys      []string
	responses map[string]string
	prompts   []string
	fail      error
}

func NewStubLLM() *StubLLM {
	return &StubLLM{responses: make(map[string]string)}
}

// Script registers a canned response for prompts containing key.
// Re-scripting a key replaces its response but keeps its position.
func (s *StubLLM) Script(key, response string) *StubLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responses[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.responses[key] = response
	return s
}

// FailWith makes every Generate call return err.
func (s *StubLLM) FailWith(err error) *StubLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
	return s
}

// Prompts returns a copy of all prompts seen so far.
func (s *StubLLM) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

func (s *StubLLM) Generate(_ context.Context, prompt string, _ float64, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if s.fail != nil {
		return "", s.fail
	}

	if resp, ok := s.responses[prompt]; ok {
		return resp, nil
	}
	for _, key := range s.keys {
		if strings.Contains(prompt, key) {
			return s.responses[key], nil
		}
	}

	return s.echo(prompt), nil
}

// echo produces a deterministic summary of the evidence lines embedded in
// the prompt, so end-to-end tests can assert on answer content.
func (s *StubLLM) echo(prompt string) string {
	var evidences []string
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "-[") && strings.Contains(line, "]->") {
			evidences = append(evidences, line)
		}
	}
	if len(evidences) == 0 {
		return "No supporting evidence was found."
	}
	return "Based on the evidence: " + strings.Join(evidences, "; ")
}

func (s *StubLLM) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail == nil
}

func (s *StubLLM) Close() error { return nil }

// Ensure StubLLM implements LLM.
var _ LLM = (*StubLLM)(nil)
