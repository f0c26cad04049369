// Package guard screens pipeline input against a denylist of prompt-injection phrases.
package guard

import (
	"strings"
)

// DefaultPhrases are the trigger phrases blocked when no list is configured.
var DefaultPhrases = []string{
	"ignore instructions",
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard previous instructions",
	"ignore your instructions",
	"reveal your system prompt",
	"system prompt",
	"show your configuration",
	"reveal your configuration",
	"print your instructions",
	"developer mode",
	"act as root",
	"sudo ",
	"rm -rf",
	"os.system",
	"subprocess",
	"exec(",
	"eval(",
	"api_key",
}

// Guard is safe for concurrent use; it is never mutated after construction.
type Guard struct {
	phrases []string
}

// New returns a guard over the given phrases. Matching is case-insensitive; blank phrases are dropped.
func New(phrases ...string) *Guard {
	g := &Guard{phrases: make([]string, 0, len(phrases))}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		g.phrases = append(g.phrases, p)
	}
	return g
}

func Default() *Guard {
	return New(DefaultPhrases...)
}

// Phrases returns the normalized denylist.
func (g *Guard) Phrases() []string {
	out := make([]string, len(g.phrases))
	copy(out, g.phrases)
	return out
}

// Check reports whether text is allowed.
func (g *Guard) Check(text string) bool {
	_, matched := g.Match(text)
	return !matched
}

// Match returns the first denylisted phrase found in text.
func (g *Guard) Match(text string) (string, bool) {
	if g == nil || text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, p := range g.phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// CheckAll screens every text; the first match blocks the whole input.
func (g *Guard) CheckAll(texts ...string) (string, bool) {
	for _, t := range texts {
		if phrase, matched := g.Match(t); matched {
			return phrase, false
		}
	}
	return "", true
}
