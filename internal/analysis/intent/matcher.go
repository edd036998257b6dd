package intent

import (
	"strings"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
)

// ID names an intent category.
type ID string

const (
	Greeting   ID = "greeting"
	Course     ID = "course"
	Framework  ID = "framework"
	GeneralAI  ID = "general_ai"
	Humanoid   ID = "humanoid"
	Simulation ID = "simulation"
	Gratitude  ID = "gratitude"
	Farewell   ID = "farewell"
	Help       ID = "help"
	Unmatched  ID = catalog.UnmatchedID
)

// Rule matches when any of its keywords occurs in the input.
type Rule struct {
	Intent   ID
	Keywords []string
}

// Matches reports whether normalized contains one of the rule's keywords.
func (r Rule) Matches(normalized string) bool {
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// Matcher classifies input against an ordered rule table; the first matching
// rule wins. A Matcher is immutable and safe for concurrent use.
type Matcher struct {
	rules []Rule
}

// NewMatcher copies rules, lower-casing every keyword.
func NewMatcher(rules []Rule) *Matcher {
	copied := make([]Rule, 0, len(rules))
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kws = append(kws, strings.ToLower(kw))
		}
		copied = append(copied, Rule{Intent: r.Intent, Keywords: kws})
	}
	return &Matcher{rules: copied}
}

// FromCatalog builds a Matcher from the catalog's intent table, keeping its order.
func FromCatalog(c *catalog.Catalog) *Matcher {
	rules := make([]Rule, 0, len(c.Intents))
	for _, in := range c.Intents {
		rules = append(rules, Rule{Intent: ID(in.ID), Keywords: in.Keywords})
	}
	return NewMatcher(rules)
}

// Match returns the first intent whose keywords appear in input, compared
// case-insensitively as plain substrings, or Unmatched.
func (m *Matcher) Match(input string) ID {
	normalized := strings.ToLower(input)
	for _, r := range m.rules {
		if r.Matches(normalized) {
			return r.Intent
		}
	}
	return Unmatched
}

// Rules returns a copy of the rule table in priority order.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	for i, r := range m.rules {
		out[i] = Rule{Intent: r.Intent, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}
