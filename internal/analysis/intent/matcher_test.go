package intent

import (
	"testing"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
)

func defaultMatcher() *Matcher {
	return FromCatalog(catalog.Default())
}

func TestMatchEachIntent(t *testing.T) {
	m := defaultMatcher()

	cases := []struct {
		input string
		want  ID
	}{
		{"Hello", Greeting},
		{"HEY there", Greeting},
		{"what is in the textbook", Course},
		{"tell me about ROS", Framework},
		{"explain artificial intelligence", GeneralAI},
		{"bipedal walking", Humanoid},
		{"gazebo setup", Simulation},
		{"Thanks a lot", Gratitude},
		{"goodbye", Farewell},
		{"exit", Farewell},
		{"help", Help},
		{"xyzzy nonsense", Unmatched},
		{"", Unmatched},
	}

	for _, tc := range cases {
		if got := m.Match(tc.input); got != tc.want {
			t.Fatalf("Match(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestMatchPriorityFirstRuleWins(t *testing.T) {
	m := defaultMatcher()

	// "humanoid robot" contains "robot", which the framework rule claims first.
	if got := m.Match("humanoid robot"); got != Framework {
		t.Fatalf("expected framework to outrank humanoid, got %s", got)
	}
	// "module" and "hello" together: greeting is evaluated first.
	if got := m.Match("hello, which module?"); got != Greeting {
		t.Fatalf("expected greeting, got %s", got)
	}
	// Plain substring semantics: "this" contains "hi".
	if got := m.Match("is this a simulation"); got != Greeting {
		t.Fatalf("expected substring match on greeting, got %s", got)
	}
	// "goodbye" is also caught by "bye"; "thank you, bye" is gratitude first.
	if got := m.Match("thank you, bye"); got != Gratitude {
		t.Fatalf("expected gratitude, got %s", got)
	}
}

func TestMatchIsPure(t *testing.T) {
	m := defaultMatcher()
	inputs := []string{"Hello", "ROS 2", "unity", "zzz", "   ", "ÄI"}
	for _, in := range inputs {
		first := m.Match(in)
		for i := 0; i < 5; i++ {
			if got := m.Match(in); got != first {
				t.Fatalf("Match(%q) changed from %s to %s", in, first, got)
			}
		}
	}
}

func TestNewMatcherCopiesRules(t *testing.T) {
	rules := []Rule{{Intent: "shout", Keywords: []string{"LOUD"}}}
	m := NewMatcher(rules)
	rules[0].Keywords[0] = "quiet"

	if got := m.Match("so loud"); got != "shout" {
		t.Fatalf("expected shout, got %s", got)
	}
	if got := m.Rules(); got[0].Keywords[0] != "loud" {
		t.Fatalf("unexpected rule keywords %v", got[0].Keywords)
	}
}

func TestEmptyMatcherIsTotal(t *testing.T) {
	m := NewMatcher(nil)
	if got := m.Match("anything"); got != Unmatched {
		t.Fatalf("expected unmatched, got %s", got)
	}
}
