package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/docs-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
)

func TestSelectFixedIntentIsDeterministic(t *testing.T) {
	c := catalog.Default()
	s := NewSelector(c, NewRand(1))
	replies := c.Replies()

	for _, id := range []intent.ID{intent.Greeting, intent.Course, intent.Framework, intent.GeneralAI,
		intent.Humanoid, intent.Simulation, intent.Gratitude, intent.Farewell, intent.Help} {
		want := replies[string(id)]
		require.NotEmpty(t, want, "catalog missing %s", id)
		for i := 0; i < 3; i++ {
			assert.Equal(t, want, s.Select(id))
		}
	}
}

func TestSelectUnmatchedReachesWholePool(t *testing.T) {
	c := catalog.Default()
	s := NewSelector(c, NewRand(42))

	inPool := make(map[string]bool, len(c.Fallback))
	for _, reply := range c.Fallback {
		inPool[reply] = true
	}

	seen := make(map[string]int)
	const draws = 2000
	for i := 0; i < draws; i++ {
		got := s.Select(intent.Unmatched)
		require.True(t, inPool[got], "reply %q not in pool", got)
		seen[got]++
	}

	// Uniform over 5 entries: expect ~400 each, allow a wide margin.
	require.Len(t, seen, len(c.Fallback))
	for reply, n := range seen {
		assert.Greater(t, n, draws/len(c.Fallback)/2, "reply drawn too rarely: %q", reply)
	}
}

func TestSelectUnknownIntentFallsBackToPool(t *testing.T) {
	c := catalog.Default()
	s := NewSelector(c, NewRand(7))
	assert.Contains(t, s.Pool(), s.Select("weather"))
}

func TestSeededSelectorsAgree(t *testing.T) {
	c := catalog.Default()
	a := NewSelector(c, NewRand(99))
	b := NewSelector(c, NewRand(99))
	for i := 0; i < 20; i++ {
		require.Equal(t, a.Select(intent.Unmatched), b.Select(intent.Unmatched))
	}
}

func TestNilRandIsSeeded(t *testing.T) {
	s := NewSelector(catalog.Default(), nil)
	assert.Contains(t, s.Pool(), s.Select(intent.Unmatched))
}
