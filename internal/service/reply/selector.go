package reply

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/zhouzirui/docs-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
)

// Selector turns a matched intent into reply text. Fixed intents always map
// to the same text; Unmatched (and any intent without a fixed reply) draws
// uniformly from the fallback pool.
type Selector struct {
	fixed map[intent.ID]string
	pool  []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector builds a Selector from the catalog. A nil rng is replaced by a
// clock-seeded generator.
func NewSelector(c *catalog.Catalog, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = NewRand(uint64(time.Now().UnixNano()))
	}

	fixed := make(map[intent.ID]string, len(c.Intents))
	for id, text := range c.Replies() {
		fixed[intent.ID(id)] = text
	}

	return &Selector{
		fixed: fixed,
		pool:  append([]string(nil), c.Fallback...),
		rng:   rng,
	}
}

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Select returns the reply for id.
func (s *Selector) Select(id intent.ID) string {
	if id != intent.Unmatched {
		if text, ok := s.fixed[id]; ok {
			return text
		}
	}
	return s.pick()
}

// Pool returns a copy of the fallback replies.
func (s *Selector) Pool() []string {
	return append([]string(nil), s.pool...)
}

func (s *Selector) pick() string {
	s.mu.Lock()
	idx := s.rng.IntN(len(s.pool))
	s.mu.Unlock()
	return s.pool[idx]
}
