package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinFallbackReplies is the smallest unmatched-reply pool a catalog may carry.
const MinFallbackReplies = 3

// UnmatchedID is reserved for inputs no intent claims.
const UnmatchedID = "unmatched"

//go:embed default.yaml
var defaultYAML []byte

var ErrInvalidCatalog = errors.New("invalid catalog")

// Intent is one row of the ordered rule table.
type Intent struct {
	ID       string   `yaml:"id" json:"id"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Reply    string   `yaml:"reply" json:"reply"`
}

// Profile describes how the widget presents the assistant.
type Profile struct {
	Title       string `yaml:"title" json:"title"`
	Subtitle    string `yaml:"subtitle" json:"subtitle"`
	Placeholder string `yaml:"placeholder" json:"placeholder"`
}

// Catalog bundles the static conversation content: the seeded greeting, the
// apology used on failed dispatches, the ordered intent table and the
// fallback pool. It is read-only once loaded.
type Catalog struct {
	Greeting string   `yaml:"greeting"`
	Apology  string   `yaml:"apology"`
	Intents  []Intent `yaml:"intents"`
	Fallback []string `yaml:"fallback"`
	Profile  Profile  `yaml:"profile"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog. Keywords are lower-cased.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	for i := range c.Intents {
		for j, kw := range c.Intents[i].Keywords {
			c.Intents[i].Keywords[j] = strings.ToLower(kw)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports the first structural problem in the catalog.
func (c *Catalog) Validate() error {
	if strings.TrimSpace(c.Greeting) == "" {
		return fmt.Errorf("%w: greeting is required", ErrInvalidCatalog)
	}
	if strings.TrimSpace(c.Apology) == "" {
		return fmt.Errorf("%w: apology is required", ErrInvalidCatalog)
	}
	if len(c.Intents) == 0 {
		return fmt.Errorf("%w: at least one intent is required", ErrInvalidCatalog)
	}

	seen := make(map[string]struct{}, len(c.Intents))
	for i, in := range c.Intents {
		id := strings.TrimSpace(in.ID)
		switch {
		case id == "":
			return fmt.Errorf("%w: intent #%d has no id", ErrInvalidCatalog, i)
		case id == UnmatchedID:
			return fmt.Errorf("%w: intent id %q is reserved", ErrInvalidCatalog, UnmatchedID)
		case strings.TrimSpace(in.Reply) == "":
			return fmt.Errorf("%w: intent %q has no reply", ErrInvalidCatalog, id)
		case len(in.Keywords) == 0:
			return fmt.Errorf("%w: intent %q has no keywords", ErrInvalidCatalog, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate intent %q", ErrInvalidCatalog, id)
		}
		seen[id] = struct{}{}

		for _, kw := range in.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("%w: intent %q has a blank keyword", ErrInvalidCatalog, id)
			}
		}
	}

	if len(c.Fallback) < MinFallbackReplies {
		return fmt.Errorf("%w: fallback pool needs at least %d replies, got %d", ErrInvalidCatalog, MinFallbackReplies, len(c.Fallback))
	}
	for i, reply := range c.Fallback {
		if strings.TrimSpace(reply) == "" {
			return fmt.Errorf("%w: fallback reply #%d is blank", ErrInvalidCatalog, i)
		}
	}
	return nil
}

// Replies maps intent ids to their fixed reply text.
func (c *Catalog) Replies() map[string]string {
	out := make(map[string]string, len(c.Intents))
	for _, in := range c.Intents {
		out[in.ID] = in.Reply
	}
	return out
}
