package llm

import (
	"fmt"
	"sync"

	"github.com/pocketomega/pocket-planner/internal/errs"
)

// Factory builds a Generator for one provider.
type Factory func(Config) (Generator, error)

// Cache hands out one Generator per distinct (provider, endpoint, model,
// temperature, max tokens) combination. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	factories  map[string]Factory
	generators map[string]Generator
}

// NewCache creates a cache over the given provider factories.
func NewCache(factories map[string]Factory) *Cache {
	return &Cache{
		factories:  factories,
		generators: make(map[string]Generator),
	}
}

// Get returns the cached generator for cfg, building it on first use.
func (c *Cache) Get(cfg Config) (Generator, error) {
	key := cfg.key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.generators[key]; ok {
		return g, nil
	}
	factory, ok := c.factories[cfg.Provider]
	if !ok {
		return nil, errs.NewConfig(fmt.Sprintf("unknown llm provider %q", cfg.Provider), map[string]any{"provider": cfg.Provider}, nil)
	}
	g, err := factory(cfg)
	if err != nil {
		return nil, err
	}
	c.generators[key] = g
	return g, nil
}

// Len returns the number of cached generators.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.generators)
}
