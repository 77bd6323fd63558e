package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/sells-group/salesops-cli/internal/config"
	"github.com/sells-group/salesops-cli/internal/db"
	"github.com/sells-group/salesops-cli/internal/rules"
)

// Catalog caches each profile's parsed rules file and hands out a fresh
// Engine per call, so concurrent callers never share one. Reference tables
// are reloaded for every Engine: a corrected channel table takes effect on
// the next batch.
type Catalog struct {
	cfg  *config.Config
	pool db.Pool

	mu    sync.Mutex
	rules map[string]*rules.File
}

// NewCatalog returns a Catalog over cfg. pool may be nil.
func NewCatalog(cfg *config.Config, pool db.Pool) *Catalog {
	return &Catalog{cfg: cfg, pool: pool, rules: make(map[string]*rules.File)}
}

// Engine returns a new Engine for the named profile.
func (c *Catalog) Engine(ctx context.Context, name string) (*Engine, config.Profile, error) {
	p, err := c.cfg.Profile(name)
	if err != nil {
		return nil, config.Profile{}, err
	}
	rf, err := c.rulesFor(strings.ToLower(name), p)
	if err != nil {
		return nil, config.Profile{}, err
	}
	e, err := New(p, rf, LoadReference(ctx, c.cfg.Reference, p, c.pool))
	return e, p, err
}

// Profiles lists the configured profile names.
func (c *Catalog) Profiles() []string {
	return c.cfg.ProfileNames()
}

func (c *Catalog) rulesFor(key string, p config.Profile) (*rules.File, error) {
	if p.RulesFile == "" {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if rf, ok := c.rules[key]; ok {
		return rf, nil
	}
	rf, err := rules.Load(p.RulesFile)
	if err != nil {
		return nil, err
	}
	c.rules[key] = rf
	return rf, nil
}
