package policy

import (
	"sync"

	"github.com/anurisatria/assignd/internal/rules"
)

// Context holds the rule material an Engine evaluates against: the base
// declarative table loaded at startup plus a user-supplied overlay that can be
// replaced wholesale at runtime. Replacing the overlay affects every
// subsequent evaluation process-wide; updates are rare administrative
// operations, so a single RWMutex is sufficient.
type Context struct {
	mu        sync.RWMutex
	baseRules []rules.Rule
	userRules []rules.Rule
}

// NewContext creates a Context over the given base rule table.
func NewContext(base []rules.Rule) *Context {
	return &Context{baseRules: base}
}

// ReplaceUserRules swaps the entire user-rule overlay.
func (c *Context) ReplaceUserRules(rs []rules.Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userRules = make([]rules.Rule, len(rs))
	copy(c.userRules, rs)
}

// ActiveRules returns a snapshot of base and user rules combined.
// User rules participate in the same priority ordering as base rules.
func (c *Context) ActiveRules() []rules.Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	combined := make([]rules.Rule, 0, len(c.baseRules)+len(c.userRules))
	combined = append(combined, c.baseRules...)
	combined = append(combined, c.userRules...)
	return combined
}

// UserRuleCount reports how many overlay rules are installed.
func (c *Context) UserRuleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.userRules)
}
