// Package store persists user-defined assignment rules. The builtin rule set
// ships with the binary; user rules layer on top and survive restarts when a
// file or postgres backend is configured.
package store

import (
	"context"

	"github.com/anurisatria/assignd/internal/rules"
)

// RuleSource loads and replaces the user-defined rule layer.
// Implementations must be safe for concurrent use.
type RuleSource interface {
	// UserRules returns the current user-defined rules.
	UserRules(ctx context.Context) ([]rules.Rule, error)

	// ReplaceUserRules swaps the entire user rule set atomically.
	// The rules are assumed to be validated by the caller.
	ReplaceUserRules(ctx context.Context, rs []rules.Rule) error

	// Watch registers a callback invoked with the fresh rule set whenever
	// the backing data changes outside ReplaceUserRules. Backends without
	// external change detection never invoke it.
	Watch(fn func([]rules.Rule))

	// Close releases any resources held by the source.
	Close() error
}
