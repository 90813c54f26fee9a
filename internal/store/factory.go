package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/anurisatria/assignd/internal/db"
)

// NewRuleSource creates a rule source for the configured backend.
// Supported types: "builtin", "file", "postgres".
func NewRuleSource(ctx context.Context, sourceType, rulesFile, dbDSN string, log zerolog.Logger) (RuleSource, error) {
	switch sourceType {
	case "builtin":
		return NewMemorySource(), nil
	case "file":
		return NewFileSource(rulesFile, log)
	case "postgres":
		pool, err := db.NewPool(ctx, dbDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		return NewPostgresSource(ctx, pool)
	default:
		return nil, fmt.Errorf("unsupported rule source type: %s", sourceType)
	}
}
