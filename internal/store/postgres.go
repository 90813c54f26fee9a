package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anurisatria/assignd/internal/rules"
)

// PostgresSource persists user rules in a single-table postgres backend so
// several instances can share one rule set.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a postgres-backed rule source and ensures the
// schema exists.
func NewPostgresSource(ctx context.Context, pool *pgxpool.Pool) (*PostgresSource, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS user_rules (
			id         TEXT PRIMARY KEY,
			priority   INT NOT NULL DEFAULT 0,
			rule       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure user_rules table: %w", err)
	}
	return &PostgresSource{pool: pool}, nil
}

func (p *PostgresSource) UserRules(ctx context.Context) ([]rules.Rule, error) {
	rows, err := p.pool.Query(ctx, `SELECT rule FROM user_rules ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query user rules: %w", err)
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r rules.Rule
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceUserRules swaps the stored rule set inside one transaction.
func (p *PostgresSource) ReplaceUserRules(ctx context.Context, rs []rules.Rule) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin rule replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_rules`); err != nil {
		return fmt.Errorf("clear user rules: %w", err)
	}
	for _, r := range rs {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode rule %s: %w", r.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO user_rules (id, priority, rule) VALUES ($1, $2, $3)`,
			r.ID, r.Priority, data)
		if err != nil {
			return fmt.Errorf("insert rule %s: %w", r.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *PostgresSource) Watch(fn func([]rules.Rule)) {}

func (p *PostgresSource) Close() error {
	p.pool.Close()
	return nil
}
