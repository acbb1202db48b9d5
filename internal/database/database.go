// Package database provides the Postgres collaborator the query tools run
// against. The agent only needs one operation: execute a statement and get
// the rows back as generic maps.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs a SQL statement with positional parameters. The tool layer
// depends on this interface so tests can substitute a fake.
type Executor interface {
	Execute(ctx context.Context, sql string, params []interface{}) ([]map[string]interface{}, error)
}

// Pool is the pgx-backed Executor.
type Pool struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool against the given DSN and verifies it.
func Connect(ctx context.Context, dsn string, maxConns int) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if maxConns > 0 {
		config.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Pool{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.pool.Close()
}

// Execute runs the statement and materializes every row into a column-name
// keyed map. Temporal values are rendered as RFC 3339 strings so results
// survive JSON round trips into the model context.
func (p *Pool) Execute(ctx context.Context, sql string, params []interface{}) ([]map[string]interface{}, error) {
	rows, err := p.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var results []map[string]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		row := make(map[string]interface{}, len(fields))
		for i, field := range fields {
			row[string(field.Name)] = normalizeValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return results, nil
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case [16]byte: // uuid
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16])
	default:
		return v
	}
}
