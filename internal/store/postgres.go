package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schemas names the database schemas the catalogs live in
type Schemas struct {
	Data        string
	Catalog     string
	Distributed string
	Internal    string
	// Extension is the installed extension whose version gates upgrades
	Extension string
}

// ClusterDataTable returns the qualified singleton cluster metadata table
func (s Schemas) ClusterDataTable() string {
	return s.Data + ".cluster_data"
}

// ChangesTable returns the qualified internal change-tracking table
func (s Schemas) ChangesTable() string {
	return s.Data + ".changes"
}

// DataTable qualifies a physical table living in the data schema
func (s Schemas) DataTable(name string) string {
	return s.Data + "." + name
}

// NewPostgresPool creates the shared coordinator connection pool
func NewPostgresPool(host string, port int, database, user, password string, maxConns, minConns int) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// querier is the common surface of *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// conn returns the transaction bound to ctx by RunSequential, if any,
// otherwise the pool. Store methods route all SQL through this so that
// multi-step placement sequences share one transaction.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// PostgresSequentialRunner implements SequentialRunner over the shared pool
type PostgresSequentialRunner struct {
	pool *pgxpool.Pool
}

// NewPostgresSequentialRunner creates a sequential transaction runner
func NewPostgresSequentialRunner(pool *pgxpool.Pool) *PostgresSequentialRunner {
	return &PostgresSequentialRunner{pool: pool}
}

// RunSequential runs fn in a transaction with multi-shard modifications
// forced sequential. SET LOCAL scopes the override to the transaction, so
// the session setting is restored on commit and rollback alike.
func (r *PostgresSequentialRunner) RunSequential(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SET LOCAL citus.multi_shard_modify_mode TO 'sequential'`); err != nil {
		return fmt.Errorf("failed to set sequential modify mode: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
