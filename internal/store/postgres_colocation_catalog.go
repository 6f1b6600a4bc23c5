package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/papyrusdb/controlplane/internal/model"
	"go.uber.org/zap"
)

// noDistributionColumn is the substrate's marker for single-shard tables
// without an explicit distribution column.
const noDistributionColumn = "<none>"

// PostgresColocationCatalog implements ColocationCatalog over the
// substrate's distribution views and placement-mutation functions.
type PostgresColocationCatalog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresColocationCatalog creates a colocation catalog backed by the shared pool
func NewPostgresColocationCatalog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresColocationCatalog {
	return &PostgresColocationCatalog{pool: pool, logger: logger}
}

// GetDistributionShape returns the current distribution of a table.
// A table absent from the distribution view is a plain local table.
func (s *PostgresColocationCatalog) GetDistributionShape(ctx context.Context, table string) (model.DistributionShape, error) {
	query := `
		SELECT distribution_column, colocation_id, shard_count
		FROM citus_tables
		WHERE table_name = $1::regclass
	`

	var column string
	var shape model.DistributionShape
	err := conn(ctx, s.pool).QueryRow(ctx, query, table).Scan(&column, &shape.ColocationID, &shape.ShardCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.DistributionShape{}, nil
	}
	if err != nil {
		return model.DistributionShape{}, fmt.Errorf("failed to read distribution of %s: %w", table, err)
	}

	shape.Distributed = true
	if column != noDistributionColumn {
		shape.DistributionColumn = column
	}
	return shape, nil
}

// RequestColocation colocates table with colocateWith ("none" to leave)
func (s *PostgresColocationCatalog) RequestColocation(ctx context.Context, table, colocateWith string) error {
	query := `SELECT update_distributed_table_colocation($1::regclass, colocate_with => $2)`

	if _, err := conn(ctx, s.pool).Exec(ctx, query, table, colocateWith); err != nil {
		return fmt.Errorf("failed to update colocation of %s: %w", table, err)
	}
	return nil
}

// Undistribute converts a distributed table back to a local table
func (s *PostgresColocationCatalog) Undistribute(ctx context.Context, table string) error {
	query := `SELECT undistribute_table($1::regclass)`

	if _, err := conn(ctx, s.pool).Exec(ctx, query, table); err != nil {
		return fmt.Errorf("failed to undistribute %s: %w", table, err)
	}
	return nil
}

// Distribute distributes a local table colocated with colocateWith. An empty
// distributionColumn yields a single-shard table with no explicit column.
func (s *PostgresColocationCatalog) Distribute(ctx context.Context, table, distributionColumn, colocateWith string) error {
	if distributionColumn == "" {
		query := `SELECT create_distributed_table($1::regclass, NULL, colocate_with => $2)`
		if _, err := conn(ctx, s.pool).Exec(ctx, query, table, colocateWith); err != nil {
			return fmt.Errorf("failed to distribute %s: %w", table, err)
		}
		return nil
	}

	query := `SELECT create_distributed_table($1::regclass, $2, colocate_with => $3)`
	if _, err := conn(ctx, s.pool).Exec(ctx, query, table, distributionColumn, colocateWith); err != nil {
		return fmt.Errorf("failed to distribute %s: %w", table, err)
	}
	return nil
}

// Redistribute reshapes a distributed table onto an explicit distribution column
func (s *PostgresColocationCatalog) Redistribute(ctx context.Context, table, distributionColumn, colocateWith string) error {
	query := `SELECT alter_distributed_table($1::regclass, distribution_column => $2, colocate_with => $3)`

	if _, err := conn(ctx, s.pool).Exec(ctx, query, table, distributionColumn, colocateWith); err != nil {
		return fmt.Errorf("failed to redistribute %s: %w", table, err)
	}
	return nil
}

// SharesColocationGroup reports whether two tables are currently co-located
func (s *PostgresColocationCatalog) SharesColocationGroup(ctx context.Context, tableA, tableB string) (bool, error) {
	query := `
		SELECT a.colocationid = b.colocationid
		FROM pg_dist_partition a, pg_dist_partition b
		WHERE a.logicalrelid = $1::regclass AND b.logicalrelid = $2::regclass
	`

	var shared bool
	err := conn(ctx, s.pool).QueryRow(ctx, query, tableA, tableB).Scan(&shared)
	if errors.Is(err, pgx.ErrNoRows) {
		// One of them is not distributed, so no shared group.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare colocation of %s and %s: %w", tableA, tableB, err)
	}
	return shared, nil
}
