package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresShardCatalog implements ShardCatalog over the substrate shard and
// placement tables.
type PostgresShardCatalog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresShardCatalog creates a shard catalog backed by the shared pool
func NewPostgresShardCatalog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresShardCatalog {
	return &PostgresShardCatalog{pool: pool, logger: logger}
}

// CountShards counts the physical shards of a distributed table
func (s *PostgresShardCatalog) CountShards(ctx context.Context, table string) (int, error) {
	query := `SELECT count(*) FROM pg_dist_shard WHERE logicalrelid = $1::regclass`

	var count int
	if err := conn(ctx, s.pool).QueryRow(ctx, query, table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count shards of %s: %w", table, err)
	}
	return count, nil
}

// GetSingleShardPlacement resolves the one shard of a single-shard table and
// the primary node hosting it.
func (s *PostgresShardCatalog) GetSingleShardPlacement(ctx context.Context, table string) (*ShardPlacement, error) {
	query := `
		SELECT sh.shardid, pl.groupid, n.nodename, n.nodeport
		FROM pg_dist_shard sh
		JOIN pg_dist_placement pl ON sh.shardid = pl.shardid
		JOIN pg_dist_node n ON pl.groupid = n.groupid AND n.noderole = 'primary'
		WHERE sh.logicalrelid = $1::regclass
	`

	var placement ShardPlacement
	err := conn(ctx, s.pool).QueryRow(ctx, query, table).Scan(
		&placement.ShardID,
		&placement.GroupID,
		&placement.Host,
		&placement.Port,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve shard placement of %s: %w", table, err)
	}

	return &placement, nil
}

// ChosenShardPerGroup returns the minimum shard identifier within each group
// hosting the table. Shard identifiers are the physical shard relation names
// ("<table>_<shardid>") so a receiving node can locate its local shard.
func (s *PostgresShardCatalog) ChosenShardPerGroup(ctx context.Context, table string) ([]GroupShard, error) {
	query := `
		SELECT pl.groupid, MIN(c.relname || '_' || sh.shardid)
		FROM pg_dist_shard sh
		JOIN pg_class c ON c.oid = sh.logicalrelid
		JOIN pg_dist_placement pl ON sh.shardid = pl.shardid
		WHERE sh.logicalrelid = $1::regclass
		GROUP BY pl.groupid
		ORDER BY pl.groupid
	`

	rows, err := conn(ctx, s.pool).Query(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve shards of %s: %w", table, err)
	}
	defer rows.Close()

	shards := make([]GroupShard, 0)
	for rows.Next() {
		var gs GroupShard
		if err := rows.Scan(&gs.GroupID, &gs.ShardName); err != nil {
			return nil, fmt.Errorf("failed to scan shard row: %w", err)
		}
		shards = append(shards, gs)
	}

	return shards, rows.Err()
}
