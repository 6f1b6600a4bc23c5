package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresPlacementStore implements PlacementStore over the substrate's
// shard movement primitive.
type PostgresPlacementStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresPlacementStore creates a placement store backed by the shared pool
func NewPostgresPlacementStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresPlacementStore {
	return &PostgresPlacementStore{pool: pool, logger: logger}
}

// MovePlacement physically moves one shard between nodes. The call blocks
// until the transfer completes; block_writes additionally blocks writers
// against the moving shard for the transfer's duration.
func (s *PostgresPlacementStore) MovePlacement(ctx context.Context, shardID int64, sourceHost string, sourcePort int, targetHost string, targetPort int, mode TransferMode) error {
	query := `SELECT citus_move_shard_placement($1, $2, $3, $4, $5, shard_transfer_mode => $6)`

	s.logger.Info("Moving shard placement",
		zap.Int64("shard_id", shardID),
		zap.String("source", fmt.Sprintf("%s:%d", sourceHost, sourcePort)),
		zap.String("target", fmt.Sprintf("%s:%d", targetHost, targetPort)),
		zap.String("mode", string(mode)))

	if _, err := conn(ctx, s.pool).Exec(ctx, query,
		shardID, sourceHost, sourcePort, targetHost, targetPort, string(mode)); err != nil {
		return fmt.Errorf("failed to move shard %d: %w", shardID, err)
	}
	return nil
}
