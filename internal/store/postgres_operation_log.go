package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/papyrusdb/controlplane/internal/model"
	"go.uber.org/zap"
)

// PostgresOperationLog implements OperationLog over the internal operations
// audit table.
type PostgresOperationLog struct {
	pool    *pgxpool.Pool
	schemas Schemas
	logger  *zap.Logger
}

// NewPostgresOperationLog creates an operation log backed by the shared pool
func NewPostgresOperationLog(pool *pgxpool.Pool, schemas Schemas, logger *zap.Logger) *PostgresOperationLog {
	return &PostgresOperationLog{pool: pool, schemas: schemas, logger: logger}
}

func (s *PostgresOperationLog) table() string {
	return s.schemas.Internal + ".control_operations"
}

// Create records a new control-plane operation
func (s *PostgresOperationLog) Create(ctx context.Context, op *model.Operation) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (operation_id, type, target, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, s.table())

	_, err := conn(ctx, s.pool).Exec(ctx, query,
		op.OperationID,
		string(op.Type),
		op.Target,
		string(op.Status),
		op.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create operation record: %w", err)
	}
	return nil
}

// MarkCompleted finalizes an operation record as completed
func (s *PostgresOperationLog) MarkCompleted(ctx context.Context, operationID string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, completed_at = NOW()
		WHERE operation_id = $1
	`, s.table())

	result, err := conn(ctx, s.pool).Exec(ctx, query, operationID, string(model.OperationStatusCompleted))
	if err != nil {
		return fmt.Errorf("failed to complete operation record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed finalizes an operation record as failed with its error
func (s *PostgresOperationLog) MarkFailed(ctx context.Context, operationID string, errorMessage string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2, error_message = $3, completed_at = NOW()
		WHERE operation_id = $1
	`, s.table())

	result, err := conn(ctx, s.pool).Exec(ctx, query, operationID, string(model.OperationStatusFailed), errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark operation record failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
