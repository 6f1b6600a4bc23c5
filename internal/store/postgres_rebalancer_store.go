package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/papyrusdb/controlplane/internal/model"
	"go.uber.org/zap"
)

// PostgresRebalancerStore implements RebalancerStore over the substrate's
// background rebalance job queue.
type PostgresRebalancerStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresRebalancerStore creates a rebalancer store backed by the shared pool
func NewPostgresRebalancerStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresRebalancerStore {
	return &PostgresRebalancerStore{pool: pool, logger: logger}
}

// ListJobs returns rebalance jobs, newest first
func (s *PostgresRebalancerStore) ListJobs(ctx context.Context) ([]model.RebalanceJob, error) {
	query := `
		SELECT job_id, state::text, COALESCE(description, '')
		FROM pg_dist_background_job
		WHERE job_type = 'rebalance'
		ORDER BY job_id DESC
	`

	rows, err := conn(ctx, s.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read rebalance jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.RebalanceJob, 0)
	for rows.Next() {
		var job model.RebalanceJob
		var state string
		if err := rows.Scan(&job.JobID, &state, &job.Details); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance job row: %w", err)
		}
		job.State = model.RebalanceJobState(state)
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// ListStrategies returns the available rebalance strategy names
func (s *PostgresRebalancerStore) ListStrategies(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM pg_dist_rebalance_strategy ORDER BY name`

	rows, err := conn(ctx, s.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read rebalance strategies: %w", err)
	}
	defer rows.Close()

	strategies := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		strategies = append(strategies, name)
	}

	return strategies, rows.Err()
}

// SetDefaultStrategy selects the strategy subsequent rebalances use
func (s *PostgresRebalancerStore) SetDefaultStrategy(ctx context.Context, strategy string) error {
	query := `SELECT citus_set_default_rebalance_strategy($1)`

	if _, err := conn(ctx, s.pool).Exec(ctx, query, strategy); err != nil {
		return fmt.Errorf("failed to set rebalance strategy %q: %w", strategy, err)
	}
	return nil
}

// Start schedules a background rebalance and returns its job id
func (s *PostgresRebalancerStore) Start(ctx context.Context) (int64, error) {
	query := `SELECT citus_rebalance_start()`

	var jobID int64
	if err := conn(ctx, s.pool).QueryRow(ctx, query).Scan(&jobID); err != nil {
		return 0, fmt.Errorf("failed to start rebalance: %w", err)
	}

	s.logger.Info("Rebalance started", zap.Int64("job_id", jobID))
	return jobID, nil
}

// Stop cancels the in-flight rebalance, reporting whether one was active
func (s *PostgresRebalancerStore) Stop(ctx context.Context) (bool, error) {
	jobs, err := s.ListJobs(ctx)
	if err != nil {
		return false, err
	}

	active := false
	for _, job := range jobs {
		if job.State.InFlight() {
			active = true
			break
		}
	}
	if !active {
		return false, nil
	}

	if _, err := conn(ctx, s.pool).Exec(ctx, `SELECT citus_rebalance_stop()`); err != nil {
		return false, fmt.Errorf("failed to stop rebalance: %w", err)
	}
	return true, nil
}
