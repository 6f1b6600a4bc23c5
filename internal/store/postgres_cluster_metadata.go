package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/papyrusdb/controlplane/internal/model"
	"go.uber.org/zap"
)

// versionMetadata is the stored JSON form of the cluster version record
type versionMetadata struct {
	InitializedVersion   string `json:"initialized_version,omitempty"`
	LastDeployVersion    string `json:"last_deploy_version"`
	LastSubstrateVersion string `json:"last_substrate_version,omitempty"`
}

// PostgresClusterMetadataStore implements ClusterMetadataStore over the
// singleton cluster_data reference table.
type PostgresClusterMetadataStore struct {
	pool    *pgxpool.Pool
	schemas Schemas
	logger  *zap.Logger
}

// NewPostgresClusterMetadataStore creates a cluster metadata store backed by the shared pool
func NewPostgresClusterMetadataStore(pool *pgxpool.Pool, schemas Schemas, logger *zap.Logger) *PostgresClusterMetadataStore {
	return &PostgresClusterMetadataStore{pool: pool, schemas: schemas, logger: logger}
}

// GetVersionRecord reads the singleton version row, ErrNotFound when the
// cluster has never been initialized.
func (s *PostgresClusterMetadataStore) GetVersionRecord(ctx context.Context) (*model.ClusterVersionRecord, error) {
	query := fmt.Sprintf(`SELECT metadata FROM %s`, s.schemas.ClusterDataTable())

	var raw []byte
	err := conn(ctx, s.pool).QueryRow(ctx, query).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster version record: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	var meta versionMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode cluster version record: %w", err)
	}

	record := &model.ClusterVersionRecord{LastSubstrateVersion: meta.LastSubstrateVersion}
	if meta.LastDeployVersion != "" {
		v, err := model.ParseVersion(meta.LastDeployVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cluster version record: %w", err)
		}
		record.LastDeployVersion = v
	}
	if meta.InitializedVersion != "" {
		v, err := model.ParseVersion(meta.InitializedVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cluster version record: %w", err)
		}
		record.InitializedVersion = &v
	}
	return record, nil
}

// SaveVersionRecord writes the singleton version row, creating it on first use
func (s *PostgresClusterMetadataStore) SaveVersionRecord(ctx context.Context, record *model.ClusterVersionRecord) error {
	meta := versionMetadata{
		LastDeployVersion:    record.LastDeployVersion.String(),
		LastSubstrateVersion: record.LastSubstrateVersion,
	}
	if record.InitializedVersion != nil {
		meta.InitializedVersion = record.InitializedVersion.String()
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode cluster version record: %w", err)
	}

	update := fmt.Sprintf(`UPDATE %s SET metadata = $1`, s.schemas.ClusterDataTable())
	tag, err := conn(ctx, s.pool).Exec(ctx, update, raw)
	if err != nil {
		return fmt.Errorf("failed to write cluster version record: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	insert := fmt.Sprintf(`INSERT INTO %s (metadata) VALUES ($1)`, s.schemas.ClusterDataTable())
	if _, err := conn(ctx, s.pool).Exec(ctx, insert, raw); err != nil {
		return fmt.Errorf("failed to seed cluster version record: %w", err)
	}
	return nil
}

// InstalledVersion reads the deployed extension version from the extension catalog
func (s *PostgresClusterMetadataStore) InstalledVersion(ctx context.Context) (model.Version, error) {
	query := `SELECT extversion FROM pg_extension WHERE extname = $1`

	var raw string
	err := conn(ctx, s.pool).QueryRow(ctx, query, s.schemas.Extension).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Version{}, fmt.Errorf("extension %s is not installed", s.schemas.Extension)
	}
	if err != nil {
		return model.Version{}, fmt.Errorf("failed to read installed extension version: %w", err)
	}

	// Extension versions use "major.minor-patch" notation.
	v, err := model.ParseVersion(strings.ReplaceAll(raw, "-", "."))
	if err != nil {
		return model.Version{}, fmt.Errorf("unparseable extension version %q: %w", raw, err)
	}
	return v, nil
}

// SubstrateVersion reads the sharding substrate's own extension version
func (s *PostgresClusterMetadataStore) SubstrateVersion(ctx context.Context) (string, error) {
	query := `SELECT extversion FROM pg_extension WHERE extname = 'citus'`

	var version string
	if err := conn(ctx, s.pool).QueryRow(ctx, query).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to read substrate version: %w", err)
	}
	return version, nil
}

// BroadcastInvalidation performs the no-op metadata write that every process
// observes on its next catalog read, refreshing cached version state.
func (s *PostgresClusterMetadataStore) BroadcastInvalidation(ctx context.Context) error {
	query := fmt.Sprintf(`UPDATE %s SET metadata = metadata`, s.schemas.ClusterDataTable())

	if _, err := conn(ctx, s.pool).Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to broadcast metadata invalidation: %w", err)
	}
	return nil
}

// CountReferenceTablePlacements counts placements of the cluster_data
// reference table; a count below the active primary node count means a node
// was added since the table was last replicated.
func (s *PostgresClusterMetadataStore) CountReferenceTablePlacements(ctx context.Context) (int, error) {
	query := `
		SELECT count(*)
		FROM pg_dist_shard sh
		JOIN pg_dist_placement pl ON sh.shardid = pl.shardid
		WHERE sh.logicalrelid = $1::regclass
	`

	var count int
	if err := conn(ctx, s.pool).QueryRow(ctx, query, s.schemas.ClusterDataTable()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reference table placements: %w", err)
	}
	return count, nil
}

// ReplicateReferenceTables re-replicates reference tables to every node
func (s *PostgresClusterMetadataStore) ReplicateReferenceTables(ctx context.Context) error {
	query := `SELECT replicate_reference_tables(shard_transfer_mode => 'block_writes')`

	if _, err := conn(ctx, s.pool).Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to replicate reference tables: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresClusterMetadataStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
