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

// PostgresCollectionCatalog implements CollectionCatalog over the document
// layer's collection catalog. Read-only: the control plane never mutates
// collection rows, only the placement of their backing tables.
type PostgresCollectionCatalog struct {
	pool    *pgxpool.Pool
	schemas Schemas
	logger  *zap.Logger
}

// NewPostgresCollectionCatalog creates a collection catalog backed by the shared pool
func NewPostgresCollectionCatalog(pool *pgxpool.Pool, schemas Schemas, logger *zap.Logger) *PostgresCollectionCatalog {
	return &PostgresCollectionCatalog{pool: pool, schemas: schemas, logger: logger}
}

// LookupByName resolves a collection by database and collection name
func (s *PostgresCollectionCatalog) LookupByName(ctx context.Context, database, name string) (*model.Collection, error) {
	query := fmt.Sprintf(`
		SELECT collection_id, database_name, collection_name, shard_key
		FROM %s.collections
		WHERE database_name = $1 AND collection_name = $2
	`, s.schemas.Catalog)

	return s.scanCollection(conn(ctx, s.pool).QueryRow(ctx, query, database, name))
}

// LookupByID resolves a collection by its catalog id
func (s *PostgresCollectionCatalog) LookupByID(ctx context.Context, collectionID uint64) (*model.Collection, error) {
	query := fmt.Sprintf(`
		SELECT collection_id, database_name, collection_name, shard_key
		FROM %s.collections
		WHERE collection_id = $1
	`, s.schemas.Catalog)

	return s.scanCollection(conn(ctx, s.pool).QueryRow(ctx, query, collectionID))
}

func (s *PostgresCollectionCatalog) scanCollection(row pgx.Row) (*model.Collection, error) {
	var collection model.Collection
	err := row.Scan(
		&collection.CollectionID,
		&collection.Database,
		&collection.Name,
		&collection.ShardKey,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection catalog: %w", err)
	}
	return &collection, nil
}
