package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/papyrusdb/controlplane/internal/model"
	"go.uber.org/zap"
)

// indexSpecFields maps each metadata operation to the index_spec field it toggles
var indexSpecFields = map[model.IndexMetadataOperation]string{
	model.IndexMetadataOpReady:         "ready",
	model.IndexMetadataOpSparse:        "sparse",
	model.IndexMetadataOpTTL:           "ttl",
	model.IndexMetadataOpHidden:        "hidden",
	model.IndexMetadataOpPrepareUnique: "prepareUnique",
	model.IndexMetadataOpUnique:        "unique",
}

// PostgresIndexMetadataStore implements IndexMetadataStore against the local
// node's index catalog. The dispatcher executes the same mutation on every
// node hosting a shard of the collection's table.
type PostgresIndexMetadataStore struct {
	pool    *pgxpool.Pool
	schemas Schemas
	logger  *zap.Logger
}

// NewPostgresIndexMetadataStore creates an index metadata store backed by the shared pool
func NewPostgresIndexMetadataStore(pool *pgxpool.Pool, schemas Schemas, logger *zap.Logger) *PostgresIndexMetadataStore {
	return &PostgresIndexMetadataStore{pool: pool, schemas: schemas, logger: logger}
}

// ApplyUpdate toggles one index metadata flag. With ignoreMissing set, an
// absent index row is a silent no-op instead of an error, tolerating
// placement gaps mid scale-out.
func (s *PostgresIndexMetadataStore) ApplyUpdate(ctx context.Context, req *model.IndexMetadataUpdateRequest, ignoreMissing bool) error {
	field, ok := indexSpecFields[req.Operation]
	if !ok {
		return fmt.Errorf("unknown index metadata operation %q", req.Operation)
	}

	query := fmt.Sprintf(`
		UPDATE %s.collection_indexes
		SET index_spec = jsonb_set(index_spec, $1, to_jsonb($2::bool))
		WHERE collection_id = $3 AND index_id = $4
	`, s.schemas.Catalog)

	tag, err := conn(ctx, s.pool).Exec(ctx, query,
		[]string{field}, req.Value, req.CollectionID, req.IndexID)
	if err != nil {
		return fmt.Errorf("failed to update index metadata: %w", err)
	}

	if tag.RowsAffected() == 0 {
		if ignoreMissing {
			s.logger.Debug("Index metadata row absent, ignoring",
				zap.Uint64("collection_id", req.CollectionID),
				zap.Int32("index_id", req.IndexID))
			return nil
		}
		return ErrNotFound
	}
	return nil
}
