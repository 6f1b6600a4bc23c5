package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresSchemaAdmin implements SchemaAdmin. Statements use IF EXISTS /
// IF NOT EXISTS guards or distribution-catalog checks so that every step can
// be replayed after a partial earlier run.
type PostgresSchemaAdmin struct {
	pool    *pgxpool.Pool
	schemas Schemas
	logger  *zap.Logger
}

// NewPostgresSchemaAdmin creates a schema admin backed by the shared pool
func NewPostgresSchemaAdmin(pool *pgxpool.Pool, schemas Schemas, logger *zap.Logger) *PostgresSchemaAdmin {
	return &PostgresSchemaAdmin{pool: pool, schemas: schemas, logger: logger}
}

func (s *PostgresSchemaAdmin) exec(ctx context.Context, statements ...string) error {
	q := conn(ctx, s.pool)
	for _, stmt := range statements {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// EnsureClusterDataReferenceTable creates the singleton cluster metadata
// table and registers it as a reference table replicated to every node.
func (s *PostgresSchemaAdmin) EnsureClusterDataReferenceTable(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (metadata jsonb)`, s.schemas.ClusterDataTable()),
		fmt.Sprintf(`
			SELECT create_reference_table('%[1]s')
			WHERE NOT EXISTS (
				SELECT 1 FROM pg_dist_partition WHERE logicalrelid = '%[1]s'::regclass
			)`, s.schemas.ClusterDataTable()),
	)
}

// DistributeChangesTable distributes the internal change-tracking table on
// its synthetic shard_key_value column, in its own colocation group.
func (s *PostgresSchemaAdmin) DistributeChangesTable(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`
			SELECT create_distributed_table('%[1]s', 'shard_key_value', colocate_with => 'none')
			WHERE NOT EXISTS (
				SELECT 1 FROM pg_dist_partition WHERE logicalrelid = '%[1]s'::regclass
			)`, s.schemas.ChangesTable()),
	)
}

// CreateDatabaseNameValidationTrigger rejects database names that differ
// from an existing database only by case.
func (s *PostgresSchemaAdmin) CreateDatabaseNameValidationTrigger(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`
			CREATE OR REPLACE FUNCTION %[1]s.validate_database_name()
			RETURNS trigger AS $$
			BEGIN
				IF EXISTS (
					SELECT 1 FROM %[2]s.collections
					WHERE lower(database_name) = lower(NEW.database_name)
					  AND database_name <> NEW.database_name
				) THEN
					RAISE EXCEPTION 'database name %% differs only by case from an existing database', NEW.database_name;
				END IF;
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`, s.schemas.Internal, s.schemas.Catalog),
		fmt.Sprintf(`
			CREATE OR REPLACE TRIGGER collections_validate_dbname
			BEFORE INSERT ON %s.collections
			FOR EACH ROW EXECUTE FUNCTION %s.validate_database_name()`,
			s.schemas.Catalog, s.schemas.Internal),
	)
}

// AddCollectionsViewDefinitionColumn adds the view_definition column used by
// view collections.
func (s *PostgresSchemaAdmin) AddCollectionsViewDefinitionColumn(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`ALTER TABLE %s.collections ADD COLUMN IF NOT EXISTS view_definition jsonb`, s.schemas.Catalog),
	)
}

// CreateVersionChangeTrigger notifies sessions when the cluster version row
// changes so they refresh their cached version state.
func (s *PostgresSchemaAdmin) CreateVersionChangeTrigger(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`
			CREATE OR REPLACE FUNCTION %s.on_cluster_data_change()
			RETURNS trigger AS $$
			BEGIN
				PERFORM pg_notify('cluster_version_changed', '');
				RETURN NEW;
			END;
			$$ LANGUAGE plpgsql`, s.schemas.Internal),
		fmt.Sprintf(`
			CREATE OR REPLACE TRIGGER cluster_data_version_change
			AFTER UPDATE ON %s
			FOR EACH STATEMENT EXECUTE FUNCTION %s.on_cluster_data_change()`,
			s.schemas.ClusterDataTable(), s.schemas.Internal),
	)
}

// AddCollectionValidationColumns adds the schema-validation columns
func (s *PostgresSchemaAdmin) AddCollectionValidationColumns(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`ALTER TABLE %s.collections ADD COLUMN IF NOT EXISTS validator jsonb`, s.schemas.Catalog),
		fmt.Sprintf(`ALTER TABLE %s.collections ADD COLUMN IF NOT EXISTS validation_level text`, s.schemas.Catalog),
		fmt.Sprintf(`ALTER TABLE %s.collections ADD COLUMN IF NOT EXISTS validation_action text`, s.schemas.Catalog),
	)
}

// RecreateIndexBuildQueue rebuilds the background index-build queue with its
// current shape. The queue holds no durable state between deployments.
func (s *PostgresSchemaAdmin) RecreateIndexBuildQueue(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`DROP TABLE IF EXISTS %s.index_build_queue`, s.schemas.Catalog),
		fmt.Sprintf(`
			CREATE TABLE %s.index_build_queue (
				index_cmd_type char NOT NULL,
				index_id bigint NOT NULL,
				index_cmd text NOT NULL,
				cmd_status int NOT NULL DEFAULT 1,
				attempt smallint NOT NULL DEFAULT 0,
				comment jsonb,
				update_time timestamptz NOT NULL DEFAULT now(),
				PRIMARY KEY (index_cmd_type, index_id)
			)`, s.schemas.Catalog),
	)
}

// DropChangeStreamArtifacts removes the retired change-stream tables and
// functions.
func (s *PostgresSchemaAdmin) DropChangeStreamArtifacts(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`DROP TABLE IF EXISTS %s.change_stream_cursors`, s.schemas.Data),
		fmt.Sprintf(`DROP FUNCTION IF EXISTS %s.get_change_stream_events(jsonb)`, s.schemas.Internal),
	)
}

// GrantReadOnlyRole grants catalog read access to the read-only role
func (s *PostgresSchemaAdmin) GrantReadOnlyRole(ctx context.Context) error {
	return s.exec(ctx,
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = 'papyrus_readonly_role') THEN
				CREATE ROLE papyrus_readonly_role;
			END IF;
		END
		$$`,
		fmt.Sprintf(`GRANT USAGE ON SCHEMA %s TO papyrus_readonly_role`, s.schemas.Catalog),
		fmt.Sprintf(`GRANT SELECT ON ALL TABLES IN SCHEMA %s TO papyrus_readonly_role`, s.schemas.Catalog),
	)
}

// GrantClusterAdminRole grants the admin role rights over the data schema
func (s *PostgresSchemaAdmin) GrantClusterAdminRole(ctx context.Context) error {
	return s.exec(ctx,
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = 'papyrus_admin_role') THEN
				CREATE ROLE papyrus_admin_role;
			END IF;
		END
		$$`,
		fmt.Sprintf(`GRANT ALL ON SCHEMA %s TO papyrus_admin_role`, s.schemas.Data),
		fmt.Sprintf(`GRANT ALL ON ALL TABLES IN SCHEMA %s TO papyrus_admin_role`, s.schemas.Data),
	)
}

// ResetClusterDataPrimaryKey collapses the singleton table to one row and
// enforces singleness going forward.
func (s *PostgresSchemaAdmin) ResetClusterDataPrimaryKey(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`
			DELETE FROM %[1]s a
			USING %[1]s b
			WHERE a.ctid < b.ctid`, s.schemas.ClusterDataTable()),
		fmt.Sprintf(`
			CREATE UNIQUE INDEX IF NOT EXISTS cluster_data_single_row
			ON %s ((1))`, s.schemas.ClusterDataTable()),
	)
}

// EnsureChangesTableOwnership hands the change-tracking table to the admin role
func (s *PostgresSchemaAdmin) EnsureChangesTableOwnership(ctx context.Context) error {
	return s.exec(ctx,
		fmt.Sprintf(`ALTER TABLE %s OWNER TO papyrus_admin_role`, s.schemas.ChangesTable()),
	)
}
