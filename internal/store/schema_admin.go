package store

import "context"

// SchemaAdmin is the surface the upgrade engine's migration steps run
// through. Every method is idempotent: safe to re-run after a partially
// completed earlier attempt.
type SchemaAdmin interface {
	EnsureClusterDataReferenceTable(ctx context.Context) error
	DistributeChangesTable(ctx context.Context) error
	CreateDatabaseNameValidationTrigger(ctx context.Context) error
	AddCollectionsViewDefinitionColumn(ctx context.Context) error
	CreateVersionChangeTrigger(ctx context.Context) error
	AddCollectionValidationColumns(ctx context.Context) error
	RecreateIndexBuildQueue(ctx context.Context) error
	DropChangeStreamArtifacts(ctx context.Context) error
	GrantReadOnlyRole(ctx context.Context) error
	GrantClusterAdminRole(ctx context.Context) error
	ResetClusterDataPrimaryKey(ctx context.Context) error
	EnsureChangesTableOwnership(ctx context.Context) error
}
