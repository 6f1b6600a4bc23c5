package service

import (
	"context"

	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
)

// DefaultUpgradeSteps returns the ordered migration step list. Every step is
// individually idempotent; a step gated on an already-passed version never
// runs again.
func DefaultUpgradeSteps() []UpgradeStep {
	return []UpgradeStep{
		{
			Version: model.MustParseVersion("0.0.5"),
			Name:    "ensure_cluster_data_reference_table",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.EnsureClusterDataReferenceTable(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.7.0"),
			Name:    "distribute_changes_table",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.DistributeChangesTable(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.8.0"),
			Name:    "create_database_name_validation_trigger",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.CreateDatabaseNameValidationTrigger(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.12.0"),
			Name:    "add_collections_view_definition_column",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.AddCollectionsViewDefinitionColumn(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.14.0"),
			Name:    "create_version_change_trigger",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.CreateVersionChangeTrigger(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.15.0"),
			Name:    "add_collection_validation_columns",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.AddCollectionValidationColumns(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.17.1"),
			Name:    "recreate_index_build_queue",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.RecreateIndexBuildQueue(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.21.0"),
			Name:    "drop_change_stream_artifacts",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.DropChangeStreamArtifacts(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.23.0"),
			Name:    "grant_read_only_role",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.GrantReadOnlyRole(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.23.2"),
			Name:    "grant_cluster_admin_role",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.GrantClusterAdminRole(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.102.0"),
			Name:    "reset_cluster_data_primary_key",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.ResetClusterDataPrimaryKey(ctx)
			},
		},
		{
			Version: model.MustParseVersion("0.109.0"),
			Name:    "ensure_changes_table_ownership",
			Run: func(ctx context.Context, admin store.SchemaAdmin) error {
				return admin.EnsureChangesTableOwnership(ctx)
			},
		},
	}
}
