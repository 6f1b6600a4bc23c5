package store

import (
	"context"
	"errors"
	"time"

	"github.com/papyrusdb/controlplane/internal/model"
)

// ErrNotFound is returned when a catalog row or key is not found
var ErrNotFound = errors.New("not found")

// TransferMode selects the shard transfer strategy: block_writes copies the
// shard while blocking writers, force_logical uses logical replication with
// eventual catch-up before cutover.
type TransferMode string

const (
	TransferModeBlockWrites  TransferMode = "block_writes"
	TransferModeForceLogical TransferMode = "force_logical"
)

// NodeCatalog reads the cluster's node placement metadata
type NodeCatalog interface {
	// ListShardHostingNodes returns shard-eligible nodes ordered by group id
	// ascending, primaries before secondaries within a group. An empty
	// cluster yields an empty slice, not an error.
	ListShardHostingNodes(ctx context.Context) ([]model.Node, error)
	// GetPrimaryNode returns the active primary of a shard group, or
	// ErrNotFound when the group does not exist or has no active primary.
	GetPrimaryNode(ctx context.Context, groupID int32) (*model.Node, error)
	CountActivePrimaryNodes(ctx context.Context) (int, error)
}

// GroupShard is the representative (minimum) shard of one group for a table
type GroupShard struct {
	GroupID   int32
	ShardName string
}

// ShardPlacement locates a physical shard and the primary node hosting it
type ShardPlacement struct {
	ShardID int64
	GroupID int32
	Host    string
	Port    int
}

// ShardCatalog reads shard and shard-placement metadata for physical tables
type ShardCatalog interface {
	CountShards(ctx context.Context, table string) (int, error)
	// GetSingleShardPlacement resolves the one shard of a single-shard table
	// and its hosting primary. ErrNotFound when the table has no shard yet.
	GetSingleShardPlacement(ctx context.Context, table string) (*ShardPlacement, error)
	// ChosenShardPerGroup returns the minimum shard identifier within each
	// shard group currently hosting the table, ordered by group id.
	ChosenShardPerGroup(ctx context.Context, table string) ([]GroupShard, error)
}

// ColocationCatalog reads and mutates table distribution and colocation
// through the substrate's placement primitives.
type ColocationCatalog interface {
	// GetDistributionShape returns Distributed=false for plain local tables.
	GetDistributionShape(ctx context.Context, table string) (model.DistributionShape, error)
	// RequestColocation colocates table with another table, or with "none".
	RequestColocation(ctx context.Context, table, colocateWith string) error
	Undistribute(ctx context.Context, table string) error
	// Distribute distributes a local table colocated with colocateWith. An
	// empty distributionColumn yields a single-shard table with no explicit
	// distribution column.
	Distribute(ctx context.Context, table, distributionColumn, colocateWith string) error
	// Redistribute reshapes an already-distributed table onto an explicit
	// distribution column, colocated with colocateWith.
	Redistribute(ctx context.Context, table, distributionColumn, colocateWith string) error
	SharesColocationGroup(ctx context.Context, tableA, tableB string) (bool, error)
}

// PlacementStore mutates physical shard placement
type PlacementStore interface {
	MovePlacement(ctx context.Context, shardID int64, sourceHost string, sourcePort int, targetHost string, targetPort int, mode TransferMode) error
}

// SequentialRunner runs fn inside a transaction with multi-shard
// modifications forced sequential, so a shard created earlier in the
// transaction is visible to later statements. The override is scoped to the
// transaction and restored on every exit path.
type SequentialRunner interface {
	RunSequential(ctx context.Context, fn func(ctx context.Context) error) error
}

// CollectionCatalog is the external collection catalog, read-only here
type CollectionCatalog interface {
	LookupByName(ctx context.Context, database, name string) (*model.Collection, error)
	LookupByID(ctx context.Context, collectionID uint64) (*model.Collection, error)
}

// ClusterMetadataStore owns the singleton cluster version record and the
// version facts needed by the upgrade engine.
type ClusterMetadataStore interface {
	GetVersionRecord(ctx context.Context) (*model.ClusterVersionRecord, error)
	SaveVersionRecord(ctx context.Context, record *model.ClusterVersionRecord) error
	// InstalledVersion reads the deployed extension version from the
	// substrate's extension catalog.
	InstalledVersion(ctx context.Context) (model.Version, error)
	SubstrateVersion(ctx context.Context) (string, error)
	// BroadcastInvalidation performs the no-op metadata write every process
	// observes on its next catalog read.
	BroadcastInvalidation(ctx context.Context) error
	CountReferenceTablePlacements(ctx context.Context) (int, error)
	ReplicateReferenceTables(ctx context.Context) error
	Ping(ctx context.Context) error
}

// IndexMetadataStore mutates per-index catalog flags on the local node
type IndexMetadataStore interface {
	ApplyUpdate(ctx context.Context, req *model.IndexMetadataUpdateRequest, ignoreMissing bool) error
}

// RebalancerStore drives the substrate's background shard rebalancer
type RebalancerStore interface {
	ListJobs(ctx context.Context) ([]model.RebalanceJob, error)
	ListStrategies(ctx context.Context) ([]string, error)
	SetDefaultStrategy(ctx context.Context, strategy string) error
	Start(ctx context.Context) (int64, error)
	Stop(ctx context.Context) (bool, error)
}

// OperationLog records control-plane mutations for audit
type OperationLog interface {
	Create(ctx context.Context, op *model.Operation) error
	MarkCompleted(ctx context.Context, operationID string) error
	MarkFailed(ctx context.Context, operationID string, errorMessage string) error
}

// Cache interface for catalog caching
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
