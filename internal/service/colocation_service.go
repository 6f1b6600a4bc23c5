package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/papyrusdb/controlplane/internal/apierror"
	"github.com/papyrusdb/controlplane/internal/metrics"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
	"go.uber.org/zap"
)

// colocationNone is the substrate's marker for leaving a colocation group
const colocationNone = "none"

// shardKeyValueColumn is the synthetic distribution column legacy sharded
// tables are keyed by.
const shardKeyValueColumn = "shard_key_value"

// ColocationService enforces and mutates which collections share physical
// shard placement, and moves single-shard collections between shard groups.
// All validation precedes any mutation; the mutation sequences run inside a
// sequential-mode transaction so they are all-or-nothing.
type ColocationService struct {
	collections          store.CollectionCatalog
	colocation           store.ColocationCatalog
	shards               store.ShardCatalog
	placement            store.PlacementStore
	sequential           store.SequentialRunner
	operations           store.OperationLog
	topology             *TopologyService
	schemas              store.Schemas
	moveCollectionEnable bool
	metrics              *metrics.Metrics
	logger               *zap.Logger
}

// NewColocationService creates a new colocation service
func NewColocationService(
	collections store.CollectionCatalog,
	colocation store.ColocationCatalog,
	shards store.ShardCatalog,
	placement store.PlacementStore,
	sequential store.SequentialRunner,
	operations store.OperationLog,
	topology *TopologyService,
	schemas store.Schemas,
	moveCollectionEnabled bool,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ColocationService {
	return &ColocationService{
		collections:          collections,
		colocation:           colocation,
		shards:               shards,
		placement:            placement,
		sequential:           sequential,
		operations:           operations,
		topology:             topology,
		schemas:              schemas,
		moveCollectionEnable: moveCollectionEnabled,
		metrics:              m,
		logger:               logger,
	}
}

// SetColocation colocates a collection with target, or with nothing when
// target is nil. Validation is fail-fast: no mutation happens before every
// check passes.
func (s *ColocationService) SetColocation(ctx context.Context, database, collection string, target *string) error {
	// An explicit empty target is neither a collection name nor "none".
	if target != nil && *target == "" {
		return apierror.New(apierror.CodeInvalidOptions,
			"colocation target must be a collection name or null")
	}

	source, err := s.lookupCollection(ctx, database, collection)
	if err != nil {
		return err
	}

	if target == nil {
		return s.runColocationChange(ctx, source, nil)
	}

	// Already-sharded collections can only be normalized back to
	// colocation-none.
	if source.IsSharded() {
		return apierror.New(apierror.CodeInvalidOptions,
			"a sharded collection can only have its colocation set to none")
	}

	if *target == collection {
		return apierror.New(apierror.CodeInvalidNamespace,
			"a collection cannot be colocated with itself")
	}

	targetColl, err := s.collections.LookupByName(ctx, database, *target)
	if err == store.ErrNotFound {
		return apierror.Newf(apierror.CodeInvalidNamespace,
			"colocation target %s.%s does not exist", database, *target)
	}
	if err != nil {
		return apierror.Wrap(apierror.CodeInternalError, "failed to look up colocation target", err)
	}

	if targetColl.IsSharded() {
		return apierror.Newf(apierror.CodeCommandNotSupported,
			"cannot colocate with sharded collection %s", targetColl.Namespace())
	}

	targetTable := s.schemas.DataTable(targetColl.TableName())

	// Legacy compatibility: a target still sharing its group with the
	// internal change-tracking table must be detached first.
	sharesChanges, err := s.colocation.SharesColocationGroup(ctx, targetTable, s.schemas.ChangesTable())
	if err != nil {
		return apierror.Wrap(apierror.CodeInternalError, "failed to inspect target colocation", err)
	}
	if sharesChanges {
		return apierror.Newf(apierror.CodeCommandNotSupported,
			"collection %s shares placement with internal tables; set its colocation to none first",
			targetColl.Namespace())
	}

	shardCount, err := s.shards.CountShards(ctx, targetTable)
	if err != nil {
		return apierror.Wrap(apierror.CodeInternalError, "failed to count target shards", err)
	}
	if shardCount != 1 {
		return apierror.Newf(apierror.CodeCommandNotSupported,
			"collection %s has %d shards; set its colocation to none first",
			targetColl.Namespace(), shardCount)
	}

	sourceTable := s.schemas.DataTable(source.TableName())
	sourceShardCount, err := s.shards.CountShards(ctx, sourceTable)
	if err != nil {
		return apierror.Wrap(apierror.CodeInternalError, "failed to count source shards", err)
	}
	if sourceShardCount != 1 {
		return apierror.Newf(apierror.CodeCommandNotSupported,
			"collection %s has %d shards; set its colocation to none first",
			source.Namespace(), sourceShardCount)
	}

	return s.runColocationChange(ctx, source, targetColl)
}

// runColocationChange performs the colocation transition and the retry-table
// re-colocation as one sequential-mode transaction.
func (s *ColocationService) runColocationChange(ctx context.Context, source *model.Collection, target *model.Collection) error {
	return s.sequential.RunSequential(ctx, func(ctx context.Context) error {
		var retryColumn string
		var err error
		if target == nil {
			retryColumn, err = s.breakColocation(ctx, source)
		} else {
			retryColumn, err = s.joinColocation(ctx, source, target)
		}
		if err != nil {
			return err
		}
		return s.recolocateRetryTable(ctx, source, retryColumn)
	})
}

// joinColocation transitions source into target's colocation group and
// returns the distribution column the retry table must be keyed by.
func (s *ColocationService) joinColocation(ctx context.Context, source, target *model.Collection) (string, error) {
	sourceTable := s.schemas.DataTable(source.TableName())
	targetTable := s.schemas.DataTable(target.TableName())

	sourceShape, err := s.colocation.GetDistributionShape(ctx, sourceTable)
	if err != nil {
		return "", apierror.Wrap(apierror.CodeInternalError, "failed to inspect source distribution", err)
	}
	targetShape, err := s.colocation.GetDistributionShape(ctx, targetTable)
	if err != nil {
		return "", apierror.Wrap(apierror.CodeInternalError, "failed to inspect target distribution", err)
	}
	if !sourceShape.Distributed || !targetShape.Distributed {
		return "", apierror.New(apierror.CodeInternalError,
			"collection backing table is not distributed")
	}

	s.logger.Info("Joining colocation",
		zap.String("source", source.Namespace()),
		zap.String("target", target.Namespace()),
		zap.String("source_column", sourceShape.DistributionColumn),
		zap.String("target_column", targetShape.DistributionColumn))

	switch {
	case targetShape.HasNoDistributionColumn() && sourceShape.HasNoDistributionColumn():
		// Both single-shard without a distribution column: detach the source,
		// move its shard onto the target's node, then adopt the target's group.
		if err := s.colocation.RequestColocation(ctx, sourceTable, colocationNone); err != nil {
			return "", err
		}
		if err := s.moveShardToTableNode(ctx, sourceTable, targetTable); err != nil {
			return "", err
		}
		if err := s.colocation.RequestColocation(ctx, sourceTable, targetTable); err != nil {
			return "", err
		}
		return "", nil

	case targetShape.HasNoDistributionColumn():
		// Legacy-shaped source joining a modern target: rebuild the source as
		// a single-shard table without the synthetic column.
		if err := s.colocation.Undistribute(ctx, sourceTable); err != nil {
			return "", err
		}
		if err := s.colocation.Distribute(ctx, sourceTable, "", targetTable); err != nil {
			return "", err
		}
		return "", nil

	case sourceShape.HasNoDistributionColumn():
		// Modern source joining a legacy-shaped target: adopt the target's
		// synthetic column shape.
		if err := s.colocation.Redistribute(ctx, sourceTable, shardKeyValueColumn, targetTable); err != nil {
			return "", err
		}
		return shardKeyValueColumn, nil

	default:
		// Both legacy-shaped: the group change needs no physical reshaping.
		if err := s.colocation.RequestColocation(ctx, sourceTable, targetTable); err != nil {
			return "", err
		}
		return shardKeyValueColumn, nil
	}
}

// breakColocation detaches a collection into its own colocation group and
// returns the distribution column the retry table must be keyed by.
func (s *ColocationService) breakColocation(ctx context.Context, source *model.Collection) (string, error) {
	sourceTable := s.schemas.DataTable(source.TableName())

	// Multi-shard tables keep their explicit key; leaving the group is a
	// pure catalog change.
	if source.IsSharded() {
		if err := s.colocation.RequestColocation(ctx, sourceTable, colocationNone); err != nil {
			return "", err
		}
		return shardKeyValueColumn, nil
	}

	shape, err := s.colocation.GetDistributionShape(ctx, sourceTable)
	if err != nil {
		return "", apierror.Wrap(apierror.CodeInternalError, "failed to inspect source distribution", err)
	}
	if !shape.Distributed {
		return "", apierror.New(apierror.CodeInternalError,
			"collection backing table is not distributed")
	}

	s.logger.Info("Breaking colocation",
		zap.String("collection", source.Namespace()),
		zap.String("column", shape.DistributionColumn))

	if shape.HasNoDistributionColumn() {
		if err := s.colocation.RequestColocation(ctx, sourceTable, colocationNone); err != nil {
			return "", err
		}
		return "", nil
	}

	// Legacy-shaped: rebuild as a standalone single-shard table.
	if err := s.colocation.Undistribute(ctx, sourceTable); err != nil {
		return "", err
	}
	if err := s.colocation.Distribute(ctx, sourceTable, "", colocationNone); err != nil {
		return "", err
	}
	return "", nil
}

// recolocateRetryTable rebuilds the collection's retry-tracking table
// co-located with the primary table, keyed the same way the primary table
// ended up keyed.
func (s *ColocationService) recolocateRetryTable(ctx context.Context, source *model.Collection, distributionColumn string) error {
	retryTable := s.schemas.DataTable(source.RetryTableName())
	mainTable := s.schemas.DataTable(source.TableName())

	shape, err := s.colocation.GetDistributionShape(ctx, retryTable)
	if err != nil {
		return apierror.Wrap(apierror.CodeInternalError, "failed to inspect retry table distribution", err)
	}
	if shape.Distributed {
		if err := s.colocation.Undistribute(ctx, retryTable); err != nil {
			return err
		}
	}
	return s.colocation.Distribute(ctx, retryTable, distributionColumn, mainTable)
}

// moveShardToTableNode moves sourceTable's single shard onto the node
// hosting targetTable's single shard, if they differ.
func (s *ColocationService) moveShardToTableNode(ctx context.Context, sourceTable, targetTable string) error {
	sourcePl, err := s.singleShardPlacement(ctx, sourceTable)
	if err != nil {
		return err
	}
	targetPl, err := s.singleShardPlacement(ctx, targetTable)
	if err != nil {
		return err
	}
	if sourcePl.GroupID == targetPl.GroupID {
		return nil
	}
	if err := s.placement.MovePlacement(ctx, sourcePl.ShardID,
		sourcePl.Host, sourcePl.Port, targetPl.Host, targetPl.Port,
		store.TransferModeBlockWrites); err != nil {
		return err
	}
	s.metrics.RecordShardMove(string(store.TransferModeBlockWrites))
	return nil
}

func (s *ColocationService) singleShardPlacement(ctx context.Context, table string) (*store.ShardPlacement, error) {
	placement, err := s.shards.GetSingleShardPlacement(ctx, table)
	if err == store.ErrNotFound {
		return nil, apierror.Newf(apierror.CodeInternalError,
			"table %s has no shard placement", table)
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternalError, "failed to resolve shard placement", err)
	}
	return placement, nil
}

// MoveCollection moves an unsharded collection's single shard to another
// shard group. Requires the move feature to be enabled.
func (s *ColocationService) MoveCollection(ctx context.Context, namespace, toShardGroup string, useLogicalReplication bool) error {
	if !s.moveCollectionEnable {
		return apierror.New(apierror.CodeCommandNotSupported, "moveCollection is not enabled")
	}

	groupID, err := parseShardGroupName(toShardGroup)
	if err != nil {
		return err
	}

	targetNode, err := s.topology.ResolvePrimary(ctx, groupID)
	if err != nil {
		return err
	}

	database, collectionName, err := splitNamespace(namespace)
	if err != nil {
		return err
	}

	collection, err := s.collections.LookupByName(ctx, database, collectionName)
	if err == store.ErrNotFound {
		return apierror.Newf(apierror.CodeNamespaceNotFound, "namespace %s does not exist", namespace)
	}
	if err != nil {
		return apierror.Wrap(apierror.CodeInternalError, "failed to look up namespace", err)
	}
	if collection.IsSharded() {
		return apierror.Newf(apierror.CodeCommandNotSupported,
			"cannot move sharded collection %s", namespace)
	}

	table := s.schemas.DataTable(collection.TableName())
	current, err := s.singleShardPlacement(ctx, table)
	if err != nil {
		return err
	}
	if current.GroupID == groupID {
		s.logger.Info("Collection already placed on target shard group",
			zap.String("namespace", namespace),
			zap.String("shard_group", toShardGroup))
		return nil
	}

	mode := store.TransferModeBlockWrites
	if useLogicalReplication {
		mode = store.TransferModeForceLogical
	}

	op := &model.Operation{
		OperationID: uuid.New().String(),
		Type:        model.OperationTypeMoveCollection,
		Target:      fmt.Sprintf("%s -> %s", namespace, toShardGroup),
		Status:      model.OperationStatusInProgress,
		StartedAt:   time.Now(),
	}
	if err := s.operations.Create(ctx, op); err != nil {
		return apierror.Wrap(apierror.CodeInternalError, "failed to record operation", err)
	}

	err = s.sequential.RunSequential(ctx, func(ctx context.Context) error {
		// The shard must leave its colocation group or the move would strand
		// the group's other tables.
		retryColumn, err := s.breakColocation(ctx, collection)
		if err != nil {
			return err
		}
		if err := s.recolocateRetryTable(ctx, collection, retryColumn); err != nil {
			return err
		}
		return s.placement.MovePlacement(ctx, current.ShardID,
			current.Host, current.Port, targetNode.Host, targetNode.Port, mode)
	})
	if err != nil {
		if logErr := s.operations.MarkFailed(ctx, op.OperationID, err.Error()); logErr != nil {
			s.logger.Error("Failed to record operation failure", zap.Error(logErr))
		}
		return err
	}

	if err := s.operations.MarkCompleted(ctx, op.OperationID); err != nil {
		s.logger.Error("Failed to record operation completion", zap.Error(err))
	}
	s.metrics.RecordShardMove(string(mode))

	s.logger.Info("Collection moved",
		zap.String("namespace", namespace),
		zap.String("shard_group", toShardGroup),
		zap.String("mode", string(mode)))
	return nil
}

func (s *ColocationService) lookupCollection(ctx context.Context, database, collection string) (*model.Collection, error) {
	coll, err := s.collections.LookupByName(ctx, database, collection)
	if err == store.ErrNotFound {
		return nil, apierror.Newf(apierror.CodeNamespaceNotFound,
			"namespace %s.%s does not exist", database, collection)
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternalError, "failed to look up namespace", err)
	}
	return coll, nil
}

// parseShardGroupName parses "shard_<int>" strictly: the input must
// round-trip through canonical formatting, rejecting forms like "shard_01".
func parseShardGroupName(raw string) (int32, error) {
	suffix, ok := strings.CutPrefix(raw, "shard_")
	if !ok {
		return 0, apierror.Newf(apierror.CodeFailedToParse, "invalid shard name %q", raw)
	}
	n, err := strconv.ParseInt(suffix, 10, 32)
	if err != nil || n < 0 {
		return 0, apierror.Newf(apierror.CodeFailedToParse, "invalid shard name %q", raw)
	}
	if fmt.Sprintf("shard_%d", n) != raw {
		return 0, apierror.Newf(apierror.CodeFailedToParse, "invalid shard name %q", raw)
	}
	return int32(n), nil
}

// splitNamespace splits "db.collection"; collection names may contain dots
func splitNamespace(namespace string) (string, string, error) {
	database, collection, ok := strings.Cut(namespace, ".")
	if !ok || database == "" || collection == "" {
		return "", "", apierror.Newf(apierror.CodeFailedToParse, "invalid namespace %q", namespace)
	}
	return database, collection, nil
}
