package service

import (
	"context"
	"errors"
	"testing"

	"github.com/papyrusdb/controlplane/internal/apierror"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

var testSchemas = store.Schemas{
	Data:        "papyrus_data",
	Catalog:     "papyrus_api_catalog",
	Distributed: "papyrus_api_distributed",
	Internal:    "papyrus_api_internal",
	Extension:   "papyrus_distributed",
}

type colocationFixture struct {
	collections *MockCollectionCatalog
	colocation  *MockColocationCatalog
	shards      *MockShardCatalog
	placement   *MockPlacementStore
	sequential  *fakeSequentialRunner
	operations  *MockOperationLog
	nodes       *MockNodeCatalog
	svc         *ColocationService
}

func newColocationFixture(moveEnabled bool) *colocationFixture {
	f := &colocationFixture{
		collections: new(MockCollectionCatalog),
		colocation:  new(MockColocationCatalog),
		shards:      new(MockShardCatalog),
		placement:   new(MockPlacementStore),
		sequential:  &fakeSequentialRunner{},
		operations:  new(MockOperationLog),
		nodes:       new(MockNodeCatalog),
	}
	topology := NewTopologyService(f.nodes, testMetrics, zap.NewNop())
	f.svc = NewColocationService(
		f.collections, f.colocation, f.shards, f.placement,
		f.sequential, f.operations, topology, testSchemas,
		moveEnabled, testMetrics, zap.NewNop())
	return f
}

// assertNoMutations verifies a failed call left placement untouched
func (f *colocationFixture) assertNoMutations(t *testing.T) {
	f.colocation.AssertNotCalled(t, "RequestColocation", mock.Anything, mock.Anything, mock.Anything)
	f.colocation.AssertNotCalled(t, "Undistribute", mock.Anything, mock.Anything)
	f.colocation.AssertNotCalled(t, "Distribute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.colocation.AssertNotCalled(t, "Redistribute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.placement.AssertNotCalled(t, "MovePlacement", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, f.sequential.calls)
}

func unsharded(id uint64, name string) *model.Collection {
	return &model.Collection{CollectionID: id, Database: "appdb", Name: name}
}

func sharded(id uint64, name string) *model.Collection {
	key := `{"user_id":"hashed"}`
	return &model.Collection{CollectionID: id, Database: "appdb", Name: name, ShardKey: &key}
}

func strPtr(s string) *string { return &s }

var (
	noneShape   = model.DistributionShape{Distributed: true, ShardCount: 1}
	legacyShape = model.DistributionShape{Distributed: true, DistributionColumn: "shard_key_value", ShardCount: 1}
)

func TestSetColocationValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty target is rejected before any lookup", func(t *testing.T) {
		f := newColocationFixture(false)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr(""))

		assert.Equal(t, apierror.CodeInvalidOptions, apierror.CodeOf(err))
		f.collections.AssertNotCalled(t, "LookupByName", mock.Anything, mock.Anything, mock.Anything)
		f.assertNoMutations(t)
	})

	t.Run("missing source namespace", func(t *testing.T) {
		f := newColocationFixture(false)
		f.collections.On("LookupByName", ctx, "appdb", "orders").Return(nil, store.ErrNotFound)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

		assert.Equal(t, apierror.CodeNamespaceNotFound, apierror.CodeOf(err))
		f.assertNoMutations(t)
	})

	t.Run("sharded source only accepts none", func(t *testing.T) {
		f := newColocationFixture(false)
		f.collections.On("LookupByName", ctx, "appdb", "orders").Return(sharded(7, "orders"), nil)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

		assert.Equal(t, apierror.CodeInvalidOptions, apierror.CodeOf(err))
		f.assertNoMutations(t)
	})

	t.Run("self colocation", func(t *testing.T) {
		f := newColocationFixture(false)
		f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("orders"))

		assert.Equal(t, apierror.CodeInvalidNamespace, apierror.CodeOf(err))
		f.assertNoMutations(t)
	})

	t.Run("missing target namespace", func(t *testing.T) {
		f := newColocationFixture(false)
		f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)
		f.collections.On("LookupByName", ctx, "appdb", "users").Return(nil, store.ErrNotFound)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

		assert.Equal(t, apierror.CodeInvalidNamespace, apierror.CodeOf(err))
		f.assertNoMutations(t)
	})

	t.Run("sharded target", func(t *testing.T) {
		f := newColocationFixture(false)
		f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)
		f.collections.On("LookupByName", ctx, "appdb", "users").Return(sharded(8, "users"), nil)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

		assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))
		f.assertNoMutations(t)
	})

	t.Run("target sharing the change tracking group", func(t *testing.T) {
		f := newColocationFixture(false)
		f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)
		f.collections.On("LookupByName", ctx, "appdb", "users").Return(unsharded(8, "users"), nil)
		f.colocation.On("SharesColocationGroup", ctx, "papyrus_data.documents_8", "papyrus_data.changes").
			Return(true, nil)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

		assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))
		assert.Contains(t, err.Error(), "set its colocation to none first")
		f.assertNoMutations(t)
	})

	t.Run("multi shard target", func(t *testing.T) {
		f := newColocationFixture(false)
		f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)
		f.collections.On("LookupByName", ctx, "appdb", "users").Return(unsharded(8, "users"), nil)
		f.colocation.On("SharesColocationGroup", ctx, mock.Anything, mock.Anything).Return(false, nil)
		f.shards.On("CountShards", ctx, "papyrus_data.documents_8").Return(8, nil)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

		assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))
		f.assertNoMutations(t)
	})

	t.Run("multi shard source", func(t *testing.T) {
		f := newColocationFixture(false)
		f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)
		f.collections.On("LookupByName", ctx, "appdb", "users").Return(unsharded(8, "users"), nil)
		f.colocation.On("SharesColocationGroup", ctx, mock.Anything, mock.Anything).Return(false, nil)
		f.shards.On("CountShards", ctx, "papyrus_data.documents_8").Return(1, nil)
		f.shards.On("CountShards", ctx, "papyrus_data.documents_7").Return(3, nil)

		err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

		assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))
		assert.Contains(t, err.Error(), "appdb.orders")
		f.assertNoMutations(t)
	})
}

// expectJoinPreamble satisfies the target-side validation for a join
func expectJoinPreamble(f *colocationFixture, ctx context.Context, source, target *model.Collection) {
	f.collections.On("LookupByName", ctx, source.Database, source.Name).Return(source, nil)
	f.collections.On("LookupByName", ctx, target.Database, target.Name).Return(target, nil)
	f.colocation.On("SharesColocationGroup", ctx, mock.Anything, mock.Anything).Return(false, nil)
	f.shards.On("CountShards", ctx, "papyrus_data.documents_8").Return(1, nil)
	f.shards.On("CountShards", ctx, "papyrus_data.documents_7").Return(1, nil)
}

// expectRetryRebuild matches the retry-table re-colocation that closes every
// colocation change.
func expectRetryRebuild(f *colocationFixture, id uint64, column string, distributed bool) {
	retryTable := testSchemas.DataTable((&model.Collection{CollectionID: id}).RetryTableName())
	mainTable := testSchemas.DataTable((&model.Collection{CollectionID: id}).TableName())
	shape := model.DistributionShape{Distributed: distributed, DistributionColumn: column}
	f.colocation.On("GetDistributionShape", mock.Anything, retryTable).Return(shape, nil)
	if distributed {
		f.colocation.On("Undistribute", mock.Anything, retryTable).Return(nil)
	}
	f.colocation.On("Distribute", mock.Anything, retryTable, column, mainTable).Return(nil)
}

func TestJoinColocationBothWithoutDistributionColumn(t *testing.T) {
	f := newColocationFixture(false)
	ctx := context.Background()
	source, target := unsharded(7, "orders"), unsharded(8, "users")
	expectJoinPreamble(f, ctx, source, target)

	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(noneShape, nil)
	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_8").Return(noneShape, nil)

	// The source shard sits on group 1, the target's on group 2, so the join
	// physically moves the source shard first.
	f.colocation.On("RequestColocation", mock.Anything, "papyrus_data.documents_7", "none").Return(nil)
	f.shards.On("GetSingleShardPlacement", mock.Anything, "papyrus_data.documents_7").
		Return(&store.ShardPlacement{ShardID: 102001, GroupID: 1, Host: "n1", Port: 5432}, nil)
	f.shards.On("GetSingleShardPlacement", mock.Anything, "papyrus_data.documents_8").
		Return(&store.ShardPlacement{ShardID: 102004, GroupID: 2, Host: "n2", Port: 5432}, nil)
	f.placement.On("MovePlacement", mock.Anything, int64(102001), "n1", 5432, "n2", 5432, store.TransferModeBlockWrites).
		Return(nil)
	f.colocation.On("RequestColocation", mock.Anything, "papyrus_data.documents_7", "papyrus_data.documents_8").Return(nil)

	expectRetryRebuild(f, 7, "", true)

	err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

	assert.NoError(t, err)
	assert.Equal(t, 1, f.sequential.calls)
	f.placement.AssertExpectations(t)
	f.colocation.AssertExpectations(t)
}

func TestJoinColocationLegacySourceModernTarget(t *testing.T) {
	f := newColocationFixture(false)
	ctx := context.Background()
	source, target := unsharded(7, "orders"), unsharded(8, "users")
	expectJoinPreamble(f, ctx, source, target)

	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(legacyShape, nil)
	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_8").Return(noneShape, nil)

	f.colocation.On("Undistribute", mock.Anything, "papyrus_data.documents_7").Return(nil)
	f.colocation.On("Distribute", mock.Anything, "papyrus_data.documents_7", "", "papyrus_data.documents_8").Return(nil)

	expectRetryRebuild(f, 7, "", true)

	err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

	assert.NoError(t, err)
	f.placement.AssertNotCalled(t, "MovePlacement", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.colocation.AssertExpectations(t)
}

func TestJoinColocationModernSourceLegacyTarget(t *testing.T) {
	f := newColocationFixture(false)
	ctx := context.Background()
	source, target := unsharded(7, "orders"), unsharded(8, "users")
	expectJoinPreamble(f, ctx, source, target)

	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(noneShape, nil)
	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_8").Return(legacyShape, nil)

	f.colocation.On("Redistribute", mock.Anything, "papyrus_data.documents_7", "shard_key_value", "papyrus_data.documents_8").Return(nil)

	// The retry table adopts the legacy key shape.
	expectRetryRebuild(f, 7, "shard_key_value", true)

	err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

	assert.NoError(t, err)
	f.colocation.AssertExpectations(t)
}

func TestJoinColocationBothLegacy(t *testing.T) {
	f := newColocationFixture(false)
	ctx := context.Background()
	source, target := unsharded(7, "orders"), unsharded(8, "users")
	expectJoinPreamble(f, ctx, source, target)

	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(legacyShape, nil)
	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_8").Return(legacyShape, nil)

	// Same key shape on both sides: a pure catalog group change.
	f.colocation.On("RequestColocation", mock.Anything, "papyrus_data.documents_7", "papyrus_data.documents_8").Return(nil)

	expectRetryRebuild(f, 7, "shard_key_value", true)

	err := f.svc.SetColocation(ctx, "appdb", "orders", strPtr("users"))

	assert.NoError(t, err)
	f.colocation.AssertNotCalled(t, "Undistribute", mock.Anything, "papyrus_data.documents_7")
	f.colocation.AssertExpectations(t)
}

func TestBreakColocationNoneShapedIsIdempotent(t *testing.T) {
	f := newColocationFixture(false)
	ctx := context.Background()
	f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)

	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(noneShape, nil)
	f.colocation.On("RequestColocation", mock.Anything, "papyrus_data.documents_7", "none").Return(nil)
	expectRetryRebuild(f, 7, "", true)

	assert.NoError(t, f.svc.SetColocation(ctx, "appdb", "orders", nil))
	assert.NoError(t, f.svc.SetColocation(ctx, "appdb", "orders", nil))

	// Both runs issue the same catalog-only transition; the main table is
	// never rebuilt.
	f.colocation.AssertNumberOfCalls(t, "RequestColocation", 2)
	f.colocation.AssertNotCalled(t, "Undistribute", mock.Anything, "papyrus_data.documents_7")
	f.placement.AssertNotCalled(t, "MovePlacement", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBreakColocationLegacyRebuildsSingleShard(t *testing.T) {
	f := newColocationFixture(false)
	ctx := context.Background()
	f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)

	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(legacyShape, nil)
	f.colocation.On("Undistribute", mock.Anything, "papyrus_data.documents_7").Return(nil)
	f.colocation.On("Distribute", mock.Anything, "papyrus_data.documents_7", "", "none").Return(nil)
	expectRetryRebuild(f, 7, "", true)

	err := f.svc.SetColocation(ctx, "appdb", "orders", nil)

	assert.NoError(t, err)
	f.colocation.AssertExpectations(t)
}

func TestBreakColocationShardedKeepsExplicitKey(t *testing.T) {
	f := newColocationFixture(false)
	ctx := context.Background()
	f.collections.On("LookupByName", ctx, "appdb", "orders").Return(sharded(7, "orders"), nil)

	f.colocation.On("RequestColocation", mock.Anything, "papyrus_data.documents_7", "none").Return(nil)
	expectRetryRebuild(f, 7, "shard_key_value", true)

	err := f.svc.SetColocation(ctx, "appdb", "orders", nil)

	assert.NoError(t, err)
	// Sharded tables never get reshaped on a break.
	f.colocation.AssertNotCalled(t, "GetDistributionShape", mock.Anything, "papyrus_data.documents_7")
	f.colocation.AssertNotCalled(t, "Undistribute", mock.Anything, "papyrus_data.documents_7")
	f.colocation.AssertExpectations(t)
}

func TestBreakColocationDistributesLocalRetryTable(t *testing.T) {
	f := newColocationFixture(false)
	ctx := context.Background()
	f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)

	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(noneShape, nil)
	f.colocation.On("RequestColocation", mock.Anything, "papyrus_data.documents_7", "none").Return(nil)
	// Retry table is still a plain local table: no Undistribute needed.
	expectRetryRebuild(f, 7, "", false)

	err := f.svc.SetColocation(ctx, "appdb", "orders", nil)

	assert.NoError(t, err)
	f.colocation.AssertNotCalled(t, "Undistribute", mock.Anything, "papyrus_data.retry_7")
	f.colocation.AssertCalled(t, "Distribute", mock.Anything, "papyrus_data.retry_7", "", "papyrus_data.documents_7")
}

func TestParseShardGroupName(t *testing.T) {
	groupID, err := parseShardGroupName("shard_2")
	assert.NoError(t, err)
	assert.Equal(t, int32(2), groupID)

	for _, raw := range []string{"shard_01", "shard_", "shard_x", "2", "shard_-1", "shard_2 "} {
		_, err := parseShardGroupName(raw)
		assert.Error(t, err, raw)
		assert.Equal(t, apierror.CodeFailedToParse, apierror.CodeOf(err), raw)
	}
}

func TestMoveCollectionDisabled(t *testing.T) {
	f := newColocationFixture(false)

	err := f.svc.MoveCollection(context.Background(), "appdb.orders", "shard_2", false)

	assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))
	f.assertNoMutations(t)
}

func TestMoveCollectionUnknownShardGroup(t *testing.T) {
	f := newColocationFixture(true)
	ctx := context.Background()
	f.nodes.On("GetPrimaryNode", ctx, int32(99)).Return(nil, store.ErrNotFound)

	err := f.svc.MoveCollection(ctx, "appdb.orders", "shard_99", false)

	assert.Equal(t, apierror.CodeInvalidOptions, apierror.CodeOf(err))
	f.collections.AssertNotCalled(t, "LookupByName", mock.Anything, mock.Anything, mock.Anything)
	f.operations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.assertNoMutations(t)
}

func TestMoveCollectionBadNamespace(t *testing.T) {
	f := newColocationFixture(true)
	ctx := context.Background()
	f.nodes.On("GetPrimaryNode", ctx, int32(2)).Return(&model.Node{GroupID: 2, Host: "n2", Port: 5432}, nil)

	err := f.svc.MoveCollection(ctx, "ordersonly", "shard_2", false)

	assert.Equal(t, apierror.CodeFailedToParse, apierror.CodeOf(err))
	f.assertNoMutations(t)
}

func TestMoveCollectionShardedRejected(t *testing.T) {
	f := newColocationFixture(true)
	ctx := context.Background()
	f.nodes.On("GetPrimaryNode", ctx, int32(2)).Return(&model.Node{GroupID: 2, Host: "n2", Port: 5432}, nil)
	f.collections.On("LookupByName", ctx, "appdb", "orders").Return(sharded(7, "orders"), nil)

	err := f.svc.MoveCollection(ctx, "appdb.orders", "shard_2", false)

	assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))
	f.assertNoMutations(t)
}

func TestMoveCollectionAlreadyPlaced(t *testing.T) {
	f := newColocationFixture(true)
	ctx := context.Background()
	f.nodes.On("GetPrimaryNode", ctx, int32(2)).Return(&model.Node{GroupID: 2, Host: "n2", Port: 5432}, nil)
	f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)
	f.shards.On("GetSingleShardPlacement", ctx, "papyrus_data.documents_7").
		Return(&store.ShardPlacement{ShardID: 102001, GroupID: 2, Host: "n2", Port: 5432}, nil)

	err := f.svc.MoveCollection(ctx, "appdb.orders", "shard_2", false)

	assert.NoError(t, err)
	f.operations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.assertNoMutations(t)
}

func TestMoveCollectionLogicalReplication(t *testing.T) {
	f := newColocationFixture(true)
	ctx := context.Background()
	f.nodes.On("GetPrimaryNode", ctx, int32(2)).Return(&model.Node{GroupID: 2, Host: "n2", Port: 5432}, nil)
	f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)
	f.shards.On("GetSingleShardPlacement", mock.Anything, "papyrus_data.documents_7").
		Return(&store.ShardPlacement{ShardID: 102001, GroupID: 1, Host: "n1", Port: 5432}, nil)

	f.operations.On("Create", ctx, mock.Anything).Return(nil)
	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(noneShape, nil)
	f.colocation.On("RequestColocation", mock.Anything, "papyrus_data.documents_7", "none").Return(nil)
	expectRetryRebuild(f, 7, "", true)
	f.placement.On("MovePlacement", mock.Anything, int64(102001), "n1", 5432, "n2", 5432, store.TransferModeForceLogical).
		Return(nil)
	f.operations.On("MarkCompleted", ctx, mock.Anything).Return(nil)

	err := f.svc.MoveCollection(ctx, "appdb.orders", "shard_2", true)

	assert.NoError(t, err)
	assert.Equal(t, 1, f.sequential.calls)
	f.placement.AssertExpectations(t)
	f.operations.AssertExpectations(t)
}

func TestMoveCollectionFailureMarksOperationFailed(t *testing.T) {
	f := newColocationFixture(true)
	ctx := context.Background()
	f.nodes.On("GetPrimaryNode", ctx, int32(2)).Return(&model.Node{GroupID: 2, Host: "n2", Port: 5432}, nil)
	f.collections.On("LookupByName", ctx, "appdb", "orders").Return(unsharded(7, "orders"), nil)
	f.shards.On("GetSingleShardPlacement", mock.Anything, "papyrus_data.documents_7").
		Return(&store.ShardPlacement{ShardID: 102001, GroupID: 1, Host: "n1", Port: 5432}, nil)

	f.operations.On("Create", ctx, mock.Anything).Return(nil)
	f.colocation.On("GetDistributionShape", mock.Anything, "papyrus_data.documents_7").Return(noneShape, nil)
	f.colocation.On("RequestColocation", mock.Anything, "papyrus_data.documents_7", "none").Return(nil)
	expectRetryRebuild(f, 7, "", true)
	f.placement.On("MovePlacement", mock.Anything, int64(102001), "n1", 5432, "n2", 5432, store.TransferModeBlockWrites).
		Return(errors.New("target node out of disk"))
	f.operations.On("MarkFailed", ctx, mock.Anything, mock.Anything).Return(nil)

	err := f.svc.MoveCollection(ctx, "appdb.orders", "shard_2", false)

	assert.Error(t, err)
	f.operations.AssertCalled(t, "MarkFailed", ctx, mock.Anything, mock.Anything)
	f.operations.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything)
}

func TestSplitNamespace(t *testing.T) {
	db, coll, err := splitNamespace("appdb.orders")
	assert.NoError(t, err)
	assert.Equal(t, "appdb", db)
	assert.Equal(t, "orders", coll)

	// Collection names may themselves contain dots.
	db, coll, err = splitNamespace("appdb.orders.archive")
	assert.NoError(t, err)
	assert.Equal(t, "appdb", db)
	assert.Equal(t, "orders.archive", coll)

	for _, raw := range []string{"appdb", ".orders", "appdb.", ""} {
		_, _, err := splitNamespace(raw)
		assert.Error(t, err, raw)
	}
}
