package service

import (
	"context"

	"github.com/papyrusdb/controlplane/internal/metrics"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
	"github.com/stretchr/testify/mock"
)

// testMetrics is shared across the package's tests: the instruments register
// on the default Prometheus registry, which allows only one registration per
// process.
var testMetrics = metrics.NewMetrics()

// MockNodeCatalog is a mock implementation of store.NodeCatalog
type MockNodeCatalog struct {
	mock.Mock
}

func (m *MockNodeCatalog) ListShardHostingNodes(ctx context.Context) ([]model.Node, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Node), args.Error(1)
}

func (m *MockNodeCatalog) GetPrimaryNode(ctx context.Context, groupID int32) (*model.Node, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Node), args.Error(1)
}

func (m *MockNodeCatalog) CountActivePrimaryNodes(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockShardCatalog is a mock implementation of store.ShardCatalog
type MockShardCatalog struct {
	mock.Mock
}

func (m *MockShardCatalog) CountShards(ctx context.Context, table string) (int, error) {
	args := m.Called(ctx, table)
	return args.Int(0), args.Error(1)
}

func (m *MockShardCatalog) GetSingleShardPlacement(ctx context.Context, table string) (*store.ShardPlacement, error) {
	args := m.Called(ctx, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.ShardPlacement), args.Error(1)
}

func (m *MockShardCatalog) ChosenShardPerGroup(ctx context.Context, table string) ([]store.GroupShard, error) {
	args := m.Called(ctx, table)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.GroupShard), args.Error(1)
}

// MockColocationCatalog is a mock implementation of store.ColocationCatalog
type MockColocationCatalog struct {
	mock.Mock
}

func (m *MockColocationCatalog) GetDistributionShape(ctx context.Context, table string) (model.DistributionShape, error) {
	args := m.Called(ctx, table)
	return args.Get(0).(model.DistributionShape), args.Error(1)
}

func (m *MockColocationCatalog) RequestColocation(ctx context.Context, table, colocateWith string) error {
	args := m.Called(ctx, table, colocateWith)
	return args.Error(0)
}

func (m *MockColocationCatalog) Undistribute(ctx context.Context, table string) error {
	args := m.Called(ctx, table)
	return args.Error(0)
}

func (m *MockColocationCatalog) Distribute(ctx context.Context, table, distributionColumn, colocateWith string) error {
	args := m.Called(ctx, table, distributionColumn, colocateWith)
	return args.Error(0)
}

func (m *MockColocationCatalog) Redistribute(ctx context.Context, table, distributionColumn, colocateWith string) error {
	args := m.Called(ctx, table, distributionColumn, colocateWith)
	return args.Error(0)
}

func (m *MockColocationCatalog) SharesColocationGroup(ctx context.Context, tableA, tableB string) (bool, error) {
	args := m.Called(ctx, tableA, tableB)
	return args.Bool(0), args.Error(1)
}

// MockPlacementStore is a mock implementation of store.PlacementStore
type MockPlacementStore struct {
	mock.Mock
}

func (m *MockPlacementStore) MovePlacement(ctx context.Context, shardID int64, sourceHost string, sourcePort int, targetHost string, targetPort int, mode store.TransferMode) error {
	args := m.Called(ctx, shardID, sourceHost, sourcePort, targetHost, targetPort, mode)
	return args.Error(0)
}

// MockCollectionCatalog is a mock implementation of store.CollectionCatalog
type MockCollectionCatalog struct {
	mock.Mock
}

func (m *MockCollectionCatalog) LookupByName(ctx context.Context, database, name string) (*model.Collection, error) {
	args := m.Called(ctx, database, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Collection), args.Error(1)
}

func (m *MockCollectionCatalog) LookupByID(ctx context.Context, collectionID uint64) (*model.Collection, error) {
	args := m.Called(ctx, collectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Collection), args.Error(1)
}

// MockClusterMetadataStore is a mock implementation of store.ClusterMetadataStore
type MockClusterMetadataStore struct {
	mock.Mock
}

func (m *MockClusterMetadataStore) GetVersionRecord(ctx context.Context) (*model.ClusterVersionRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ClusterVersionRecord), args.Error(1)
}

func (m *MockClusterMetadataStore) SaveVersionRecord(ctx context.Context, record *model.ClusterVersionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockClusterMetadataStore) InstalledVersion(ctx context.Context) (model.Version, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Version), args.Error(1)
}

func (m *MockClusterMetadataStore) SubstrateVersion(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockClusterMetadataStore) BroadcastInvalidation(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClusterMetadataStore) CountReferenceTablePlacements(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockClusterMetadataStore) ReplicateReferenceTables(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClusterMetadataStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockRebalancerStore is a mock implementation of store.RebalancerStore
type MockRebalancerStore struct {
	mock.Mock
}

func (m *MockRebalancerStore) ListJobs(ctx context.Context) ([]model.RebalanceJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RebalanceJob), args.Error(1)
}

func (m *MockRebalancerStore) ListStrategies(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRebalancerStore) SetDefaultStrategy(ctx context.Context, strategy string) error {
	args := m.Called(ctx, strategy)
	return args.Error(0)
}

func (m *MockRebalancerStore) Start(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRebalancerStore) Stop(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// MockOperationLog is a mock implementation of store.OperationLog
type MockOperationLog struct {
	mock.Mock
}

func (m *MockOperationLog) Create(ctx context.Context, op *model.Operation) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperationLog) MarkCompleted(ctx context.Context, operationID string) error {
	args := m.Called(ctx, operationID)
	return args.Error(0)
}

func (m *MockOperationLog) MarkFailed(ctx context.Context, operationID string, errorMessage string) error {
	args := m.Called(ctx, operationID, errorMessage)
	return args.Error(0)
}

// MockNodeInvoker is a mock implementation of NodeInvoker
type MockNodeInvoker struct {
	mock.Mock
}

func (m *MockNodeInvoker) Invoke(ctx context.Context, node model.Node, handler string, payload []byte, shardName string, readOnly bool) ([]byte, error) {
	args := m.Called(ctx, node, handler, payload, shardName, readOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockIndexMetadataStore is a mock implementation of store.IndexMetadataStore
type MockIndexMetadataStore struct {
	mock.Mock
}

func (m *MockIndexMetadataStore) ApplyUpdate(ctx context.Context, req *model.IndexMetadataUpdateRequest, ignoreMissing bool) error {
	args := m.Called(ctx, req, ignoreMissing)
	return args.Error(0)
}

// fakeSequentialRunner runs the callback inline, matching the transactional
// runner's behavior without a database.
type fakeSequentialRunner struct {
	calls int
}

func (f *fakeSequentialRunner) RunSequential(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}
