package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/papyrusdb/controlplane/internal/apierror"
	"github.com/papyrusdb/controlplane/internal/metrics"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
	"go.uber.org/zap"
)

// coordinatorGroupID is the shard group id of the coordinator node
const coordinatorGroupID int32 = 0

// NodeInvoker carries one handler invocation to one node. The production
// implementation executes the node's registered handler function directly;
// tests substitute their own.
type NodeInvoker interface {
	Invoke(ctx context.Context, node model.Node, handler string, payload []byte, shardName string, readOnly bool) ([]byte, error)
}

// LocalHandler is a handler registered for direct coordinator execution
type LocalHandler func(ctx context.Context, payload []byte) ([]byte, error)

// DispatchResult is one node's reply to a dispatched command
type DispatchResult struct {
	GroupID   int32
	NodeName  string
	ShardName string
	Output    []byte
}

// DispatchService invokes a registered handler exactly once on every node
// hosting a shard of a table. The node set is resolved here, addressed
// directly, and any single node's failure aborts the whole call: there is no
// partial-success contract.
type DispatchService struct {
	shards  store.ShardCatalog
	nodes   store.NodeCatalog
	invoker NodeInvoker
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu       sync.RWMutex
	handlers map[string]LocalHandler
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(
	shards store.ShardCatalog,
	nodes store.NodeCatalog,
	invoker NodeInvoker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		shards:   shards,
		nodes:    nodes,
		invoker:  invoker,
		metrics:  m,
		logger:   logger,
		handlers: make(map[string]LocalHandler),
	}
}

// RegisterHandler registers a handler's coordinator-side implementation,
// used when a dispatch is backfilled onto the coordinator. Registration
// happens once at process start, ahead of any dispatch.
func (s *DispatchService) RegisterHandler(name string, handler LocalHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = handler
}

// Dispatch resolves one representative shard per group hosting targetTable,
// invokes handler once per resolved node, and optionally backfills the
// coordinator when it hosts no qualifying shard. The result slice holds
// exactly one entry per group, plus one for the backfill when it ran.
func (s *DispatchService) Dispatch(ctx context.Context, handler string, payload []byte, readOnly bool, targetTable string, backfillCoordinator bool) ([]DispatchResult, error) {
	chosen, err := s.shards.ChosenShardPerGroup(ctx, targetTable)
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternalError, "failed to resolve target shards", err)
	}
	if len(chosen) == 0 {
		return nil, apierror.Newf(apierror.CodeInternalError,
			"table %s has no shard placements", targetTable)
	}

	results := make([]DispatchResult, 0, len(chosen)+1)
	coordinatorCovered := false

	for _, gs := range chosen {
		if gs.GroupID == coordinatorGroupID {
			coordinatorCovered = true
		}

		node, err := s.nodes.GetPrimaryNode(ctx, gs.GroupID)
		if err == store.ErrNotFound {
			return nil, apierror.Newf(apierror.CodeInternalError,
				"shard group %d hosts a shard of %s but has no active primary", gs.GroupID, targetTable)
		}
		if err != nil {
			return nil, apierror.Wrap(apierror.CodeInternalError, "failed to resolve dispatch target", err)
		}

		output, err := s.invoker.Invoke(ctx, *node, handler, payload, gs.ShardName, readOnly)
		if err != nil {
			// All-or-nothing: one node's failure aborts the dispatch.
			return nil, apierror.Wrap(apierror.CodeInternalError,
				fmt.Sprintf("handler %s failed on %s", handler, node.DisplayName()), err)
		}
		results = append(results, DispatchResult{
			GroupID:   gs.GroupID,
			NodeName:  node.DisplayName(),
			ShardName: gs.ShardName,
			Output:    output,
		})
	}

	if backfillCoordinator && !coordinatorCovered {
		output, err := s.invokeLocal(ctx, handler, payload)
		if err != nil {
			return nil, err
		}
		results = append(results, DispatchResult{
			GroupID:  coordinatorGroupID,
			NodeName: "coordinator",
			Output:   output,
		})
	}

	s.metrics.RecordDispatch(handler, len(results))
	s.logger.Debug("Dispatch completed",
		zap.String("handler", handler),
		zap.String("table", targetTable),
		zap.Int("results", len(results)))
	return results, nil
}

// invokeLocal runs a handler's registered coordinator implementation
func (s *DispatchService) invokeLocal(ctx context.Context, handler string, payload []byte) ([]byte, error) {
	s.mu.RLock()
	local, ok := s.handlers[handler]
	s.mu.RUnlock()
	if !ok {
		return nil, apierror.Newf(apierror.CodeInternalError,
			"handler %s has no registered coordinator implementation", handler)
	}

	output, err := local(ctx, payload)
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternalError,
			fmt.Sprintf("handler %s failed on coordinator", handler), err)
	}
	return output, nil
}
