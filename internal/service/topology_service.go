package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/papyrusdb/controlplane/internal/apierror"
	"github.com/papyrusdb/controlplane/internal/metrics"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
	"go.uber.org/zap"
)

// TopologyService reads the cluster's node catalog and renders the
// operator-facing shard map views. Reads are never cached: every call
// re-derives the view from current catalog state.
type TopologyService struct {
	nodeCatalog store.NodeCatalog
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewTopologyService creates a new topology service
func NewTopologyService(nodeCatalog store.NodeCatalog, m *metrics.Metrics, logger *zap.Logger) *TopologyService {
	return &TopologyService{
		nodeCatalog: nodeCatalog,
		metrics:     m,
		logger:      logger,
	}
}

// NodeDetail is the per-node entry of the shard map's nodes section
type NodeDetail struct {
	Role    string `json:"role"`
	Active  bool   `json:"active"`
	Cluster string `json:"cluster"`
}

// ShardMap is the getShardMap response body (minus the ok field)
type ShardMap struct {
	Map   map[string]string     `json:"map"`
	Hosts map[string]string     `json:"hosts"`
	Nodes map[string]NodeDetail `json:"nodes"`
}

// ShardListEntry is one element of the listShards response
type ShardListEntry struct {
	ID    string `json:"_id"`
	Nodes string `json:"nodes"`
}

// ListShardHostingNodes returns shard-eligible nodes ordered by group id,
// primaries before secondaries within a group.
func (s *TopologyService) ListShardHostingNodes(ctx context.Context) ([]model.Node, error) {
	nodes, err := s.nodeCatalog.ListShardHostingNodes(ctx)
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternalError, "failed to read node catalog", err)
	}

	activePrimaries := 0
	for _, n := range nodes {
		if n.IsPrimary() && n.IsActive {
			activePrimaries++
		}
	}
	s.metrics.UpdateActivePrimaryNodes(activePrimaries)

	return nodes, nil
}

// RenderShardMap formats nodes into the shard map view. Only active nodes
// appear in the joined membership strings and the hosts map; every node,
// active or not, appears in the nodes detail map.
func (s *TopologyService) RenderShardMap(nodes []model.Node) *ShardMap {
	result := &ShardMap{
		Map:   make(map[string]string),
		Hosts: make(map[string]string),
		Nodes: make(map[string]NodeDetail),
	}

	for _, members := range groupNodes(nodes) {
		groupName := members[0].ShardGroupName()
		result.Map[groupName] = groupName + "/" + joinActiveNames(members)
		for _, n := range members {
			if n.IsActive {
				result.Hosts[n.DisplayName()] = groupName
			}
			result.Nodes[n.DisplayName()] = NodeDetail{
				Role:    string(n.Role),
				Active:  n.IsActive,
				Cluster: n.ClusterName,
			}
		}
	}

	return result
}

// RenderShardList formats nodes into the listShards view
func (s *TopologyService) RenderShardList(nodes []model.Node) []ShardListEntry {
	groups := groupNodes(nodes)
	entries := make([]ShardListEntry, 0, len(groups))
	for _, members := range groups {
		groupName := members[0].ShardGroupName()
		entries = append(entries, ShardListEntry{
			ID:    groupName,
			Nodes: groupName + "/" + joinActiveNames(members),
		})
	}
	return entries
}

// ResolvePrimary returns the active primary of a shard group, or
// InvalidOptions when the group has none.
func (s *TopologyService) ResolvePrimary(ctx context.Context, groupID int32) (*model.Node, error) {
	node, err := s.nodeCatalog.GetPrimaryNode(ctx, groupID)
	if err == store.ErrNotFound {
		return nil, apierror.Newf(apierror.CodeInvalidOptions,
			"shard group shard_%d has no active primary node", groupID)
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternalError,
			fmt.Sprintf("failed to resolve primary of group %d", groupID), err)
	}
	return node, nil
}

// groupNodes splits the ordered node list into per-group slices, preserving
// the catalog ordering (ascending group id, primary first).
func groupNodes(nodes []model.Node) [][]model.Node {
	groups := make([][]model.Node, 0)
	for _, n := range nodes {
		if len(groups) == 0 || groups[len(groups)-1][0].GroupID != n.GroupID {
			groups = append(groups, []model.Node{n})
			continue
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], n)
	}
	return groups
}

func joinActiveNames(members []model.Node) string {
	names := make([]string, 0, len(members))
	for _, n := range members {
		if n.IsActive {
			names = append(names, n.DisplayName())
		}
	}
	return strings.Join(names, ",")
}
