package model

import "fmt"

// NodeRole identifies a node's role within its shard group
type NodeRole string

const (
	NodeRolePrimary   NodeRole = "primary"
	NodeRoleSecondary NodeRole = "secondary"
)

// Node is an immutable snapshot of one row of the cluster node catalog.
// Snapshots are re-read on every operation; they are never cached so that
// placement decisions always see the current catalog state.
type Node struct {
	GroupID     int32
	NodeID      int32
	Role        NodeRole
	ClusterName string
	Host        string
	Port        int
	IsActive    bool
}

// DisplayName returns the operator-facing node identifier
func (n Node) DisplayName() string {
	return fmt.Sprintf("node_%s_%d", n.ClusterName, n.NodeID)
}

// ShardGroupName returns the operator-facing name of the node's shard group
func (n Node) ShardGroupName() string {
	return fmt.Sprintf("shard_%d", n.GroupID)
}

// IsPrimary reports whether the node leads its shard group
func (n Node) IsPrimary() bool {
	return n.Role == NodeRolePrimary
}
