package model

import "fmt"

// Collection is a read-only view of one entry of the collection catalog.
// The control plane never mutates the catalog row itself; it only issues
// placement requests against the backing physical table.
type Collection struct {
	CollectionID uint64
	Database     string
	Name         string
	// ShardKey is nil for unsharded (single-shard distributed) collections,
	// the only kind eligible for colocation changes and shard movement.
	ShardKey *string
}

// Namespace returns the "db.collection" form used on the command surface
func (c *Collection) Namespace() string {
	return c.Database + "." + c.Name
}

// TableName returns the backing physical table, unqualified
func (c *Collection) TableName() string {
	return fmt.Sprintf("documents_%d", c.CollectionID)
}

// RetryTableName returns the per-collection retry-tracking table, which must
// always stay co-located with the primary documents table
func (c *Collection) RetryTableName() string {
	return fmt.Sprintf("retry_%d", c.CollectionID)
}

// IsSharded reports whether the collection carries an explicit shard key
func (c *Collection) IsSharded() bool {
	return c.ShardKey != nil
}

// DistributionShape describes how a collection's backing table is currently
// distributed across the cluster.
type DistributionShape struct {
	// Distributed is false for plain local tables.
	Distributed bool
	// DistributionColumn is empty for single-shard tables with no explicit
	// distribution column and holds the synthetic column name for legacy
	// single-shard tables keyed by shard_key_value.
	DistributionColumn string
	ColocationID       int32
	ShardCount         int32
}

// HasNoDistributionColumn reports whether the table is "none"-shaped: a
// single-shard distributed table with no explicit distribution column.
func (d DistributionShape) HasNoDistributionColumn() bool {
	return d.Distributed && d.DistributionColumn == ""
}
