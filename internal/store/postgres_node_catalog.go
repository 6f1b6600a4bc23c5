package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/papyrusdb/controlplane/internal/model"
	"go.uber.org/zap"
)

// ErrMalformedCatalogRow is returned when a node catalog row is missing an
// expected field; it indicates substrate corruption, not user error.
var ErrMalformedCatalogRow = errors.New("node catalog row is missing an expected field")

// PostgresNodeCatalog implements NodeCatalog over the substrate node table
type PostgresNodeCatalog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresNodeCatalog creates a node catalog backed by the shared pool
func NewPostgresNodeCatalog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresNodeCatalog {
	return &PostgresNodeCatalog{pool: pool, logger: logger}
}

// ListShardHostingNodes returns shard-eligible nodes ordered by group id,
// primaries before secondaries. The ordering is produced by the query:
// 'primary' sorts before 'secondary'.
func (s *PostgresNodeCatalog) ListShardHostingNodes(ctx context.Context) ([]model.Node, error) {
	query := `
		SELECT groupid, nodeid, noderole::text, nodecluster, nodename, nodeport, isactive
		FROM pg_dist_node
		WHERE shouldhaveshards
		ORDER BY groupid, noderole
	`

	rows, err := conn(ctx, s.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read node catalog: %w", err)
	}
	defer rows.Close()

	nodes := make([]model.Node, 0)
	for rows.Next() {
		var (
			groupID *int32
			nodeID  *int32
			role    *string
			cluster *string
			host    *string
			port    *int
			active  *bool
		)
		if err := rows.Scan(&groupID, &nodeID, &role, &cluster, &host, &port, &active); err != nil {
			return nil, fmt.Errorf("failed to scan node catalog row: %w", err)
		}
		if groupID == nil || nodeID == nil || role == nil || cluster == nil || host == nil || port == nil || active == nil {
			return nil, ErrMalformedCatalogRow
		}
		nodes = append(nodes, model.Node{
			GroupID:     *groupID,
			NodeID:      *nodeID,
			Role:        model.NodeRole(*role),
			ClusterName: *cluster,
			Host:        *host,
			Port:        *port,
			IsActive:    *active,
		})
	}

	return nodes, rows.Err()
}

// GetPrimaryNode returns the active primary of a shard group
func (s *PostgresNodeCatalog) GetPrimaryNode(ctx context.Context, groupID int32) (*model.Node, error) {
	query := `
		SELECT groupid, nodeid, noderole::text, nodecluster, nodename, nodeport, isactive
		FROM pg_dist_node
		WHERE groupid = $1 AND noderole = 'primary' AND isactive
	`

	var node model.Node
	var role string
	err := conn(ctx, s.pool).QueryRow(ctx, query, groupID).Scan(
		&node.GroupID,
		&node.NodeID,
		&role,
		&node.ClusterName,
		&node.Host,
		&node.Port,
		&node.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get primary node for group %d: %w", groupID, err)
	}

	node.Role = model.NodeRole(role)
	return &node, nil
}

// CountActivePrimaryNodes counts active primaries across the cluster
func (s *PostgresNodeCatalog) CountActivePrimaryNodes(ctx context.Context) (int, error) {
	query := `SELECT count(*) FROM pg_dist_node WHERE noderole = 'primary' AND isactive`

	var count int
	if err := conn(ctx, s.pool).QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active primary nodes: %w", err)
	}
	return count, nil
}
