package client

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/papyrusdb/controlplane/internal/model"
	"go.uber.org/zap"
)

// Handler names resolve to SQL functions, so they must be plain identifiers.
var handlerNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PgxNodeInvoker invokes registered handler functions directly on cluster
// nodes over per-node connection pools. The dispatch service resolves which
// nodes to address; this client only carries the call.
type PgxNodeInvoker struct {
	database string
	user     string
	password string
	schema   string
	logger   *zap.Logger

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewPgxNodeInvoker creates a node invoker. schema is the distributed API
// schema the handler functions live in on every node.
func NewPgxNodeInvoker(database, user, password, schema string, logger *zap.Logger) *PgxNodeInvoker {
	return &PgxNodeInvoker{
		database: database,
		user:     user,
		password: password,
		schema:   schema,
		logger:   logger,
		pools:    make(map[string]*pgxpool.Pool),
	}
}

// Invoke executes the named handler function on one node, passing the
// payload and the node's chosen shard so the handler can locate its local
// shard relation. Read-only handlers run inside a read-only transaction.
func (c *PgxNodeInvoker) Invoke(ctx context.Context, node model.Node, handler string, payload []byte, shardName string, readOnly bool) ([]byte, error) {
	if !handlerNamePattern.MatchString(handler) {
		return nil, fmt.Errorf("invalid handler name %q", handler)
	}

	pool, err := c.poolFor(ctx, node)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s.%s($1::jsonb, $2)`, c.schema, handler)

	c.logger.Debug("Invoking node handler",
		zap.String("handler", handler),
		zap.String("node", node.DisplayName()),
		zap.String("shard", shardName))

	if !readOnly {
		var result []byte
		if err := pool.QueryRow(ctx, query, payload, shardName).Scan(&result); err != nil {
			return nil, fmt.Errorf("handler %s failed on %s: %w", handler, node.DisplayName(), err)
		}
		return result, nil
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction on %s: %w", node.DisplayName(), err)
	}
	defer tx.Rollback(ctx)

	var result []byte
	if err := tx.QueryRow(ctx, query, payload, shardName).Scan(&result); err != nil {
		return nil, fmt.Errorf("handler %s failed on %s: %w", handler, node.DisplayName(), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit on %s: %w", node.DisplayName(), err)
	}
	return result, nil
}

// poolFor returns the cached connection pool for a node, creating it lazily
func (c *PgxNodeInvoker) poolFor(ctx context.Context, node model.Node) (*pgxpool.Pool, error) {
	addr := fmt.Sprintf("%s:%d", node.Host, node.Port)

	c.mu.Lock()
	defer c.mu.Unlock()

	if pool, ok := c.pools[addr]; ok {
		return pool, nil
	}

	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=4",
		node.Host, node.Port, c.database, c.user, c.password,
	)
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node %s: %w", node.DisplayName(), err)
	}

	c.pools[addr] = pool
	return pool, nil
}

// Close closes all node connection pools
func (c *PgxNodeInvoker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for addr, pool := range c.pools {
		pool.Close()
		delete(c.pools, addr)
	}
}
