package roadnet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
// Networks are stored denormalized across three tables: one row per
// place plus bulk node and edge rows.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL network repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// LoadNetwork retrieves the cached network for a place.
func (r *PostgresRepository) LoadNetwork(ctx context.Context, place string) (*Network, error) {
	var fetchedAt time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT fetched_at FROM road_networks WHERE place = $1`, place,
	).Scan(&fetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNetworkNotFound
		}
		return nil, fmt.Errorf("load network: %w", err)
	}

	network := NewNetwork(place)
	network.FetchedAt = fetchedAt

	rows, err := r.pool.Query(ctx,
		`SELECT id, lon, lat FROM road_nodes WHERE place = $1`, place)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var node Node
		if err := rows.Scan(&node.ID, &node.Lon, &node.Lat); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		network.AddNode(node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}

	edgeRows, err := r.pool.Query(ctx,
		`SELECT from_id, to_id, length_m, bearing, max_speeds FROM road_edges WHERE place = $1`, place)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var edge Edge
		if err := edgeRows.Scan(&edge.From, &edge.To, &edge.LengthMeters, &edge.Bearing, &edge.MaxSpeeds); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if err := network.AddEdge(edge); err != nil {
			return nil, fmt.Errorf("edge %d->%d: %w", edge.From, edge.To, err)
		}
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}

	return network, nil
}

// SaveNetwork stores a network, replacing any previous one for the
// same place. The write is transactional: readers never see a
// half-replaced network.
func (r *PostgresRepository) SaveNetwork(ctx context.Context, network *Network) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, table := range []string{"road_edges", "road_nodes", "road_networks"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE place = $1`, table), network.Place); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	fetchedAt := network.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO road_networks (place, fetched_at) VALUES ($1, $2)`,
		network.Place, fetchedAt,
	); err != nil {
		return fmt.Errorf("insert network: %w", err)
	}

	nodeRows := make([][]any, 0, network.NodeCount())
	network.ForEachNode(func(node Node) {
		nodeRows = append(nodeRows, []any{network.Place, node.ID, node.Lon, node.Lat})
	})
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"road_nodes"},
		[]string{"place", "id", "lon", "lat"},
		pgx.CopyFromRows(nodeRows),
	); err != nil {
		return fmt.Errorf("copy nodes: %w", err)
	}

	edgeRows := make([][]any, 0, network.EdgeCount())
	network.ForEachEdge(func(edge Edge) {
		edgeRows = append(edgeRows, []any{
			network.Place, edge.From, edge.To, edge.LengthMeters, edge.Bearing, edge.MaxSpeeds,
		})
	})
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"road_edges"},
		[]string{"place", "from_id", "to_id", "length_m", "bearing", "max_speeds"},
		pgx.CopyFromRows(edgeRows),
	); err != nil {
		return fmt.Errorf("copy edges: %w", err)
	}

	return tx.Commit(ctx)
}
