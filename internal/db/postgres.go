// Package db persists bundle submissions, shadow-replay outcomes, and pair
// scores to Postgres. Every write here is best-effort: a database outage
// must never block the hot path that decides whether to sandwich a swap,
// so callers log and continue on error rather than propagating it upward
// into the strategy loop.
package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %v", err)
	}

	log.Println("Successfully connected to PostgreSQL for sandwich engine")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %v", err)
	}

	_, err = s.pool.Exec(context.Background(), string(schemaBytes))
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %v", err)
	}

	log.Println("Sandwich engine schema initialized")
	return nil
}

// SaveBundleAudit persists one bundle submission attempt, including the
// per-relay responses collected by the broadcaster.
func (s *PostgresStore) SaveBundleAudit(ctx context.Context, rec models.BundleAuditRecord) error {
	hashes := make([]string, 0, len(rec.VictimTxHashes))
	for _, h := range rec.VictimTxHashes {
		hashes = append(hashes, h.Hex())
	}

	sql := `
		INSERT INTO bundle_audit (id, block_number, mode, victim_tx_hashes, predicted_revenue, gas_cost, relay_responses, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET relay_responses = EXCLUDED.relay_responses;
	`
	_, err := s.pool.Exec(ctx, sql,
		rec.ID, rec.BlockNumber, rec.Mode, hashes,
		rec.PredictedRevenue.String(), rec.GasCost.String(), rec.RelayResponses, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bundle_audit: %v", err)
	}
	return nil
}

// SaveShadowResult persists the predicted-vs-realized comparison for one
// bundle once its target block has landed.
func (s *PostgresStore) SaveShadowResult(ctx context.Context, r models.ShadowResult) error {
	sql := `
		INSERT INTO shadow_results (bundle_id, predicted_revenue, realized_revenue, delta, included, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bundle_id) DO UPDATE
		SET realized_revenue = EXCLUDED.realized_revenue, delta = EXCLUDED.delta, included = EXCLUDED.included;
	`
	_, err := s.pool.Exec(ctx, sql,
		r.BundleID, r.PredictedRevenue.String(), r.RealizedRevenue.String(), r.Delta.String(), r.Included, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert shadow_results: %v", err)
	}
	return nil
}

// UpsertPairScore records an updated suitability score for a pool, used to
// survive restarts without losing accumulated ranking history.
func (s *PostgresStore) UpsertPairScore(ctx context.Context, ps models.PairScore) error {
	sql := `
		INSERT INTO pair_scores (pool, swap_count, total_revenue, last_seen, score)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pool) DO UPDATE
		SET swap_count = EXCLUDED.swap_count, total_revenue = EXCLUDED.total_revenue,
		    last_seen = EXCLUDED.last_seen, score = EXCLUDED.score;
	`
	_, err := s.pool.Exec(ctx, sql, ps.Pool.Hex(), ps.SwapCount, ps.TotalRevenue.String(), ps.LastSeen, ps.Score)
	return err
}

// BundleSummary is a lightweight row for the API's recent-bundle listing.
type BundleSummary struct {
	ID               string `json:"id"`
	BlockNumber      uint64 `json:"blockNumber"`
	Mode             string `json:"mode"`
	PredictedRevenue string `json:"predictedRevenue"`
	GasCost          string `json:"gasCost"`
}

// GetRecentBundles returns the most recently submitted bundles, newest
// first, for the dashboard's bundle feed.
func (s *PostgresStore) GetRecentBundles(ctx context.Context, limit int) ([]BundleSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	sql := `
		SELECT id, block_number, mode, predicted_revenue, gas_cost
		FROM bundle_audit
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BundleSummary
	for rows.Next() {
		var b BundleSummary
		if err := rows.Scan(&b.ID, &b.BlockNumber, &b.Mode, &b.PredictedRevenue, &b.GasCost); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if out == nil {
		out = []BundleSummary{}
	}
	return out, nil
}

// GetPool exposes the connection pool for the shadow runner and other
// subsystems that need direct access.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
