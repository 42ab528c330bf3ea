// Package shadow records, once a sandwich's bundle either landed or was
// dropped, the divergence between its predicted revenue and the realized
// revenue its caller computes against the now-final block, and persists
// it. It never feeds back into live
// trading decisions — it exists purely to evaluate the simulator's
// accuracy over time, the same role the teacher's ShadowRunner plays for
// comparing production vs. experimental heuristics.
package shadow

import (
	"context"
	"log"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

// BacktestRunner replays a sandwich's realized outcome against its prediction.
type BacktestRunner struct {
	pool *pgxpool.Pool
}

func NewBacktestRunner(pool *pgxpool.Pool) *BacktestRunner {
	return &BacktestRunner{pool: pool}
}

// Compare builds and persists a ShadowResult from the bundle's predicted
// revenue (captured at simulation time) and its realized revenue, as
// supplied by the caller (the orchestrator re-simulates the sandwich on a
// fork at the target block, and passes zero if that re-simulation fails).
func (r *BacktestRunner) Compare(ctx context.Context, bundleID string, predicted, realized *big.Int, included bool) (models.ShadowResult, error) {
	delta := new(big.Int).Sub(realized, predicted)

	result := models.ShadowResult{
		BundleID:         bundleID,
		PredictedRevenue: predicted,
		RealizedRevenue:  realized,
		Delta:            delta,
		Included:         included,
		CreatedAt:        time.Now(),
	}

	if delta.Sign() != 0 {
		log.Printf("[shadow] divergence on bundle %s: predicted=%s realized=%s delta=%s included=%v",
			bundleID, predicted, realized, delta, included)
	}

	if r.pool != nil {
		if err := r.persist(ctx, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (r *BacktestRunner) persist(ctx context.Context, result models.ShadowResult) error {
	sql := `
		INSERT INTO shadow_results (bundle_id, predicted_revenue, realized_revenue, delta, included, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bundle_id) DO UPDATE
		SET realized_revenue = EXCLUDED.realized_revenue, delta = EXCLUDED.delta, included = EXCLUDED.included;
	`
	_, err := r.pool.Exec(ctx, sql,
		result.BundleID, result.PredictedRevenue.String(), result.RealizedRevenue.String(),
		result.Delta.String(), result.Included, result.CreatedAt)
	return err
}

// DriftReport summarizes divergence across all shadow comparisons.
type DriftReport struct {
	TotalRuns       int
	Divergences     int
	AvgDeltaWei     float64
}

// GenerateDriftReport computes the divergence rate between predicted and
// realized revenue over every shadow comparison recorded so far.
func (r *BacktestRunner) GenerateDriftReport(ctx context.Context) (DriftReport, error) {
	var report DriftReport
	if r.pool == nil {
		return report, nil
	}

	sql := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE delta <> 0) AS divergences,
			COALESCE(AVG(delta), 0) AS avg_delta
		FROM shadow_results
	`
	row := r.pool.QueryRow(ctx, sql)
	err := row.Scan(&report.TotalRuns, &report.Divergences, &report.AvgDeltaWei)
	return report, err
}
