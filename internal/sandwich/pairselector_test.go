package sandwich

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/sandoo-engine/internal/registry"
	"github.com/rawblock/sandoo-engine/pkg/models"
)

func writeCachedPool(t *testing.T, dir string, pool models.Pool) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "cache"), 0o755); err != nil {
		t.Fatalf("mkdir cache dir: %v", err)
	}
	f, err := os.Create(filepath.Join(dir, "cache", ".cached-pools.csv"))
	if err != nil {
		t.Fatalf("create cache file: %v", err)
	}
	defer f.Close()

	header := "id,address,version,token0,token1,fee,block_number,timestamp\n"
	if _, err := f.WriteString(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	row := pool.CSVRow()
	line := ""
	for i, v := range row {
		if i > 0 {
			line += ","
		}
		line += v
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("write row: %v", err)
	}
}

func TestEvaluatePairs_ScoresPairWithMainCurrency(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	target := common.HexToAddress("0x1111111111111111111111111111111111111111")
	pool := models.Pool{
		ID:            1,
		Address:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Variant:       models.UniswapV2,
		Token0:        registry.WETH,
		Token1:        target,
		FeePPM:        3000,
		CreationBlock: 100,
		CreationTime:  time.Unix(1_700_000_000, 0).UTC(),
	}
	writeCachedPool(t, dir, pool)

	pools, err := registry.NewPoolRegistry()
	if err != nil {
		t.Fatalf("NewPoolRegistry: %v", err)
	}
	tokens := registry.NewTokenRegistry()
	tokens.Register(models.TokenMetadata{Address: target, Symbol: "TGT", Decimals: 18})

	evaluations := EvaluatePairs(pools, tokens)
	if len(evaluations) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(evaluations))
	}
	if evaluations[0].MainToken != registry.WETH {
		t.Fatalf("expected main token WETH, got %s", evaluations[0].MainToken)
	}
	if evaluations[0].TargetToken != target {
		t.Fatalf("expected target token %s, got %s", target, evaluations[0].TargetToken)
	}
	if evaluations[0].SuitabilityScore <= 0 {
		t.Fatalf("expected positive suitability score, got %f", evaluations[0].SuitabilityScore)
	}
}

func TestEvaluatePairs_SkipsPairWithoutMainCurrency(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	a := common.HexToAddress("0x3333333333333333333333333333333333333333")
	b := common.HexToAddress("0x4444444444444444444444444444444444444444")
	pool := models.Pool{
		ID:            1,
		Address:       common.HexToAddress("0x5555555555555555555555555555555555555555"),
		Variant:       models.UniswapV2,
		Token0:        a,
		Token1:        b,
		FeePPM:        3000,
		CreationBlock: 100,
		CreationTime:  time.Unix(1_700_000_000, 0).UTC(),
	}
	writeCachedPool(t, dir, pool)

	pools, err := registry.NewPoolRegistry()
	if err != nil {
		t.Fatalf("NewPoolRegistry: %v", err)
	}
	tokens := registry.NewTokenRegistry()
	tokens.Register(models.TokenMetadata{Address: a, Symbol: "A", Decimals: 18})
	tokens.Register(models.TokenMetadata{Address: b, Symbol: "B", Decimals: 18})

	evaluations := EvaluatePairs(pools, tokens)
	if len(evaluations) != 0 {
		t.Fatalf("expected 0 evaluations for a pair with no main currency, got %d", len(evaluations))
	}
}

func TestRecommendedPairs_RespectsMinScoreAndCap(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	target := common.HexToAddress("0x6666666666666666666666666666666666666666")
	pool := models.Pool{
		ID:            1,
		Address:       common.HexToAddress("0x7777777777777777777777777777777777777777"),
		Variant:       models.UniswapV2,
		Token0:        registry.WETH,
		Token1:        target,
		FeePPM:        3000,
		CreationBlock: 100,
		CreationTime:  time.Unix(1_700_000_000, 0).UTC(),
	}
	writeCachedPool(t, dir, pool)

	pools, err := registry.NewPoolRegistry()
	if err != nil {
		t.Fatalf("NewPoolRegistry: %v", err)
	}
	tokens := registry.NewTokenRegistry()
	tokens.Register(models.TokenMetadata{Address: target, Symbol: "TGT", Decimals: 18})

	recommended := RecommendedPairs(pools, tokens, 1000.0, 5)
	if len(recommended) != 0 {
		t.Fatalf("expected 0 pairs above an unreachable min score, got %d", len(recommended))
	}

	recommended = RecommendedPairs(pools, tokens, 0, 5)
	if len(recommended) != 1 || recommended[0] != pool.Address {
		t.Fatalf("expected the single pool to be recommended, got %v", recommended)
	}
}

func TestScoreFromSwap_AccumulatesAverageRevenue(t *testing.T) {
	pool := common.HexToAddress("0x8888888888888888888888888888888888888888")

	score := ScoreFromSwap(models.PairScore{}, pool, models.OptimizedSandwich{MaxRevenue: big.NewInt(100)})
	score = ScoreFromSwap(score, pool, models.OptimizedSandwich{MaxRevenue: big.NewInt(300)})

	if score.SwapCount != 2 {
		t.Fatalf("expected swap count 2, got %d", score.SwapCount)
	}
	if score.TotalRevenue.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected total revenue 400, got %s", score.TotalRevenue)
	}
	if score.Score != 200 {
		t.Fatalf("expected average score 200, got %f", score.Score)
	}
	if score.LastSeen.IsZero() {
		t.Fatalf("expected LastSeen to be set")
	}
}
