package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/sandoo-engine/pkg/models"
)

func TestPoolCSVRoundTrip(t *testing.T) {
	pool := models.Pool{
		ID:            7,
		Address:       common.HexToAddress("0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"),
		Variant:       models.UniswapV2,
		Token0:        USDC,
		Token1:        WETH,
		FeePPM:        3000,
		CreationBlock: 12345678,
		CreationTime:  time.Unix(1_600_000_000, 0).UTC(),
	}

	row := pool.CSVRow()
	got, err := models.PoolFromCSVRow(row)
	if err != nil {
		t.Fatalf("unexpected error parsing round-tripped row: %v", err)
	}

	if got.ID != pool.ID || got.Address != pool.Address || got.Variant != pool.Variant ||
		got.Token0 != pool.Token0 || got.Token1 != pool.Token1 || got.FeePPM != pool.FeePPM ||
		got.CreationBlock != pool.CreationBlock || !got.CreationTime.Equal(pool.CreationTime) {
		t.Fatalf("round-tripped pool does not match original: got %+v want %+v", got, pool)
	}
}

func TestPoolRegistry_LoadCacheFromDisk(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	if err := os.MkdirAll(poolCacheDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "id,address,version,token0,token1,fee,block_number,timestamp\n" +
		"0,0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc,v2,0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48,0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2,3000,100,1600000000\n"
	if err := os.WriteFile(filepath.Join(dir, poolCacheFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := NewPoolRegistry()
	if err != nil {
		t.Fatalf("unexpected error loading registry: %v", err)
	}
	pools := reg.All()
	if len(pools) != 1 {
		t.Fatalf("expected 1 cached pool, got %d", len(pools))
	}
	if reg.nextID != 1 {
		t.Fatalf("expected nextID to advance past cached max id, got %d", reg.nextID)
	}
}
