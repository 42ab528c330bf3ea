package shadow

import (
	"context"
	"math/big"
	"testing"
)

func TestBacktestRunner_Compare_NilPoolSkipsPersist(t *testing.T) {
	r := NewBacktestRunner(nil)

	result, err := r.Compare(context.Background(), "bundle-1", big.NewInt(100), big.NewInt(80), true)
	if err != nil {
		t.Fatalf("unexpected error with nil pool: %v", err)
	}
	if result.Delta.Cmp(big.NewInt(-20)) != 0 {
		t.Fatalf("expected delta -20, got %s", result.Delta)
	}
	if !result.Included {
		t.Fatalf("expected Included=true")
	}
}

func TestBacktestRunner_Compare_ZeroDeltaWhenExact(t *testing.T) {
	r := NewBacktestRunner(nil)

	result, err := r.Compare(context.Background(), "bundle-2", big.NewInt(50), big.NewInt(50), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Delta.Sign() != 0 {
		t.Fatalf("expected zero delta, got %s", result.Delta)
	}
}

func TestBacktestRunner_GenerateDriftReport_NilPoolReturnsZero(t *testing.T) {
	r := NewBacktestRunner(nil)
	report, err := r.GenerateDriftReport(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalRuns != 0 || report.Divergences != 0 {
		t.Fatalf("expected zeroed report, got %+v", report)
	}
}
