package pricing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCalculateCostKnownModel(t *testing.T) {
	c := DefaultCatalog()
	cost := c.CalculateCost("gpt-4o", 1_000_000, 1_000_000)
	want := 2.50 + 10.00
	if cost != want {
		t.Fatalf("expected cost %v, got %v", want, cost)
	}
}

func TestCalculateCostUnknownModelIsZero(t *testing.T) {
	c := DefaultCatalog()
	if cost := c.CalculateCost("not-a-real-model", 1000, 1000); cost != 0 {
		t.Fatalf("expected 0 cost for unknown model, got %v", cost)
	}
}

func TestCalculateCostFreeModelIsZero(t *testing.T) {
	c := DefaultCatalog()
	if cost := c.CalculateCost("gemini-2.0-flash-lite", 1_000_000, 1_000_000); cost != 0 {
		t.Fatalf("expected 0 cost for free model, got %v", cost)
	}
}

func TestLoadFromFileMergesOverrides(t *testing.T) {
	c := DefaultCatalog()
	path := filepath.Join(t.TempDir(), "pricing.json")
	if err := os.WriteFile(path, []byte(`{"custom-model":{"input_per_1m":1,"output_per_1m":2}}`), 0o644); err != nil {
		t.Fatalf("write pricing file: %v", err)
	}

	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	cost := c.CalculateCost("custom-model", 1_000_000, 1_000_000)
	if cost != 3 {
		t.Fatalf("expected overridden cost 3, got %v", cost)
	}

	// Existing built-in entries survive the merge.
	if cost := c.CalculateCost("gpt-4o", 1_000_000, 0); cost != 2.50 {
		t.Fatalf("expected built-in gpt-4o pricing to survive merge, got %v", cost)
	}
}

func TestSetPricingOverridesAtRuntime(t *testing.T) {
	c := DefaultCatalog()
	c.SetPricing("gpt-4o", ModelPricing{Free: true})
	if cost := c.CalculateCost("gpt-4o", 1_000_000, 1_000_000); cost != 0 {
		t.Fatalf("expected runtime override to zero the cost, got %v", cost)
	}
}
