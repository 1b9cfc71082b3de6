package pricing

import (
	"testing"

	"github.com/rpattn/retailops/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func cascadeFixture() []domain.PriceListEntry {
	return []domain.PriceListEntry{
		{SerialNumber: "S1", Family: "F", MaterialDescription: "M", NormalPrice: 100},
		{ItemCode: "I1", Family: "F", MaterialDescription: "M", NormalPrice: 200},
		{Family: "F", MaterialDescription: "M", NormalPrice: 300},
		{Family: "F", MaterialDescription: "M", Group: "G", PatternCode: "P", NormalPrice: 400},
	}
}

func TestResolveSerialBeatsEveryOtherTier(t *testing.T) {
	ctx := domain.PriceContext{
		SerialNumber:        "S1",
		ItemCode:            "I1",
		Group:               "G",
		PatternCode:         "P",
		Family:              "F",
		MaterialDescription: "M",
	}

	got := Resolve(cascadeFixture(), ctx)
	if got.Source != domain.PriceSourceSerial {
		t.Fatalf("expected serial source, got %s", got.Source)
	}
	if got.Price != 100 {
		t.Fatalf("expected serial-tier price 100, got %v", got.Price)
	}
}

func TestResolveTiers(t *testing.T) {
	tests := []struct {
		name      string
		ctx       domain.PriceContext
		wantPrice float64
		wantSrc   domain.PriceSource
	}{
		{
			name:      "item match when no serial",
			ctx:       domain.PriceContext{ItemCode: "I1", Family: "F", MaterialDescription: "M"},
			wantPrice: 200,
			wantSrc:   domain.PriceSourceItem,
		},
		{
			name:      "best candidate on group and pattern",
			ctx:       domain.PriceContext{Group: "G", PatternCode: "P", Family: "F", MaterialDescription: "M"},
			wantPrice: 400,
			wantSrc:   domain.PriceSourceBest,
		},
		{
			name:      "generic fallback when group unmatched",
			ctx:       domain.PriceContext{Group: "other", Family: "F", MaterialDescription: "M"},
			wantPrice: 300,
			wantSrc:   domain.PriceSourceGeneric,
		},
		{
			name:    "not found without specific keys",
			ctx:     domain.PriceContext{Family: "F", MaterialDescription: "M"},
			wantSrc: domain.PriceSourceNotFound,
		},
		{
			name:    "not found on unknown family",
			ctx:     domain.PriceContext{ItemCode: "nope", Family: "X", MaterialDescription: "Y"},
			wantSrc: domain.PriceSourceNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(cascadeFixture(), tc.ctx)
			if got.Source != tc.wantSrc {
				t.Fatalf("expected source %s, got %s", tc.wantSrc, got.Source)
			}
			if got.Price != tc.wantPrice {
				t.Fatalf("expected price %v, got %v", tc.wantPrice, got.Price)
			}
		})
	}
}

func TestResolveSpecialPriceWinsWithinRow(t *testing.T) {
	entries := []domain.PriceListEntry{
		{SerialNumber: "S1", NormalPrice: 100, SpecialPrice: fptr(80)},
	}

	got := Resolve(entries, domain.PriceContext{SerialNumber: "S1"})
	if got.Price != 80 {
		t.Fatalf("expected special price 80, got %v", got.Price)
	}
	if got.NormalPrice != 100 {
		t.Fatalf("expected normal price 100, got %v", got.NormalPrice)
	}
}

func TestResolveBestCandidateTieKeepsListOrder(t *testing.T) {
	entries := []domain.PriceListEntry{
		{Family: "F", MaterialDescription: "M", Group: "G", NormalPrice: 111},
		{Family: "F", MaterialDescription: "M", PatternCode: "P", NormalPrice: 222},
	}
	ctx := domain.PriceContext{Group: "G", PatternCode: "P", Family: "F", MaterialDescription: "M"}

	got := Resolve(entries, ctx)
	if got.Source != domain.PriceSourceBest {
		t.Fatalf("expected best source, got %s", got.Source)
	}
	// Both score 1; the first entry in list order wins.
	if got.Price != 111 {
		t.Fatalf("expected first-entry price 111, got %v", got.Price)
	}
}

func TestResolveEmptyList(t *testing.T) {
	got := Resolve(nil, domain.PriceContext{SerialNumber: "S1"})
	if got.Source != domain.PriceSourceNotFound {
		t.Fatalf("expected not_found, got %s", got.Source)
	}
	if got.Price != 0 {
		t.Fatalf("expected zero price, got %v", got.Price)
	}
}
