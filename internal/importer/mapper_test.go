package importer

import (
	"testing"

	"github.com/rpattn/retailops/internal/domain"
)

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Item_Code", "item code"},
		{"  ITEM  CODE  ", "item code"},
		{"normal-price", "normal price"},
		{"Serial__Number", "serial number"},
	}
	for _, tc := range tests {
		if got := normalizeHeader(tc.in); got != tc.want {
			t.Fatalf("normalizeHeader(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestColumnMapperAliases(t *testing.T) {
	schema := mustSchema(t, "price_list")
	mapper := newColumnMapper(schema, []string{"SKU", "Harga Normal", "Notes"})

	row := mapper.Map(domain.RawRow{
		"SKU":          "A-1",
		"Harga Normal": "100",
		"Notes":        "ignored",
	})

	if row["item_code"] != "A-1" {
		t.Fatalf("expected item_code from SKU alias, got %+v", row)
	}
	if row["normal_price"] != "100" {
		t.Fatalf("expected normal_price from Harga Normal alias, got %+v", row)
	}
	if _, ok := row["Notes"]; ok {
		t.Fatal("expected unmatched header to be dropped")
	}
	if len(row) != 2 {
		t.Fatalf("expected two mapped fields, got %+v", row)
	}
}

func TestColumnMapperFirstAliasWins(t *testing.T) {
	schema := mustSchema(t, "price_list")
	// Both headers alias item_code; only the first may claim it.
	mapper := newColumnMapper(schema, []string{"SKU", "Item Code"})

	row := mapper.Map(domain.RawRow{"SKU": "first", "Item Code": "second"})
	if row["item_code"] != "first" {
		t.Fatalf("expected first header to claim the field, got %+v", row)
	}
}

func TestColumnMapperPositionalFallback(t *testing.T) {
	schema := mustSchema(t, "price_list")
	headers := []string{
		anonymousHeader(0), anonymousHeader(1), anonymousHeader(2), anonymousHeader(3),
		anonymousHeader(4), anonymousHeader(5), anonymousHeader(6), anonymousHeader(7),
	}
	mapper := newColumnMapper(schema, headers)

	row := mapper.Map(domain.RawRow{
		anonymousHeader(0): "12345",
		anonymousHeader(1): "A-1",
		anonymousHeader(6): "150.00",
	})
	if row["serial_number"] != "12345" {
		t.Fatalf("expected positional serial_number, got %+v", row)
	}
	if row["item_code"] != "A-1" {
		t.Fatalf("expected positional item_code, got %+v", row)
	}
	if row["normal_price"] != "150.00" {
		t.Fatalf("expected positional normal_price, got %+v", row)
	}
}

func TestColumnMapperPositionalRequiresLeadingInteger(t *testing.T) {
	schema := mustSchema(t, "price_list")
	mapper := newColumnMapper(schema, []string{anonymousHeader(0), anonymousHeader(1)})

	row := mapper.Map(domain.RawRow{
		anonymousHeader(0): "not a number",
		anonymousHeader(1): "A-1",
	})
	if len(row) != 0 {
		t.Fatalf("expected empty mapping without integer lead column, got %+v", row)
	}
}
