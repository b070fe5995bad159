package sheets

import (
	"errors"
	"testing"

	"github.com/packhouse/api/internal/repositories"
)

func TestDecodeCatalogValues(t *testing.T) {
	values := [][]any{
		{" Name ", "ASIN", "Net Weight", "Split Into", "fnsku", "Packet Size", "Packet Used", "M.R.P", "FSSAI", "Ignored"},
		{"Ghee Jar", "B001", "1", "", "FN1", "jar", "1", float64(450), "FSSAI-1", "x"},
		{"Coconut Thekua", "B002", float64(0.7), "0.35, 0.35", "", "pouch"},
	}

	products, err := decodeCatalogValues(values)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}

	first := products[0]
	if first.Name != "Ghee Jar" || first.Identifier != "B001" || first.FulfillmentCode != "FN1" {
		t.Fatalf("unexpected first product %+v", first)
	}
	if first.MRP != "450" {
		t.Fatalf("expected numeric cell rendered as 450, got %q", first.MRP)
	}

	second := products[1]
	if second.NetWeightRaw != "0.7" {
		t.Fatalf("expected fractional weight 0.7, got %q", second.NetWeightRaw)
	}
	if second.SplitInto != "0.35, 0.35" {
		t.Fatalf("unexpected split %q", second.SplitInto)
	}
	// Short rows yield empty strings for trailing columns.
	if second.PacketUsed != "" || second.MRP != "" || second.RegulatoryCode != "" {
		t.Fatalf("expected empty trailing fields, got %+v", second)
	}
}

func TestDecodeCatalogValuesHeaderCaseInsensitive(t *testing.T) {
	values := [][]any{
		{"NAME", "asin"},
		{"Ghee Jar", "B001"},
	}

	products, err := decodeCatalogValues(values)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(products) != 1 || products[0].Identifier != "B001" {
		t.Fatalf("unexpected products %+v", products)
	}
}

func TestDecodeCatalogValuesMissingRequiredColumns(t *testing.T) {
	values := [][]any{
		{"Name", "Net Weight"},
		{"Ghee Jar", "1"},
	}

	_, err := decodeCatalogValues(values)
	var catErr *repositories.CatalogError
	if !errors.As(err, &catErr) {
		t.Fatalf("expected CatalogError, got %v", err)
	}
	if catErr.Code != repositories.CatalogErrorMalformedHeader {
		t.Fatalf("expected malformed header code, got %s", catErr.Code)
	}
}

func TestDecodeCatalogValuesEmptySource(t *testing.T) {
	cases := [][][]any{
		nil,
		{{"Name", "ASIN"}},
	}
	for _, values := range cases {
		_, err := decodeCatalogValues(values)
		var catErr *repositories.CatalogError
		if !errors.As(err, &catErr) {
			t.Fatalf("expected CatalogError, got %v", err)
		}
		if catErr.Code != repositories.CatalogErrorEmptySource {
			t.Fatalf("expected empty source code, got %s", catErr.Code)
		}
	}
}
