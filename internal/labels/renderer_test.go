package labels

import (
	"bytes"
	"image/png"
	"testing"

	domain "github.com/packhouse/api/internal/domain"
)

func TestRendererRender(t *testing.T) {
	rows := []domain.PhysicalRow{
		{LabelName: "Ghee Jar", Weight: "1", MRP: "450", RegulatoryCode: "FSSAI-1", FulfillmentCode: "FN1", Quantity: 4},
		{LabelName: "Coconut Thekua", Weight: "0.35", FulfillmentCode: "FN2", Quantity: 3},
		{DisplayName: "Jaggery Block", Weight: "0.5", Quantity: 1},
	}

	r := NewRenderer()
	data, err := r.Render(rows)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	bounds := img.Bounds()
	// Three labels across two columns occupy two sheet rows.
	if bounds.Dx() != labelWidth*sheetColumns {
		t.Fatalf("unexpected width %d", bounds.Dx())
	}
	if bounds.Dy() != labelHeight*2 {
		t.Fatalf("unexpected height %d", bounds.Dy())
	}
}

func TestRendererRenderCustomGeometry(t *testing.T) {
	rows := []domain.PhysicalRow{
		{LabelName: "Ghee Jar", Weight: "1", Quantity: 1},
		{LabelName: "Til Ladoo", Weight: "0.5", Quantity: 2},
	}

	r := NewRenderer(WithLabelSize(200, 80), WithColumns(1))
	data, err := r.Render(rows)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 160 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
}

func TestWeightLine(t *testing.T) {
	cases := []struct {
		name   string
		weight string
		want   string
	}{
		{"bare token", "0.7", "Net Wt: 0.7 kg"},
		{"token with unit", "0.7kg", "Net Wt: 0.7 kg"},
		{"uppercase unit with spacing", " 1 KG ", "Net Wt: 1 kg"},
		{"placeholder row marker", "N/A", "Net Wt: n/a"},
		{"blank", "", "Net Wt: n/a"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := weightLine(domain.PhysicalRow{Weight: tc.weight})
			if got != tc.want {
				t.Fatalf("weightLine(%q) = %q, want %q", tc.weight, got, tc.want)
			}
		})
	}
}

func TestRendererRenderEmpty(t *testing.T) {
	if _, err := NewRenderer().Render(nil); err == nil {
		t.Fatalf("expected error for empty row set")
	}
}
