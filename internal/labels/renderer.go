package labels

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/fogleman/gg"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/planner"
)

const (
	labelWidth   = 380
	labelHeight  = 120
	labelPadding = 12
	sheetColumns = 2
)

// Renderer draws packet labels onto a single PNG sheet, two labels per row.
// Each label carries the text the packer sticks on the packet: product name,
// weight, MRP, and the regulatory licence number.
type Renderer struct {
	width   int
	height  int
	columns int
}

// Option customises renderer geometry.
type Option func(*Renderer)

// WithLabelSize overrides the per-label pixel dimensions.
func WithLabelSize(width, height int) Option {
	return func(r *Renderer) {
		if width > 0 {
			r.width = width
		}
		if height > 0 {
			r.height = height
		}
	}
}

// WithColumns overrides how many labels sit side by side.
func WithColumns(columns int) Option {
	return func(r *Renderer) {
		if columns > 0 {
			r.columns = columns
		}
	}
}

// NewRenderer constructs a label renderer with default geometry.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		width:   labelWidth,
		height:  labelHeight,
		columns: sheetColumns,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Render draws one label per row and returns the encoded PNG sheet.
func (r *Renderer) Render(rows []domain.PhysicalRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, errors.New("labels: no rows to render")
	}

	sheetRows := (len(rows) + r.columns - 1) / r.columns
	dc := gg.NewContext(r.width*r.columns, r.height*sheetRows)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, row := range rows {
		x := float64((i % r.columns) * r.width)
		y := float64((i / r.columns) * r.height)
		r.drawLabel(dc, x, y, row)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("labels: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawLabel(dc *gg.Context, x, y float64, row domain.PhysicalRow) {
	w := float64(r.width)
	h := float64(r.height)

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x+1, y+1, w-2, h-2)
	dc.Stroke()

	left := x + labelPadding
	line := y + labelPadding + 8

	name := row.LabelName
	if strings.TrimSpace(name) == "" {
		name = row.DisplayName
	}
	dc.DrawString(truncate(name, 44), left, line)

	line += 18
	dc.DrawString(weightLine(row), left, line)

	line += 18
	if row.MRP != "" {
		dc.DrawString("M.R.P: Rs "+row.MRP, left, line)
		line += 18
	}
	if row.RegulatoryCode != "" {
		dc.DrawString("FSSAI Lic No: "+row.RegulatoryCode, left, line)
		line += 18
	}
	if row.FulfillmentCode != "" {
		dc.DrawString(row.FulfillmentCode, left, line)
	}

	dc.DrawStringAnchored(fmt.Sprintf("x%d", row.Quantity), x+w-labelPadding, y+labelPadding+8, 1, 0)
}

func weightLine(row domain.PhysicalRow) string {
	// Row weights carry the raw catalog token, which may already include the
	// unit ("0.7kg") or be an absence marker ("N/A") on placeholder rows.
	weight := planner.NormalizeWeight(row.Weight)
	if planner.IsEmptyToken(weight) {
		return "Net Wt: n/a"
	}
	return "Net Wt: " + weight + " kg"
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
