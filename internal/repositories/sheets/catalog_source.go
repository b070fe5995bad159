package sheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/repositories"
)

const defaultReadRange = "Master!A:Z"

// Column headers recognised in the master sheet. Matching is case-insensitive
// and ignores surrounding whitespace; unknown columns are skipped.
const (
	headerName            = "name"
	headerIdentifier      = "asin"
	headerNetWeight       = "net weight"
	headerSplitInto       = "split into"
	headerFulfillmentCode = "fnsku"
	headerPacketSize      = "packet size"
	headerPacketUsed      = "packet used"
	headerMRP             = "m.r.p"
	headerRegulatoryCode  = "fssai"
)

// Config carries the location of the master catalog sheet.
type Config struct {
	SpreadsheetID string
	ReadRange     string
}

// CatalogSource reads the product catalog from a Google Sheets spreadsheet.
type CatalogSource struct {
	service       *sheetsapi.Service
	spreadsheetID string
	readRange     string
}

// NewCatalogSource constructs a Sheets-backed catalog source.
func NewCatalogSource(ctx context.Context, cfg Config, opts ...option.ClientOption) (*CatalogSource, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("sheets catalog source: spreadsheet id is required")
	}
	readRange := strings.TrimSpace(cfg.ReadRange)
	if readRange == "" {
		readRange = defaultReadRange
	}

	clientOpts := append([]option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope)}, opts...)
	service, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets catalog source: create service: %w", err)
	}

	return &CatalogSource{
		service:       service,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}, nil
}

// SourceName identifies this source in snapshots and diagnostics.
func (s *CatalogSource) SourceName() string {
	return "sheets:" + s.spreadsheetID
}

// FetchProducts reads the configured range and decodes every data row into a
// catalog product, preserving sheet order.
func (s *CatalogSource) FetchProducts(ctx context.Context) ([]domain.CatalogProduct, error) {
	if s == nil || s.service == nil {
		return nil, errors.New("sheets catalog source not initialised")
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, repositories.NewCatalogError(
			repositories.CatalogErrorSourceUnavailable,
			fmt.Sprintf("read range %s", s.readRange),
			err,
		)
	}
	return decodeCatalogValues(resp.Values)
}

// columnMap records which sheet column holds each product field. A value of -1
// means the column is absent.
type columnMap struct {
	name            int
	identifier      int
	netWeight       int
	splitInto       int
	fulfillmentCode int
	packetSize      int
	packetUsed      int
	mrp             int
	regulatoryCode  int
}

func decodeCatalogValues(values [][]any) ([]domain.CatalogProduct, error) {
	if len(values) == 0 {
		return nil, repositories.NewCatalogError(repositories.CatalogErrorEmptySource, "sheet returned no rows", nil)
	}

	cols, err := mapHeader(values[0])
	if err != nil {
		return nil, err
	}

	rows := values[1:]
	if len(rows) == 0 {
		return nil, repositories.NewCatalogError(repositories.CatalogErrorEmptySource, "sheet has a header but no data rows", nil)
	}

	products := make([]domain.CatalogProduct, 0, len(rows))
	for _, row := range rows {
		products = append(products, domain.CatalogProduct{
			Name:            cellAt(row, cols.name),
			Identifier:      cellAt(row, cols.identifier),
			NetWeightRaw:    cellAt(row, cols.netWeight),
			SplitInto:       cellAt(row, cols.splitInto),
			FulfillmentCode: cellAt(row, cols.fulfillmentCode),
			PacketSize:      cellAt(row, cols.packetSize),
			PacketUsed:      cellAt(row, cols.packetUsed),
			MRP:             cellAt(row, cols.mrp),
			RegulatoryCode:  cellAt(row, cols.regulatoryCode),
		})
	}
	return products, nil
}

func mapHeader(header []any) (columnMap, error) {
	cols := columnMap{
		name:            -1,
		identifier:      -1,
		netWeight:       -1,
		splitInto:       -1,
		fulfillmentCode: -1,
		packetSize:      -1,
		packetUsed:      -1,
		mrp:             -1,
		regulatoryCode:  -1,
	}

	for i, cell := range header {
		switch strings.ToLower(strings.TrimSpace(cellString(cell))) {
		case headerName:
			cols.name = i
		case headerIdentifier:
			cols.identifier = i
		case headerNetWeight:
			cols.netWeight = i
		case headerSplitInto:
			cols.splitInto = i
		case headerFulfillmentCode:
			cols.fulfillmentCode = i
		case headerPacketSize:
			cols.packetSize = i
		case headerPacketUsed:
			cols.packetUsed = i
		case headerMRP:
			cols.mrp = i
		case headerRegulatoryCode:
			cols.regulatoryCode = i
		}
	}

	if cols.name < 0 || cols.identifier < 0 {
		return columnMap{}, repositories.NewCatalogError(
			repositories.CatalogErrorMalformedHeader,
			"sheet header must include Name and ASIN columns",
			nil,
		)
	}
	return cols, nil
}

func cellAt(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return cellString(row[idx])
}

// cellString renders a sheet cell as text. The Sheets API returns numbers as
// float64; format them without a forced fractional part so "1" stays "1".
func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

var _ repositories.CatalogSourceRepository = (*CatalogSource)(nil)
