package planner

import (
	domain "github.com/packhouse/api/internal/domain"
)

// rowKey is the identity of a physical row: every field except the quantity.
// Two rows with equal keys describe the same packable unit.
type rowKey struct {
	displayName     string
	labelName       string
	weight          string
	packetSize      string
	packetUsed      string
	identifier      string
	mrp             string
	fulfillmentCode string
	regulatoryCode  string
	status          domain.RowStatus
	isSplit         bool
}

func keyOf(row domain.PhysicalRow) rowKey {
	return rowKey{
		displayName:     row.DisplayName,
		labelName:       row.LabelName,
		weight:          row.Weight,
		packetSize:      row.PacketSize,
		packetUsed:      row.PacketUsed,
		identifier:      row.Identifier,
		mrp:             row.MRP,
		fulfillmentCode: row.FulfillmentCode,
		regulatoryCode:  row.RegulatoryCode,
		status:          row.Status,
		isSplit:         row.IsSplit,
	}
}

// AggregateRows merges rows sharing an identity key by summing their
// quantities. The representative row keeps the first-seen field values, and
// output order is the order in which each distinct key first appears. The
// reduction is pure: the multiset of (key, summed quantity) pairs is
// invariant under any permutation of the input, and aggregating an already
// aggregated sequence is a no-op.
func AggregateRows(rows []domain.PhysicalRow) []domain.PhysicalRow {
	if len(rows) == 0 {
		return nil
	}

	totals := make(map[rowKey]int, len(rows))
	for _, row := range rows {
		totals[keyOf(row)] += row.Quantity
	}

	out := make([]domain.PhysicalRow, 0, len(totals))
	emitted := make(map[rowKey]bool, len(totals))
	for _, row := range rows {
		key := keyOf(row)
		if emitted[key] {
			continue
		}
		emitted[key] = true
		row.Quantity = totals[key]
		out = append(out, row)
	}
	return out
}
