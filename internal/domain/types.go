package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// CatalogProduct is one row of the master catalog as supplied by the catalog
// source. Every field except Identifier is optional; absence is encoded as an
// empty (or sentinel) string and decided solely by planner.IsEmptyToken.
type CatalogProduct struct {
	Name            string
	Identifier      string
	NetWeightRaw    string
	SplitInto       string
	FulfillmentCode string
	PacketSize      string
	PacketUsed      string
	MRP             string
	RegulatoryCode  string
}

// OrderLine is one extracted order entry: a product identifier and how many
// units were ordered. RawQuantity preserves the original quantity token for
// diagnostics; Quantity is the parsed value and is always >= 1.
type OrderLine struct {
	Identifier  string
	Quantity    int
	RawQuantity string
}

// RowStatus describes the shipment readiness of a physical row.
type RowStatus string

const (
	// RowStatusReady indicates the row carries a fulfillment code and can ship.
	RowStatusReady RowStatus = "ready"
	// RowStatusMissingFulfillmentCode indicates the product exists but its
	// fulfillment code is absent, blocking shipment.
	RowStatusMissingFulfillmentCode RowStatus = "missing_fulfillment_code"
	// RowStatusMissingFromCatalog indicates the ordered identifier was not
	// found in the catalog at all.
	RowStatusMissingFromCatalog RowStatus = "missing_from_catalog"
)

// PhysicalRow is one line of the packing plan: one kind of physically
// distinguishable unit to pack. Quantity is the only field the aggregator
// mutates; all remaining fields together form the row's identity key.
type PhysicalRow struct {
	DisplayName     string
	LabelName       string
	Weight          string
	PacketSize      string
	PacketUsed      string
	Identifier      string
	MRP             string
	FulfillmentCode string
	RegulatoryCode  string
	Status          RowStatus
	IsSplit         bool
	Quantity        int
}

// IssueKind enumerates the data-quality problems surfaced during resolution.
type IssueKind string

const (
	// IssueNotInCatalog indicates an ordered identifier has no catalog entry.
	IssueNotInCatalog IssueKind = "not_in_catalog"
	// IssueSplitSizesNotFound indicates none of a product's split weight
	// tokens matched a variant row.
	IssueSplitSizesNotFound IssueKind = "split_sizes_not_found"
	// IssueMissingFulfillmentCode indicates a resolved row lacks its code.
	IssueMissingFulfillmentCode IssueKind = "missing_fulfillment_code"
	// IssueProcessingError indicates an unexpected failure while resolving a
	// single line; the rest of the batch is unaffected.
	IssueProcessingError IssueKind = "processing_error"
)

// MissingIssue is one diagnostic entry for operator review. Issues are
// append-only and never merged or deduplicated.
type MissingIssue struct {
	Identifier  string
	Kind        IssueKind
	ProductName string
	SplitInfo   string
	Detail      string
	Quantity    int
}

// PackingPlan is a persisted resolution result for one submitted batch.
type PackingPlan struct {
	ID        string
	CreatedAt time.Time
	CreatedBy string
	Source    string
	Note      string
	LineCount int
	Rows      []PhysicalRow
	Issues    []MissingIssue
}

// ReadyRowCount reports how many aggregated rows are ready to ship.
func (p PackingPlan) ReadyRowCount() int {
	ready := 0
	for _, row := range p.Rows {
		if row.Status == RowStatusReady {
			ready++
		}
	}
	return ready
}

// CatalogSnapshot records a successfully fetched catalog together with its
// provenance, so health checks can report staleness.
type CatalogSnapshot struct {
	Source    string
	FetchedAt time.Time
	Products  []CatalogProduct
}

// Age reports how old the snapshot is relative to now.
func (s CatalogSnapshot) Age(now time.Time) time.Duration {
	if s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}
