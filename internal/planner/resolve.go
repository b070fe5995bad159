package planner

import (
	"fmt"
	"strings"

	domain "github.com/packhouse/api/internal/domain"
)

const (
	absentField        = "N/A"
	missingCodeMarker  = "MISSING"
	unknownProductName = "Unknown Product"
)

// ResolveLine resolves one order line against the catalog index into zero or
// more physical rows plus zero or more diagnostic issues. Business-data
// anomalies (unknown identifier, unresolved split sizes, absent fulfillment
// codes) are modeled as data, never as errors; an unexpected panic while
// resolving a single line is contained here and converted into a
// processing-error issue so the caller's batch loop keeps going.
func ResolveLine(line domain.OrderLine, idx *CatalogIndex) (rows []domain.PhysicalRow, issues []domain.MissingIssue) {
	defer func() {
		if rec := recover(); rec != nil {
			rows = nil
			issues = []domain.MissingIssue{{
				Identifier: strings.TrimSpace(line.Identifier),
				Kind:       domain.IssueProcessingError,
				Detail:     fmt.Sprintf("line resolution failed: %v", rec),
				Quantity:   line.Quantity,
			}}
		}
	}()

	identifier := strings.TrimSpace(line.Identifier)

	product, found := idx.LookupByIdentifier(identifier)
	if !found {
		placeholder := fmt.Sprintf("UNKNOWN PRODUCT (%s)", identifier)
		issues = append(issues, domain.MissingIssue{
			Identifier: identifier,
			Kind:       domain.IssueNotInCatalog,
			Quantity:   line.Quantity,
		})
		rows = append(rows, domain.PhysicalRow{
			DisplayName:     placeholder,
			LabelName:       placeholder,
			Weight:          absentField,
			PacketSize:      absentField,
			PacketUsed:      absentField,
			Identifier:      identifier,
			MRP:             absentField,
			FulfillmentCode: missingCodeMarker,
			RegulatoryCode:  absentField,
			Status:          domain.RowStatusMissingFromCatalog,
			Quantity:        line.Quantity,
		})
		return rows, issues
	}

	name := strings.TrimSpace(product.Name)
	if IsEmptyToken(name) {
		name = unknownProductName
	}
	baseWeight := ""
	if !IsEmptyToken(product.NetWeightRaw) {
		baseWeight = NormalizeWeight(product.NetWeightRaw)
	}
	displayName := name
	if baseWeight != "" {
		displayName = name + " " + baseWeight
	}

	if IsEmptyToken(product.SplitInto) {
		row, codeMissing := buildRow(product, name, name, identifier, false, line.Quantity)
		rows = append(rows, row)
		if codeMissing {
			issues = append(issues, domain.MissingIssue{
				Identifier:  identifier,
				Kind:        domain.IssueMissingFulfillmentCode,
				ProductName: name,
				Quantity:    line.Quantity,
			})
		}
		return rows, issues
	}

	// Split branch: each declared weight token independently drives one
	// resolution attempt; duplicates intentionally yield duplicate attempts.
	// Repeated tokens consume successive catalog rows at that weight, so a
	// "0.35, 0.35" split against two 0.35 variant rows addresses both.
	consumed := make(map[string]int)
	for _, rawToken := range strings.Split(product.SplitInto, ",") {
		token := NormalizeWeight(rawToken)
		matches := idx.VariantMatches(name, token)
		if len(matches) == 0 {
			continue
		}
		pick := consumed[token]
		consumed[token]++
		if pick >= len(matches) {
			pick = len(matches) - 1
		}
		variant := matches[pick]
		variantID := strings.TrimSpace(variant.Identifier)
		if IsEmptyToken(variantID) {
			variantID = identifier
		}
		row, codeMissing := buildRow(variant, displayName, name, variantID, true, line.Quantity)
		rows = append(rows, row)
		if codeMissing {
			issues = append(issues, domain.MissingIssue{
				Identifier:  variantID,
				Kind:        domain.IssueMissingFulfillmentCode,
				ProductName: name,
				Quantity:    line.Quantity,
			})
		}
	}

	if len(rows) == 0 {
		issues = append(issues, domain.MissingIssue{
			Identifier:  identifier,
			Kind:        domain.IssueSplitSizesNotFound,
			ProductName: name,
			SplitInfo:   strings.TrimSpace(product.SplitInto),
			Quantity:    line.Quantity,
		})
	}
	return rows, issues
}

// buildRow materializes one physical row from a catalog product's own fields.
// The full order quantity is applied to the row; split quantities are never
// divided across variants.
func buildRow(product domain.CatalogProduct, displayName, labelName, identifier string, isSplit bool, quantity int) (domain.PhysicalRow, bool) {
	code := strings.TrimSpace(product.FulfillmentCode)
	codeMissing := IsEmptyToken(code)
	status := domain.RowStatusReady
	if codeMissing {
		code = missingCodeMarker
		status = domain.RowStatusMissingFulfillmentCode
	}
	return domain.PhysicalRow{
		DisplayName:     displayName,
		LabelName:       labelName,
		Weight:          fieldOrAbsent(product.NetWeightRaw),
		PacketSize:      fieldOrAbsent(product.PacketSize),
		PacketUsed:      fieldOrAbsent(product.PacketUsed),
		Identifier:      identifier,
		MRP:             fieldOrAbsent(product.MRP),
		FulfillmentCode: code,
		RegulatoryCode:  fieldOrAbsent(product.RegulatoryCode),
		Status:          status,
		IsSplit:         isSplit,
		Quantity:        quantity,
	}, codeMissing
}

func fieldOrAbsent(value string) string {
	trimmed := strings.TrimSpace(value)
	if IsEmptyToken(trimmed) {
		return absentField
	}
	return trimmed
}
