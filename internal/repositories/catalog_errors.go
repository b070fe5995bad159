package repositories

import "fmt"

// CatalogErrorCode enumerates repository error causes for catalog source operations.
type CatalogErrorCode string

const (
	// CatalogErrorUnknown represents an unspecified failure.
	CatalogErrorUnknown CatalogErrorCode = "catalog_unknown"
	// CatalogErrorSourceUnavailable indicates the catalog source could not be reached.
	CatalogErrorSourceUnavailable CatalogErrorCode = "catalog_source_unavailable"
	// CatalogErrorMalformedHeader indicates the source sheet lacks required columns.
	CatalogErrorMalformedHeader CatalogErrorCode = "catalog_malformed_header"
	// CatalogErrorEmptySource indicates the source returned no data rows.
	CatalogErrorEmptySource CatalogErrorCode = "catalog_empty_source"
	// CatalogErrorSnapshotNotFound indicates no snapshot has been persisted yet.
	CatalogErrorSnapshotNotFound CatalogErrorCode = "catalog_snapshot_not_found"
)

// CatalogError wraps catalog-specific failures with machine readable codes.
type CatalogError struct {
	Op      string
	Code    CatalogErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CatalogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCatalogError constructs a typed catalog error.
func NewCatalogError(code CatalogErrorCode, message string, err error) *CatalogError {
	if message == "" {
		message = string(code)
	}
	return &CatalogError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
