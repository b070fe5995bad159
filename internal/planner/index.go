package planner

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/packhouse/api/internal/domain"
)

// ErrCatalogLoad indicates the supplied catalog is unusable: it is either
// empty or no row exposes an identifier. This is the only fatal condition in
// the engine; every downstream guarantee depends on a usable index.
var ErrCatalogLoad = errors.New("planner: catalog unusable")

type nameWeightKey struct {
	name   string
	weight string
}

// CatalogIndex provides the two lookups resolution needs: identifier to
// product, and (name, normalized weight) to product rows for split-variant
// matching. An index is immutable once built and safe for concurrent readers.
type CatalogIndex struct {
	byIdentifier    map[string]domain.CatalogProduct
	byNameAndWeight map[nameWeightKey][]domain.CatalogProduct
}

// BuildIndex constructs a CatalogIndex from the raw catalog rows. Duplicate
// identifiers keep the first occurrence in load order; later duplicates are
// ignored, not errored. Rows sharing a (name, weight) pair are all retained
// in load order so split expansion can address them individually.
func BuildIndex(products []domain.CatalogProduct) (*CatalogIndex, error) {
	idx := &CatalogIndex{
		byIdentifier:    make(map[string]domain.CatalogProduct, len(products)),
		byNameAndWeight: make(map[nameWeightKey][]domain.CatalogProduct, len(products)),
	}

	for _, product := range products {
		identifier := strings.TrimSpace(product.Identifier)
		if !IsEmptyToken(identifier) {
			if _, ok := idx.byIdentifier[identifier]; !ok {
				idx.byIdentifier[identifier] = product
			}
		}

		key := nameWeightKey{
			name:   strings.TrimSpace(product.Name),
			weight: NormalizeWeight(product.NetWeightRaw),
		}
		idx.byNameAndWeight[key] = append(idx.byNameAndWeight[key], product)
	}

	if len(idx.byIdentifier) == 0 {
		return nil, fmt.Errorf("%w: no catalog row exposes an identifier", ErrCatalogLoad)
	}
	return idx, nil
}

// LookupByIdentifier returns the product registered under the identifier.
func (idx *CatalogIndex) LookupByIdentifier(identifier string) (domain.CatalogProduct, bool) {
	product, ok := idx.byIdentifier[strings.TrimSpace(identifier)]
	return product, ok
}

// LookupVariant returns the first catalog row matching the product name and
// weight token exactly, after weight normalization on both sides.
func (idx *CatalogIndex) LookupVariant(name, weightToken string) (domain.CatalogProduct, bool) {
	matches := idx.VariantMatches(name, weightToken)
	if len(matches) == 0 {
		return domain.CatalogProduct{}, false
	}
	return matches[0], true
}

// VariantMatches returns every catalog row matching the product name and
// weight token, in catalog load order. Callers must not mutate the slice.
func (idx *CatalogIndex) VariantMatches(name, weightToken string) []domain.CatalogProduct {
	key := nameWeightKey{
		name:   strings.TrimSpace(name),
		weight: NormalizeWeight(weightToken),
	}
	return idx.byNameAndWeight[key]
}

// Size reports how many distinct identifiers the index holds.
func (idx *CatalogIndex) Size() int {
	return len(idx.byIdentifier)
}
