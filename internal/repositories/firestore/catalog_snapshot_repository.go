package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/packhouse/api/internal/domain"
	pfirestore "github.com/packhouse/api/internal/platform/firestore"
	"github.com/packhouse/api/internal/repositories"
)

const (
	catalogSnapshotsCollection = "catalogSnapshots"
	latestSnapshotDocID        = "latest"
)

// CatalogSnapshotRepository keeps the most recent catalog fetch in a single
// well-known document so plan builds can fall back to it during source outages.
type CatalogSnapshotRepository struct {
	base *pfirestore.BaseRepository[domain.CatalogSnapshot]
}

// NewCatalogSnapshotRepository constructs a Firestore-backed snapshot repository.
func NewCatalogSnapshotRepository(provider *pfirestore.Provider) (*CatalogSnapshotRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog snapshot repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.CatalogSnapshot) (any, error) {
		return encodeSnapshotDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.CatalogSnapshot, error) {
		var doc catalogSnapshotDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CatalogSnapshot{}, err
		}
		return decodeSnapshotDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.CatalogSnapshot](provider, catalogSnapshotsCollection, encoder, decoder)
	return &CatalogSnapshotRepository{base: base}, nil
}

// Save overwrites the latest snapshot.
func (r *CatalogSnapshotRepository) Save(ctx context.Context, snapshot domain.CatalogSnapshot) error {
	if r == nil || r.base == nil {
		return errors.New("catalog snapshot repository not initialised")
	}
	if len(snapshot.Products) == 0 {
		return errors.New("catalog snapshot repository: snapshot has no products")
	}
	if _, err := r.base.Set(ctx, latestSnapshotDocID, snapshot); err != nil {
		return err
	}
	return nil
}

// Latest returns the most recently saved snapshot. A missing document is
// reported as a CatalogError with the snapshot-not-found code.
func (r *CatalogSnapshotRepository) Latest(ctx context.Context) (domain.CatalogSnapshot, error) {
	if r == nil || r.base == nil {
		return domain.CatalogSnapshot{}, errors.New("catalog snapshot repository not initialised")
	}
	doc, err := r.base.Get(ctx, latestSnapshotDocID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.CatalogSnapshot{}, repositories.NewCatalogError(
				repositories.CatalogErrorSnapshotNotFound,
				"no catalog snapshot has been persisted",
				err,
			)
		}
		return domain.CatalogSnapshot{}, err
	}
	return doc.Data, nil
}

func encodeSnapshotDocument(snapshot domain.CatalogSnapshot) catalogSnapshotDocument {
	products := make([]catalogProductDocument, 0, len(snapshot.Products))
	for _, product := range snapshot.Products {
		products = append(products, catalogProductDocument{
			Name:            product.Name,
			Identifier:      product.Identifier,
			NetWeight:       product.NetWeightRaw,
			SplitInto:       product.SplitInto,
			FulfillmentCode: product.FulfillmentCode,
			PacketSize:      product.PacketSize,
			PacketUsed:      product.PacketUsed,
			MRP:             product.MRP,
			RegulatoryCode:  product.RegulatoryCode,
		})
	}
	return catalogSnapshotDocument{
		Source:    strings.TrimSpace(snapshot.Source),
		FetchedAt: snapshot.FetchedAt.UTC(),
		Products:  products,
	}
}

func decodeSnapshotDocument(doc catalogSnapshotDocument) domain.CatalogSnapshot {
	products := make([]domain.CatalogProduct, 0, len(doc.Products))
	for _, product := range doc.Products {
		products = append(products, domain.CatalogProduct{
			Name:            product.Name,
			Identifier:      product.Identifier,
			NetWeightRaw:    product.NetWeight,
			SplitInto:       product.SplitInto,
			FulfillmentCode: product.FulfillmentCode,
			PacketSize:      product.PacketSize,
			PacketUsed:      product.PacketUsed,
			MRP:             product.MRP,
			RegulatoryCode:  product.RegulatoryCode,
		})
	}
	return domain.CatalogSnapshot{
		Source:    doc.Source,
		FetchedAt: doc.FetchedAt.UTC(),
		Products:  products,
	}
}

type catalogSnapshotDocument struct {
	Source    string                   `firestore:"source"`
	FetchedAt time.Time                `firestore:"fetchedAt"`
	Products  []catalogProductDocument `firestore:"products"`
}

type catalogProductDocument struct {
	Name            string `firestore:"name"`
	Identifier      string `firestore:"identifier"`
	NetWeight       string `firestore:"netWeight,omitempty"`
	SplitInto       string `firestore:"splitInto,omitempty"`
	FulfillmentCode string `firestore:"fulfillmentCode,omitempty"`
	PacketSize      string `firestore:"packetSize,omitempty"`
	PacketUsed      string `firestore:"packetUsed,omitempty"`
	MRP             string `firestore:"mrp,omitempty"`
	RegulatoryCode  string `firestore:"regulatoryCode,omitempty"`
}

var _ repositories.CatalogSnapshotRepository = (*CatalogSnapshotRepository)(nil)
