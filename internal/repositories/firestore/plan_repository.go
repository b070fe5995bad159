package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/packhouse/api/internal/domain"
	pfirestore "github.com/packhouse/api/internal/platform/firestore"
	"github.com/packhouse/api/internal/platform/pagination"
	"github.com/packhouse/api/internal/repositories"
)

const plansCollection = "packingPlans"

// PlanRepository persists packing plans with their rows and diagnostic issues.
type PlanRepository struct {
	base *pfirestore.BaseRepository[domain.PackingPlan]
}

// NewPlanRepository constructs a Firestore-backed plan repository.
func NewPlanRepository(provider *pfirestore.Provider) (*PlanRepository, error) {
	if provider == nil {
		return nil, errors.New("plan repository: firestore provider is required")
	}

	encoder := func(ctx context.Context, value domain.PackingPlan) (any, error) {
		return encodePlanDocument(value), nil
	}
	decoder := func(ctx context.Context, snap *firestore.DocumentSnapshot) (domain.PackingPlan, error) {
		var doc planDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.PackingPlan{}, err
		}
		doc.ID = snap.Ref.ID
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = snap.CreateTime
		}
		return decodePlanDocument(doc), nil
	}

	base := pfirestore.NewBaseRepository[domain.PackingPlan](provider, plansCollection, encoder, decoder)
	return &PlanRepository{base: base}, nil
}

// Insert stores a new plan document. Plans are immutable once written.
func (r *PlanRepository) Insert(ctx context.Context, plan domain.PackingPlan) error {
	if r == nil || r.base == nil {
		return errors.New("plan repository not initialised")
	}
	plan.ID = strings.TrimSpace(plan.ID)
	if plan.ID == "" {
		return errors.New("plan repository: id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, plan.ID)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodePlanDocument(plan)); err != nil {
		return pfirestore.WrapError("packing_plans.insert", err)
	}
	return nil
}

// FindByID loads a plan by its identifier.
func (r *PlanRepository) FindByID(ctx context.Context, planID string) (domain.PackingPlan, error) {
	if r == nil || r.base == nil {
		return domain.PackingPlan{}, errors.New("plan repository not initialised")
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return domain.PackingPlan{}, errors.New("plan repository: id is required")
	}
	doc, err := r.base.Get(ctx, planID)
	if err != nil {
		return domain.PackingPlan{}, err
	}
	return doc.Data, nil
}

// List returns plans newest first, filtered and paged per the filter.
func (r *PlanRepository) List(ctx context.Context, filter repositories.PlanListFilter) (domain.CursorPage[domain.PackingPlan], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.PackingPlan]{}, errors.New("plan repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	if pageSize > pagination.DefaultMaxPageSize {
		pageSize = pagination.DefaultMaxPageSize
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.PackingPlan]{}, err
	}
	startAfter, err := planCursorStartAfter(cursor)
	if err != nil {
		return domain.CursorPage[domain.PackingPlan]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if createdBy := strings.TrimSpace(filter.CreatedBy); createdBy != "" {
			q = q.Where("createdBy", "==", createdBy)
		}
		if filter.CreatedAfter != nil {
			q = q.Where("createdAt", ">", filter.CreatedAfter.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(startAfter) > 0 {
			q = q.StartAfter(startAfter...)
		}
		// Fetch one extra document to detect whether another page exists.
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.PackingPlan]{}, err
	}

	page := domain.CursorPage[domain.PackingPlan]{}
	for i, doc := range docs {
		if i == pageSize {
			break
		}
		page.Items = append(page.Items, doc.Data)
	}

	if len(docs) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt.UTC().Format(time.RFC3339Nano), last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.PackingPlan]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

// planCursorStartAfter rebuilds the typed StartAfter values from a decoded
// page token. The createdAt cursor value travels through the token as an
// RFC3339Nano string, but the query orders on a Firestore timestamp field and
// Firestore sorts strings and timestamps in disjoint type groups, so the raw
// string must become a time.Time again before it reaches StartAfter.
func planCursorStartAfter(cursor pagination.Cursor) ([]any, error) {
	if len(cursor.StartAfter) == 0 {
		return nil, nil
	}
	raw, ok := cursor.StartAfter[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: createdAt cursor value", pagination.ErrInvalidPageToken)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pagination.ErrInvalidPageToken, err)
	}
	values := make([]any, 0, len(cursor.StartAfter))
	values = append(values, createdAt)
	values = append(values, cursor.StartAfter[1:]...)
	return values, nil
}

func encodePlanDocument(plan domain.PackingPlan) planDocument {
	rows := make([]planRowDocument, 0, len(plan.Rows))
	for _, row := range plan.Rows {
		rows = append(rows, planRowDocument{
			DisplayName:     row.DisplayName,
			LabelName:       row.LabelName,
			Weight:          row.Weight,
			PacketSize:      row.PacketSize,
			PacketUsed:      row.PacketUsed,
			Identifier:      row.Identifier,
			MRP:             row.MRP,
			FulfillmentCode: row.FulfillmentCode,
			RegulatoryCode:  row.RegulatoryCode,
			Status:          string(row.Status),
			IsSplit:         row.IsSplit,
			Quantity:        row.Quantity,
		})
	}

	issues := make([]planIssueDocument, 0, len(plan.Issues))
	for _, issue := range plan.Issues {
		issues = append(issues, planIssueDocument{
			Identifier:  issue.Identifier,
			Kind:        string(issue.Kind),
			ProductName: issue.ProductName,
			SplitInfo:   issue.SplitInfo,
			Detail:      issue.Detail,
			Quantity:    issue.Quantity,
		})
	}

	return planDocument{
		CreatedAt: plan.CreatedAt.UTC(),
		CreatedBy: strings.TrimSpace(plan.CreatedBy),
		Source:    strings.TrimSpace(plan.Source),
		Note:      plan.Note,
		LineCount: plan.LineCount,
		Rows:      rows,
		Issues:    issues,
	}
}

func decodePlanDocument(doc planDocument) domain.PackingPlan {
	rows := make([]domain.PhysicalRow, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		rows = append(rows, domain.PhysicalRow{
			DisplayName:     row.DisplayName,
			LabelName:       row.LabelName,
			Weight:          row.Weight,
			PacketSize:      row.PacketSize,
			PacketUsed:      row.PacketUsed,
			Identifier:      row.Identifier,
			MRP:             row.MRP,
			FulfillmentCode: row.FulfillmentCode,
			RegulatoryCode:  row.RegulatoryCode,
			Status:          domain.RowStatus(row.Status),
			IsSplit:         row.IsSplit,
			Quantity:        row.Quantity,
		})
	}

	issues := make([]domain.MissingIssue, 0, len(doc.Issues))
	for _, issue := range doc.Issues {
		issues = append(issues, domain.MissingIssue{
			Identifier:  issue.Identifier,
			Kind:        domain.IssueKind(issue.Kind),
			ProductName: issue.ProductName,
			SplitInfo:   issue.SplitInfo,
			Detail:      issue.Detail,
			Quantity:    issue.Quantity,
		})
	}

	return domain.PackingPlan{
		ID:        doc.ID,
		CreatedAt: doc.CreatedAt.UTC(),
		CreatedBy: doc.CreatedBy,
		Source:    doc.Source,
		Note:      doc.Note,
		LineCount: doc.LineCount,
		Rows:      rows,
		Issues:    issues,
	}
}

type planDocument struct {
	ID        string              `firestore:"-"`
	CreatedAt time.Time           `firestore:"createdAt"`
	CreatedBy string              `firestore:"createdBy"`
	Source    string              `firestore:"source,omitempty"`
	Note      string              `firestore:"note,omitempty"`
	LineCount int                 `firestore:"lineCount"`
	Rows      []planRowDocument   `firestore:"rows"`
	Issues    []planIssueDocument `firestore:"issues,omitempty"`
}

type planRowDocument struct {
	DisplayName     string `firestore:"displayName"`
	LabelName       string `firestore:"labelName"`
	Weight          string `firestore:"weight"`
	PacketSize      string `firestore:"packetSize,omitempty"`
	PacketUsed      string `firestore:"packetUsed,omitempty"`
	Identifier      string `firestore:"identifier"`
	MRP             string `firestore:"mrp,omitempty"`
	FulfillmentCode string `firestore:"fulfillmentCode"`
	RegulatoryCode  string `firestore:"regulatoryCode,omitempty"`
	Status          string `firestore:"status"`
	IsSplit         bool   `firestore:"isSplit"`
	Quantity        int    `firestore:"quantity"`
}

type planIssueDocument struct {
	Identifier  string `firestore:"identifier"`
	Kind        string `firestore:"kind"`
	ProductName string `firestore:"productName,omitempty"`
	SplitInfo   string `firestore:"splitInfo,omitempty"`
	Detail      string `firestore:"detail,omitempty"`
	Quantity    int    `firestore:"quantity"`
}

var _ repositories.PlanRepository = (*PlanRepository)(nil)
