package firestore

import (
	"errors"
	"testing"
	"time"

	"github.com/packhouse/api/internal/platform/pagination"
)

func TestPlanCursorStartAfterRestoresTimestamp(t *testing.T) {
	createdAt := time.Date(2026, 8, 12, 9, 30, 0, 123456789, time.UTC)
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{createdAt.Format(time.RFC3339Nano), "PLAN02"},
	})
	if err != nil {
		t.Fatalf("encode token: %v", err)
	}

	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		t.Fatalf("decode token: %v", err)
	}
	values, err := planCursorStartAfter(cursor)
	if err != nil {
		t.Fatalf("planCursorStartAfter: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("expected two cursor values, got %d", len(values))
	}
	// The createdAt value must come back as a time.Time so it compares inside
	// the timestamp ordering of the createdAt field, not as a string.
	got, ok := values[0].(time.Time)
	if !ok {
		t.Fatalf("expected time.Time cursor value, got %T", values[0])
	}
	if !got.Equal(createdAt) {
		t.Fatalf("expected %v, got %v", createdAt, got)
	}
	if values[1] != "PLAN02" {
		t.Fatalf("expected document id cursor value, got %v", values[1])
	}
}

func TestPlanCursorStartAfterEmptyCursor(t *testing.T) {
	values, err := planCursorStartAfter(pagination.Cursor{})
	if err != nil {
		t.Fatalf("planCursorStartAfter: %v", err)
	}
	if values != nil {
		t.Fatalf("expected nil values, got %v", values)
	}
}

func TestPlanCursorStartAfterRejectsMalformedValues(t *testing.T) {
	cases := []struct {
		name       string
		startAfter []any
	}{
		{"non-string createdAt", []any{42, "PLAN02"}},
		{"unparsable createdAt", []any{"yesterday", "PLAN02"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := planCursorStartAfter(pagination.Cursor{StartAfter: tc.startAfter})
			if !errors.Is(err, pagination.ErrInvalidPageToken) {
				t.Fatalf("expected ErrInvalidPageToken, got %v", err)
			}
		})
	}
}
