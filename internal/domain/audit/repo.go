package audit

import (
	"context"
	"time"
)

// Filter narrows audit retrieval. Zero values mean "no constraint".
type Filter struct {
	Page      int
	Limit     int
	EventType string
	UserID    string
	Risk      RiskLevel
	StartDate time.Time
	EndDate   time.Time
	PatientID string
}

// Repository persists audit records. Records arrive already encrypted;
// the repository never sees plaintext sensitive fields.
type Repository interface {
	// InsertBatch writes all records in one transaction. All or nothing.
	InsertBatch(ctx context.Context, recs []*Record) error
	Insert(ctx context.Context, rec *Record) error
	List(ctx context.Context, f Filter) ([]Record, int64, error)
}
