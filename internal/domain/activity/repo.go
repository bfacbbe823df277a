package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows clinic and user log queries. Zero values mean "no
// constraint"; SortBy defaults to timestamp descending.
type Filter struct {
	Page      int
	Limit     int
	Type      Type
	UserID    uuid.UUID
	StartDate time.Time
	EndDate   time.Time
	SortBy    string
	SortOrder string
}

// TypeCount is one row of the per-type stats breakdown.
type TypeCount struct {
	Type  Type  `json:"activityType"`
	Count int64 `json:"count"`
}

// DayBucket is one day of the stats window.
type DayBucket struct {
	Date        string `json:"date"`
	Count       int64  `json:"count"`
	UniqueUsers int64  `json:"uniqueUsers"`
}

// Stats aggregates a clinic's activity over a date window.
type Stats struct {
	Total       int64       `json:"total"`
	UniqueUsers int64       `json:"uniqueUsers"`
	ByType      []TypeCount `json:"byType"`
	Daily       []DayBucket `json:"daily"`
}

// Repository persists activity records. Records are append-only; there is
// no update or delete surface.
type Repository interface {
	Insert(ctx context.Context, r *Record) error
	Recent(ctx context.Context, clinicID uuid.UUID, limit int) ([]Record, error)
	ClinicLogs(ctx context.Context, clinicID uuid.UUID, f Filter) ([]Record, int64, error)
	UserLogs(ctx context.Context, userID uuid.UUID, f Filter) ([]Record, int64, error)
	Stats(ctx context.Context, clinicID uuid.UUID, start, end time.Time) (*Stats, error)
}
