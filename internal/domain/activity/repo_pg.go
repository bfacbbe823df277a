package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const recordCols = `id, user_id, user_name, user_email, user_role, clinic_id, clinic_name,
	activity_type, timestamp, ip_address, user_agent, device_info, details`

func (r *RepoPG) Insert(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	device, err := json.Marshal(rec.Device)
	if err != nil {
		return fmt.Errorf("marshal device info: %w", err)
	}
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO activity_log
		(id, user_id, user_name, user_email, user_role, clinic_id, clinic_name,
		 activity_type, timestamp, ip_address, user_agent, device_info, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.UserID, rec.UserName, rec.UserEmail, rec.UserRole,
		rec.ClinicID, rec.ClinicName, rec.Type, rec.Timestamp,
		rec.IPAddress, rec.UserAgent, device, details)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		var rec Record
		var device, details []byte
		err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.UserName, &rec.UserEmail, &rec.UserRole,
			&rec.ClinicID, &rec.ClinicName, &rec.Type, &rec.Timestamp,
			&rec.IPAddress, &rec.UserAgent, &device, &details,
		)
		if err != nil {
			return nil, err
		}
		if len(device) > 0 {
			if err := json.Unmarshal(device, &rec.Device); err != nil {
				return nil, fmt.Errorf("unmarshal device info: %w", err)
			}
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &rec.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RepoPG) Recent(ctx context.Context, clinicID uuid.UUID, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	q := fmt.Sprintf(`SELECT %s FROM activity_log
		WHERE clinic_id = $1 ORDER BY timestamp DESC LIMIT $2`, recordCols)
	rows, err := r.pool.Query(ctx, q, clinicID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return scanRecords(rows)
}

// sortColumns whitelists client-supplied sort keys.
var sortColumns = map[string]string{
	"timestamp":     "timestamp",
	"activityType":  "activity_type",
	"activity_type": "activity_type",
	"userName":      "user_name",
	"user_name":     "user_name",
}

func (f Filter) normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	return f
}

func (f Filter) orderClause() string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "timestamp"
	}
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s", col, dir)
}

func (r *RepoPG) query(ctx context.Context, conds []string, args []any, f Filter) ([]Record, int64, error) {
	f = f.normalize()
	where := "WHERE " + strings.Join(conds, " AND ")

	var total int64
	countQ := "SELECT COUNT(*) FROM activity_log " + where
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM activity_log %s %s LIMIT $%d OFFSET $%d",
		recordCols, where, f.orderClause(), len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func appendFilter(conds []string, args []any, f Filter) ([]string, []any) {
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("activity_type = $%d", len(args)))
	}
	if f.UserID != uuid.Nil {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if !f.StartDate.IsZero() {
		args = append(args, f.StartDate)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !f.EndDate.IsZero() {
		args = append(args, f.EndDate)
		conds = append(conds, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	return conds, args
}

func (r *RepoPG) ClinicLogs(ctx context.Context, clinicID uuid.UUID, f Filter) ([]Record, int64, error) {
	conds := []string{"clinic_id = $1"}
	args := []any{clinicID}
	conds, args = appendFilter(conds, args, f)
	return r.query(ctx, conds, args, f)
}

func (r *RepoPG) UserLogs(ctx context.Context, userID uuid.UUID, f Filter) ([]Record, int64, error) {
	conds := []string{"user_id = $1"}
	args := []any{userID}
	f.UserID = uuid.Nil
	conds, args = appendFilter(conds, args, f)
	return r.query(ctx, conds, args, f)
}

func (r *RepoPG) Stats(ctx context.Context, clinicID uuid.UUID, start, end time.Time) (*Stats, error) {
	stats := &Stats{ByType: []TypeCount{}, Daily: []DayBucket{}}

	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT user_id)
		FROM activity_log
		WHERE clinic_id = $1 AND timestamp >= $2 AND timestamp <= $3`,
		clinicID, start, end).Scan(&stats.Total, &stats.UniqueUsers)
	if err != nil {
		return nil, fmt.Errorf("activity stats: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT activity_type, COUNT(*)
		FROM activity_log
		WHERE clinic_id = $1 AND timestamp >= $2 AND timestamp <= $3
		GROUP BY activity_type ORDER BY COUNT(*) DESC`,
		clinicID, start, end)
	if err != nil {
		return nil, fmt.Errorf("activity stats by type: %w", err)
	}
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.Type, &tc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByType = append(stats.ByType, tc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `SELECT to_char(timestamp::date, 'YYYY-MM-DD'),
			COUNT(*), COUNT(DISTINCT user_id)
		FROM activity_log
		WHERE clinic_id = $1 AND timestamp >= $2 AND timestamp <= $3
		GROUP BY timestamp::date ORDER BY timestamp::date`,
		clinicID, start, end)
	if err != nil {
		return nil, fmt.Errorf("activity stats daily: %w", err)
	}
	for rows.Next() {
		var b DayBucket
		if err := rows.Scan(&b.Date, &b.Count, &b.UniqueUsers); err != nil {
			rows.Close()
			return nil, err
		}
		stats.Daily = append(stats.Daily, b)
	}
	rows.Close()
	return stats, rows.Err()
}
