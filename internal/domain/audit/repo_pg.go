package audit

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

const auditCols = `id, event_type, risk_level, sensitivity_level, timestamp,
	user_id, user_email, user_name, user_role, session_id, ip_address,
	user_agent, url, details, encrypted, encryption_version, encrypted_at`

func insertArgs(rec *Record) ([]any, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return nil, fmt.Errorf("marshal audit details: %w", err)
	}
	return []any{
		rec.ID, rec.EventType, rec.Risk, rec.Sensitivity, rec.Timestamp,
		rec.UserID, rec.UserEmail, rec.UserName, rec.UserRole, rec.SessionID,
		rec.IPAddress, rec.UserAgent, rec.URL, details,
		rec.Encrypted, rec.EncryptionVersion, rec.EncryptedAt,
	}, nil
}

const insertSQL = `INSERT INTO audit_log
	(id, event_type, risk_level, sensitivity_level, timestamp,
	 user_id, user_email, user_name, user_role, session_id, ip_address,
	 user_agent, url, details, encrypted, encryption_version, encrypted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

func (r *RepoPG) Insert(ctx context.Context, rec *Record) error {
	args, err := insertArgs(rec)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (r *RepoPG) InsertBatch(ctx context.Context, recs []*Record) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit batch: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, rec := range recs {
		args, err := insertArgs(rec)
		if err != nil {
			return err
		}
		batch.Queue(insertSQL, args...)
	}

	br := tx.SendBatch(ctx, batch)
	for range recs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("audit batch insert: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("audit batch close: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *RepoPG) List(ctx context.Context, f Filter) ([]Record, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}

	conds := []string{"TRUE"}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.EventType != "" {
		add("event_type = $%d", f.EventType)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Risk != "" {
		add("risk_level = $%d", f.Risk)
	}
	if !f.StartDate.IsZero() {
		add("timestamp >= $%d", f.StartDate)
	}
	if !f.EndDate.IsZero() {
		add("timestamp <= $%d", f.EndDate)
	}
	if f.PatientID != "" {
		add("details->>'patientId' = $%d", f.PatientID)
	}
	where := "WHERE " + strings.Join(conds, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	q := fmt.Sprintf("SELECT %s FROM audit_log %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d",
		auditCols, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		var details []byte
		var encAt *time.Time
		err := rows.Scan(
			&rec.ID, &rec.EventType, &rec.Risk, &rec.Sensitivity, &rec.Timestamp,
			&rec.UserID, &rec.UserEmail, &rec.UserName, &rec.UserRole, &rec.SessionID,
			&rec.IPAddress, &rec.UserAgent, &rec.URL, &details,
			&rec.Encrypted, &rec.EncryptionVersion, &encAt,
		)
		if err != nil {
			return nil, 0, err
		}
		rec.EncryptedAt = encAt
		if len(details) > 0 {
			if err := json.Unmarshal(details, &rec.Details); err != nil {
				return nil, 0, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}
