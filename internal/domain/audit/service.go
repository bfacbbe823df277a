package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/hipaa"
)

// Identity is the authenticated caller whose fields overwrite whatever the
// client put in the record. Clients cannot audit as someone else.
type Identity struct {
	UserID    string
	UserEmail string
	UserName  string
	UserRole  string
	SessionID string
	IPAddress string
	UserAgent string
}

// sensitiveDetailKeys are the details map entries encrypted at rest.
var sensitiveDetailKeys = []string{"patientName", "searchQuery", "fileName"}

// MaxBatchSize bounds one batch ingestion call.
const MaxBatchSize = 50

// Service is the audit pipeline: validation, identity stamping, field
// encryption, persistence, and decrypting retrieval.
type Service struct {
	repo Repository
	enc  *hipaa.EncryptionService
	log  zerolog.Logger
	now  func() time.Time
}

func NewService(repo Repository, enc *hipaa.EncryptionService, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		enc:  enc,
		log:  log.With().Str("component", "audit").Logger(),
		now:  time.Now,
	}
}

func validateInput(in Input, index int) []string {
	var problems []string
	prefix := fmt.Sprintf("Log %d: ", index)
	if in.EventType == "" {
		problems = append(problems, prefix+"eventType is required")
	}
	if in.Risk == "" {
		problems = append(problems, prefix+"riskLevel is required")
	} else if !in.Risk.Valid() {
		problems = append(problems, prefix+"riskLevel must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}
	if in.Sensitivity == "" {
		problems = append(problems, prefix+"sensitivityLevel is required")
	} else if !in.Sensitivity.Valid() {
		problems = append(problems, prefix+"sensitivityLevel must be one of INTERNAL, CONFIDENTIAL, RESTRICTED")
	}
	return problems
}

// build stamps identity and timestamp onto a validated input and encrypts
// the sensitive fields.
func (s *Service) build(in Input, id Identity) (*Record, error) {
	rec := &Record{
		ID:          uuid.New(),
		EventType:   in.EventType,
		Risk:        in.Risk,
		Sensitivity: in.Sensitivity,
		Timestamp:   s.now().UTC(),
		UserID:      id.UserID,
		UserEmail:   id.UserEmail,
		UserName:    id.UserName,
		UserRole:    id.UserRole,
		SessionID:   in.SessionID,
		IPAddress:   id.IPAddress,
		UserAgent:   id.UserAgent,
		URL:         in.URL,
		Details:     in.Details,
	}
	if rec.SessionID == "" {
		rec.SessionID = id.SessionID
	}
	if err := s.encryptRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) encryptRecord(rec *Record) error {
	if !s.enc.IsEnabled() {
		return nil
	}

	for _, field := range []*string{&rec.UserEmail, &rec.UserName, &rec.IPAddress, &rec.UserAgent} {
		if *field == "" {
			continue
		}
		ct, err := s.enc.EncryptField(*field)
		if err != nil {
			return fmt.Errorf("encrypt audit field: %w", err)
		}
		*field = ct
	}

	for _, key := range sensitiveDetailKeys {
		v, ok := rec.Details[key].(string)
		if !ok || v == "" {
			continue
		}
		ct, err := s.enc.EncryptField(v)
		if err != nil {
			return fmt.Errorf("encrypt audit detail %s: %w", key, err)
		}
		rec.Details[key] = ct
	}

	now := s.now().UTC()
	rec.Encrypted = true
	rec.EncryptionVersion = EncryptionVersion
	rec.EncryptedAt = &now
	return nil
}

// decryptRecord reverses encryptRecord for records carrying the marker.
// Decryption failure on a single field poisons the whole record read, which
// is the safe direction for audit data.
func (s *Service) decryptRecord(rec *Record) error {
	if !rec.Encrypted {
		return nil
	}

	for _, field := range []*string{&rec.UserEmail, &rec.UserName, &rec.IPAddress, &rec.UserAgent} {
		if *field == "" {
			continue
		}
		pt, err := s.enc.DecryptField(*field)
		if err != nil {
			return fmt.Errorf("decrypt audit field: %w", err)
		}
		*field = pt
	}

	for _, key := range sensitiveDetailKeys {
		v, ok := rec.Details[key].(string)
		if !ok || v == "" {
			continue
		}
		pt, err := s.enc.DecryptField(v)
		if err != nil {
			return fmt.Errorf("decrypt audit detail %s: %w", key, err)
		}
		rec.Details[key] = pt
	}

	rec.Encrypted = false
	rec.EncryptionVersion = ""
	rec.EncryptedAt = nil
	return nil
}

// IngestBatch validates and writes 1 to 50 records atomically. Any
// record-level validation failure rejects the whole batch with the indexed
// problem list. A BULK_OPERATION meta record follows a successful insert.
func (s *Service) IngestBatch(ctx context.Context, inputs []Input, id Identity) (int, error) {
	if len(inputs) == 0 {
		return 0, &BatchError{Problems: []string{"at least one log is required"}}
	}
	if len(inputs) > MaxBatchSize {
		return 0, &BatchError{Problems: []string{fmt.Sprintf("batch exceeds %d logs", MaxBatchSize)}}
	}

	var problems []string
	for i, in := range inputs {
		problems = append(problems, validateInput(in, i)...)
	}
	if len(problems) > 0 {
		return 0, &BatchError{Problems: problems}
	}

	recs := make([]*Record, 0, len(inputs))
	for _, in := range inputs {
		rec, err := s.build(in, id)
		if err != nil {
			return 0, err
		}
		recs = append(recs, rec)
	}

	if err := s.repo.InsertBatch(ctx, recs); err != nil {
		return 0, err
	}

	s.logMeta(ctx, id, Input{
		EventType:   EventBulkOperation,
		Risk:        RiskLow,
		Sensitivity: SensitivityInternal,
		Details: map[string]any{
			"count":   len(recs),
			"batchId": uuid.NewString(),
		},
	})
	return len(recs), nil
}

// Ingest writes a single high-priority record synchronously.
func (s *Service) Ingest(ctx context.Context, in Input, id Identity) (*Record, error) {
	if problems := validateInput(in, 0); len(problems) > 0 {
		return nil, &BatchError{Problems: problems}
	}
	rec, err := s.build(in, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// List retrieves records newest-first, decrypted in flight. A patient-scoped
// query emits a PATIENT_VIEW meta record attributed to the requester.
func (s *Service) List(ctx context.Context, f Filter, id Identity) ([]Record, int64, error) {
	recs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	for i := range recs {
		if err := s.decryptRecord(&recs[i]); err != nil {
			return nil, 0, err
		}
	}

	if f.PatientID != "" {
		s.logMeta(ctx, id, Input{
			EventType:   EventPatientView,
			Risk:        RiskMedium,
			Sensitivity: SensitivityConfidential,
			Details:     map[string]any{"patientId": f.PatientID},
		})
	}
	return recs, total, nil
}

// logMeta writes a pipeline-generated record. Best effort: failures are
// logged and never propagated.
func (s *Service) logMeta(ctx context.Context, id Identity, in Input) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("audit meta write panicked")
		}
	}()
	rec, err := s.build(in, id)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", in.EventType).Msg("audit meta build failed")
		return
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("event_type", in.EventType).Msg("audit meta write failed")
	}
}
