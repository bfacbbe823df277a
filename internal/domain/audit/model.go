package audit

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RiskLevel grades how dangerous an audited action is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// SensitivityLevel grades the data the audited action touched.
type SensitivityLevel string

const (
	SensitivityInternal     SensitivityLevel = "INTERNAL"
	SensitivityConfidential SensitivityLevel = "CONFIDENTIAL"
	SensitivityRestricted   SensitivityLevel = "RESTRICTED"
)

func (s SensitivityLevel) Valid() bool {
	switch s {
	case SensitivityInternal, SensitivityConfidential, SensitivityRestricted:
		return true
	}
	return false
}

// Meta event types the pipeline emits about itself.
const (
	EventPatientView   = "PATIENT_VIEW"
	EventBulkOperation = "BULK_OPERATION"
)

// EncryptionVersion tags the cipher parameters a stored record was written
// with, so a future rotation can tell generations apart.
const EncryptionVersion = "1"

// Record is one audit event. Details is an open map; a fixed set of its
// keys is treated as sensitive and encrypted at rest along with the
// top-level identity fields.
type Record struct {
	ID          uuid.UUID        `json:"id"`
	EventType   string           `json:"eventType"`
	Risk        RiskLevel        `json:"riskLevel"`
	Sensitivity SensitivityLevel `json:"sensitivityLevel"`
	Timestamp   time.Time        `json:"timestamp"`
	UserID      string           `json:"userId"`
	UserEmail   string           `json:"userEmail"`
	UserName    string           `json:"userName"`
	UserRole    string           `json:"userRole"`
	SessionID   string           `json:"sessionId,omitempty"`
	IPAddress   string           `json:"ipAddress"`
	UserAgent   string           `json:"userAgent"`
	URL         string           `json:"url,omitempty"`
	Details     map[string]any   `json:"details,omitempty"`

	// Encryption markers. Set at write time, stripped from responses.
	Encrypted         bool       `json:"-"`
	EncryptionVersion string     `json:"-"`
	EncryptedAt       *time.Time `json:"-"`
}

// Input is the client-supplied shape for one record. The identity fields
// are overwritten from the authenticated context before persistence.
type Input struct {
	EventType   string           `json:"eventType"`
	Risk        RiskLevel        `json:"riskLevel"`
	Sensitivity SensitivityLevel `json:"sensitivityLevel"`
	SessionID   string           `json:"sessionId"`
	URL         string           `json:"url"`
	Details     map[string]any   `json:"details"`
}

var ErrInvalidBatch = errors.New("invalid audit batch")

// BatchError carries the per-record validation failures that rejected a
// batch. No partial write happens.
type BatchError struct {
	Problems []string
}

func (e *BatchError) Error() string {
	if len(e.Problems) == 0 {
		return "audit batch rejected"
	}
	return e.Problems[0]
}

func (e *BatchError) Unwrap() error { return ErrInvalidBatch }
