package activity

import (
	"time"

	"github.com/google/uuid"
)

// Type is the closed set of recordable activities. Unknown types are
// rejected at the service boundary.
type Type string

const (
	TypeLogin          Type = "login"
	TypeLogout         Type = "logout"
	TypeSessionExpired Type = "session_expired"
	TypeForcedLogout   Type = "forced_logout"
	TypePasswordReset  Type = "password_reset"

	TypeAppointmentCreated       Type = "appointment_created"
	TypeAppointmentStatusChanged Type = "appointment_status_changed"

	TypePrescriptionCreated Type = "prescription_created"
	TypePrescriptionUpdated Type = "prescription_updated"

	TypeDoctorCreated         Type = "doctor_created"
	TypeDoctorActivated       Type = "doctor_activated"
	TypeDoctorDeactivated     Type = "doctor_deactivated"
	TypeNurseCreated          Type = "nurse_created"
	TypeNurseActivated        Type = "nurse_activated"
	TypeNurseDeactivated      Type = "nurse_deactivated"
	TypePharmacistCreated     Type = "pharmacist_created"
	TypePharmacistActivated   Type = "pharmacist_activated"
	TypePharmacistDeactivated Type = "pharmacist_deactivated"

	TypeTeleconsultationCreated   Type = "teleconsultation_created"
	TypeTeleconsultationCompleted Type = "teleconsultation_completed"

	TypeInvoiceCreated Type = "invoice_created"
	TypeInvoiceUpdated Type = "invoice_updated"

	TypeReferralCreated   Type = "referral_created"
	TypeReferralCompleted Type = "referral_completed"
)

var knownTypes = map[Type]bool{
	TypeLogin: true, TypeLogout: true, TypeSessionExpired: true,
	TypeForcedLogout: true, TypePasswordReset: true,
	TypeAppointmentCreated: true, TypeAppointmentStatusChanged: true,
	TypePrescriptionCreated: true, TypePrescriptionUpdated: true,
	TypeDoctorCreated: true, TypeDoctorActivated: true, TypeDoctorDeactivated: true,
	TypeNurseCreated: true, TypeNurseActivated: true, TypeNurseDeactivated: true,
	TypePharmacistCreated: true, TypePharmacistActivated: true, TypePharmacistDeactivated: true,
	TypeTeleconsultationCreated: true, TypeTeleconsultationCompleted: true,
	TypeInvoiceCreated: true, TypeInvoiceUpdated: true,
	TypeReferralCreated: true, TypeReferralCompleted: true,
}

func (t Type) Valid() bool { return knownTypes[t] }

// DeviceInfo is the coarse fingerprint parsed from the user agent.
type DeviceInfo struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
}

// Details carries the per-type optional attributes of a record. Absent
// fields are omitted from storage and responses.
type Details struct {
	SessionID       string     `json:"sessionId,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty"`
	TargetID        string     `json:"targetEntityId,omitempty"`
	TargetName      string     `json:"targetEntityName,omitempty"`
	PatientID       string     `json:"patientId,omitempty"`
	DoctorID        string     `json:"doctorId,omitempty"`
	PrescriptionID  string     `json:"prescriptionId,omitempty"`
	InvoiceID       string     `json:"invoiceId,omitempty"`
	InvoiceAmount   *float64   `json:"invoiceAmount,omitempty"`
	ReferralID      string     `json:"referralId,omitempty"`
	ReferralType    string     `json:"referralType,omitempty"` // inbound or outbound
	AppointmentID   string     `json:"appointmentId,omitempty"`
	AppointmentDate string     `json:"appointmentDate,omitempty"`
	AppointmentTime string     `json:"appointmentTime,omitempty"`
	AppointmentType string     `json:"appointmentType,omitempty"`
	OldStatus       string     `json:"oldStatus,omitempty"`
	NewStatus       string     `json:"newStatus,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// Record is an immutable activity event.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"userId"`
	UserName   string     `json:"userName"`
	UserEmail  string     `json:"userEmail"`
	UserRole   string     `json:"userRole"`
	ClinicID   uuid.UUID  `json:"clinicId"`
	ClinicName string     `json:"clinicName"`
	Type       Type       `json:"activityType"`
	Timestamp  time.Time  `json:"timestamp"`
	IPAddress  string     `json:"ipAddress"`
	UserAgent  string     `json:"userAgent"`
	Device     DeviceInfo `json:"deviceInfo"`
	Details    Details    `json:"details"`
}

// Input is the write-side shape handed to the logger.
type Input struct {
	UserID     uuid.UUID
	UserName   string
	UserEmail  string
	UserRole   string
	ClinicID   uuid.UUID
	ClinicName string
	Type       Type
	IPAddress  string
	UserAgent  string
	Details    Details
}

// Actor bundles the identity fields every record requires. Orchestrations
// build one from the resolved principal or the verified claims.
type Actor struct {
	UserID     uuid.UUID
	UserName   string
	UserEmail  string
	UserRole   string
	ClinicID   uuid.UUID
	ClinicName string
}

func (a Actor) complete() bool {
	return a.UserID != uuid.Nil && a.UserName != "" && a.UserEmail != "" &&
		a.UserRole != "" && a.ClinicID != uuid.Nil && a.ClinicName != ""
}
