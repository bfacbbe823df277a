package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the activity logger. All Log* methods are best-effort: a
// validation failure or write error is logged to the process error stream
// and never propagated, so an audit hiccup cannot fail a login.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "activity").Logger(),
	}
}

// Log validates and appends a record. Missing identity fields or an unknown
// activity type drop the record silently (with an error-level log line). A
// panic anywhere below is contained here.
func (s *Service) Log(ctx context.Context, in Input) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("activity write panicked")
		}
	}()

	actor := Actor{
		UserID: in.UserID, UserName: in.UserName, UserEmail: in.UserEmail,
		UserRole: in.UserRole, ClinicID: in.ClinicID, ClinicName: in.ClinicName,
	}
	if !actor.complete() {
		s.log.Error().Str("activity_type", string(in.Type)).
			Msg("activity record dropped: missing required identity fields")
		return
	}
	if !in.Type.Valid() {
		s.log.Error().Str("activity_type", string(in.Type)).
			Msg("activity record dropped: unknown activity type")
		return
	}

	rec := &Record{
		UserID:     in.UserID,
		UserName:   in.UserName,
		UserEmail:  in.UserEmail,
		UserRole:   in.UserRole,
		ClinicID:   in.ClinicID,
		ClinicName: in.ClinicName,
		Type:       in.Type,
		Timestamp:  time.Now().UTC(),
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		Device:     ParseDevice(in.UserAgent),
		Details:    in.Details,
	}
	if rec.IPAddress == "" {
		rec.IPAddress = "Unknown"
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("activity_type", string(in.Type)).
			Msg("activity write failed")
	}
}

func (s *Service) logAs(ctx context.Context, actor Actor, t Type, ip, ua string, d Details) {
	s.Log(ctx, Input{
		UserID: actor.UserID, UserName: actor.UserName, UserEmail: actor.UserEmail,
		UserRole: actor.UserRole, ClinicID: actor.ClinicID, ClinicName: actor.ClinicName,
		Type: t, IPAddress: ip, UserAgent: ua, Details: d,
	})
}

func (s *Service) LogLogin(ctx context.Context, actor Actor, ip, ua, sessionID string) {
	s.logAs(ctx, actor, TypeLogin, ip, ua, Details{SessionID: sessionID})
}

// LogLogout records a logout with the session duration when the caller can
// derive it from the token's issue time.
func (s *Service) LogLogout(ctx context.Context, actor Actor, ip, ua string, durationMinutes *int) {
	s.logAs(ctx, actor, TypeLogout, ip, ua, Details{DurationMinutes: durationMinutes})
}

func (s *Service) LogSessionExpired(ctx context.Context, actor Actor, ip, ua string) {
	s.logAs(ctx, actor, TypeSessionExpired, ip, ua, Details{})
}

// LogForcedLogout attributes the eviction to an admin actor with a reason.
func (s *Service) LogForcedLogout(ctx context.Context, actor Actor, ip, ua, adminName, reason string) {
	s.logAs(ctx, actor, TypeForcedLogout, ip, ua, Details{
		TargetName: adminName,
		Notes:      reason,
	})
}

func (s *Service) LogPasswordReset(ctx context.Context, actor Actor, ip, ua string) {
	s.logAs(ctx, actor, TypePasswordReset, ip, ua, Details{})
}

func (s *Service) LogAppointmentCreated(ctx context.Context, actor Actor, ip, ua string, d Details) {
	s.logAs(ctx, actor, TypeAppointmentCreated, ip, ua, d)
}

func (s *Service) LogAppointmentStatusChanged(ctx context.Context, actor Actor, ip, ua string, d Details) {
	s.logAs(ctx, actor, TypeAppointmentStatusChanged, ip, ua, d)
}

func (s *Service) LogPrescription(ctx context.Context, actor Actor, t Type, ip, ua string, d Details) {
	if t != TypePrescriptionCreated && t != TypePrescriptionUpdated {
		return
	}
	s.logAs(ctx, actor, t, ip, ua, d)
}

// LogStaffChange covers the create/activate/deactivate triples for doctors,
// nurses, and pharmacists.
func (s *Service) LogStaffChange(ctx context.Context, actor Actor, t Type, ip, ua string, targetID uuid.UUID, targetName string) {
	switch t {
	case TypeDoctorCreated, TypeDoctorActivated, TypeDoctorDeactivated,
		TypeNurseCreated, TypeNurseActivated, TypeNurseDeactivated,
		TypePharmacistCreated, TypePharmacistActivated, TypePharmacistDeactivated:
	default:
		return
	}
	s.logAs(ctx, actor, t, ip, ua, Details{
		TargetID:   targetID.String(),
		TargetName: targetName,
	})
}

func (s *Service) LogTeleconsultation(ctx context.Context, actor Actor, t Type, ip, ua string, d Details) {
	if t != TypeTeleconsultationCreated && t != TypeTeleconsultationCompleted {
		return
	}
	s.logAs(ctx, actor, t, ip, ua, d)
}

func (s *Service) LogInvoice(ctx context.Context, actor Actor, t Type, ip, ua string, d Details) {
	if t != TypeInvoiceCreated && t != TypeInvoiceUpdated {
		return
	}
	s.logAs(ctx, actor, t, ip, ua, d)
}

func (s *Service) LogReferral(ctx context.Context, actor Actor, t Type, ip, ua string, d Details) {
	if t != TypeReferralCreated && t != TypeReferralCompleted {
		return
	}
	s.logAs(ctx, actor, t, ip, ua, d)
}

// Query surface. Unlike the Log methods these return errors to the caller.

func (s *Service) Recent(ctx context.Context, clinicID uuid.UUID, limit int) ([]Record, error) {
	return s.repo.Recent(ctx, clinicID, limit)
}

func (s *Service) ClinicLogs(ctx context.Context, clinicID uuid.UUID, f Filter) ([]Record, int64, error) {
	return s.repo.ClinicLogs(ctx, clinicID, f)
}

func (s *Service) UserLogs(ctx context.Context, userID uuid.UUID, f Filter) ([]Record, int64, error) {
	return s.repo.UserLogs(ctx, userID, f)
}

// Stats aggregates over the requested window, defaulting to the last 14
// days when no window is given.
func (s *Service) Stats(ctx context.Context, clinicID uuid.UUID, start, end time.Time) (*Stats, error) {
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -14)
	}
	return s.repo.Stats(ctx, clinicID, start, end)
}
