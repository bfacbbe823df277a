package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/domain/activity"
	"github.com/medicore/medicore/internal/domain/otp"
	"github.com/medicore/medicore/internal/domain/principal"
	platauth "github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/password"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account is inactive")
)

// Service wires the principal directory, credential check, OTP engine,
// token manager, and activity logger into the login orchestrations.
type Service struct {
	dir      *principal.Directory
	repo     principal.Repository
	otps     *otp.Service
	tokens   *platauth.TokenManager
	activity *activity.Service
	log      zerolog.Logger
}

func NewService(
	dir *principal.Directory,
	repo principal.Repository,
	otps *otp.Service,
	tokens *platauth.TokenManager,
	act *activity.Service,
	log zerolog.Logger,
) *Service {
	return &Service{
		dir:      dir,
		repo:     repo,
		otps:     otps,
		tokens:   tokens,
		activity: act,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

func subjectFor(p *principal.Principal) platauth.TokenSubject {
	return platauth.TokenSubject{
		ID:       p.ID.String(),
		Email:    p.Email,
		Role:     p.Role,
		Name:     p.Name,
		ClinicID: p.ClinicID.String(),
	}
}

// actorFor builds the activity identity for a principal. Clinic fields fall
// back to the principal itself so a clinician without a clinic assignment
// still produces a complete record.
func actorFor(p *principal.Principal) activity.Actor {
	clinicID := p.ClinicID
	if clinicID == uuid.Nil {
		clinicID = p.ID
	}
	clinicName := p.ClinicName
	if clinicName == "" {
		clinicName = "Unassigned"
	}
	return activity.Actor{
		UserID:     p.ID,
		UserName:   p.Name,
		UserEmail:  p.Email,
		UserRole:   p.Role,
		ClinicID:   clinicID,
		ClinicName: clinicName,
	}
}

// RegisterInput is the clinician self-registration payload.
type RegisterInput struct {
	FullName  string
	Email     string
	Password  string
	Specialty string
	Phone     string
}

// Register creates a clinician account and starts its first session.
func (s *Service) Register(ctx context.Context, in RegisterInput, rc platauth.RequestContext) (*platauth.TokenPair, *principal.Principal, error) {
	email := principal.NormalizeEmail(in.Email)
	if _, err := s.dir.LookupByEmail(ctx, email); err == nil {
		return nil, nil, ErrEmailExists
	} else if !errors.Is(err, principal.ErrNotFound) {
		return nil, nil, err
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, nil, err
	}

	p := &principal.Principal{
		Kind:      principal.KindClinician,
		Email:     email,
		Name:      in.FullName,
		Role:      "doctor",
		Hash:      hash,
		IsActive:  true,
		Specialty: in.Specialty,
		Phone:     in.Phone,
	}
	if err := s.repo.CreateClinician(ctx, p); err != nil {
		return nil, nil, err
	}

	pair, err := s.tokens.GeneratePair(ctx, subjectFor(p))
	if err != nil {
		return nil, nil, err
	}

	s.activity.LogLogin(ctx, actorFor(p), rc.IPAddress, rc.UserAgent, "")
	return pair, p, nil
}

// OTPChallenge describes a pending code issued to the caller.
type OTPChallenge struct {
	Email         string    `json:"email"`
	ExpiresAt     time.Time `json:"expiresAt"`
	TimeRemaining int       `json:"timeRemaining"`
}

func challenge(c *otp.Code) *OTPChallenge {
	return &OTPChallenge{
		Email:         c.Email,
		ExpiresAt:     c.ExpiresAt,
		TimeRemaining: int(time.Until(c.ExpiresAt).Seconds()),
	}
}

// LoginStep1 checks the password and issues a login code. The caller learns
// nothing about whether the email exists beyond the generic credential
// failure.
func (s *Service) LoginStep1(ctx context.Context, email, pass string) (*OTPChallenge, error) {
	p, err := s.dir.LookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrInactive
	}
	if !p.VerifyPassword(pass) {
		return nil, ErrInvalidCredentials
	}

	code, err := s.otps.Issue(ctx, p.Email, otp.PurposeLogin, p.ID)
	if err != nil {
		return nil, err
	}
	return challenge(code), nil
}

// LoginStep2 consumes a login code and mints the session pair.
func (s *Service) LoginStep2(ctx context.Context, email, code string, rc platauth.RequestContext) (*platauth.TokenPair, *principal.Principal, error) {
	email = principal.NormalizeEmail(email)
	verified, err := s.otps.Verify(ctx, email, otp.PurposeLogin, code)
	if err != nil {
		return nil, nil, err
	}
	if err := s.otps.MarkUsed(ctx, verified.ID); err != nil {
		return nil, nil, err
	}

	p, err := s.resolveVerified(ctx, verified, email)
	if err != nil {
		return nil, nil, err
	}
	if !p.IsActive {
		return nil, nil, ErrInactive
	}

	pair, err := s.tokens.GeneratePair(ctx, subjectFor(p))
	if err != nil {
		return nil, nil, err
	}

	s.activity.LogLogin(ctx, actorFor(p), rc.IPAddress, rc.UserAgent, "")
	return pair, p, nil
}

// resolveVerified finds the principal behind a verified code, preferring the
// user id captured at issue time.
func (s *Service) resolveVerified(ctx context.Context, c *otp.Code, email string) (*principal.Principal, error) {
	if c.UserID != uuid.Nil {
		if p, err := s.dir.LookupByID(ctx, c.UserID); err == nil {
			return p, nil
		} else if !errors.Is(err, principal.ErrNotFound) {
			return nil, err
		}
	}
	return s.dir.LookupByEmail(ctx, email)
}

// RequestOTP issues a login code without a prior password check. Unknown
// emails surface as NotFound here, unlike LoginStep1.
func (s *Service) RequestOTP(ctx context.Context, email string) (*OTPChallenge, error) {
	p, err := s.dir.LookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrInactive
	}

	code, err := s.otps.Issue(ctx, p.Email, otp.PurposeLogin, p.ID)
	if err != nil {
		return nil, err
	}
	return challenge(code), nil
}

// ForgotPassword issues a reset code when the account exists. The caller
// always receives the same response whether or not it does.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	p, err := s.dir.LookupByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil
		}
		return err
	}
	if !p.IsActive {
		return ErrInactive
	}

	_, err = s.otps.Issue(ctx, p.Email, otp.PurposePasswordReset, p.ID)
	return err
}

// ResetPassword consumes a reset code and writes the new hash into the
// store matching the principal's kind. All existing sessions are revoked.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string, rc platauth.RequestContext) error {
	email = principal.NormalizeEmail(email)
	verified, err := s.otps.Verify(ctx, email, otp.PurposePasswordReset, code)
	if err != nil {
		return err
	}
	if err := s.otps.MarkUsed(ctx, verified.ID); err != nil {
		return err
	}

	p, err := s.resolveVerified(ctx, verified, email)
	if err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, p, hash); err != nil {
		return err
	}

	if _, err := s.tokens.RevokeAllForUser(ctx, p.ID.String()); err != nil {
		s.log.Error().Err(err).Str("user_id", p.ID.String()).
			Msg("failed to revoke sessions after password reset")
	}

	s.activity.LogPasswordReset(ctx, actorFor(p), rc.IPAddress, rc.UserAgent)
	return nil
}

// Refresh rotates a refresh token. The subject profile is re-resolved from
// the directory so role or clinic changes take effect on rotation.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*platauth.TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, platauth.ErrTokenInvalid
	}
	p, err := s.dir.LookupByID(ctx, id)
	if err != nil {
		if errors.Is(err, principal.ErrNotFound) {
			return nil, platauth.ErrTokenInvalid
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrInactive
	}

	return s.tokens.Rotate(ctx, claims, subjectFor(p))
}

// Logout revokes the presented access token and, when supplied, the refresh
// token. Session duration is approximated from the access token's issue
// time.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string, claims *platauth.Claims, rc platauth.RequestContext) error {
	if err := s.tokens.Revoke(ctx, accessToken); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := s.tokens.Revoke(ctx, refreshToken); err != nil && !errors.Is(err, platauth.ErrTokenInvalid) {
			return err
		}
	}

	var duration *int
	if claims.IssuedAt != nil {
		minutes := int(time.Since(claims.IssuedAt.Time).Minutes())
		duration = &minutes
	}
	s.activity.LogLogout(ctx, s.actorFromClaims(ctx, claims), rc.IPAddress, rc.UserAgent, duration)
	return nil
}

// LogoutAll revokes every tracked session for the caller.
func (s *Service) LogoutAll(ctx context.Context, claims *platauth.Claims, rc platauth.RequestContext) (int, error) {
	n, err := s.tokens.RevokeAllForUser(ctx, claims.Subject)
	if err != nil {
		return 0, err
	}
	s.activity.LogLogout(ctx, s.actorFromClaims(ctx, claims), rc.IPAddress, rc.UserAgent, nil)
	return n, nil
}

// actorFromClaims prefers the directory profile, falling back to the claims
// when the principal row is gone.
func (s *Service) actorFromClaims(ctx context.Context, claims *platauth.Claims) activity.Actor {
	if id, err := uuid.Parse(claims.Subject); err == nil {
		if p, err := s.dir.LookupByID(ctx, id); err == nil {
			return actorFor(p)
		}
	}
	userID, _ := uuid.Parse(claims.Subject)
	clinicID, _ := uuid.Parse(claims.ClinicID)
	if clinicID == uuid.Nil {
		clinicID = userID
	}
	return activity.Actor{
		UserID:     userID,
		UserName:   claims.Name,
		UserEmail:  claims.Email,
		UserRole:   claims.Role,
		ClinicID:   clinicID,
		ClinicName: "Unassigned",
	}
}

// Me returns the caller's directory profile.
func (s *Service) Me(ctx context.Context, claims *platauth.Claims) (*principal.Principal, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, platauth.ErrTokenInvalid
	}
	return s.dir.LookupByID(ctx, id)
}

// SessionInfo is the introspection view of the presented access token.
type SessionInfo struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenID   string    `json:"tokenId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Service) SessionInfo(claims *platauth.Claims) *SessionInfo {
	info := &SessionInfo{
		UserID:  claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info
}

// Stats exposes the session store counters.
func (s *Service) Stats(ctx context.Context) (platauth.SessionStats, error) {
	return s.tokens.Sessions().Stats(ctx)
}
