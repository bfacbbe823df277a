package auth

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/domain/otp"
	"github.com/medicore/medicore/internal/domain/principal"
	platauth "github.com/medicore/medicore/internal/platform/auth"
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

type Handler struct {
	svc    *Service
	tokens *platauth.TokenManager
}

func NewHandler(svc *Service, tokens *platauth.TokenManager) *Handler {
	return &Handler{svc: svc, tokens: tokens}
}

// RegisterRoutes mounts the public login surface and the bearer-protected
// session endpoints.
func (h *Handler) RegisterRoutes(public *echo.Group) {
	public.POST("/register", h.Register)
	public.POST("/login-step1", h.LoginStep1)
	public.POST("/login-step2", h.LoginStep2)
	public.POST("/request-otp", h.RequestOTP)
	public.POST("/login-otp", h.LoginOTP)
	public.POST("/forgot-password", h.ForgotPassword)
	public.POST("/reset-password", h.ResetPassword)
	public.POST("/refresh", h.Refresh)

	private := public.Group("", platauth.Middleware(h.tokens))
	private.POST("/logout", h.Logout)
	private.POST("/logout-all", h.LogoutAll)
	private.GET("/me", h.Me)
	private.GET("/session-info", h.SessionInfo)
	private.GET("/stats", h.Stats, platauth.RequireRole("admin", "clinic-admin"))
}

// mapError translates service failures into the HTTP error taxonomy. OTP
// failures get specific 400 messages; credential and token failures stay
// deliberately generic.
func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, platauth.ErrTokenMissing),
		errors.Is(err, platauth.ErrTokenInvalid),
		errors.Is(err, platauth.ErrTokenExpired),
		errors.Is(err, platauth.ErrTokenRevoked):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ErrInactive):
		return echo.NewHTTPError(http.StatusForbidden, "account is inactive")
	case errors.Is(err, ErrEmailExists):
		return echo.NewHTTPError(http.StatusBadRequest, "email already registered")
	case errors.Is(err, otp.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests,
			"A code was sent recently. Please wait a minute before requesting another.")
	case errors.Is(err, otp.ErrNoActiveCode):
		return echo.NewHTTPError(http.StatusBadRequest, "no active code for this email")
	case errors.Is(err, otp.ErrExpired):
		return echo.NewHTTPError(http.StatusBadRequest, "code has expired")
	case errors.Is(err, otp.ErrAttemptsExhausted):
		return echo.NewHTTPError(http.StatusBadRequest, "too many failed attempts, request a new code")
	case errors.Is(err, otp.ErrMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, "incorrect code")
	case errors.Is(err, otp.ErrNotVerified):
		return echo.NewHTTPError(http.StatusBadRequest, "code has not been verified")
	case errors.Is(err, principal.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "something went wrong")
	}
}

// sanitize strips the principal down to its public profile shape.
func sanitize(p *principal.Principal) map[string]any {
	out := map[string]any{
		"id":       p.ID,
		"kind":     p.Kind,
		"email":    p.Email,
		"name":     p.Name,
		"role":     p.Role,
		"isActive": p.IsActive,
		"clinicId": p.ClinicID,
	}
	if p.ClinicName != "" {
		out["clinicName"] = p.ClinicName
	}
	if p.Specialty != "" {
		out["specialty"] = p.Specialty
	}
	if p.Phone != "" {
		out["phone"] = p.Phone
	}
	return out
}

func (h *Handler) Register(c echo.Context) error {
	var body struct {
		FullName  string `json:"fullName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Specialty string `json:"specialty"`
		Phone     string `json:"phone"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.FullName == "" || body.Email == "" || len(body.Password) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest,
			"fullName, email and a password of at least 6 characters are required")
	}

	pair, p, err := h.svc.Register(c.Request().Context(), RegisterInput{
		FullName:  body.FullName,
		Email:     body.Email,
		Password:  body.Password,
		Specialty: body.Specialty,
		Phone:     body.Phone,
	}, platauth.RequestContextFrom(c))
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"success":      true,
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
		"user":         sanitize(p),
	})
}

func (h *Handler) LoginStep1(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	ch, err := h.svc.LoginStep1(c.Request().Context(), body.Email, body.Password)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"requiresOTP": true,
		"message":     "A verification code has been sent to your email.",
		"data":        ch,
	})
}

func bindOTPRequest(c echo.Context) (email, code string, err error) {
	var body struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&body); err != nil {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Email == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}
	if !otpPattern.MatchString(body.OTP) {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "otp must be exactly 6 digits")
	}
	return body.Email, body.OTP, nil
}

func (h *Handler) loginWithOTP(c echo.Context) error {
	email, code, err := bindOTPRequest(c)
	if err != nil {
		return err
	}

	pair, p, err := h.svc.LoginStep2(c.Request().Context(), email, code, platauth.RequestContextFrom(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
		"user":         sanitize(p),
	})
}

func (h *Handler) LoginStep2(c echo.Context) error { return h.loginWithOTP(c) }

// LoginOTP is the single-step OTP login: same consumption semantics as
// step 2, reached via /request-otp instead of a password check.
func (h *Handler) LoginOTP(c echo.Context) error { return h.loginWithOTP(c) }

func (h *Handler) RequestOTP(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	ch, err := h.svc.RequestOTP(c.Request().Context(), body.Email)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "A verification code has been sent to your email.",
		"data":    ch,
	})
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email is required")
	}

	if err := h.svc.ForgotPassword(c.Request().Context(), body.Email); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "If an account exists for that email, a reset code has been sent.",
	})
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var body struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Email == "" || !otpPattern.MatchString(body.OTP) {
		return echo.NewHTTPError(http.StatusBadRequest, "email and a 6-digit otp are required")
	}
	if len(body.NewPassword) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "newPassword must be at least 6 characters")
	}

	err := h.svc.ResetPassword(c.Request().Context(), body.Email, body.OTP, body.NewPassword,
		platauth.RequestContextFrom(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Password has been reset. Please sign in again.",
	})
}

func (h *Handler) Refresh(c echo.Context) error {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refreshToken is required")
	}

	pair, err := h.svc.Refresh(c.Request().Context(), body.RefreshToken)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":      true,
		"token":        pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

// refreshTokenFrom pulls an optional refresh token from the body or the
// X-Refresh-Token header.
func refreshTokenFrom(c echo.Context) string {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&body); err == nil && body.RefreshToken != "" {
		return body.RefreshToken
	}
	return strings.TrimSpace(c.Request().Header.Get("X-Refresh-Token"))
}

func (h *Handler) Logout(c echo.Context) error {
	claims := platauth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	accessToken := platauth.ExtractBearer(c.Request().Header.Get("Authorization"))

	err := h.svc.Logout(c.Request().Context(), accessToken, refreshTokenFrom(c), claims,
		platauth.RequestContextFrom(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Signed out.",
	})
}

func (h *Handler) LogoutAll(c echo.Context) error {
	claims := platauth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	n, err := h.svc.LogoutAll(c.Request().Context(), claims, platauth.RequestContextFrom(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":         true,
		"message":         "All sessions signed out.",
		"sessionsRevoked": n,
	})
}

func (h *Handler) Me(c echo.Context) error {
	claims := platauth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	p, err := h.svc.Me(c.Request().Context(), claims)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"user":    sanitize(p),
	})
}

func (h *Handler) SessionInfo(c echo.Context) error {
	claims := platauth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"sessionInfo": h.svc.SessionInfo(claims),
	})
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read session stats")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}
