package audit

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Any authenticated principal may submit audit records; only admins may
	// read them back.
	g := api.Group("/audit-logs")
	g.POST("", h.IngestBatch)
	g.POST("/immediate", h.IngestImmediate)
	g.GET("", h.List, auth.RequireRole("admin", "clinic-admin"))
	g.GET("/patient/:id", h.PatientLogs, auth.RequireRole("admin", "clinic-admin"))
}

func identityFrom(c echo.Context) Identity {
	id := Identity{IPAddress: "Unknown", UserAgent: c.Request().UserAgent()}
	if ip := c.RealIP(); ip != "" {
		id.IPAddress = ip
	}
	if claims := auth.ClaimsFromContext(c.Request().Context()); claims != nil {
		id.UserID = claims.Subject
		id.UserEmail = claims.Email
		id.UserName = claims.Name
		id.UserRole = claims.Role
		id.SessionID = claims.ID
	}
	return id
}

func batchErrorResponse(c echo.Context, err error) error {
	var be *BatchError
	if errors.As(err, &be) {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"message": "validation failed",
			"errors":  be.Problems,
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to write audit logs")
}

func (h *Handler) IngestBatch(c echo.Context) error {
	var body struct {
		Logs []Input `json:"logs"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	count, err := h.svc.IngestBatch(c.Request().Context(), body.Logs, identityFrom(c))
	if err != nil {
		return batchErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"count": count})
}

func (h *Handler) IngestImmediate(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rec, err := h.svc.Ingest(c.Request().Context(), in, identityFrom(c))
	if err != nil {
		return batchErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"logId": rec.ID})
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

func filterFromContext(c echo.Context) Filter {
	pg := pagination.FromContext(c)
	return Filter{
		Page:      pg.Page,
		Limit:     pg.Limit,
		EventType: c.QueryParam("eventType"),
		UserID:    c.QueryParam("userId"),
		Risk:      RiskLevel(c.QueryParam("riskLevel")),
		StartDate: parseDate(c.QueryParam("startDate")),
		EndDate:   parseDate(c.QueryParam("endDate")),
		PatientID: c.QueryParam("patientId"),
	}
}

func (h *Handler) List(c echo.Context) error {
	f := filterFromContext(c)
	if f.Risk != "" && !f.Risk.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown risk level")
	}

	recs, total, err := h.svc.List(c.Request().Context(), f, identityFrom(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch audit logs")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, pagination.Params{Page: f.Page, Limit: f.Limit}))
}

// PatientLogs is the patient-scoped slice. The retrieval itself is audited
// as a PATIENT_VIEW event.
func (h *Handler) PatientLogs(c echo.Context) error {
	f := filterFromContext(c)
	f.PatientID = c.Param("id")
	if f.PatientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient id is required")
	}

	recs, total, err := h.svc.List(c.Request().Context(), f, identityFrom(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch audit logs")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, pagination.Params{Page: f.Page, Limit: f.Limit}))
}
