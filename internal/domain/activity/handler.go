package activity

import (
	"net/http"
	"time"

	"github.com/google/uuid"
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
	g := api.Group("/activity", auth.RequireRole("admin", "clinic-admin"))
	g.GET("/recent", h.Recent)
	g.GET("/logs", h.ClinicLogs)
	g.GET("/users/:id", h.UserLogs)
	g.GET("/stats", h.ClinicStats)
}

// requesterClinic resolves the clinic a query is scoped to. Clinic-admins
// are always pinned to their own clinic; a platform admin may pass
// clinicId explicitly.
func requesterClinic(c echo.Context) (uuid.UUID, error) {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
	}
	if claims.Role == "clinic-admin" {
		id, err := uuid.Parse(claims.ClinicID)
		if err != nil {
			return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "no clinic scope")
		}
		return id, nil
	}
	id, err := uuid.Parse(c.QueryParam("clinicId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "clinicId is required")
	}
	return id, nil
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
	f := Filter{
		Page:      pg.Page,
		Limit:     pg.Limit,
		Type:      Type(c.QueryParam("activityType")),
		StartDate: parseDate(c.QueryParam("startDate")),
		EndDate:   parseDate(c.QueryParam("endDate")),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
	}
	if id, err := uuid.Parse(c.QueryParam("userId")); err == nil {
		f.UserID = id
	}
	return f
}

func (h *Handler) Recent(c echo.Context) error {
	clinicID, err := requesterClinic(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	recs, err := h.svc.Recent(c.Request().Context(), clinicID, pg.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch activity")
	}
	return c.JSON(http.StatusOK, map[string]any{"data": recs})
}

func (h *Handler) ClinicLogs(c echo.Context) error {
	clinicID, err := requesterClinic(c)
	if err != nil {
		return err
	}
	f := filterFromContext(c)
	if f.Type != "" && !f.Type.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown activity type")
	}

	recs, total, err := h.svc.ClinicLogs(c.Request().Context(), clinicID, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch activity")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, pagination.Params{Page: f.Page, Limit: f.Limit}))
}

func (h *Handler) UserLogs(c echo.Context) error {
	if _, err := requesterClinic(c); err != nil {
		return err
	}
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	f := filterFromContext(c)
	recs, total, err := h.svc.UserLogs(c.Request().Context(), userID, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to fetch activity")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, pagination.Params{Page: f.Page, Limit: f.Limit}))
}

func (h *Handler) ClinicStats(c echo.Context) error {
	clinicID, err := requesterClinic(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.Stats(c.Request().Context(),
		clinicID, parseDate(c.QueryParam("startDate")), parseDate(c.QueryParam("endDate")))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute stats")
	}
	return c.JSON(http.StatusOK, stats)
}
