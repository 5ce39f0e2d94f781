package claims

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/claims/claims/internal/platform/auth"
)

type Handler struct {
	svc     *Service
	reports *ReportService
}

func NewHandler(svc *Service, reports *ReportService) *Handler {
	return &Handler{svc: svc, reports: reports}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	// Read endpoints – billing, reporter
	readGroup := g.Group("", auth.RequireRole(auth.RoleBilling, auth.RoleReporter))
	readGroup.GET("/claims/:id", h.GetClaim)
	readGroup.GET("/claims/reference/:reference", h.GetClaimByReference)
	readGroup.GET("/providers/top", h.TopProviders)

	// Write endpoints – billing
	writeGroup := g.Group("", auth.RequireRole(auth.RoleBilling))
	writeGroup.POST("/claims", h.CreateClaim)
}

func (h *Handler) CreateClaim(c echo.Context) error {
	var req CreateClaimRequest
	if err := c.Bind(&req); err != nil {
		// Errors raised while reading the body (413 from the size limit) keep
		// their status.
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code != http.StatusBadRequest {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	claim, err := h.svc.ProcessClaim(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, claim)
}

func (h *Handler) GetClaim(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	claim, err := h.svc.GetClaim(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) GetClaimByReference(c echo.Context) error {
	ref := c.Param("reference")
	if ref == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid reference")
	}
	claim, err := h.svc.GetClaimByReference(c.Request().Context(), ref)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, claim)
}

func (h *Handler) TopProviders(c echo.Context) error {
	limit := DefaultTopProvidersLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
		limit = n
	}
	items, err := h.reports.TopProviders(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// httpError maps domain errors onto HTTP responses. Storage faults are not
// echoed to the client; the logger middleware records the internal error.
func httpError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		body := map[string]interface{}{
			"message": verr.Error(),
			"field":   verr.Field,
			"rule":    verr.Rule,
		}
		if verr.Line >= 0 {
			body["line"] = verr.Line
		}
		return echo.NewHTTPError(http.StatusBadRequest, body).SetInternal(err)
	case errors.Is(err, ErrDuplicateReference):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidLimit):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
