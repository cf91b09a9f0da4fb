package safety

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/auth"
	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/validator"
	"github.com/Prism-Clinical/prism-graphql-sub003/pkg/pagination"
)

type Handler struct {
	svc  *Service
	orch *Orchestrator
}

func NewHandler(svc *Service, orch *Orchestrator) *Handler {
	return &Handler{svc: svc, orch: orch}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleReviewer))
	readGroup.GET("/safety-checks", h.ListChecks)
	readGroup.GET("/safety-checks/:id", h.GetCheck)
	readGroup.GET("/patients/:id/active-alerts", h.ActiveAlerts)

	writeGroup := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse))
	writeGroup.POST("/safety-checks/:id/override", h.OverrideCheck)
	writeGroup.POST("/patients/:id/validate-safety", h.ValidateSafety)
	writeGroup.POST("/patients/:id/detect-anomalies", h.DetectAnomalies)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotOverridable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func filterFromQuery(c echo.Context) (ListFilter, error) {
	var filter ListFilter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		filter.PatientID = &id
	}
	if v := c.QueryParam("encounter_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid encounter_id")
		}
		filter.EncounterID = &id
	}
	if v := c.QueryParam("check_type"); v != "" {
		t := CheckType(v)
		if !t.Valid() {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid check_type")
		}
		filter.CheckType = &t
	}
	if v := c.QueryParam("status"); v != "" {
		s := CheckStatus(v)
		if !s.Valid() {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		filter.Status = &s
	}
	if v := c.QueryParam("severity"); v != "" {
		s := Severity(v)
		if !s.Valid() {
			return filter, echo.NewHTTPError(http.StatusBadRequest, "invalid severity")
		}
		filter.Severity = &s
	}
	return filter, nil
}

func (h *Handler) ListChecks(c echo.Context) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	if pg.Cursor != "" || c.QueryParams().Has("cursor") {
		checks, next, err := h.svc.ListChecksAfter(c.Request().Context(), filter, pg.Cursor, pg.Limit)
		if err != nil {
			return httpError(err)
		}
		resp := &pagination.Response{Data: checks, Limit: pg.Limit, NextCursor: next, HasMore: next != ""}
		resp.Total = len(checks)
		return c.JSON(http.StatusOK, resp)
	}

	checks, total, err := h.svc.ListChecks(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(checks, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetCheck(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	check, err := h.svc.GetCheck(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, check)
}

type overrideRequest struct {
	Reason         OverrideReason `json:"reason"`
	Justification  string         `json:"justification"`
	ExpiresInHours *int           `json:"expires_in_hours,omitempty"`
}

func (h *Handler) OverrideCheck(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	overriddenBy := auth.UserIDFromContext(c.Request().Context())
	check, err := h.svc.OverrideCheck(c.Request().Context(), id, req.Reason, req.Justification, req.ExpiresInHours, overriddenBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, check)
}

func (h *Handler) ActiveAlerts(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	alerts, err := h.svc.ActiveAlerts(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, alerts)
}

type validateRequest struct {
	EncounterID     *uuid.UUID                 `json:"encounter_id,omitempty"`
	PatientContext  validator.PatientContext   `json:"patient_context"`
	Recommendations []validator.Recommendation `json:"recommendations"`
	CheckTypes      []CheckType                `json:"check_types,omitempty"`
}

func (r validateRequest) validate() error {
	for _, t := range r.CheckTypes {
		if !t.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid check_type "+string(t))
		}
	}
	return nil
}

func (h *Handler) ValidateSafety(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx := c.Request().Context()
	outcome, err := h.orch.ValidateAndGenerateChecks(ctx, patientID, req.EncounterID, req.PatientContext, req.Recommendations, req.CheckTypes)
	if err != nil {
		return httpError(err)
	}
	if len(outcome.Checks) > 0 {
		h.svc.InvalidateActiveAlerts(ctx, patientID)
	}
	return c.JSON(http.StatusOK, outcome)
}

func (h *Handler) DetectAnomalies(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx := c.Request().Context()
	outcome, err := h.orch.DetectAnomalies(ctx, patientID, req.EncounterID, req.PatientContext, req.Recommendations, req.CheckTypes)
	if err != nil {
		return httpError(err)
	}
	if len(outcome.Checks) > 0 {
		h.svc.InvalidateActiveAlerts(ctx, patientID)
	}
	return c.JSON(http.StatusOK, outcome)
}
