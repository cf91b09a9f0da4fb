package review

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Prism-Clinical/prism-graphql-sub003/internal/platform/auth"
	"github.com/Prism-Clinical/prism-graphql-sub003/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleReviewer))
	g.GET("/review-queue", h.ListItems)
	g.GET("/review-queue/mine", h.MyQueue)
	g.GET("/review-queue/overdue", h.OverdueItems)
	g.GET("/review-queue/:id", h.GetItem)
	g.POST("/review-queue/:id/assign", h.AssignItem)
	g.POST("/review-queue/:id/resolve", h.ResolveItem)
	g.POST("/review-queue/:id/escalate", h.EscalateItem)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) ListItems(c echo.Context) error {
	var filter ListFilter
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		filter.PatientID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		s := ItemStatus(v)
		if !s.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		filter.Status = &s
	}
	if v := c.QueryParam("priority"); v != "" {
		p := Priority(v)
		if !p.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid priority")
		}
		filter.Priority = &p
	}
	if v := c.QueryParam("assigned_to"); v != "" {
		filter.AssignedTo = &v
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListItems(c.Request().Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) MyQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	assignee := auth.UserIDFromContext(c.Request().Context())
	items, total, err := h.svc.MyQueue(c.Request().Context(), assignee, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) OverdueItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.OverdueItems(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

type assignRequest struct {
	Assignee string `json:"assignee"`
}

func (h *Handler) AssignItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Assignee == "" {
		// No explicit assignee: the caller takes the item.
		req.Assignee = auth.UserIDFromContext(c.Request().Context())
	}

	item, err := h.svc.Assign(c.Request().Context(), id, req.Assignee)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

type resolveRequest struct {
	Decision ItemStatus `json:"decision"`
	Notes    *string    `json:"notes,omitempty"`
}

func (h *Handler) ResolveItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resolvedBy := auth.UserIDFromContext(c.Request().Context())
	item, err := h.svc.Resolve(c.Request().Context(), id, req.Decision, resolvedBy, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) EscalateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req escalateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	escalatedBy := auth.UserIDFromContext(c.Request().Context())
	item, err := h.svc.Escalate(c.Request().Context(), id, req.Reason, escalatedBy)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}
