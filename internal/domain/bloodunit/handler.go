package bloodunit

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/domain/eligibility"
	"github.com/bloodbank/bloodbank/internal/domain/serology"
	"github.com/bloodbank/bloodbank/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/blood-units")
	g.POST("", h.CreateUnit)
	g.GET("", h.ListUnits)
	g.GET("/:id", h.GetUnit)
	g.GET("/:id/readiness", h.Readiness)
	g.POST("/:id/tests/:test_id", h.RecordTestResult)
	g.POST("/:id/blood-group", h.RecordBloodGroup)
	g.POST("/:id/hemoglobin", h.RecordHemoglobin)
	g.POST("/:id/finalize", h.Finalize)
}

type createUnitRequest struct {
	DonorID       *uuid.UUID `json:"donor_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type testResultRequest struct {
	Status TestStatus `json:"status"`
}

type hemoglobinRequest struct {
	ValueGL *float64 `json:"value_gl"`
}

type finalizeRequest struct {
	Decision Decision `json:"decision"`
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUnitNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrResultConflict), errors.Is(err, ErrAlreadyFinalized):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrCompulsoryIncomplete), errors.Is(err, ErrCompulsoryFailure):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrUnknownTest), errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidDecision), errors.Is(err, ErrInvalidFilter),
		errors.Is(err, serology.ErrIncompletePanel), errors.Is(err, serology.ErrInvalidReaction),
		errors.Is(err, eligibility.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func unitParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateUnit(c echo.Context) error {
	var req createUnitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u := &BloodUnit{DonorID: req.DonorID, AppointmentID: req.AppointmentID}
	if err := h.svc.CreateUnit(c.Request().Context(), u); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUnit(c echo.Context) error {
	id, err := unitParam(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUnit(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

// ListUnits handles GET /blood-units?status=pending&limit=20&offset=0.
func (h *Handler) ListUnits(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListUnits(c.Request().Context(), UnitStatus(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Readiness(c echo.Context) error {
	id, err := unitParam(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Readiness(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) RecordTestResult(c echo.Context) error {
	id, err := unitParam(c)
	if err != nil {
		return err
	}
	var req testResultRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.RecordTestResult(c.Request().Context(), id, c.Param("test_id"), req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

// RecordBloodGroup handles POST /blood-units/:id/blood-group with a reagent
// panel body.
func (h *Handler) RecordBloodGroup(c echo.Context) error {
	id, err := unitParam(c)
	if err != nil {
		return err
	}
	var panel serology.ReagentPanel
	if err := c.Bind(&panel); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, res, err := h.svc.RecordBloodGroup(c.Request().Context(), id, panel)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"unit":       u,
		"blood_type": res,
	})
}

func (h *Handler) RecordHemoglobin(c echo.Context) error {
	id, err := unitParam(c)
	if err != nil {
		return err
	}
	var req hemoglobinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ValueGL == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "value_gl is required")
	}
	u, v, err := h.svc.RecordHemoglobin(c.Request().Context(), id, *req.ValueGL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"unit":    u,
		"verdict": v,
	})
}

func (h *Handler) Finalize(c echo.Context) error {
	id, err := unitParam(c)
	if err != nil {
		return err
	}
	var req finalizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.Finalize(c.Request().Context(), id, req.Decision)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}
