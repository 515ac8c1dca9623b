package eligibility

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/eligibility/vitals", h.EvaluateVitals)
	api.POST("/eligibility/hemoglobin", h.EvaluateHemoglobin)

	api.GET("/screenings/:appointment_id", h.GetScreening)
	api.POST("/screenings/:appointment_id/vitals", h.RecordVitals)
	api.POST("/screenings/:appointment_id/hemoglobin", h.RecordHemoglobin)
	api.POST("/screenings/:appointment_id/accept", h.AcceptDonor)
}

type recordVitalsRequest struct {
	VitalsInput
	DonorID *uuid.UUID `json:"donor_id,omitempty"`
}

type hemoglobinRequest struct {
	ValueGL *float64 `json:"value_gl"`
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrScreeningNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrScreeningLocked):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotEligible):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrIncompleteVitals), errors.Is(err, ErrMissingAppointment):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func appointmentParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("appointment_id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid appointment_id")
	}
	return id, nil
}

// EvaluateVitals handles POST /eligibility/vitals. It never persists and
// reports incomplete input as status "incomplete" rather than an error.
func (h *Handler) EvaluateVitals(c echo.Context) error {
	var in VitalsInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.AssessVitals(in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// EvaluateHemoglobin handles POST /eligibility/hemoglobin.
func (h *Handler) EvaluateHemoglobin(c echo.Context) error {
	var req hemoglobinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ValueGL == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "value_gl is required")
	}
	v, err := h.svc.EvaluateHemoglobin(*req.ValueGL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetScreening(c echo.Context) error {
	id, err := appointmentParam(c)
	if err != nil {
		return err
	}
	sc, err := h.svc.GetScreening(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}

func (h *Handler) RecordVitals(c echo.Context) error {
	id, err := appointmentParam(c)
	if err != nil {
		return err
	}
	var req recordVitalsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sc, a, err := h.svc.RecordVitals(c.Request().Context(), id, req.DonorID, req.VitalsInput)
	if errors.Is(err, ErrIncompleteVitals) {
		return echo.NewHTTPError(http.StatusBadRequest, a)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"screening":  sc,
		"assessment": a,
	})
}

func (h *Handler) RecordHemoglobin(c echo.Context) error {
	id, err := appointmentParam(c)
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

	sc, v, err := h.svc.RecordHemoglobin(c.Request().Context(), id, *req.ValueGL)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"screening": sc,
		"verdict":   v,
	})
}

func (h *Handler) AcceptDonor(c echo.Context) error {
	id, err := appointmentParam(c)
	if err != nil {
		return err
	}
	sc, err := h.svc.AcceptDonor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sc)
}
