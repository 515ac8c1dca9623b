package scheduling

import (
	"errors"
	"net/http"
	"strconv"

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
	api.POST("/schedules/preview", h.Preview)

	g := api.Group("/facilities/:facility_id/schedules/:date")
	g.POST("", h.GenerateSchedule)
	g.GET("", h.GetSchedule)
	g.GET("/available", h.ListAvailable)
	g.POST("/tokens/:sequence/book", h.BookToken)
	g.POST("/tokens/:sequence/release", h.ReleaseToken)
}

type previewRequest struct {
	Date string `json:"date"`
	WindowRequest
}

type bookRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrScheduleNotFound), errors.Is(err, ErrTokenNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTokenUnavailable), errors.Is(err, ErrTokenNotBooked), errors.Is(err, ErrScheduleHasBookings):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidScheduleParams), errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidClock):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func facilityParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("facility_id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid facility_id")
	}
	return id, nil
}

func sequenceParam(c echo.Context) (int, error) {
	seq, err := strconv.Atoi(c.Param("sequence"))
	if err != nil || seq < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid sequence")
	}
	return seq, nil
}

// Preview handles POST /schedules/preview. Nothing is stored.
func (h *Handler) Preview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, err := h.svc.Preview(req.Date, req.WindowRequest)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) GenerateSchedule(c echo.Context) error {
	facilityID, err := facilityParam(c)
	if err != nil {
		return err
	}
	var req WindowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, err := h.svc.GenerateSchedule(c.Request().Context(), facilityID, c.Param("date"), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sched)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	facilityID, err := facilityParam(c)
	if err != nil {
		return err
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), facilityID, c.Param("date"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) ListAvailable(c echo.Context) error {
	facilityID, err := facilityParam(c)
	if err != nil {
		return err
	}
	tokens, err := h.svc.ListAvailable(c.Request().Context(), facilityID, c.Param("date"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tokens)
}

func (h *Handler) BookToken(c echo.Context) error {
	facilityID, err := facilityParam(c)
	if err != nil {
		return err
	}
	seq, err := sequenceParam(c)
	if err != nil {
		return err
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.BookToken(c.Request().Context(), facilityID, c.Param("date"), seq, req.AppointmentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ReleaseToken(c echo.Context) error {
	facilityID, err := facilityParam(c)
	if err != nil {
		return err
	}
	seq, err := sequenceParam(c)
	if err != nil {
		return err
	}
	t, err := h.svc.ReleaseToken(c.Request().Context(), facilityID, c.Param("date"), seq)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, t)
}
