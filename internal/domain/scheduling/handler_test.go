package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func newContext(e *echo.Echo, method, body string, rec *httptest.ResponseRecorder) echo.Context {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return e.NewContext(req, rec)
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestHandler_Preview(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	body := `{"date":"2026-05-04","start":"09:00","end":"09:40","duration_minutes":15,"rest_minutes":5}`
	c := newContext(e, http.MethodPost, body, rec)

	if err := h.Preview(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sched FacilitySchedule
	if err := json.Unmarshal(rec.Body.Bytes(), &sched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sched.Tokens) != 2 {
		t.Errorf("expected 2 tokens, got %d", len(sched.Tokens))
	}
}

func TestHandler_Preview_BadParams(t *testing.T) {
	h, e := newTestHandler()
	body := `{"date":"2026-05-04","start":"09:00","end":"09:40","duration_minutes":0}`
	c := newContext(e, http.MethodPost, body, httptest.NewRecorder())
	expectStatus(t, h.Preview(c), http.StatusBadRequest)
}

func TestHandler_GenerateSchedule(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := newContext(e, http.MethodPost, `{"start":"09:00","end":"17:00"}`, rec)
	c.SetParamNames("facility_id", "date")
	c.SetParamValues(uuid.New().String(), testDate)

	if err := h.GenerateSchedule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_GenerateSchedule_InvalidFacility(t *testing.T) {
	h, e := newTestHandler()
	c := newContext(e, http.MethodPost, `{"start":"09:00","end":"17:00"}`, httptest.NewRecorder())
	c.SetParamNames("facility_id", "date")
	c.SetParamValues("not-a-uuid", testDate)
	expectStatus(t, h.GenerateSchedule(c), http.StatusBadRequest)
}

func TestHandler_GetSchedule_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := newContext(e, http.MethodGet, "", httptest.NewRecorder())
	c.SetParamNames("facility_id", "date")
	c.SetParamValues(uuid.New().String(), testDate)
	expectStatus(t, h.GetSchedule(c), http.StatusNotFound)
}

func TestHandler_BookAndRelease(t *testing.T) {
	h, e := newTestHandler()
	facility := uuid.New()
	if _, err := h.svc.GenerateSchedule(context.Background(), facility, testDate, fortyMinutes); err != nil {
		t.Fatalf("GenerateSchedule: %v", err)
	}
	params := []string{facility.String(), testDate, "1"}
	names := []string{"facility_id", "date", "sequence"}
	body := `{"appointment_id":"` + uuid.New().String() + `"}`

	rec := httptest.NewRecorder()
	c := newContext(e, http.MethodPost, body, rec)
	c.SetParamNames(names...)
	c.SetParamValues(params...)
	if err := h.BookToken(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = newContext(e, http.MethodPost, body, httptest.NewRecorder())
	c.SetParamNames(names...)
	c.SetParamValues(params...)
	expectStatus(t, h.BookToken(c), http.StatusConflict)

	rec = httptest.NewRecorder()
	c = newContext(e, http.MethodPost, "", rec)
	c.SetParamNames(names...)
	c.SetParamValues(params...)
	if err := h.ReleaseToken(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec = httptest.NewRecorder()
	c = newContext(e, http.MethodGet, "", rec)
	c.SetParamNames("facility_id", "date")
	c.SetParamValues(facility.String(), testDate)
	if err := h.ListAvailable(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var tokens []SlotToken
	json.Unmarshal(rec.Body.Bytes(), &tokens)
	if len(tokens) != 2 {
		t.Errorf("expected 2 available tokens, got %d", len(tokens))
	}
}

func TestHandler_BookToken_BadSequence(t *testing.T) {
	h, e := newTestHandler()
	c := newContext(e, http.MethodPost, `{}`, httptest.NewRecorder())
	c.SetParamNames("facility_id", "date", "sequence")
	c.SetParamValues(uuid.New().String(), testDate, "zero")
	expectStatus(t, h.BookToken(c), http.StatusBadRequest)
}

func TestHandler_BookToken_MissingAppointment(t *testing.T) {
	h, e := newTestHandler()
	facility := uuid.New()
	h.svc.GenerateSchedule(context.Background(), facility, testDate, fortyMinutes)

	c := newContext(e, http.MethodPost, `{}`, httptest.NewRecorder())
	c.SetParamNames("facility_id", "date", "sequence")
	c.SetParamValues(facility.String(), testDate, "1")
	expectStatus(t, h.BookToken(c), http.StatusBadRequest)
}
