package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestHealthHandler_Health(t *testing.T) {
	h := &HealthHandler{Started: time.Now().Add(-90 * time.Second), Log: discardLogger()}
	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "OK" {
		t.Errorf("status: %v", out["status"])
	}
	if up, ok := out["uptime"].(float64); !ok || up < 90 || up != float64(int64(up)) {
		t.Errorf("uptime should be whole seconds >= 90, got %v", out["uptime"])
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()
	h := &HealthHandler{Started: time.Now(), DB: conn, Log: discardLogger()}

	mock.ExpectPing()
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("ready: got %d, want 200", rr.Code)
	}

	mock.ExpectPing().WillReturnError(errors.New("down"))
	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("ready: got %d, want 503", rr.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
