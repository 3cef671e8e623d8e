package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubChecker — заглушка ReadinessChecker с фиксированным ответом.
type stubChecker struct {
	status  string
	message string
}

func (s *stubChecker) CheckReady() (string, string) {
	return s.status, s.message
}

// TestHealthLive проверяет liveness probe.
func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, ожидался 'ok'", resp["status"])
	}
	if resp["service"] != "fileshare" {
		t.Errorf("service = %v, ожидался 'fileshare'", resp["service"])
	}
}

// TestHealthReady_AllOK проверяет readiness при доступных зависимостях.
func TestHealthReady_AllOK(t *testing.T) {
	h := NewHealthHandler(
		&stubChecker{status: "ok", message: "подключение активно"},
		&stubChecker{status: "ok", message: "bucket доступен"},
	)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Checks struct {
			PostgreSQL  struct{ Status string } `json:"postgresql"`
			ObjectStore struct{ Status string } `json:"object_store"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, ожидался 'ok'", resp.Status)
	}
	if resp.Checks.PostgreSQL.Status != "ok" || resp.Checks.ObjectStore.Status != "ok" {
		t.Errorf("checks = %+v, ожидались оба 'ok'", resp.Checks)
	}
}

// TestHealthReady_StoreFail проверяет 503 при недоступном хранилище.
func TestHealthReady_StoreFail(t *testing.T) {
	h := NewHealthHandler(
		&stubChecker{status: "ok"},
		&stubChecker{status: "fail", message: "хранилище недоступно"},
	)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, ожидался 503", rec.Code)
	}
}

// TestHealthReady_NilCheckers проверяет readiness без инициализированных проверок.
func TestHealthReady_NilCheckers(t *testing.T) {
	h := NewHealthHandler(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, ожидался 503", rec.Code)
	}
}

// TestOverallStatus проверяет агрегацию статусов зависимостей.
func TestOverallStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []string
		want     string
	}{
		{"все ok", []string{"ok", "ok"}, "ok"},
		{"есть degraded", []string{"ok", "degraded"}, "degraded"},
		{"есть fail", []string{"ok", "fail"}, "fail"},
		{"fail важнее degraded", []string{"degraded", "fail"}, "fail"},
	}

	for _, tc := range cases {
		if got := overallStatus(tc.statuses...); got != tc.want {
			t.Errorf("%s: overallStatus = %q, ожидалось %q", tc.name, got, tc.want)
		}
	}
}
