// handler.go — основной обработчик API fileshare.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/gofileshare/internal/service"
)

// APIHandler — основной обработчик API fileshare.
type APIHandler struct {
	files            *service.FileService
	health           *HealthHandler
	maxUploadSize    int64
	bufferedDownload bool
	logger           *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUploadSize — лимит размера тела загрузки в байтах (0 — без лимита).
// bufferedDownload — буферизовать содержимое во временный файл перед отдачей
// (ранний 404/502 вместо оборванного потока ценой диска и latency).
func NewAPIHandler(
	files *service.FileService,
	health *HealthHandler,
	maxUploadSize int64,
	bufferedDownload bool,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		files:            files,
		health:           health,
		maxUploadSize:    maxUploadSize,
		bufferedDownload: bufferedDownload,
		logger:           logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit, offset *int) (limitVal, offsetVal int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}
