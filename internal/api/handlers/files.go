// files.go — обработчики загрузки, скачивания и удаления файлов.
// POST /api/v1/upload        — multipart-загрузка (поле "files", несколько файлов)
// GET  /{prefix}/{name}      — публичное скачивание по адресу
// DELETE /api/v1/files/{id}  — удаление по идентификатору записи
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	apierrors "github.com/bigkaa/gofileshare/internal/api/errors"
	"github.com/bigkaa/gofileshare/internal/api/middleware"
	"github.com/bigkaa/gofileshare/internal/domain/model"
	"github.com/bigkaa/gofileshare/internal/drive"
	"github.com/bigkaa/gofileshare/internal/service"
)

// Prometheus-метрики download.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_downloads_total",
		Help: "Общее количество запросов на скачивание (по статусу).",
	}, []string{"status"})

	downloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fs_download_duration_seconds",
		Help:    "Длительность скачивания (от запроса до завершения streaming).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_download_bytes_total",
		Help: "Общее количество переданных байт при скачивании.",
	})

	activeDownloads = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fs_active_downloads",
		Help: "Количество активных (in-progress) скачиваний.",
	})
)

// Параметры multipart-парсинга.
const (
	// multipartMaxMemory — порог буферизации частей в памяти,
	// остальное уходит во временные файлы.
	multipartMaxMemory = 32 << 20 // 32 MiB
	// uploadConcurrency — максимум параллельных загрузок в хранилище
	// в рамках одного запроса.
	uploadConcurrency = 4
	// multipartFieldName — имя поля формы с файлами.
	multipartFieldName = "files"
)

// uploadResponse — ответ POST /api/v1/upload.
type uploadResponse struct {
	Files []*model.FileRecord `json:"files"`
}

// HandleUpload — реализация POST /api/v1/upload.
// Принимает multipart/form-data с одним или несколькими файлами в поле "files".
// Файлы загружаются параллельно; ошибка любого файла отменяет остальные
// загрузки запроса (уже созданные записи других файлов остаются).
func (h *APIHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.PayloadTooLarge(w, "Превышен максимальный размер загрузки")
			return
		}
		apierrors.ValidationError(w, "Некорректное multipart/form-data тело запроса")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File[multipartFieldName]
	if len(headers) == 0 {
		apierrors.ValidationError(w, "Отсутствуют файлы в поле 'files'")
		return
	}

	records := make([]*model.FileRecord, len(headers))

	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(uploadConcurrency)
	for i, fh := range headers {
		g.Go(func() error {
			record, err := h.uploadOne(ctx, fh)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		h.writeUploadError(w, err)
		return
	}

	h.logger.Info("Загрузка завершена",
		slog.Int("files", len(records)),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)

	writeJSON(w, http.StatusCreated, uploadResponse{Files: records})
}

// uploadOne загружает один файл из multipart-части через сервисный слой.
func (h *APIHandler) uploadOne(ctx context.Context, fh *multipart.FileHeader) (*model.FileRecord, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return h.files.Upload(ctx, service.UploadInput{
		Reader:   f,
		Size:     fh.Size,
		Name:     fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
	})
}

// writeUploadError транслирует ошибку загрузки в HTTP-ответ.
func (h *APIHandler) writeUploadError(w http.ResponseWriter, err error) {
	var storeErr *drive.StoreError
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.As(err, &storeErr):
		h.logger.Error("Ошибка удалённого хранилища при загрузке",
			slog.String("error", err.Error()),
		)
		apierrors.BadGateway(w, storeErr.Message)
	default:
		h.logger.Error("Ошибка загрузки файла",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при загрузке файла")
	}
}

// HandleDownload — реализация GET /{prefix}/{name}.
// Публичный endpoint: аутентификация не требуется, знание адреса —
// единственный фактор доступа.
//
// В буферизованном режиме содержимое сначала вычитывается во временный
// файл: ошибка хранилища превращается в корректный HTTP-статус, а не в
// оборванный поток. В прямом режиме тело стримится сразу.
func (h *APIHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	prefix := chi.URLParam(r, "prefix")
	name := chi.URLParam(r, "name")

	start := time.Now()
	activeDownloads.Inc()
	defer activeDownloads.Dec()

	stream, record, err := h.files.OpenDownload(r.Context(), prefix, name)
	if err != nil {
		h.writeDownloadError(w, prefix, name, err)
		return
	}
	defer stream.Close()

	var written int64
	if h.bufferedDownload {
		written, err = h.serveBuffered(w, stream, record)
	} else {
		written, err = h.serveDirect(w, stream, record)
	}
	if err != nil {
		if !errors.Is(err, errResponseWritten) {
			// Заголовки могли уйти клиенту — только логируем
			h.logger.Error("Ошибка streaming download",
				slog.String("address", record.Address()),
				slog.Int64("bytes_written", written),
				slog.String("error", err.Error()),
			)
			downloadsTotal.WithLabelValues("stream_error").Inc()
		}
		return
	}

	downloadsTotal.WithLabelValues("success").Inc()
	downloadDuration.Observe(time.Since(start).Seconds())
	downloadBytesTotal.Add(float64(written))
}

// serveDirect стримит содержимое клиенту напрямую из хранилища.
func (h *APIHandler) serveDirect(w http.ResponseWriter, stream io.Reader, record *model.FileRecord) (int64, error) {
	writeDownloadHeaders(w, record, record.Size)
	w.WriteHeader(http.StatusOK)
	return io.Copy(w, stream)
}

// errResponseWritten — ответ об ошибке уже отправлен клиенту,
// вызывающему коду делать ничего не нужно.
var errResponseWritten = errors.New("ответ уже записан")

// serveBuffered вычитывает содержимое во временный файл и отдаёт его клиенту.
// Ошибка чтения из хранилища обнаруживается до отправки заголовков.
func (h *APIHandler) serveBuffered(w http.ResponseWriter, stream io.Reader, record *model.FileRecord) (int64, error) {
	tmp, err := os.CreateTemp("", "fileshare-download-*")
	if err != nil {
		h.logger.Error("Создание временного файла скачивания",
			slog.String("error", err.Error()),
		)
		downloadsTotal.WithLabelValues("error").Inc()
		apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
		return 0, errResponseWritten
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, stream)
	if err != nil {
		h.logger.Error("Буферизация содержимого из хранилища",
			slog.String("address", record.Address()),
			slog.String("error", err.Error()),
		)
		downloadsTotal.WithLabelValues("store_error").Inc()
		apierrors.BadGateway(w, "Удалённое хранилище недоступно")
		return 0, errResponseWritten
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		downloadsTotal.WithLabelValues("error").Inc()
		apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
		return 0, errResponseWritten
	}

	// Фактический размер авторитетнее заявленного в метаданных
	writeDownloadHeaders(w, record, size)
	w.WriteHeader(http.StatusOK)
	return io.Copy(w, tmp)
}

// writeDownloadError транслирует ошибку download-пайплайна в HTTP-ответ.
func (h *APIHandler) writeDownloadError(w http.ResponseWriter, prefix, name string, err error) {
	var storeErr *drive.StoreError
	switch {
	case errors.Is(err, service.ErrNotFound):
		downloadsTotal.WithLabelValues("not_found").Inc()
		apierrors.NotFound(w, "Файл не найден")
	case errors.As(err, &storeErr):
		downloadsTotal.WithLabelValues("store_error").Inc()
		h.logger.Error("Ошибка удалённого хранилища при скачивании",
			slog.String("prefix", prefix),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		apierrors.BadGateway(w, storeErr.Message)
	default:
		downloadsTotal.WithLabelValues("error").Inc()
		h.logger.Error("Ошибка скачивания файла",
			slog.String("prefix", prefix),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при скачивании файла")
	}
}

// writeDownloadHeaders выставляет заголовки ответа скачивания.
func writeDownloadHeaders(w http.ResponseWriter, record *model.FileRecord, size int64) {
	contentType := record.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("inline", map[string]string{"filename": record.Name}))
	w.Header().Set("Cache-Control", "public, max-age=3600")
}

// deleteResponse — ответ DELETE /api/v1/files/{id}.
type deleteResponse struct {
	File *model.FileRecord `json:"file"`
}

// HandleDelete — реализация DELETE /api/v1/files/{id}.
// Возвращает последние известные метаданные удалённого файла.
func (h *APIHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return
	}

	record, err := h.files.DeleteByID(r.Context(), id)
	if err != nil {
		var storeErr *drive.StoreError
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Файл не найден")
		case errors.As(err, &storeErr):
			h.logger.Error("Ошибка удалённого хранилища при удалении",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			apierrors.BadGateway(w, storeErr.Message)
		default:
			h.logger.Error("Ошибка удаления файла",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при удалении файла")
		}
		return
	}

	h.logger.Info("Файл удалён через API",
		slog.String("id", record.ID),
		slog.String("subject", middleware.SubjectFromContext(r.Context())),
	)

	writeJSON(w, http.StatusOK, deleteResponse{File: record})
}
