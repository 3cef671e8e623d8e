// logging.go — access-лог HTTP-запросов fileshare.
// Для download-трафика важны отданные байты и длительность стрима,
// поэтому учёт ведётся на обёртке ResponseWriter до самого конца ответа.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// accessLogWriter накапливает статус и объём ответа по мере записи.
// Запись тела без явного WriteHeader считается ответом 200.
type accessLogWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *accessLogWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *accessLogWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Unwrap отдаёт исходный ResponseWriter для http.ResponseController.
func (w *accessLogWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// statusLevel выбирает уровень записи по классу статус-кода:
// 5xx — ERROR, 4xx — WARN, остальное — INFO.
func statusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger возвращает middleware access-лога.
// Одна запись на запрос, после завершения ответа.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			alw := &accessLogWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(alw, r)

			log.LogAttrs(r.Context(), statusLevel(alw.status), "Запрос обработан",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", alw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("response_bytes", alw.bytes),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}
