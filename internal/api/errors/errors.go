// Пакет errors — JSON-конверт ошибок API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
package errors

import (
	"encoding/json"
	"net/http"
)

// errorBody — тело ошибки в ответе API.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse — конверт ошибки.
type errorResponse struct {
	Error errorBody `json:"error"`
}

// WriteError записывает JSON-ошибку с указанным статусом, кодом и сообщением.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: code, Message: message},
	})
}

// ValidationError — 400 Bad Request.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// Unauthorized — 401 Unauthorized.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// Forbidden — 403 Forbidden.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "FORBIDDEN", message)
}

// NotFound — 404 Not Found.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "NOT_FOUND", message)
}

// PayloadTooLarge — 413 Request Entity Too Large.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", message)
}

// InternalError — 500 Internal Server Error.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

// BadGateway — 502 Bad Gateway (ошибка удалённого хранилища).
func BadGateway(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, "REMOTE_STORE_ERROR", message)
}
