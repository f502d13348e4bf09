package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashmetov/conveyor/internal/backend"
)

// ErrorCode — машиночитаемый код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnavailable   ErrorCode = "UNAVAILABLE"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DataResponse — конверт успешного ответа: {"data": ...}.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse — конверт ответа с ошибкой:
// {"error": {"code": ..., "message": ...}}. CLI разбирает оба конверта.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — код и сообщение ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// JSON пишет v в тело ответа с указанным статусом.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Заголовки уже ушли, статус не поменять — остаётся лог.
		slog.Default().Warn("failed to encode response", "error", err)
	}
}

// Success — 200 с данными в конверте.
func Success(w http.ResponseWriter, data any) {
	envelope(w, http.StatusOK, data)
}

// Created — 201 с данными в конверте.
func Created(w http.ResponseWriter, data any) {
	envelope(w, http.StatusCreated, data)
}

func envelope(w http.ResponseWriter, status int, data any) {
	JSON(w, status, DataResponse{Data: data})
}

// Error — произвольная ошибка в конверте.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// BadRequest — 400: запрос не прошёл валидацию.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound — 404: запрошенной записи нет.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Unavailable — 503: операция сейчас невозможна.
func Unavailable(w http.ResponseWriter, message string) {
	Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// InternalError — 500. Причина остаётся в логе, наружу уходит
// обезличенное сообщение.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("request failed with internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleBackendError переводит ошибку result backend'а в HTTP-ответ.
// Возвращает true, если ответ уже записан.
func HandleBackendError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, backend.ErrNotFound):
		NotFound(w, notFoundMsg)
	default:
		InternalError(w, logger, err)
	}
	return true
}
