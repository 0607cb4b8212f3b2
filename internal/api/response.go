package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}
