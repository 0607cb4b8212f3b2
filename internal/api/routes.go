package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	mux.Handle("GET /healthz", chain(http.HandlerFunc(h.Health)))
	mux.Handle("GET /metrics", h.metrics)

	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.Status)))
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
}

// Routes возвращает готовый mux со всеми маршрутами.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}
