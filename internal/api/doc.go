// Package api содержит HTTP API только для чтения.
//
// Структура:
//   - handler.go    — Handler поверх StatusProvider
//   - routes.go     — регистрация маршрутов
//   - middleware.go — middleware (logging, recovery)
//   - response.go   — унифицированные JSON-ответы
//   - server.go     — запуск и остановка HTTP сервера
//
// Маршруты:
//   - GET /healthz            — 200 пока run не завершён, иначе 503
//   - GET /api/v1/status      — run и живые сервисы
//   - GET /api/v1/executions  — история запусков (?task=...)
//   - GET /metrics            — метрики Prometheus
package api
