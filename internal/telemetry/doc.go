// Package telemetry обеспечивает наблюдаемость супервизора.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики запусков, перезапусков и фаз
//
// Логи пишутся в stderr: stdout остаётся за выводом --dry-run.
// Метрики экспортируются на /metrics, если включён HTTP API.
package telemetry
