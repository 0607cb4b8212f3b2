// Package orchestrator управляет жизненным циклом группы процессов.
//
// Orchestrator отвечает за:
//   - Последовательный запуск oneshot-задач в порядке зависимостей
//   - Одновременный запуск сервисов после успешных oneshot
//   - Наблюдение за сервисами и перезапуск по политике restart
//   - Защиту от шторма перезапусков (окно, burst, экспоненциальный backoff)
//   - Запуск cron-задач по расписанию
//   - Остановку группы: сигнал, drain_timeout, SIGKILL
//   - Код выхода по итогам работы
//
// Состояния run: INIT → RUNNING_ONESHOTS → STARTING_SERVICES → MONITORING →
// DRAINING → TERMINATED; при неудаче oneshot — RUNNING_ONESHOTS → FAILED → TERMINATED.
//
// Процессы запускаются через Launcher (в production — runner.Runner),
// изменения run и запусков уходят в Recorder.
package orchestrator
