// Package mq публикует события жизненного цикла в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с publisher confirms и переподключением
//   - topology.go   — объявление topic-обменника overseer.events
//   - publisher.go  — публикация с ожиданием подтверждения брокера
//   - events.go     — EventPublisher: Recorder поверх Publisher
//
// Ключи маршрутизации:
//   - run.<state>         — переход run (run.running_oneshots, run.terminated, ...)
//   - execution.<status>  — запуск задачи (execution.running, execution.failed, ...)
//
// Потребление событий в пакет не входит.
package mq
