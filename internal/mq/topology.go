package mq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeEvents — topic-обменник событий жизненного цикла.
//
// Ключи маршрутизации:
//   - run.<state>         — переход run (run.monitoring, run.terminated, ...)
//   - execution.<status>  — запуск задачи (execution.running, execution.failed, ...)
//
// Подписка "execution.failed" или "run.#" — дело потребителя.
const ExchangeEvents Exchange = "overseer.events"

// SetupTopology объявляет обменник событий.
// Очереди не объявляются: их создают потребители.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeEvents), // name
			amqp.ExchangeTopic,     // type
			true,                   // durable
			false,                  // auto-deleted
			false,                  // internal
			false,                  // no-wait
			nil,                    // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}
		return nil
	})
}

// KeepTopology повторно объявляет топологию после каждого переподключения.
// Блокируется до отмены ctx.
func KeepTopology(ctx context.Context, conn *Connection, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.ReconnectNotify():
			if err := SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to restore RabbitMQ topology", "error", err)
			}
		}
	}
}
