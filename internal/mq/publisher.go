package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRun       MessageType = "run"
	MessageTypeExecution MessageType = "execution"
)

// Message — конверт публикуемого события.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует сообщения в RabbitMQ и ждёт подтверждения брокера.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false, // mandatory: событие без подписчиков не ошибка
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				AppId:        "overseer",
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		if confirm != nil {
			ok, err := confirm.WaitContext(ctx)
			if err != nil {
				return fmt.Errorf("wait confirm %s/%s: %w", exchange, routingKey, err)
			}
			if !ok {
				return fmt.Errorf("%s/%s: %w", exchange, routingKey, ErrNotConfirmed)
			}
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}
