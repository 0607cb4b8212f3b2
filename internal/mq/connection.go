package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Параметры переподключения.
const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
	heartbeat             = 10 * time.Second
)

// Connection — AMQP соединение с каналом в режиме подтверждений
// и автоматическим переподключением.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closedCh  chan struct{}
	closeOnce sync.Once

	// Сигнал о переподключении (буфер 1, лишние сигналы отбрасываются)
	reconnectCh chan struct{}
}

// NewConnection подключается к RabbitMQ.
// Если url пустой — берётся из RABBITMQ_URL.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if url == "" {
		url = os.Getenv("RABBITMQ_URL")
	}
	if url == "" {
		return nil, ErrNoURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		url:         url,
		logger:      logger,
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.open(); err != nil {
		return nil, err
	}

	go c.watch()

	return c, nil
}

// open устанавливает соединение и открывает канал с publisher confirms.
func (c *Connection) open() error {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat:  heartbeat,
		Properties: amqp.Table{"connection_name": "overseer"},
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("enable confirms: %w", err)
	}

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		conn.Close()
		return ErrNoChannel
	}
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ")
	return nil
}

func (c *Connection) isClosed() bool {
	select {
	case <-c.closedCh:
		return true
	default:
		return false
	}
}

// watch ждёт разрыва соединения или канала и переподключается.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		conn, ch := c.conn, c.channel
		c.mu.RUnlock()

		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

		var reason *amqp.Error
		select {
		case <-c.closedCh:
			return
		case reason = <-connClosed:
		case reason = <-chClosed:
			// Канал закрыт брокером, соединение ещё живо
			conn.Close()
		}

		if c.isClosed() {
			return
		}
		c.logger.Warn("RabbitMQ connection lost", "error", reason)

		if !c.reconnect() {
			return
		}
	}
}

// reconnect повторяет подключение с экспоненциальной задержкой.
// Возвращает false, если соединение закрыто через Close.
func (c *Connection) reconnect() bool {
	delay := initialReconnectDelay

	for {
		c.logger.Info("attempting to reconnect", "delay", delay)

		select {
		case <-c.closedCh:
			return false
		case <-time.After(delay):
		}

		if c.isClosed() {
			return false
		}
		if err := c.open(); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
		return true
	}
}

// ReconnectNotify возвращает канал, сигналящий о каждом переподключении.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// Close закрывает канал и соединение. Повторный вызов — no-op.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closedCh)

		c.mu.Lock()
		defer c.mu.Unlock()

		var errs []error
		if c.channel != nil && !c.channel.IsClosed() {
			if e := c.channel.Close(); e != nil {
				errs = append(errs, fmt.Errorf("close channel: %w", e))
			}
		}
		if c.conn != nil && !c.conn.IsClosed() {
			if e := c.conn.Close(); e != nil {
				errs = append(errs, fmt.Errorf("close connection: %w", e))
			}
		}
		err = errors.Join(errs...)

		c.logger.Info("RabbitMQ connection closed")
	})
	return err
}
