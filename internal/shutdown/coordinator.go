// Package shutdown преобразует сигналы ОС в запросы остановки группы.
//
// Первый SIGINT/SIGTERM запускает штатную остановку. Повторные сигналы
// в пределах escalation_timeout игнорируются. Сигнал, пришедший позже
// и бывший как минимум третьим, запускает немедленное завершение.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
)

// Coordinator следит за сигналами и вызывает drain и force.
type Coordinator struct {
	drain func()
	force func()

	escalationTimeout time.Duration
	signals           <-chan os.Signal
	now               func() time.Time
	logger            *slog.Logger

	// notified — канал, зарегистрированный в signal.Notify (если Signals не задан)
	notified chan os.Signal
	stopOnce sync.Once

	drainOnce sync.Once
	forceOnce sync.Once
}

// Config — конфигурация Coordinator.
type Config struct {
	// Drain вызывается один раз на первый сигнал.
	Drain func()

	// Force вызывается один раз при эскалации.
	Force func()

	// EscalationTimeout — окно, в котором повторные сигналы игнорируются (default: 10s).
	EscalationTimeout time.Duration

	// Signals — источник сигналов. Если nil — SIGINT и SIGTERM процесса,
	// перехват которых включается уже в New.
	Signals <-chan os.Signal

	// Now — для тестов (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// New создаёт новый Coordinator.
//
// Без Config.Signals New сразу перехватывает SIGINT и SIGTERM: сигнал,
// пришедший до Run, ждёт в буфере и не завершает процесс.
// Перехват снимает Stop (или выход из Run).
func New(cfg Config) *Coordinator {
	timeout := cfg.EscalationTimeout
	if timeout <= 0 {
		timeout = domain.DefaultEscalationTimeout
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	noop := func() {}
	drain, force := cfg.Drain, cfg.Force
	if drain == nil {
		drain = noop
	}
	if force == nil {
		force = noop
	}

	c := &Coordinator{
		drain:             drain,
		force:             force,
		escalationTimeout: timeout,
		signals:           cfg.Signals,
		now:               now,
		logger:            logger,
	}
	if c.signals == nil {
		c.notified = make(chan os.Signal, 4)
		signal.Notify(c.notified, syscall.SIGINT, syscall.SIGTERM)
		c.signals = c.notified
	}
	return c
}

// Stop снимает перехват сигналов ОС. Идемпотентен.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		if c.notified != nil {
			signal.Stop(c.notified)
		}
	})
}

// Run обрабатывает сигналы до отмены ctx.
func (c *Coordinator) Run(ctx context.Context) {
	defer c.Stop()
	signals := c.signals

	var (
		count int
		first time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			count++
			c.handle(sig, count, &first)
		}
	}
}

// handle реагирует на очередной сигнал.
func (c *Coordinator) handle(sig os.Signal, count int, first *time.Time) {
	now := c.now()

	if count == 1 {
		*first = now
		c.logger.Info("received signal, shutting down gracefully",
			"signal", sig,
			"escalation_timeout", c.escalationTimeout,
		)
		c.drainOnce.Do(c.drain)
		return
	}

	elapsed := now.Sub(*first)
	if elapsed < c.escalationTimeout || count < 3 {
		c.logger.Warn("shutdown already in progress, signal ignored",
			"signal", sig,
			"count", count,
			"since_first", elapsed,
		)
		return
	}

	c.logger.Warn("received repeated signal, killing all processes",
		"signal", sig,
		"count", count,
	)
	c.forceOnce.Do(c.force)
}
