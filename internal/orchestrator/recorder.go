package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
)

// Recorder получает изменения run и запусков задач.
//
// Вызывается на каждом переходе состояния run, на старте и завершении
// каждого запуска. Ошибки логируются и не прерывают работу группы.
// Реализации: repo.HistoryRepo, mq.EventPublisher.
type Recorder interface {
	RecordRun(ctx context.Context, run *domain.Run) error
	RecordExecution(ctx context.Context, exec *domain.Execution) error
}

// MultiRecorder рассылает записи нескольким Recorder.
type MultiRecorder []Recorder

// RecordRun реализует Recorder.
func (m MultiRecorder) RecordRun(ctx context.Context, run *domain.Run) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordRun(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordExecution реализует Recorder.
func (m MultiRecorder) RecordExecution(ctx context.Context, exec *domain.Execution) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordExecution(ctx, exec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// defaultRecordQueue — ёмкость очереди записей.
const defaultRecordQueue = 256

// recordJob — одна запись для Recorder: run или запуск.
type recordJob struct {
	run  *domain.Run
	exec *domain.Execution
}

// dispatcher передаёт записи Recorder из отдельной горутины в порядке поступления.
// Медленное хранилище не задерживает цикл наблюдения. Переполненная
// очередь блокирует отправителя, записи не теряются.
type dispatcher struct {
	recorder Recorder
	timeout  time.Duration
	logger   *slog.Logger

	queue chan recordJob
	done  chan struct{}
}

func newDispatcher(r Recorder, timeout time.Duration, logger *slog.Logger) *dispatcher {
	return &dispatcher{
		recorder: r,
		timeout:  timeout,
		logger:   logger,
		queue:    make(chan recordJob, defaultRecordQueue),
		done:     make(chan struct{}),
	}
}

// start запускает горутину доставки.
func (d *dispatcher) start() {
	go func() {
		defer close(d.done)
		for job := range d.queue {
			d.deliver(job)
		}
	}()
}

// send ставит запись в очередь.
func (d *dispatcher) send(job recordJob) {
	d.queue <- job
}

// close закрывает очередь и ждёт доставки всех записей.
func (d *dispatcher) close() {
	close(d.queue)
	<-d.done
}

func (d *dispatcher) deliver(job recordJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if job.run != nil {
		if err := d.recorder.RecordRun(ctx, job.run); err != nil {
			d.logger.Warn("failed to record run", "state", job.run.State, "error", err)
		}
		return
	}
	if err := d.recorder.RecordExecution(ctx, job.exec); err != nil {
		d.logger.Warn("failed to record execution",
			"task", job.exec.Task,
			"status", job.exec.Status,
			"error", err,
		)
	}
}
