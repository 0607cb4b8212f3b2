package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Overseer/internal/domain"
)

// FireFunc выполняет cron-задачу. Возвращается после завершения процесса.
type FireFunc func(ctx context.Context, task *domain.TaskDef)

// Scheduler — планировщик cron-задач группы.
type Scheduler struct {
	jobs   []job
	fire   FireFunc
	logger *slog.Logger
	now    func() time.Time
}

// job — задача с разобранным расписанием.
type job struct {
	task     domain.TaskDef
	schedule cron.Schedule
}

// Config — конфигурация Scheduler.
type Config struct {
	Tasks  []domain.TaskDef
	Fire   FireFunc
	Logger *slog.Logger
	Now    func() time.Time // для тестов (default: time.Now)
}

// New создаёт Scheduler. Возвращает ошибку, если расписание задачи не разбирается.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	jobs := make([]job, 0, len(cfg.Tasks))
	for _, task := range cfg.Tasks {
		schedule, err := cronParser.Parse(task.Schedule)
		if err != nil {
			return nil, &ScheduleError{Task: task.Name, Expr: task.Schedule, Err: err}
		}
		jobs = append(jobs, job{task: task, schedule: schedule})
	}

	return &Scheduler{
		jobs:   jobs,
		fire:   cfg.Fire,
		logger: logger,
		now:    now,
	}, nil
}

// Len возвращает количество cron-задач.
func (s *Scheduler) Len() int {
	return len(s.jobs)
}

// Run запускает циклы всех задач и блокируется до отмены ctx.
// Возвращается только после завершения всех текущих выполнений.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := range s.jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(&s.jobs[i])
	}
	wg.Wait()
}

// loop — цикл одной задачи.
func (s *Scheduler) loop(ctx context.Context, j *job) {
	logger := s.logger.With("task", j.task.Name)

	for {
		next := j.schedule.Next(s.now())
		if next.IsZero() {
			logger.Warn("cron schedule has no future occurrences", "schedule", j.task.Schedule)
			return
		}

		logger.Debug("next cron run", "due_at", next)

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		logger.Info("cron task due")
		s.fire(ctx, &j.task)

		if ctx.Err() != nil {
			return
		}
	}
}
