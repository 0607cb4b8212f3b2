package orchestrator

import (
	"context"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/runner"
)

// Launcher запускает процессы задач.
type Launcher interface {
	// Run выполняет задачу до завершения (oneshot, cron).
	// Отмена ctx — штатная остановка с KillGrace, закрытие kill — немедленный SIGKILL.
	Run(ctx context.Context, task *domain.TaskDef, rec *domain.Execution, kill <-chan struct{}) (*domain.Execution, error)

	// Start запускает сервис и возвращается сразу.
	Start(ctx context.Context, task *domain.TaskDef, rec *domain.Execution) (Process, error)
}

// Process — запущенный сервис.
type Process interface {
	Done() <-chan struct{}
	Wait() *domain.Execution
	Stop(grace time.Duration) (killed bool)
	Kill()
}

// runnerLauncher адаптирует runner.Runner к Launcher.
type runnerLauncher struct {
	r *runner.Runner
}

// NewLauncher возвращает Launcher поверх runner.Runner.
func NewLauncher(r *runner.Runner) Launcher {
	return &runnerLauncher{r: r}
}

func (l *runnerLauncher) Run(ctx context.Context, task *domain.TaskDef, rec *domain.Execution, kill <-chan struct{}) (*domain.Execution, error) {
	return l.r.RunUntil(ctx, task, rec, kill)
}

func (l *runnerLauncher) Start(ctx context.Context, task *domain.TaskDef, rec *domain.Execution) (Process, error) {
	h, err := l.r.Start(ctx, task, rec)
	if err != nil {
		return nil, err
	}
	return h, nil
}
