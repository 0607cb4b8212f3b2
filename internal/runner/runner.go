package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/engine"
)

// Default configuration values.
const (
	defaultKillGrace = domain.DefaultKillGrace
)

// Runner запускает процессы задач.
//
// Runner не хранит состояния между запусками и безопасен
// для одновременного использования из нескольких горутин.
type Runner struct {
	tmpl      *engine.Context
	killGrace time.Duration
	tailLines int
	logger    *slog.Logger
}

// Config — конфигурация Runner.
type Config struct {
	// Context — контекст рендеринга команд (vars и env группы).
	// Если nil — только окружение текущего процесса.
	Context *engine.Context

	// KillGrace — пауза между сигналом остановки и SIGKILL
	// при таймауте или отмене (default: 5s).
	KillGrace time.Duration

	// TailLines — сколько последних строк вывода сохранять (default: 20).
	TailLines int

	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	tmpl := cfg.Context
	if tmpl == nil {
		tmpl = engine.NewGroupContext(&domain.GroupSpec{})
	}

	killGrace := cfg.KillGrace
	if killGrace <= 0 {
		killGrace = defaultKillGrace
	}

	tailLines := cfg.TailLines
	if tailLines <= 0 {
		tailLines = defaultTailLines
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		tmpl:      tmpl,
		killGrace: killGrace,
		tailLines: tailLines,
		logger:    logger,
	}
}

// Run выполняет задачу до завершения.
//
// При таймауте задачи или отмене ctx группе процессов отправляется
// сигнал остановки, через KillGrace — SIGKILL; статус — KILLED.
//
// Возвращает финальную запись. Ошибка возвращается только если процесс
// не удалось запустить; тогда rec помечается FAILED и возвращается он же.
func (r *Runner) Run(ctx context.Context, task *domain.TaskDef, rec *domain.Execution) (*domain.Execution, error) {
	return r.RunUntil(ctx, task, rec, nil)
}

// RunUntil — Run с каналом принудительной остановки.
// Закрытие kill отправляет группе SIGKILL сразу, в том числе
// посреди ожидания KillGrace после отмены ctx. nil kill — как Run.
func (r *Runner) RunUntil(ctx context.Context, task *domain.TaskDef, rec *domain.Execution, kill <-chan struct{}) (*domain.Execution, error) {
	h, err := r.Start(ctx, task, rec)
	if err != nil {
		return rec, err
	}

	var timeout <-chan time.Time
	if task.Timeout > 0 {
		timer := time.NewTimer(task.Timeout.Std())
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-h.Done():
	case <-kill:
		h.forceKill("killed")
	case <-timeout:
		h.terminate(r.killGrace, fmt.Sprintf("timeout after %s", task.Timeout), kill)
	case <-ctx.Done():
		h.terminate(r.killGrace, "cancelled", kill)
	}

	return h.Wait(), nil
}

// Start запускает процесс задачи и возвращает Handle сразу после запуска.
//
// После возврата rec больше не изменяется: финальную запись
// возвращает Handle.Wait().
//
// ctx используется только для проверки отмены до запуска:
// жизнью сервиса управляет вызывающий через Handle.
func (r *Runner) Start(ctx context.Context, task *domain.TaskDef, rec *domain.Execution) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		rec.MarkFinished(domain.ExecutionFailed, -1, err.Error())
		return nil, &LaunchError{Task: task.Name, Err: err}
	}

	stopSignal, err := ParseSignal(task.StopSignal)
	if err != nil {
		rec.MarkFinished(domain.ExecutionFailed, -1, err.Error())
		return nil, &LaunchError{Task: task.Name, Err: err}
	}

	resolved, err := engine.ResolveCommand(task, r.tmpl)
	if err != nil {
		rec.MarkFinished(domain.ExecutionFailed, -1, err.Error())
		return nil, &LaunchError{Task: task.Name, Err: err}
	}

	logger := r.logger.With(
		"run_id", rec.RunID,
		"task", task.Name,
		"attempt", rec.Attempt,
	)

	t := newTail(r.tailLines)
	stdout := newLineWriter(logger, "stdout", t)
	stderr := newLineWriter(logger, "stderr", t)

	cmd := exec.Command(resolved.Args[0], resolved.Args[1:]...)
	cmd.Env = resolved.Env
	cmd.Dir = task.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.killGrace
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		rec.MarkFinished(domain.ExecutionFailed, -1, err.Error())
		logger.Error("failed to launch task", "command", resolved.Args, "error", err)
		return nil, &LaunchError{Task: task.Name, Err: err}
	}

	pid := cmd.Process.Pid
	rec.MarkRunning(pid)
	logger = logger.With("pid", pid)
	logger.Info("task started", "kind", task.Kind, "command", resolved.Args)

	h := &Handle{
		cmd:        cmd,
		started:    rec,
		rec:        rec.Clone(),
		pid:        pid,
		stopSignal: stopSignal,
		tail:       t,
		writers:    []*lineWriter{stdout, stderr},
		logger:     logger,
		done:       make(chan struct{}),
	}
	go h.wait()

	return h, nil
}

// describeExit формирует сообщение об ошибке по результату cmd.Wait.
func describeExit(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Error()
	}
	return err.Error()
}
