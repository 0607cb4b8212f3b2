package runner

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
)

// Handle — запущенный процесс задачи.
type Handle struct {
	cmd        *exec.Cmd
	started    *domain.Execution
	rec        *domain.Execution
	pid        int
	stopSignal os.Signal
	tail       *tail
	writers    []*lineWriter
	logger     *slog.Logger

	done chan struct{}

	// stopRequested — вызван Stop: выход по сигналу остановки считается успешным.
	stopRequested atomic.Bool
	// killed — процесс принудительно остановлен: статус KILLED.
	killed atomic.Bool

	reasonMu sync.Mutex
	reason   string
}

// PID возвращает pid процесса (он же id группы процессов).
func (h *Handle) PID() int {
	return h.pid
}

// Done закрывается после завершения процесса и заполнения записи.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait блокируется до завершения процесса и возвращает финальную запись.
func (h *Handle) Wait() *domain.Execution {
	<-h.done
	return h.rec
}

// Execution возвращает запись запуска: до завершения процесса — в статусе RUNNING,
// после закрытия Done() — финальную.
func (h *Handle) Execution() *domain.Execution {
	select {
	case <-h.done:
		return h.rec
	default:
		return h.started
	}
}

// Stop отправляет группе процессов сигнал остановки и ждёт до grace.
// Если процесс не завершился — SIGKILL. Возвращает true, если понадобился SIGKILL.
// Выход в пределах grace с кодом 0 или от самого сигнала остановки
// даёт статус SUCCEEDED; любой другой код — FAILED.
func (h *Handle) Stop(grace time.Duration) bool {
	h.stopRequested.Store(true)
	return h.stop(grace, nil)
}

// Kill немедленно отправляет SIGKILL всей группе процессов.
func (h *Handle) Kill() {
	h.killed.Store(true)
	if err := signalGroup(h.pid, syscall.SIGKILL); err != nil {
		h.logger.Warn("failed to kill process group", "error", err)
	}
}

// terminate останавливает процесс по таймауту или отмене: статус всегда KILLED.
// Закрытие kill прерывает ожидание grace.
func (h *Handle) terminate(grace time.Duration, reason string, kill <-chan struct{}) {
	h.setReason(reason)
	h.killed.Store(true)
	h.logger.Warn("terminating task", "reason", reason, "grace", grace)
	h.stop(grace, kill)
}

// forceKill немедленно убивает группу и ждёт завершения.
func (h *Handle) forceKill(reason string) {
	h.setReason(reason)
	h.logger.Warn("killing task", "reason", reason)
	h.Kill()
	<-h.done
}

func (h *Handle) setReason(reason string) {
	h.reasonMu.Lock()
	h.reason = reason
	h.reasonMu.Unlock()
}

func (h *Handle) stop(grace time.Duration, kill <-chan struct{}) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	if err := signalGroup(h.pid, h.stopSignal); err != nil {
		h.logger.Warn("failed to signal process group", "signal", h.stopSignal, "error", err)
	}

	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()

		select {
		case <-h.done:
			return false
		case <-timer.C:
			h.logger.Warn("task did not stop in time, sending SIGKILL", "grace", grace)
		case <-kill:
			h.logger.Warn("kill requested while stopping, sending SIGKILL")
		}
	}

	h.Kill()
	<-h.done
	return true
}

// wait ожидает процесс и заполняет запись. Выполняется в отдельной горутине.
func (h *Handle) wait() {
	err := h.cmd.Wait()

	for _, w := range h.writers {
		w.Flush()
	}

	// Добиваем процессы, оставшиеся в группе после выхода лидера
	killRemnants(h.pid)

	code := exitCode(h.cmd.ProcessState)
	status, msg := h.classify(err, code)

	h.rec.Output = h.tail.Lines()
	h.rec.MarkFinished(status, code, msg)

	h.logger.Info("task finished",
		"status", status,
		"exit_code", code,
		"duration", h.rec.Duration(),
	)

	close(h.done)
}

// classify определяет статус записи по результату ожидания.
func (h *Handle) classify(err error, code int) (domain.ExecutionStatus, string) {
	switch {
	case h.killed.Load():
		h.reasonMu.Lock()
		reason := h.reason
		h.reasonMu.Unlock()
		if reason == "" {
			reason = "killed"
		}
		return domain.ExecutionKilled, reason

	case h.stopRequested.Load() && h.exitedOnStop(code):
		return domain.ExecutionSucceeded, ""

	case err == nil:
		return domain.ExecutionSucceeded, ""

	case errors.Is(err, exec.ErrWaitDelay) && code == 0:
		// Процесс завершился успешно, но потомок держал stdout
		return domain.ExecutionSucceeded, ""

	default:
		return domain.ExecutionFailed, describeExit(err)
	}
}

// exitedOnStop проверяет, что код выхода вызван сигналом остановки:
// штатный выход 0 или смерть от самого сигнала. Падение с другим кодом,
// совпавшее по времени со Stop, остаётся FAILED.
func (h *Handle) exitedOnStop(code int) bool {
	if code == 0 {
		return true
	}
	sig, ok := h.stopSignal.(syscall.Signal)
	return ok && code == 128+int(sig)
}
