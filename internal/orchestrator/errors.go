package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shaiso/Overseer/internal/domain"
)

// Ошибки оркестратора.
var (
	// ErrTaskFailed — oneshot завершился неуспешно.
	ErrTaskFailed = errors.New("task failed")

	// ErrDrainTimeout — сервис не остановился за drain_timeout и был убит.
	ErrDrainTimeout = errors.New("drain timeout")

	// ErrRestartStorm — сервис падает слишком часто и оставлен остановленным.
	ErrRestartStorm = errors.New("restart storm")

	// ErrServiceFailed — сервис завершился неуспешно и не будет перезапущен.
	ErrServiceFailed = errors.New("service failed")

	// ErrShutdownDuringOneShots — остановка запрошена до запуска сервисов.
	ErrShutdownDuringOneShots = errors.New("shutdown requested during oneshot phase")

	// ErrInvalidTransition — недопустимый переход состояния.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyStarted — Run вызван повторно.
	ErrAlreadyStarted = errors.New("orchestrator already started")
)

// TaskFailure — oneshot завершился с ненулевым кодом, был убит или не запустился.
type TaskFailure struct {
	Task      string
	Execution *domain.Execution
	Err       error // LaunchError, если процесс не запустился
}

func (e *TaskFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s failed", e.Task)

	if e.Execution != nil {
		fmt.Fprintf(&b, " (status %s, exit code %d)", e.Execution.Status, e.Execution.ExitCode)
		if e.Execution.Error != "" {
			fmt.Fprintf(&b, ": %s", e.Execution.Error)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *TaskFailure) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTaskFailed, e.Err}
	}
	return []error{ErrTaskFailed}
}

// Output возвращает последние строки вывода упавшей задачи.
func (e *TaskFailure) Output() []string {
	if e.Execution == nil {
		return nil
	}
	return e.Execution.Output
}

// DrainTimeout — сервис убит при остановке группы.
type DrainTimeout struct {
	Task string

	// Escalated — убит по повторному сигналу, а не по истечении drain_timeout.
	Escalated bool
}

func (e *DrainTimeout) Error() string {
	if e.Escalated {
		return fmt.Sprintf("task %s: killed on shutdown escalation", e.Task)
	}
	return fmt.Sprintf("task %s: did not stop within drain timeout, killed", e.Task)
}

func (e *DrainTimeout) Unwrap() error {
	return ErrDrainTimeout
}

// StormError — сервис оставлен остановленным после серии падений.
type StormError struct {
	Task   string
	Streak int
}

func (e *StormError) Error() string {
	return fmt.Sprintf("task %s: restart storm, gave up after %d backoff restarts", e.Task, e.Streak)
}

func (e *StormError) Unwrap() error {
	return ErrRestartStorm
}

// ServiceFailure — сервис завершился неуспешно и остаётся остановленным.
type ServiceFailure struct {
	Task      string
	Execution *domain.Execution
}

func (e *ServiceFailure) Error() string {
	if e.Execution == nil {
		return fmt.Sprintf("service %s failed", e.Task)
	}
	return fmt.Sprintf("service %s failed (status %s, exit code %d)",
		e.Task, e.Execution.Status, e.Execution.ExitCode)
}

func (e *ServiceFailure) Unwrap() error {
	return ErrServiceFailed
}
