package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution — запись об одном запуске задачи.
//
// Execution создаётся Orchestrator'ом перед запуском процесса.
// После перехода в финальный статус запись не меняется; перезапуск
// сервиса создаёт новую Execution с Attempt+1.
type Execution struct {
	// ID — уникальный идентификатор запуска.
	ID uuid.UUID `json:"id"`

	// RunID — прогон оркестратора, к которому относится запуск.
	RunID uuid.UUID `json:"run_id"`

	// Task — имя задачи.
	Task string `json:"task"`

	// Kind — тип задачи.
	Kind TaskKind `json:"kind"`

	// Attempt — номер запуска задачи в рамках прогона (начиная с 1).
	Attempt int `json:"attempt"`

	// PID — идентификатор процесса (0, если процесс не стартовал).
	PID int `json:"pid,omitempty"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// ExitCode — код выхода; -1, если процесс убит сигналом или не стартовал.
	ExitCode int `json:"exit_code"`

	// StartedAt — время запуска процесса.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// EndedAt — время завершения.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// Error — текст ошибки (ошибка запуска, таймаут, сигнал).
	Error string `json:"error,omitempty"`

	// Output — последние строки stdout/stderr.
	Output []string `json:"output,omitempty"`
}

// NewExecution создаёт запись в статусе PENDING.
func NewExecution(runID uuid.UUID, task *TaskDef, attempt int) *Execution {
	return &Execution{
		ID:       uuid.New(),
		RunID:    runID,
		Task:     task.Name,
		Kind:     task.Kind,
		Attempt:  attempt,
		Status:   ExecutionPending,
		ExitCode: -1,
	}
}

// MarkRunning переводит запись в RUNNING.
func (e *Execution) MarkRunning(pid int) {
	now := time.Now()
	e.Status = ExecutionRunning
	e.PID = pid
	e.StartedAt = &now
}

// MarkFinished переводит запись в финальный статус.
func (e *Execution) MarkFinished(status ExecutionStatus, exitCode int, errMsg string) {
	now := time.Now()
	e.Status = status
	e.ExitCode = exitCode
	e.EndedAt = &now
	e.Error = errMsg
}

// IsFinished возвращает true, если запуск завершён.
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// Succeeded возвращает true для успешного завершения.
func (e *Execution) Succeeded() bool {
	return e.Status == ExecutionSucceeded
}

// Duration возвращает продолжительность работы процесса.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.EndedAt == nil {
		return 0
	}
	return e.EndedAt.Sub(*e.StartedAt)
}

// Clone возвращает копию записи, безопасную для передачи между горутинами.
func (e *Execution) Clone() *Execution {
	c := *e
	if e.StartedAt != nil {
		t := *e.StartedAt
		c.StartedAt = &t
	}
	if e.EndedAt != nil {
		t := *e.EndedAt
		c.EndedAt = &t
	}
	if e.Output != nil {
		c.Output = append([]string(nil), e.Output...)
	}
	return &c
}
