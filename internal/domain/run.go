package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один прогон оркестратора: от загрузки конфигурации до остановки всех процессов.
type Run struct {
	// ID — уникальный идентификатор прогона.
	ID uuid.UUID `json:"id"`

	// ConfigPath — путь к файлу конфигурации.
	ConfigPath string `json:"config_path,omitempty"`

	// State — текущее состояние конечного автомата.
	State RunState `json:"state"`

	// StartedAt — время создания прогона.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время перехода в TERMINATED.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// ExitCode — код выхода процесса оркестратора (валиден после TERMINATED).
	ExitCode int `json:"exit_code"`

	// Error — причина неуспешного завершения.
	Error string `json:"error,omitempty"`
}

// NewRun создаёт прогон в состоянии INIT.
func NewRun(configPath string) *Run {
	return &Run{
		ID:         uuid.New(),
		ConfigPath: configPath,
		State:      RunStateInit,
		StartedAt:  time.Now(),
	}
}

// Duration возвращает продолжительность прогона.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// IsFinished возвращает true, если прогон завершён.
func (r *Run) IsFinished() bool {
	return r.State.IsTerminal()
}

// MarkTerminated фиксирует финальное состояние и код выхода.
func (r *Run) MarkTerminated(exitCode int, errMsg string) {
	now := time.Now()
	r.State = RunStateTerminated
	r.FinishedAt = &now
	r.ExitCode = exitCode
	r.Error = errMsg
}
