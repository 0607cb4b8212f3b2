package domain

// RunState — состояние прогона оркестратора.
//
// Жизненный цикл:
//
//	INIT → RUNNING_ONESHOTS → STARTING_SERVICES → MONITORING → DRAINING → TERMINATED
//	                        ↘ FAILED → TERMINATED
type RunState string

const (
	// RunStateInit — конфигурация загружена, ничего не запущено.
	RunStateInit RunState = "INIT"

	// RunStateRunningOneShots — последовательное выполнение one-shot шагов.
	RunStateRunningOneShots RunState = "RUNNING_ONESHOTS"

	// RunStateStartingServices — запуск всех сервисов.
	RunStateStartingServices RunState = "STARTING_SERVICES"

	// RunStateMonitoring — сервисы работают, оркестратор следит за ними.
	RunStateMonitoring RunState = "MONITORING"

	// RunStateDraining — graceful остановка всех сервисов.
	RunStateDraining RunState = "DRAINING"

	// RunStateFailed — one-shot шаг упал, сервисы не запускаются.
	RunStateFailed RunState = "FAILED"

	// RunStateTerminated — прогон завершён, все процессы остановлены.
	RunStateTerminated RunState = "TERMINATED"
)

// IsTerminal возвращает true для финального состояния.
func (s RunState) IsTerminal() bool {
	return s == RunStateTerminated
}

// CanTransitionTo проверяет, разрешён ли переход из s в next.
func (s RunState) CanTransitionTo(next RunState) bool {
	switch s {
	case RunStateInit:
		return next == RunStateRunningOneShots || next == RunStateFailed
	case RunStateRunningOneShots:
		return next == RunStateStartingServices || next == RunStateFailed
	case RunStateStartingServices:
		return next == RunStateMonitoring || next == RunStateDraining
	case RunStateMonitoring:
		return next == RunStateDraining
	case RunStateDraining, RunStateFailed:
		return next == RunStateTerminated
	default:
		return false
	}
}

// ExecutionStatus — статус одного запуска задачи.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ KILLED (таймаут или принудительная остановка)
type ExecutionStatus string

const (
	// ExecutionPending — запись создана, процесс ещё не запущен.
	ExecutionPending ExecutionStatus = "PENDING"

	// ExecutionRunning — процесс работает.
	ExecutionRunning ExecutionStatus = "RUNNING"

	// ExecutionSucceeded — процесс завершился с кодом 0
	// (или с кодом 0 либо от сигнала остановки после запрошенного graceful stop).
	ExecutionSucceeded ExecutionStatus = "SUCCEEDED"

	// ExecutionFailed — ненулевой код выхода или ошибка запуска.
	ExecutionFailed ExecutionStatus = "FAILED"

	// ExecutionKilled — процесс убит supervisor'ом (SIGKILL).
	ExecutionKilled ExecutionStatus = "KILLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionSucceeded, ExecutionFailed, ExecutionKilled:
		return true
	default:
		return false
	}
}

// TaskKind — тип задачи.
type TaskKind string

const (
	// KindOneShot — шаг, который должен отработать и завершиться (миграции, collectstatic).
	KindOneShot TaskKind = "oneshot"

	// KindService — долгоживущий процесс (gunicorn, daphne, celery worker).
	KindService TaskKind = "service"

	// KindCron — one-shot команда, запускаемая по расписанию пока работают сервисы.
	KindCron TaskKind = "cron"
)

// IsValid проверяет, что тип известен.
func (k TaskKind) IsValid() bool {
	switch k {
	case KindOneShot, KindService, KindCron:
		return true
	default:
		return false
	}
}

// RestartPolicy — политика перезапуска сервиса после выхода.
type RestartPolicy string

const (
	// RestartNever — не перезапускать.
	RestartNever RestartPolicy = "never"

	// RestartOnFailure — перезапускать только при ненулевом коде выхода.
	RestartOnFailure RestartPolicy = "on-failure"

	// RestartAlways — перезапускать при любом выходе.
	RestartAlways RestartPolicy = "always"
)

// IsValid проверяет, что политика известна.
func (p RestartPolicy) IsValid() bool {
	switch p {
	case RestartNever, RestartOnFailure, RestartAlways:
		return true
	default:
		return false
	}
}

// ShouldRestart решает, нужен ли перезапуск после выхода процесса.
// failed=true означает неуспешное завершение (в т.ч. ошибку старта).
func (p RestartPolicy) ShouldRestart(failed bool) bool {
	switch p {
	case RestartAlways:
		return true
	case RestartOnFailure:
		return failed
	default:
		return false
	}
}
