package engine

import (
	"errors"
	"strings"
)

// Ошибки валидации конфигурации.
var (
	// ErrEmptyTasks — конфигурация не содержит задач.
	ErrEmptyTasks = errors.New("config has no tasks")

	// ErrEmptyTaskName — задача без имени.
	ErrEmptyTaskName = errors.New("task has empty name")

	// ErrDuplicateTask — несколько задач с одинаковым именем.
	ErrDuplicateTask = errors.New("duplicate task name")

	// ErrUnknownKind — неизвестный тип задачи.
	ErrUnknownKind = errors.New("unknown task kind")

	// ErrEmptyCommand — у задачи нет команды.
	ErrEmptyCommand = errors.New("task has empty command")

	// ErrInvalidRestartPolicy — неизвестная или неприменимая политика перезапуска.
	ErrInvalidRestartPolicy = errors.New("invalid restart policy")

	// ErrInvalidStopSignal — неизвестный сигнал остановки.
	ErrInvalidStopSignal = errors.New("invalid stop signal")

	// ErrInvalidSchedule — ошибка в cron-выражении или расписание у не-cron задачи.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrInvalidTimeout — таймаут у сервиса или отрицательный таймаут.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrMissingDependency — задача зависит от несуществующей задачи.
	ErrMissingDependency = errors.New("task depends on unknown task")

	// ErrSelfDependency — задача зависит от самой себя.
	ErrSelfDependency = errors.New("task depends on itself")

	// ErrUnsatisfiableDependency — one-shot зависит от сервиса или cron-задачи.
	ErrUnsatisfiableDependency = errors.New("oneshot task depends on a non-oneshot task")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrUnsupportedVersion — неизвестная версия формата конфигурации.
	ErrUnsupportedVersion = errors.New("unsupported config version")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")

	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")
)

// ConfigError — ошибка конфигурации с контекстом.
//
// Возвращается до запуска любого процесса.
type ConfigError struct {
	Task    string // имя задачи, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ConfigError) Error() string {
	if e.Task != "" {
		return "task " + e.Task + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError создаёт новую ошибку конфигурации.
func NewConfigError(task, field, message string, err error) *ConfigError {
	return &ConfigError{
		Task:    task,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// CycleError — цикл в графе зависимостей.
type CycleError struct {
	// Cycle — путь цикла; первый и последний элементы совпадают.
	Cycle []string
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return ErrCyclicDependency.Error()
	}
	return ErrCyclicDependency.Error() + ": " + strings.Join(e.Cycle, " -> ")
}

// Unwrap возвращает ErrCyclicDependency.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// Member возвращает одну из задач цикла.
func (e *CycleError) Member() string {
	if len(e.Cycle) == 0 {
		return ""
	}
	return e.Cycle[0]
}
