package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/scheduler"
)

// Поддерживаемая версия формата конфигурации.
const currentVersion = 1

// Допустимые сигналы остановки.
var validStopSignals = map[string]bool{
	"TERM": true,
	"INT":  true,
	"QUIT": true,
	"HUP":  true,
}

// LoadFile читает и валидирует конфигурацию из файла.
func LoadFile(path string) (*domain.GroupSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigError("", "", fmt.Sprintf("read config: %v", err), err)
	}
	return Parse(data)
}

// Parse разбирает YAML, заполняет значения по умолчанию и валидирует результат.
//
// Неизвестные поля считаются ошибкой: опечатка в "depends_on"
// иначе молча отключила бы зависимость.
func Parse(data []byte) (*domain.GroupSpec, error) {
	var spec domain.GroupSpec

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewConfigError("", "", "config is empty", ErrEmptyTasks)
		}
		return nil, NewConfigError("", "", fmt.Sprintf("parse config: %v", err), err)
	}

	ApplyDefaults(&spec)

	if err := Validate(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ApplyDefaults заполняет настройки и поля задач значениями по умолчанию.
func ApplyDefaults(spec *domain.GroupSpec) {
	spec.Settings.ApplyDefaults()

	for i := range spec.Tasks {
		task := &spec.Tasks[i]
		task.Kind = domain.TaskKind(strings.ToLower(string(task.Kind)))

		if task.Restart == "" {
			if task.Kind == domain.KindService {
				task.Restart = domain.RestartOnFailure
			} else {
				task.Restart = domain.RestartNever
			}
		}

		task.StopSignal = strings.TrimPrefix(strings.ToUpper(task.StopSignal), "SIG")
		if task.StopSignal == "" {
			task.StopSignal = "TERM"
		}
	}
}

// Validate выполняет полную валидацию конфигурации.
//
// Проверяет:
// - Наличие задач
// - Уникальность имён
// - Тип, команду, политику перезапуска, таймаут, сигнал и расписание каждой задачи
// - Валидность зависимостей (depends_on)
// - Отсутствие циклов
func Validate(spec *domain.GroupSpec) error {
	if spec == nil || len(spec.Tasks) == 0 {
		return NewConfigError("", "tasks", "config has no tasks", ErrEmptyTasks)
	}

	if spec.Version != 0 && spec.Version != currentVersion {
		return NewConfigError("", "version",
			fmt.Sprintf("unsupported config version: %d", spec.Version), ErrUnsupportedVersion)
	}

	names := make(map[string]*domain.TaskDef, len(spec.Tasks))
	for i := range spec.Tasks {
		task := &spec.Tasks[i]
		if err := ValidateTask(task, names); err != nil {
			return err
		}
	}

	if err := validateDependencies(spec.Tasks, names); err != nil {
		return err
	}

	if _, err := Order(spec.Tasks); err != nil {
		var cycleErr *CycleError
		if errors.As(err, &cycleErr) {
			return NewConfigError(cycleErr.Member(), "depends_on", cycleErr.Error(), cycleErr)
		}
		return err
	}

	return nil
}

// ValidateTask валидирует одну задачу.
// names — уже встреченные задачи (для проверки уникальности).
func ValidateTask(task *domain.TaskDef, names map[string]*domain.TaskDef) error {
	if task.Name == "" {
		return NewConfigError("", "name", "task has empty name", ErrEmptyTaskName)
	}

	if _, exists := names[task.Name]; exists {
		return NewConfigError(task.Name, "name",
			fmt.Sprintf("duplicate task name: %s", task.Name), ErrDuplicateTask)
	}
	names[task.Name] = task

	if !task.Kind.IsValid() {
		return NewConfigError(task.Name, "kind",
			fmt.Sprintf("unknown task kind: %q", task.Kind), ErrUnknownKind)
	}

	if len(task.Command) == 0 || task.Command[0] == "" {
		return NewConfigError(task.Name, "command", "task has empty command", ErrEmptyCommand)
	}

	if !task.Restart.IsValid() {
		return NewConfigError(task.Name, "restart",
			fmt.Sprintf("unknown restart policy: %q", task.Restart), ErrInvalidRestartPolicy)
	}
	if !task.IsService() && task.Restart != domain.RestartNever {
		return NewConfigError(task.Name, "restart",
			fmt.Sprintf("restart policy %q is only valid for services", task.Restart), ErrInvalidRestartPolicy)
	}

	if task.Timeout < 0 {
		return NewConfigError(task.Name, "timeout", "timeout must not be negative", ErrInvalidTimeout)
	}
	if task.IsService() && task.Timeout > 0 {
		return NewConfigError(task.Name, "timeout", "services cannot have a timeout", ErrInvalidTimeout)
	}

	if !validStopSignals[task.StopSignal] {
		return NewConfigError(task.Name, "stop_signal",
			fmt.Sprintf("unknown stop signal: %q", task.StopSignal), ErrInvalidStopSignal)
	}

	return validateSchedule(task)
}

// validateSchedule проверяет, что расписание задано ровно у cron-задач.
func validateSchedule(task *domain.TaskDef) error {
	if !task.IsCron() {
		if task.Schedule != "" {
			return NewConfigError(task.Name, "schedule",
				"schedule is only valid for cron tasks", ErrInvalidSchedule)
		}
		return nil
	}

	if task.Schedule == "" {
		return NewConfigError(task.Name, "schedule", "cron task has no schedule", ErrInvalidSchedule)
	}
	if err := scheduler.ValidateCronExpr(task.Schedule); err != nil {
		return NewConfigError(task.Name, "schedule", err.Error(), ErrInvalidSchedule)
	}
	return nil
}

// validateDependencies проверяет, что все depends_on ссылаются на существующие задачи
// и что one-shot не ждёт процесс, который никогда не завершится.
func validateDependencies(tasks []domain.TaskDef, names map[string]*domain.TaskDef) error {
	for i := range tasks {
		task := &tasks[i]

		for _, dep := range task.DependsOn {
			if dep == task.Name {
				return NewConfigError(task.Name, "depends_on",
					"task depends on itself", ErrSelfDependency)
			}

			target, ok := names[dep]
			if !ok {
				return NewConfigError(task.Name, "depends_on",
					fmt.Sprintf("depends on unknown task: %s", dep), ErrMissingDependency)
			}

			if task.IsOneShot() && !target.IsOneShot() {
				return NewConfigError(task.Name, "depends_on",
					fmt.Sprintf("oneshot task cannot depend on %s task %s", target.Kind, dep),
					ErrUnsatisfiableDependency)
			}
		}
	}

	return nil
}

// Warnings возвращает замечания к валидной конфигурации, которые не мешают запуску.
func Warnings(spec *domain.GroupSpec) []string {
	var warnings []string
	for i := range spec.Tasks {
		task := &spec.Tasks[i]
		if task.IsOneShot() {
			continue
		}
		for _, dep := range task.DependsOn {
			target := spec.Task(dep)
			if target != nil && !target.IsOneShot() {
				warnings = append(warnings, fmt.Sprintf(
					"task %s depends on %s task %s: ordering between long-running tasks is not enforced",
					task.Name, target.Kind, dep))
			}
		}
	}
	return warnings
}
