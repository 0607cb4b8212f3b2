package domain

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskDef — статическое описание одной задачи из конфигурации.
//
// TaskDef задаётся один раз при старте и не меняется во время работы.
type TaskDef struct {
	// Name — уникальное имя задачи ("migrate", "gunicorn").
	Name string `yaml:"name" json:"name"`

	// Kind — oneshot, service или cron.
	Kind TaskKind `yaml:"kind" json:"kind"`

	// Command — argv команды. Строка в YAML превращается в ["sh", "-c", строка].
	Command Command `yaml:"command" json:"command"`

	// DependsOn — имена задач, которые должны завершиться раньше.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Timeout — максимальное время выполнения (только для oneshot/cron).
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Restart — политика перезапуска (только для service).
	Restart RestartPolicy `yaml:"restart,omitempty" json:"restart,omitempty"`

	// Env — дополнительные переменные окружения задачи.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Dir — рабочая директория процесса.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	// StopSignal — сигнал graceful остановки: TERM (по умолчанию), INT, QUIT, HUP.
	StopSignal string `yaml:"stop_signal,omitempty" json:"stop_signal,omitempty"`

	// Schedule — cron-выражение (только для kind=cron).
	Schedule string `yaml:"schedule,omitempty" json:"schedule,omitempty"`
}

// IsOneShot возвращает true для one-shot задачи.
func (t *TaskDef) IsOneShot() bool { return t.Kind == KindOneShot }

// IsService возвращает true для сервиса.
func (t *TaskDef) IsService() bool { return t.Kind == KindService }

// IsCron возвращает true для задачи по расписанию.
func (t *TaskDef) IsCron() bool { return t.Kind == KindCron }

// GroupSpec — содержимое файла конфигурации: настройки и список задач.
type GroupSpec struct {
	// Version — версия формата конфигурации.
	Version int `yaml:"version,omitempty" json:"version,omitempty"`

	// Settings — таймауты и параметры перезапуска.
	Settings Settings `yaml:"settings,omitempty" json:"settings"`

	// Vars — переменные для шаблонов команд ({{ .Vars.port }}).
	Vars map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`

	// Env — переменные окружения для всех задач группы.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Tasks — задачи в порядке объявления.
	Tasks []TaskDef `yaml:"tasks" json:"tasks"`
}

// Task возвращает задачу по имени.
func (s *GroupSpec) Task(name string) *TaskDef {
	for i := range s.Tasks {
		if s.Tasks[i].Name == name {
			return &s.Tasks[i]
		}
	}
	return nil
}

// OneShots возвращает one-shot задачи в порядке объявления.
func (s *GroupSpec) OneShots() []TaskDef { return s.byKind(KindOneShot) }

// Services возвращает сервисы в порядке объявления.
func (s *GroupSpec) Services() []TaskDef { return s.byKind(KindService) }

// CronTasks возвращает задачи по расписанию в порядке объявления.
func (s *GroupSpec) CronTasks() []TaskDef { return s.byKind(KindCron) }

func (s *GroupSpec) byKind(kind TaskKind) []TaskDef {
	tasks := make([]TaskDef, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.Kind == kind {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// Settings — параметры жизненного цикла группы.
type Settings struct {
	// DrainTimeout — сколько ждать каждый сервис после сигнала остановки.
	DrainTimeout Duration `yaml:"drain_timeout,omitempty" json:"drain_timeout"`

	// EscalationTimeout — через сколько после первого сигнала повторный сигнал убивает всё.
	EscalationTimeout Duration `yaml:"escalation_timeout,omitempty" json:"escalation_timeout"`

	// KillGrace — пауза между stop-сигналом и SIGKILL для oneshot по таймауту.
	KillGrace Duration `yaml:"kill_grace,omitempty" json:"kill_grace"`

	// Restart — защита от restart storm.
	Restart RestartSettings `yaml:"restart,omitempty" json:"restart"`
}

// RestartSettings — параметры backoff при частых падениях сервиса.
type RestartSettings struct {
	// Window — скользящее окно подсчёта падений.
	Window Duration `yaml:"window,omitempty" json:"window"`

	// Burst — число падений в окне, после которого включается backoff.
	Burst int `yaml:"burst,omitempty" json:"burst"`

	// InitialBackoff — первая задержка перед перезапуском.
	InitialBackoff Duration `yaml:"initial_backoff,omitempty" json:"initial_backoff"`

	// MaxBackoff — верхняя граница задержки.
	MaxBackoff Duration `yaml:"max_backoff,omitempty" json:"max_backoff"`

	// GiveUp — сколько backoff-перезапусков подряд допускается (0 — без ограничения).
	GiveUp int `yaml:"give_up,omitempty" json:"give_up"`
}

// Значения по умолчанию для Settings.
const (
	DefaultDrainTimeout      = 30 * time.Second
	DefaultEscalationTimeout = 10 * time.Second
	DefaultKillGrace         = 5 * time.Second
	DefaultRestartWindow     = 10 * time.Second
	DefaultRestartBurst      = 5
	DefaultInitialBackoff    = time.Second
	DefaultMaxBackoff        = 30 * time.Second
	DefaultRestartGiveUp     = 10
)

// ApplyDefaults заполняет незаданные поля значениями по умолчанию.
func (s *Settings) ApplyDefaults() {
	if s.DrainTimeout <= 0 {
		s.DrainTimeout = Duration(DefaultDrainTimeout)
	}
	if s.EscalationTimeout <= 0 {
		s.EscalationTimeout = Duration(DefaultEscalationTimeout)
	}
	if s.KillGrace <= 0 {
		s.KillGrace = Duration(DefaultKillGrace)
	}
	if s.Restart.Window <= 0 {
		s.Restart.Window = Duration(DefaultRestartWindow)
	}
	if s.Restart.Burst <= 0 {
		s.Restart.Burst = DefaultRestartBurst
	}
	if s.Restart.InitialBackoff <= 0 {
		s.Restart.InitialBackoff = Duration(DefaultInitialBackoff)
	}
	if s.Restart.MaxBackoff <= 0 {
		s.Restart.MaxBackoff = Duration(DefaultMaxBackoff)
	}
	if s.Restart.GiveUp < 0 {
		s.Restart.GiveUp = 0
	}
}

// Command — argv команды.
//
// В YAML допускается список ("python", "manage.py", "migrate")
// или строка, которая выполняется через sh -c.
type Command []string

// UnmarshalYAML разбирает список или строку.
func (c *Command) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*c = nil
			return nil
		}
		*c = Command{"sh", "-c", s}
		return nil
	case yaml.SequenceNode:
		var args []string
		if err := node.Decode(&args); err != nil {
			return err
		}
		*c = args
		return nil
	default:
		return fmt.Errorf("line %d: command must be a string or a list", node.Line)
	}
}

// Duration — time.Duration с YAML/JSON представлением вида "30s".
type Duration time.Duration

// Std возвращает значение как time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String возвращает строковое представление.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML разбирает строку через time.ParseDuration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText нужен для JSON-вывода (dry-run, API).
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
