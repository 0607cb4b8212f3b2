package engine

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
)

const deployConfig = `
version: 1
settings:
  drain_timeout: 20s
  restart:
    burst: 3
vars:
  port: "8000"
env:
  DJANGO_SETTINGS_MODULE: app.settings.production
tasks:
  - name: collectstatic
    kind: oneshot
    command: ["python", "manage.py", "collectstatic", "--noinput"]
    depends_on: [migrate]
  - name: migrate
    kind: oneshot
    command: python manage.py migrate --noinput
    timeout: 5m
  - name: web
    kind: service
    command: ["gunicorn", "app.wsgi:application", "--bind", "0.0.0.0:{{ .Vars.port }}"]
    restart: always
  - name: worker
    kind: service
    command: ["celery", "-A", "app", "worker"]
    stop_signal: sigint
  - name: clearsessions
    kind: cron
    schedule: "0 3 * * *"
    command: ["python", "manage.py", "clearsessions"]
`

func TestParse_DeployConfig(t *testing.T) {
	spec, err := Parse([]byte(deployConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(spec.Tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(spec.Tasks))
	}

	migrate := spec.Task("migrate")
	if !reflect.DeepEqual([]string(migrate.Command), []string{"sh", "-c", "python manage.py migrate --noinput"}) {
		t.Errorf("string command should run via sh -c, got %v", migrate.Command)
	}
	if migrate.Timeout.Std() != 5*time.Minute {
		t.Errorf("expected 5m timeout, got %s", migrate.Timeout)
	}
	if migrate.Restart != domain.RestartNever {
		t.Errorf("oneshot should default to never, got %s", migrate.Restart)
	}

	if spec.Task("web").Restart != domain.RestartAlways {
		t.Error("web restart policy should be always")
	}
	if spec.Task("worker").Restart != domain.RestartOnFailure {
		t.Error("service should default to on-failure")
	}
	if spec.Task("worker").StopSignal != "INT" {
		t.Errorf("stop signal should be normalized to INT, got %q", spec.Task("worker").StopSignal)
	}
	if spec.Task("web").StopSignal != "TERM" {
		t.Errorf("stop signal should default to TERM, got %q", spec.Task("web").StopSignal)
	}

	// Настройки: заданные сохраняются, остальные получают значения по умолчанию
	if spec.Settings.DrainTimeout.Std() != 20*time.Second {
		t.Errorf("expected drain timeout 20s, got %s", spec.Settings.DrainTimeout)
	}
	if spec.Settings.Restart.Burst != 3 {
		t.Errorf("expected burst 3, got %d", spec.Settings.Restart.Burst)
	}
	if spec.Settings.Restart.Window.Std() != domain.DefaultRestartWindow {
		t.Errorf("expected default window, got %s", spec.Settings.Restart.Window)
	}
	if spec.Settings.KillGrace.Std() != domain.DefaultKillGrace {
		t.Errorf("expected default kill grace, got %s", spec.Settings.KillGrace)
	}

	if len(spec.OneShots()) != 2 || len(spec.Services()) != 2 || len(spec.CronTasks()) != 1 {
		t.Error("unexpected task partition by kind")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "empty document",
			yaml:    ``,
			wantErr: ErrEmptyTasks,
		},
		{
			name:    "no tasks",
			yaml:    `tasks: []`,
			wantErr: ErrEmptyTasks,
		},
		{
			name: "duplicate name",
			yaml: `
tasks:
  - {name: a, kind: oneshot, command: "true"}
  - {name: a, kind: service, command: "sleep 1"}
`,
			wantErr: ErrDuplicateTask,
		},
		{
			name: "unknown dependency",
			yaml: `
tasks:
  - {name: a, kind: oneshot, command: "true", depends_on: [b]}
`,
			wantErr: ErrMissingDependency,
		},
		{
			name: "self dependency",
			yaml: `
tasks:
  - {name: a, kind: oneshot, command: "true", depends_on: [a]}
`,
			wantErr: ErrSelfDependency,
		},
		{
			name: "cycle",
			yaml: `
tasks:
  - {name: a, kind: oneshot, command: "true", depends_on: [c]}
  - {name: b, kind: oneshot, command: "true", depends_on: [a]}
  - {name: c, kind: oneshot, command: "true", depends_on: [b]}
`,
			wantErr: ErrCyclicDependency,
		},
		{
			name: "oneshot waits for a service",
			yaml: `
tasks:
  - {name: web, kind: service, command: "sleep 100"}
  - {name: warmup, kind: oneshot, command: "true", depends_on: [web]}
`,
			wantErr: ErrUnsatisfiableDependency,
		},
		{
			name: "unknown kind",
			yaml: `
tasks:
  - {name: a, kind: daemon, command: "true"}
`,
			wantErr: ErrUnknownKind,
		},
		{
			name: "empty command",
			yaml: `
tasks:
  - {name: a, kind: oneshot, command: []}
`,
			wantErr: ErrEmptyCommand,
		},
		{
			name: "restart policy on oneshot",
			yaml: `
tasks:
  - {name: a, kind: oneshot, command: "true", restart: always}
`,
			wantErr: ErrInvalidRestartPolicy,
		},
		{
			name: "unknown restart policy",
			yaml: `
tasks:
  - {name: a, kind: service, command: "true", restart: sometimes}
`,
			wantErr: ErrInvalidRestartPolicy,
		},
		{
			name: "service with timeout",
			yaml: `
tasks:
  - {name: a, kind: service, command: "true", timeout: 10s}
`,
			wantErr: ErrInvalidTimeout,
		},
		{
			name: "bad stop signal",
			yaml: `
tasks:
  - {name: a, kind: service, command: "true", stop_signal: USR9}
`,
			wantErr: ErrInvalidStopSignal,
		},
		{
			name: "cron without schedule",
			yaml: `
tasks:
  - {name: a, kind: cron, command: "true"}
`,
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "invalid cron expression",
			yaml: `
tasks:
  - {name: a, kind: cron, command: "true", schedule: "every day"}
`,
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "schedule on a service",
			yaml: `
tasks:
  - {name: a, kind: service, command: "true", schedule: "* * * * *"}
`,
			wantErr: ErrInvalidSchedule,
		},
		{
			name: "unsupported version",
			yaml: `
version: 7
tasks:
  - {name: a, kind: oneshot, command: "true"}
`,
			wantErr: ErrUnsupportedVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse([]byte(tt.yaml))
			if spec != nil {
				t.Error("expected nil spec on error")
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %T (%v)", err, err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(`
tasks:
  - {name: a, kind: oneshot, command: "true", dependson: [b]}
`))

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for unknown field, got %v", err)
	}
}

func TestParse_CycleErrorNamesMember(t *testing.T) {
	_, err := Parse([]byte(`
tasks:
  - {name: a, kind: oneshot, command: "true", depends_on: [b]}
  - {name: b, kind: oneshot, command: "true", depends_on: [a]}
`))

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError inside ConfigError, got %v", err)
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %T", err)
	}
	if cfgErr.Task != "a" && cfgErr.Task != "b" {
		t.Errorf("expected cycle member in ConfigError.Task, got %q", cfgErr.Task)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overseer.yaml")
	if err := os.WriteFile(path, []byte(deployConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	spec, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Task("web") == nil {
		t.Error("web task should be loaded")
	}

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("missing file should be a ConfigError, got %v", err)
	}
}

func TestLoadFile_DeployExample(t *testing.T) {
	spec, err := LoadFile(filepath.Join("..", "..", "deploy", "overseer.yaml"))
	if err != nil {
		t.Fatalf("example config should load: %v", err)
	}

	order, err := Order(spec.OneShots())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"migrate", "collectstatic"}) {
		t.Errorf("unexpected one-shot order: %v", order)
	}

	t.Setenv("CELERY_LOG_LEVEL", "")
	resolved, err := ResolveAll(spec, NewGroupContext(spec))
	if err != nil {
		t.Fatalf("example commands should render: %v", err)
	}
	worker := resolved["worker"].Args
	if worker[len(worker)-1] != "info" {
		t.Errorf("celery log level should default to info, got %v", worker)
	}
	if len(spec.Services()) != 5 || len(spec.CronTasks()) != 1 {
		t.Errorf("expected 5 services and 1 cron task, got %d and %d", len(spec.Services()), len(spec.CronTasks()))
	}
}

func TestWarnings_ServiceDependsOnService(t *testing.T) {
	spec, err := Parse([]byte(`
tasks:
  - {name: migrate, kind: oneshot, command: "true"}
  - {name: web, kind: service, command: "sleep 100", depends_on: [migrate]}
  - {name: ws, kind: service, command: "sleep 100", depends_on: [web]}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	warnings := Warnings(spec)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
}
