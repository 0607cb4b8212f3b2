//go:build unix

package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/runner"
)

func newProcessOrchestrator(spec *domain.GroupSpec, killGrace time.Duration) *Orchestrator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := runner.New(runner.Config{KillGrace: killGrace, Logger: logger})
	return New(Config{
		Spec:     spec,
		Launcher: NewLauncher(r),
		Logger:   logger,
	})
}

func shTaskDef(name string, kind domain.TaskKind, script string) domain.TaskDef {
	return domain.TaskDef{Name: name, Kind: kind, Command: domain.Command{"sh", "-c", script}}
}

func TestOrchestrator_KillInterruptsOneShotGrace(t *testing.T) {
	spec := testSpec(
		shTaskDef("migrate", domain.KindOneShot, "trap '' TERM; sleep 30"),
		shTaskDef("web", domain.KindService, "sleep 30"),
	)
	o := newProcessOrchestrator(spec, 5*time.Second)

	start := time.Now()
	ch := runAsync(o, context.Background())
	time.AfterFunc(300*time.Millisecond, o.Shutdown)
	time.AfterFunc(400*time.Millisecond, o.Kill)

	res := waitResult(t, ch, 4*time.Second)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, ExitOneShotFailed, res.ExitCode)

	history := o.History("migrate")
	require.Len(t, history, 1)
	assert.Equal(t, domain.ExecutionKilled, history[0].Status)
	assert.Equal(t, 128+9, history[0].ExitCode)
	assert.Empty(t, o.History("web"))
}

func TestOrchestrator_KillInterruptsCronGrace(t *testing.T) {
	cron := shTaskDef("clearsessions", domain.KindCron, "trap '' TERM; sleep 30")
	cron.Schedule = "@every 1s"
	spec := testSpec(shTaskDef("web", domain.KindService, "sleep 30"), cron)
	o := newProcessOrchestrator(spec, 5*time.Second)

	ch := runAsync(o, context.Background())
	require.Eventually(t, func() bool {
		for _, m := range o.Snapshot().Members {
			if m.Task == "web" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	// Первый запуск cron через секунду; даём shell установить trap
	time.Sleep(1300 * time.Millisecond)

	start := time.Now()
	o.Shutdown()
	time.AfterFunc(100*time.Millisecond, o.Kill)
	waitResult(t, ch, 4*time.Second)

	assert.Less(t, time.Since(start), 2*time.Second)

	history := o.History("clearsessions")
	require.NotEmpty(t, history)
	assert.Equal(t, domain.ExecutionKilled, history[0].Status)
}
