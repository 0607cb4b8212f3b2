package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
)

func cronTask(name, schedule string) domain.TaskDef {
	return domain.TaskDef{
		Name:     name,
		Kind:     domain.KindCron,
		Command:  domain.Command{"true"},
		Schedule: schedule,
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{
		Tasks: []domain.TaskDef{cronTask("clearsessions", "bogus")},
		Fire:  func(context.Context, *domain.TaskDef) {},
	})

	var schedErr *ScheduleError
	if !errors.As(err, &schedErr) {
		t.Fatalf("expected ScheduleError, got %v", err)
	}
	if schedErr.Task != "clearsessions" {
		t.Errorf("expected task name in error, got %q", schedErr.Task)
	}
}

func TestScheduler_FiresDueTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int32
	sched, err := New(Config{
		Tasks: []domain.TaskDef{cronTask("clearsessions", "@every 1s")},
		Fire: func(_ context.Context, task *domain.TaskDef) {
			if task.Name != "clearsessions" {
				t.Errorf("unexpected task %q", task.Name)
			}
			if fired.Add(1) == 1 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not fire and stop in time")
	}

	if fired.Load() != 1 {
		t.Errorf("expected exactly 1 fire, got %d", fired.Load())
	}
}

func TestScheduler_RunsDoNotOverlap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3500*time.Millisecond)
	defer cancel()

	var running, maxRunning, fired atomic.Int32
	sched, err := New(Config{
		Tasks: []domain.TaskDef{cronTask("report", "@every 1s")},
		Fire: func(ctx context.Context, _ *domain.TaskDef) {
			n := running.Add(1)
			if n > maxRunning.Load() {
				maxRunning.Store(n)
			}
			fired.Add(1)

			// Выполнение дольше интервала
			select {
			case <-ctx.Done():
			case <-time.After(1500 * time.Millisecond):
			}
			running.Add(-1)
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sched.Run(ctx)

	if maxRunning.Load() != 1 {
		t.Errorf("executions overlapped: max concurrent %d", maxRunning.Load())
	}
	if fired.Load() == 0 {
		t.Error("expected at least one fire")
	}
}

func TestScheduler_StopsWithoutFiring(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sched, err := New(Config{
		Tasks: []domain.TaskDef{cronTask("nightly", "0 3 * * *")},
		Fire: func(context.Context, *domain.TaskDef) {
			t.Error("task should not fire")
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.Len() != 1 {
		t.Errorf("expected 1 job, got %d", sched.Len())
	}

	cancel()
	sched.Run(ctx)
}
