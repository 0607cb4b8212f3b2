package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
)

// behavior — поведение процесса задачи в тестах.
type behavior struct {
	exitAfter  time.Duration // 0 — работает до остановки (для oneshot — завершается сразу)
	exitCode   int
	ignoreStop bool
	output     []string
	launchErr  error
	// afterRun вызывается после завершения oneshot/cron, до возврата из Run
	afterRun func()
}

type launch struct {
	task    string
	attempt int
	at      time.Time
}

// fakeLauncher — Launcher без реальных процессов.
type fakeLauncher struct {
	mu       sync.Mutex
	script   map[string]func(attempt int) behavior
	launches []launch
	nextPID  int
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{
		script:  make(map[string]func(int) behavior),
		nextPID: 1000,
	}
}

func (f *fakeLauncher) on(task string, fn func(attempt int) behavior) *fakeLauncher {
	f.script[task] = fn
	return f
}

func (f *fakeLauncher) begin(rec *domain.Execution) (behavior, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.launches = append(f.launches, launch{task: rec.Task, attempt: rec.Attempt, at: time.Now()})
	f.nextPID++

	var b behavior
	if fn, ok := f.script[rec.Task]; ok {
		b = fn(rec.Attempt)
	}
	return b, f.nextPID
}

func (f *fakeLauncher) launchesOf(task string) []launch {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []launch
	for _, l := range f.launches {
		if l.task == task {
			out = append(out, l)
		}
	}
	return out
}

func (f *fakeLauncher) order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.launches))
	for _, l := range f.launches {
		out = append(out, l.task)
	}
	return out
}

func finishWithCode(rec *domain.Execution, code int) {
	if code == 0 {
		rec.MarkFinished(domain.ExecutionSucceeded, 0, "")
		return
	}
	rec.MarkFinished(domain.ExecutionFailed, code, fmt.Sprintf("exit status %d", code))
}

func (f *fakeLauncher) Run(ctx context.Context, task *domain.TaskDef, rec *domain.Execution, kill <-chan struct{}) (*domain.Execution, error) {
	b, pid := f.begin(rec)
	if b.launchErr != nil {
		rec.MarkFinished(domain.ExecutionFailed, -1, b.launchErr.Error())
		return rec, b.launchErr
	}

	rec.MarkRunning(pid)
	if b.exitAfter > 0 {
		cancelled := ctx.Done()
		if b.ignoreStop {
			cancelled = nil
		}
		select {
		case <-time.After(b.exitAfter):
		case <-cancelled:
			rec.MarkFinished(domain.ExecutionKilled, 137, "cancelled")
			return rec, nil
		case <-kill:
			rec.MarkFinished(domain.ExecutionKilled, 137, "killed")
			return rec, nil
		}
	}

	rec.Output = b.output
	finishWithCode(rec, b.exitCode)
	if b.afterRun != nil {
		b.afterRun()
	}
	return rec, nil
}

func (f *fakeLauncher) Start(ctx context.Context, task *domain.TaskDef, rec *domain.Execution) (Process, error) {
	b, pid := f.begin(rec)
	if b.launchErr != nil {
		rec.MarkFinished(domain.ExecutionFailed, -1, b.launchErr.Error())
		return nil, b.launchErr
	}

	rec.MarkRunning(pid)
	p := &fakeProcess{
		rec:    rec.Clone(),
		b:      b,
		done:   make(chan struct{}),
		stopCh: make(chan struct{}),
		killCh: make(chan struct{}),
	}
	go p.run()
	return p, nil
}

// fakeProcess — сервис, управляемый behavior.
type fakeProcess struct {
	rec      *domain.Execution
	b        behavior
	done     chan struct{}
	stopCh   chan struct{}
	killCh   chan struct{}
	stopOnce sync.Once
	killOnce sync.Once
}

func (p *fakeProcess) run() {
	var exit <-chan time.Time
	if p.b.exitAfter > 0 {
		exit = time.After(p.b.exitAfter)
	}
	stop := p.stopCh
	if p.b.ignoreStop {
		stop = nil
	}

	select {
	case <-exit:
		p.rec.Output = p.b.output
		finishWithCode(p.rec, p.b.exitCode)
	case <-stop:
		p.rec.MarkFinished(domain.ExecutionSucceeded, 0, "")
	case <-p.killCh:
		p.rec.MarkFinished(domain.ExecutionKilled, 137, "killed")
	}
	close(p.done)
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Wait() *domain.Execution {
	<-p.done
	return p.rec
}

func (p *fakeProcess) Stop(grace time.Duration) bool {
	p.stopOnce.Do(func() { close(p.stopCh) })

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return false
	case <-timer.C:
	}
	p.Kill()
	<-p.done
	return true
}

func (p *fakeProcess) Kill() {
	p.killOnce.Do(func() { close(p.killCh) })
}

// fakeRecorder запоминает всё, что получил.
type fakeRecorder struct {
	mu     sync.Mutex
	states []domain.RunState
	execs  []*domain.Execution
	err    error
	// gate, если задан, задерживает каждую запись до закрытия
	gate chan struct{}
}

func (r *fakeRecorder) RecordRun(_ context.Context, run *domain.Run) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.states); n == 0 || r.states[n-1] != run.State {
		r.states = append(r.states, run.State)
	}
	return r.err
}

func (r *fakeRecorder) RecordExecution(_ context.Context, exec *domain.Execution) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.execs = append(r.execs, exec)
	return r.err
}

func (r *fakeRecorder) runStates() []domain.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RunState(nil), r.states...)
}
