package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/telemetry"
)

// member — живой сервис группы.
type member struct {
	task   *domain.TaskDef
	proc   Process
	rec    *domain.Execution
	cancel context.CancelFunc
}

// exitEvent — сообщение монитора о завершении сервиса.
type exitEvent struct {
	m      *member
	rec    *domain.Execution
	forced bool // убит после drain_timeout
}

// supervisor — фазы STARTING_SERVICES, MONITORING и DRAINING.
//
// Все поля, кроме каналов, принадлежат горутине run.
type supervisor struct {
	o *Orchestrator

	group    map[string]*member
	attempts map[string]int
	trackers map[string]*RestartTracker
	pending  map[string]*time.Timer

	events    chan exitEvent
	restartCh chan string
	loopDone  chan struct{}
	monitors  sync.WaitGroup

	draining  bool
	escalated bool

	cronCancel context.CancelFunc
	cronDone   chan struct{}

	drainTimeouts []*DrainTimeout
	failures      []error
}

func newSupervisor(o *Orchestrator) *supervisor {
	return &supervisor{
		o:         o,
		group:     make(map[string]*member),
		attempts:  make(map[string]int),
		trackers:  make(map[string]*RestartTracker),
		pending:   make(map[string]*time.Timer),
		events:    make(chan exitEvent),
		restartCh: make(chan string),
		loopDone:  make(chan struct{}),
	}
}

// run запускает сервисы, наблюдает за ними и останавливает группу.
func (s *supervisor) run() {
	defer close(s.loopDone)

	services := s.o.spec.Services()

	if s.o.drainRequested() {
		s.o.logger.Info("shutdown requested before services started")
		s.beginDrain()
		return
	}

	s.launchAll(services)
	s.o.mustTransition(domain.RunStateMonitoring)
	s.startCron()

	s.loop()

	s.stopCron()
	s.monitors.Wait()
}

// launchAll запускает все сервисы одновременно и только потом начинает наблюдение.
func (s *supervisor) launchAll(services []domain.TaskDef) {
	type launched struct {
		rec  *domain.Execution
		proc Process
		err  error
	}

	results := make([]launched, len(services))

	var g errgroup.Group
	for i := range services {
		i := i
		task := &services[i]
		s.attempts[task.Name] = 1
		rec := domain.NewExecution(s.o.run.ID, task, 1)
		s.o.metrics.TaskStarted(task.Name, task.Kind)

		g.Go(func() error {
			proc, err := s.o.launcher.Start(context.Background(), task, rec)
			results[i] = launched{rec: rec, proc: proc, err: err}
			if err != nil {
				return fmt.Errorf("launch %s: %w", task.Name, err)
			}
			return nil
		})
	}
	// Group без контекста не отменяет остальные запуски: Wait дожидается всех
	if err := g.Wait(); err != nil {
		s.o.logger.Warn("not all services launched", "first_error", err)
	}

	var failed []exitEvent
	for i := range services {
		task := s.o.spec.Task(services[i].Name)
		r := results[i]

		if r.err != nil {
			s.o.logger.Error("failed to launch service", "task", task.Name, "error", r.err)
			failed = append(failed, exitEvent{m: &member{task: task, rec: r.rec}, rec: r.rec})
			continue
		}
		s.o.recordExecution(r.rec)
		s.watch(task, r.proc, r.rec)
	}

	s.o.logger.Info("services started", "count", len(s.group), "failed", len(failed))

	for _, ev := range failed {
		s.handleExit(ev)
	}
}

// launch перезапускает сервис. Вызывается из loop.
func (s *supervisor) launch(task *domain.TaskDef) {
	s.attempts[task.Name]++
	rec := domain.NewExecution(s.o.run.ID, task, s.attempts[task.Name])
	s.o.metrics.TaskStarted(task.Name, task.Kind)
	s.o.metrics.ServiceRestarted(task.Name)

	proc, err := s.o.launcher.Start(context.Background(), task, rec)
	if err != nil {
		s.o.logger.Error("failed to relaunch service", "task", task.Name, "attempt", rec.Attempt, "error", err)
		s.handleExit(exitEvent{m: &member{task: task, rec: rec}, rec: rec})
		return
	}

	s.o.recordExecution(rec)
	s.watch(task, proc, rec)
}

// watch добавляет процесс в группу и запускает его монитор.
func (s *supervisor) watch(task *domain.TaskDef, proc Process, rec *domain.Execution) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &member{task: task, proc: proc, rec: rec, cancel: cancel}
	s.group[task.Name] = m
	s.o.setMember(rec)

	s.monitors.Add(1)
	go func() {
		defer s.monitors.Done()
		s.monitor(ctx, m)
	}()
}

// monitor ждёт завершения одного процесса и сообщает о нём в loop.
// При отмене ctx останавливает процесс и ждёт его, а не бросает.
func (s *supervisor) monitor(ctx context.Context, m *member) {
	var ev exitEvent
	select {
	case <-m.proc.Done():
		ev = exitEvent{m: m, rec: m.proc.Wait()}
	case <-ctx.Done():
		forced := m.proc.Stop(s.o.drainTimeout)
		ev = exitEvent{m: m, rec: m.proc.Wait(), forced: forced}
	}
	s.events <- ev
}

// loop — цикл наблюдения. Выходит, когда группа пуста и перезапусков не ожидается.
func (s *supervisor) loop() {
	drainCh := s.o.drainCh
	killCh := s.o.killCh

	for {
		if len(s.group) == 0 && len(s.pending) == 0 {
			if !s.draining {
				s.o.logger.Info("all services ended")
				s.beginDrain()
			}
			return
		}

		select {
		case ev := <-s.events:
			s.handleExit(ev)

		case name := <-s.restartCh:
			if _, ok := s.pending[name]; !ok {
				continue
			}
			delete(s.pending, name)
			s.launch(s.o.spec.Task(name))

		case <-drainCh:
			drainCh = nil
			s.beginDrain()

		case <-killCh:
			killCh = nil
			s.escalate()
		}
	}
}

// handleExit обрабатывает завершение сервиса: запись, затем политика перезапуска.
func (s *supervisor) handleExit(ev exitEvent) {
	task := ev.m.task
	rec := ev.rec

	if cur, ok := s.group[task.Name]; ok && cur == ev.m {
		delete(s.group, task.Name)
		s.o.removeMember(task.Name)
	}
	if ev.m.cancel != nil {
		ev.m.cancel()
	}

	s.o.recordExecution(rec)

	logger := telemetry.WithTask(s.o.logger, task.Name).With("attempt", rec.Attempt)

	if s.draining {
		if ev.forced || (s.escalated && rec.Status == domain.ExecutionKilled) {
			dt := &DrainTimeout{Task: task.Name, Escalated: !ev.forced}
			s.drainTimeouts = append(s.drainTimeouts, dt)
			s.o.metrics.ForcedKill(task.Name)
			logger.Warn("service killed during drain", "error", dt)
		} else {
			logger.Info("service stopped", "status", rec.Status)
		}
		return
	}

	failed := rec.Status != domain.ExecutionSucceeded
	if !task.Restart.ShouldRestart(failed) {
		if failed {
			logger.Error("service failed and will not be restarted",
				"status", rec.Status,
				"exit_code", rec.ExitCode,
				"restart", task.Restart,
				"output", rec.Output,
			)
			s.failures = append(s.failures, &ServiceFailure{Task: task.Name, Execution: rec})
		} else {
			logger.Info("service exited", "restart", task.Restart)
		}
		return
	}

	tracker := s.tracker(task.Name)
	decision := tracker.Next(time.Now(), rec.Duration())

	if decision.GiveUp {
		err := &StormError{Task: task.Name, Streak: decision.Streak - 1}
		logger.Error("service left stopped", "error", err, "output", rec.Output)
		s.o.metrics.RestartStormGaveUp(task.Name)
		s.failures = append(s.failures, err)
		return
	}

	if decision.Delay == 0 {
		logger.Info("restarting service", "status", rec.Status, "exit_code", rec.ExitCode)
		s.launch(task)
		return
	}

	logger.Warn("service is crashing, delaying restart",
		"delay", decision.Delay,
		"streak", decision.Streak,
		"exit_code", rec.ExitCode,
	)
	s.scheduleRestart(task.Name, decision.Delay)
}

// scheduleRestart откладывает перезапуск. Таймер пишет в restartCh.
func (s *supervisor) scheduleRestart(name string, delay time.Duration) {
	s.pending[name] = time.AfterFunc(delay, func() {
		select {
		case s.restartCh <- name:
		case <-s.loopDone:
		}
	})
}

func (s *supervisor) tracker(name string) *RestartTracker {
	t, ok := s.trackers[name]
	if !ok {
		t = NewRestartTracker(s.o.spec.Settings.Restart)
		s.trackers[name] = t
	}
	return t
}

// beginDrain отменяет ожидающие перезапуски и останавливает все сервисы.
func (s *supervisor) beginDrain() {
	if s.draining {
		return
	}
	s.draining = true
	s.o.mustTransition(domain.RunStateDraining)

	for name, timer := range s.pending {
		timer.Stop()
		delete(s.pending, name)
	}

	// Текущий cron-запуск будет остановлен, ожидание — после drain сервисов
	if s.cronCancel != nil {
		s.cronCancel()
	}

	s.o.logger.Info("draining services", "count", len(s.group), "drain_timeout", s.o.drainTimeout)
	for _, m := range s.group {
		m.cancel()
	}
}

// escalate немедленно убивает все живые процессы.
func (s *supervisor) escalate() {
	s.beginDrain()
	s.escalated = true

	s.o.logger.Warn("killing all services", "count", len(s.group))
	for _, m := range s.group {
		m.proc.Kill()
	}
}

// startCron запускает планировщик cron-задач.
func (s *supervisor) startCron() {
	if len(s.o.spec.CronTasks()) == 0 {
		return
	}

	sched, err := s.o.newScheduler()
	if err != nil {
		// Расписания проверены при загрузке конфигурации
		s.o.logger.Error("failed to start cron scheduler", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = telemetry.WithLogger(ctx, s.o.logger)
	s.cronCancel = cancel
	s.cronDone = make(chan struct{})

	s.o.logger.Info("cron scheduler started", "tasks", sched.Len())

	go func() {
		defer close(s.cronDone)
		sched.Run(ctx)
	}()
}

// stopCron отменяет планировщик и ждёт завершения текущих cron-запусков.
func (s *supervisor) stopCron() {
	if s.cronCancel == nil {
		return
	}
	s.cronCancel()
	<-s.cronDone
	s.cronCancel = nil
}
