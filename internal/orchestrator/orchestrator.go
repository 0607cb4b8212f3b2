package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/engine"
	"github.com/shaiso/Overseer/internal/scheduler"
	"github.com/shaiso/Overseer/internal/telemetry"
)

// Default configuration values.
const (
	defaultRecordTimeout = 5 * time.Second
)

// Коды выхода супервизора.
const (
	ExitOK            = 0
	ExitConfigError   = 1
	ExitOneShotFailed = 2
	ExitDrainKilled   = 3
	ExitServiceFailed = 4
)

// Orchestrator запускает группу процессов и следит за ней.
//
// Порядок работы:
//   - oneshot-задачи строго последовательно в порядке зависимостей
//   - все сервисы одновременно, после последнего oneshot
//   - наблюдение: перезапуски по политике, cron-задачи по расписанию
//   - остановка: сигнал каждому сервису, drain_timeout, затем SIGKILL
//
// Группа живых процессов принадлежит горутине Run и не разделяется.
// Наружу публикуются только копии: Snapshot и History.
type Orchestrator struct {
	spec     *domain.GroupSpec
	launcher Launcher
	recorder Recorder
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	drainTimeout time.Duration
	records      *dispatcher

	// Запросы остановки
	drainCh   chan struct{}
	drainOnce sync.Once
	killCh    chan struct{}
	killOnce  sync.Once

	started sync.Once

	// Снимок состояния для API
	snapMu       sync.RWMutex
	run          *domain.Run
	members      map[string]MemberStatus
	serviceOrder []string
	history      *history

	// Счётчики попыток cron-задач (запускаются из горутин планировщика)
	cronMu       sync.Mutex
	cronAttempts map[string]int
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Spec — валидная конфигурация группы.
	Spec *domain.GroupSpec

	// ConfigPath — путь к файлу конфигурации (для записи run).
	ConfigPath string

	// Launcher запускает процессы.
	Launcher Launcher

	// Recorder — получатель записей (опционально).
	Recorder Recorder

	// Metrics — метрики (опционально).
	Metrics *telemetry.Metrics

	// DrainTimeout перекрывает settings.drain_timeout, если > 0.
	DrainTimeout time.Duration

	// HistorySize — сколько завершённых запусков хранить (default: 200).
	HistorySize int

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	drainTimeout := cfg.DrainTimeout
	if drainTimeout <= 0 {
		drainTimeout = cfg.Spec.Settings.DrainTimeout.Std()
	}
	if drainTimeout <= 0 {
		drainTimeout = domain.DefaultDrainTimeout
	}

	run := domain.NewRun(cfg.ConfigPath)

	services := cfg.Spec.Services()
	order := make([]string, 0, len(services))
	for _, s := range services {
		order = append(order, s.Name)
	}

	logger = telemetry.WithRunID(logger, run.ID.String())

	return &Orchestrator{
		spec:         cfg.Spec,
		launcher:     cfg.Launcher,
		recorder:     cfg.Recorder,
		metrics:      cfg.Metrics,
		logger:       logger,
		drainTimeout: drainTimeout,
		records:      newDispatcher(cfg.Recorder, defaultRecordTimeout, logger),
		drainCh:      make(chan struct{}),
		killCh:       make(chan struct{}),
		run:          run,
		members:      make(map[string]MemberStatus),
		serviceOrder: order,
		history:      newHistory(cfg.HistorySize),
		cronAttempts: make(map[string]int),
	}
}

// Result — итог работы группы.
type Result struct {
	// Run — финальное состояние run.
	Run domain.Run

	// ExitCode — код выхода процесса супервизора.
	ExitCode int

	// Err — причина ненулевого кода (TaskFailure, DrainTimeout, ...).
	Err error

	// DrainTimeouts — сервисы, убитые при остановке.
	DrainTimeouts []*DrainTimeout
}

// Shutdown запрашивает штатную остановку группы. Идемпотентен.
func (o *Orchestrator) Shutdown() {
	o.drainOnce.Do(func() {
		o.logger.Info("shutdown requested")
		close(o.drainCh)
	})
}

// Kill запрашивает немедленную остановку: все живые процессы получают SIGKILL.
// Идемпотентен.
func (o *Orchestrator) Kill() {
	o.killOnce.Do(func() {
		o.logger.Warn("forced shutdown requested")
		close(o.killCh)
	})
	o.Shutdown()
}

// Run запускает группу и блокируется до её полной остановки.
//
// Отмена ctx равнозначна Shutdown. Run возвращается только после того,
// как все процессы завершены, каждый запуск имеет финальную запись
// и все записи переданы Recorder.
func (o *Orchestrator) Run(ctx context.Context) *Result {
	res := &Result{}
	first := false
	o.started.Do(func() { first = true })
	if !first {
		res.ExitCode = ExitConfigError
		res.Err = ErrAlreadyStarted
		return res
	}

	stopWatch := context.AfterFunc(ctx, o.Shutdown)
	defer stopWatch()

	// Run возвращается только после доставки всех записей
	o.records.start()
	defer o.records.close()

	o.metrics.SetPhase(domain.RunStateInit)
	o.recordRun(o.runCopy())
	o.logger.Info("starting process group",
		"oneshots", len(o.spec.OneShots()),
		"services", len(o.spec.Services()),
		"cron", len(o.spec.CronTasks()),
	)

	o.mustTransition(domain.RunStateRunningOneShots)

	if err := o.runOneShots(); err != nil {
		o.mustTransition(domain.RunStateFailed)
		o.mustTransition(domain.RunStateTerminated)
		res.ExitCode = ExitOneShotFailed
		res.Err = err
		o.finish(res.ExitCode, err)
		res.Run = *o.runCopy()
		return res
	}

	o.mustTransition(domain.RunStateStartingServices)

	sup := newSupervisor(o)
	sup.run()

	o.mustTransition(domain.RunStateTerminated)

	res.DrainTimeouts = sup.drainTimeouts
	var errs []error
	switch {
	case len(sup.drainTimeouts) > 0:
		res.ExitCode = ExitDrainKilled
		for _, dt := range sup.drainTimeouts {
			errs = append(errs, dt)
		}
		errs = append(errs, sup.failures...)
	case len(sup.failures) > 0:
		res.ExitCode = ExitServiceFailed
		errs = sup.failures
	default:
		res.ExitCode = ExitOK
	}
	res.Err = errors.Join(errs...)

	o.finish(res.ExitCode, res.Err)
	res.Run = *o.runCopy()
	return res
}

// runOneShots выполняет oneshot-задачи последовательно, до первой неудачи.
func (o *Orchestrator) runOneShots() error {
	oneshots := o.spec.OneShots()
	if len(oneshots) == 0 {
		return nil
	}

	order, err := engine.Order(oneshots)
	if err != nil {
		return err
	}
	o.logger.Info("oneshot order resolved", "order", order)

	// Запрос остановки отменяет текущий oneshot
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-o.drainCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for _, name := range order {
		if o.drainRequested() {
			return ErrShutdownDuringOneShots
		}

		task := o.spec.Task(name)
		rec := domain.NewExecution(o.run.ID, task, 1)
		o.metrics.TaskStarted(task.Name, task.Kind)

		rec, err := o.launcher.Run(ctx, task, rec, o.killCh)
		o.recordExecution(rec)

		if o.drainRequested() && !rec.Succeeded() {
			return errors.Join(ErrShutdownDuringOneShots, &TaskFailure{Task: name, Execution: rec, Err: err})
		}
		if err != nil || !rec.Succeeded() {
			failure := &TaskFailure{Task: name, Execution: rec, Err: err}
			o.logger.Error("oneshot task failed, services will not be started",
				"task", name,
				"status", rec.Status,
				"exit_code", rec.ExitCode,
				"output", rec.Output,
			)
			return failure
		}
	}

	// Остановку после последнего успешного oneshot обрабатывает supervisor: drain пустой группы
	return nil
}

// drainRequested проверяет, была ли запрошена остановка.
func (o *Orchestrator) drainRequested() bool {
	select {
	case <-o.drainCh:
		return true
	default:
		return false
	}
}

// runCopy возвращает копию run.
func (o *Orchestrator) runCopy() *domain.Run {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()
	run := *o.run
	return &run
}

// fireCron выполняет cron-задачу. Вызывается из горутины планировщика.
func (o *Orchestrator) fireCron(ctx context.Context, task *domain.TaskDef) {
	logger := telemetry.WithTask(telemetry.FromContext(ctx), task.Name)

	o.cronMu.Lock()
	o.cronAttempts[task.Name]++
	attempt := o.cronAttempts[task.Name]
	o.cronMu.Unlock()

	rec := domain.NewExecution(o.run.ID, task, attempt)
	o.metrics.TaskStarted(task.Name, task.Kind)

	rec, err := o.launcher.Run(ctx, task, rec, o.killCh)
	o.recordExecution(rec)

	switch {
	case err != nil:
		logger.Warn("cron task failed to launch", "attempt", attempt, "error", err)
	case !rec.Succeeded():
		logger.Warn("cron task failed",
			"attempt", attempt,
			"status", rec.Status,
			"exit_code", rec.ExitCode,
			"output", rec.Output,
		)
	}
}

// newScheduler создаёт планировщик cron-задач группы.
func (o *Orchestrator) newScheduler() (*scheduler.Scheduler, error) {
	return scheduler.New(scheduler.Config{
		Tasks:  o.spec.CronTasks(),
		Fire:   o.fireCron,
		Logger: o.logger,
	})
}
