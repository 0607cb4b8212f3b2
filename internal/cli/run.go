package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shaiso/Overseer/internal/api"
	"github.com/shaiso/Overseer/internal/mq"
	"github.com/shaiso/Overseer/internal/orchestrator"
	"github.com/shaiso/Overseer/internal/repo"
	"github.com/shaiso/Overseer/internal/runner"
	"github.com/shaiso/Overseer/internal/shutdown"
	"github.com/shaiso/Overseer/internal/telemetry"
)

const infraTimeout = 10 * time.Second

// runGroup загружает конфигурацию и запускает группу до её остановки.
func runGroup(ctx context.Context, opts *Options, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := telemetry.SetupLogger(telemetry.LogOptions{
		Level:  opts.LogLevel,
		Format: opts.LogFormat,
		Output: opts.stderr,
	})
	out := NewOutput(opts.JSON, opts.stdout, opts.stderr)

	cfg, err := load(path)
	if err != nil {
		return &ExitError{Code: orchestrator.ExitConfigError, Err: err}
	}

	if opts.DryRun {
		plan, err := buildPlan(cfg, time.Now())
		if err != nil {
			return &ExitError{Code: orchestrator.ExitConfigError, Err: err}
		}
		return printPlan(out, plan)
	}

	for _, w := range cfg.Warnings {
		logger.Warn("configuration warning", "warning", w)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(reg)

	recorder, closeRecorders, err := setupRecorders(ctx, opts, logger)
	if err != nil {
		return &ExitError{Code: orchestrator.ExitConfigError, Err: err}
	}
	defer closeRecorders()

	r := runner.New(runner.Config{
		Context:   cfg.Context,
		KillGrace: cfg.Spec.Settings.KillGrace.Std(),
		Logger:    logger,
	})

	o := orchestrator.New(orchestrator.Config{
		Spec:         cfg.Spec,
		ConfigPath:   path,
		Launcher:     orchestrator.NewLauncher(r),
		Recorder:     recorder,
		Metrics:      metrics,
		DrainTimeout: opts.DrainTimeout,
		Logger:       logger,
	})

	escalation := opts.EscalationTimeout
	if escalation <= 0 {
		escalation = cfg.Spec.Settings.EscalationTimeout.Std()
	}

	sideCtx, stopSide := context.WithCancel(context.Background())
	var sideDone []chan struct{}

	// New перехватывает SIGINT/SIGTERM сразу, до запуска первого процесса
	coord := shutdown.New(shutdown.Config{
		Drain:             o.Shutdown,
		Force:             o.Kill,
		EscalationTimeout: escalation,
		Logger:            logger,
	})
	defer coord.Stop()
	sideDone = append(sideDone, goDone(func() { coord.Run(sideCtx) }))

	if opts.HTTPAddr != "" {
		handler := api.NewHandler(api.Config{Status: o, Gatherer: reg, Logger: logger})
		sideDone = append(sideDone, goDone(func() {
			if err := api.Serve(sideCtx, opts.HTTPAddr, handler.Routes(), logger); err != nil {
				logger.Error("http server failed", "error", err)
			}
		}))
	}

	res := o.Run(ctx)

	stopSide()
	for _, done := range sideDone {
		<-done
	}

	logger.Info("process group stopped",
		"exit_code", res.ExitCode,
		"duration", res.Run.Duration(),
	)

	if res.ExitCode != orchestrator.ExitOK {
		return &ExitError{Code: res.ExitCode, Err: res.Err}
	}
	return nil
}

// setupRecorders подключает историю в PostgreSQL и публикацию событий,
// если заданы их адреса. Возвращает nil Recorder, если не задано ничего.
func setupRecorders(ctx context.Context, opts *Options, logger *slog.Logger) (orchestrator.Recorder, func(), error) {
	var (
		recorders orchestrator.MultiRecorder
		closers   []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	initCtx, cancel := context.WithTimeout(ctx, infraTimeout)
	defer cancel()

	dsn := opts.HistoryDSN
	if dsn == "" {
		dsn = os.Getenv("DB_URL")
	}
	if dsn != "" {
		pool, err := repo.NewPool(initCtx, dsn)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("history database: %w", err)
		}
		closers = append(closers, pool.Close)

		history := repo.NewHistoryRepo(pool)
		if err := history.EnsureSchema(initCtx); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("history schema: %w", err)
		}
		recorders = append(recorders, history)
		logger.Info("recording run history to PostgreSQL")
	}

	url := opts.EventsURL
	if url == "" {
		url = os.Getenv("RABBITMQ_URL")
	}
	if url != "" {
		conn, err := mq.NewConnection(url, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("events broker: %w", err)
		}
		closers = append(closers, func() {
			if err := conn.Close(); err != nil {
				logger.Warn("failed to close RabbitMQ connection", "error", err)
			}
		})

		if err := mq.SetupTopology(initCtx, conn); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("events topology: %w", err)
		}

		topoCtx, stopTopo := context.WithCancel(context.Background())
		topoDone := goDone(func() { mq.KeepTopology(topoCtx, conn, logger) })
		closers = append(closers, func() {
			stopTopo()
			<-topoDone
		})

		recorders = append(recorders, mq.NewEventPublisher(mq.NewPublisher(conn, logger)))
		logger.Info("publishing lifecycle events", "exchange", mq.ExchangeEvents)
	}

	switch len(recorders) {
	case 0:
		return nil, closeAll, nil
	case 1:
		return recorders[0], closeAll, nil
	default:
		return recorders, closeAll, nil
	}
}

// goDone запускает fn в горутине и возвращает канал, закрываемый по её завершении.
func goDone(fn func()) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}
