// Package scheduler запускает cron-задачи группы по расписанию.
//
// Для каждой cron-задачи работает отдельный цикл: вычислить следующее время,
// подождать, выполнить. Выполнение блокирует цикл, поэтому запуски одной задачи
// не перекрываются, а пропущенные за время выполнения тики отбрасываются.
//
// Структура:
//   - scheduler.go — Scheduler и циклы задач
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Tasks:  spec.CronTasks(),
//	    Fire:   func(ctx context.Context, task *domain.TaskDef) { ... },
//	    Logger: logger,
//	})
//
//	// Блокируется до отмены ctx и завершения текущих выполнений
//	sched.Run(ctx)
package scheduler
