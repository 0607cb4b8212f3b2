package scheduler

import "fmt"

// ScheduleError — расписание задачи не разбирается.
type ScheduleError struct {
	Task string
	Expr string
	Err  error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("task %s: invalid schedule %q: %v", e.Task, e.Expr, e.Err)
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}
