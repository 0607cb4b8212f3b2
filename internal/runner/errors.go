package runner

import (
	"errors"
	"fmt"
)

// Ошибки раннера.
var (
	// ErrLaunch — команду не удалось запустить.
	ErrLaunch = errors.New("launch failed")

	// ErrUnknownSignal — неизвестное имя сигнала остановки.
	ErrUnknownSignal = errors.New("unknown signal")
)

// LaunchError — процесс задачи не был запущен
// (нет исполняемого файла, нет прав, ошибка шаблона команды).
type LaunchError struct {
	Task string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch task %s: %v", e.Task, e.Err)
}

// Unwrap позволяет проверять как ErrLaunch, так и исходную ошибку exec.
func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunch, e.Err}
}
