package cli

import (
	"errors"
	"fmt"
)

// ExitError — ошибка с кодом выхода процесса.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode возвращает код выхода для ошибки команды.
// nil → 0, ExitError → его код, прочие ошибки (флаги, аргументы) → 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
