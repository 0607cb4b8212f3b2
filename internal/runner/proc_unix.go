//go:build unix

package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup запускает процесс лидером новой группы процессов.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup отправляет сигнал всей группе процессов pid.
// Отсутствие группы (все уже завершились) не ошибка.
func signalGroup(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownSignal, sig)
	}

	err := syscall.Kill(-pid, s)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// exitCode возвращает код выхода; для смерти от сигнала 128+номер сигнала.
func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return state.ExitCode()
}

// killRemnants завершает процессы, оставшиеся в группе после выхода лидера.
func killRemnants(pid int) {
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
