//go:build !unix

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup: групп процессов нет, сигналы получает только сам процесс.
func setProcessGroup(cmd *exec.Cmd) {}

// signalGroup отправляет сигнал процессу; неподдерживаемые сигналы заменяются на Kill.
func signalGroup(pid int, sig os.Signal) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if sig == syscall.SIGKILL {
		err = p.Kill()
	} else if err = p.Signal(sig); err != nil {
		err = p.Kill()
	}
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func exitCode(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}

func killRemnants(pid int) {}
