package runner

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// stopSignals — сигналы, допустимые в stop_signal.
var stopSignals = map[string]syscall.Signal{
	"TERM": syscall.SIGTERM,
	"INT":  syscall.SIGINT,
	"QUIT": syscall.SIGQUIT,
	"HUP":  syscall.SIGHUP,
}

// ParseSignal возвращает сигнал по имени (TERM, SIGTERM, term).
// Пустое имя — SIGTERM.
func ParseSignal(name string) (os.Signal, error) {
	name = strings.TrimPrefix(strings.ToUpper(name), "SIG")
	if name == "" {
		return syscall.SIGTERM, nil
	}
	sig, ok := stopSignals[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSignal, name)
	}
	return sig, nil
}
