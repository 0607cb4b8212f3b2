// Overseer — супервизор группы процессов с упорядоченным стартом.
//
// Использование:
//
//	overseer [flags] CONFIG
//
// Сначала выполняются one-shot шаги в порядке зависимостей,
// затем запускаются сервисы. SIGINT/SIGTERM останавливают группу.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shaiso/Overseer/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	err := cli.NewRootCmd(version).ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
