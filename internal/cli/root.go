package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Options — флаги командной строки.
type Options struct {
	DrainTimeout      time.Duration
	EscalationTimeout time.Duration
	DryRun            bool
	JSON              bool
	LogLevel          string
	LogFormat         string
	HTTPAddr          string
	HistoryDSN        string
	EventsURL         string

	stdout io.Writer
	stderr io.Writer
}

// NewRootCmd создаёт корневую команду overseer.
func NewRootCmd(version string) *cobra.Command {
	opts := &Options{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	cmd := &cobra.Command{
		Use:   "overseer [flags] CONFIG",
		Short: "Overseer — supervisor for a dependency-ordered process group",
		Long: `Overseer runs one-shot setup steps in dependency order, then starts
long-running services and keeps them alive according to their restart
policy. SIGINT/SIGTERM drain the group; repeated signals force a kill.

Exit codes:
  0  all services ended or were stopped cleanly
  1  invalid configuration
  2  a one-shot step failed
  3  a service had to be killed while draining
  4  a service failed and was not restarted`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.stdout = cmd.OutOrStdout()
			opts.stderr = cmd.ErrOrStderr()
			return runGroup(cmd.Context(), opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&opts.DrainTimeout, "drain-timeout", 0, "Per-service wait after the stop signal (overrides settings.drain_timeout)")
	flags.DurationVar(&opts.EscalationTimeout, "escalation-timeout", 0, "Window in which repeated signals are ignored (overrides settings.escalation_timeout)")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "Print the one-shot order and services without launching anything")
	flags.BoolVar(&opts.JSON, "json", false, "Print the dry-run plan as JSON")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (default: $LOG_LEVEL or INFO)")
	flags.StringVar(&opts.LogFormat, "log-format", "", "Log format: json or text (default: $LOG_FORMAT or json)")
	flags.StringVar(&opts.HTTPAddr, "http-addr", os.Getenv("HTTP_ADDR"), "Address for the status API and /metrics (disabled if empty)")
	flags.StringVar(&opts.HistoryDSN, "history-dsn", "", "PostgreSQL DSN for run history (default: $DB_URL, disabled if empty)")
	flags.StringVar(&opts.EventsURL, "events-url", "", "RabbitMQ URL for lifecycle events (default: $RABBITMQ_URL, disabled if empty)")

	return cmd
}
