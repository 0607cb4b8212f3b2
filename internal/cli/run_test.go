//go:build unix

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Overseer/internal/orchestrator"
)

func TestRun_OneShotsOnly(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("RABBITMQ_URL", "")

	path := writeConfig(t, `
tasks:
  - {name: prepare, kind: oneshot, command: "echo preparing"}
  - {name: check, kind: oneshot, command: "true", depends_on: [prepare]}
`)

	_, stderr, err := execute(t, "--log-format", "text", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "preparing")
	assert.Contains(t, stderr, "process group stopped")
}

func TestRun_OneShotFailure(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("RABBITMQ_URL", "")

	path := writeConfig(t, `
tasks:
  - {name: migrate, kind: oneshot, command: "echo no database >&2; exit 3"}
  - {name: web, kind: service, command: "sleep 30", depends_on: [migrate]}
`)

	_, stderr, err := execute(t, "--log-format", "text", path)
	require.Error(t, err)
	assert.Equal(t, orchestrator.ExitOneShotFailed, ExitCode(err))
	assert.ErrorIs(t, err, orchestrator.ErrTaskFailed)
	assert.Contains(t, stderr, "no database")
	assert.NotContains(t, stderr, "sleep 30")
}

func TestRun_ServiceNeverFails(t *testing.T) {
	t.Setenv("DB_URL", "")
	t.Setenv("RABBITMQ_URL", "")

	path := writeConfig(t, `
tasks:
  - {name: web, kind: service, command: "exit 1", restart: never}
`)

	_, _, err := execute(t, "--log-format", "text", path)
	require.Error(t, err)
	assert.Equal(t, orchestrator.ExitServiceFailed, ExitCode(err))
}
