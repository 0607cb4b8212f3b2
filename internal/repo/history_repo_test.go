package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Overseer/internal/domain"
)

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	require.NotNil(t, nullString("boom"))
	assert.Equal(t, "boom", *nullString("boom"))
}

func TestNewPool_NoDSN(t *testing.T) {
	t.Setenv("DB_URL", "")

	_, err := NewPool(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoDSN)
}

// TestHistoryRepo_Postgres запускается только при заданном OVERSEER_TEST_DB_URL.
func TestHistoryRepo_Postgres(t *testing.T) {
	dsn := os.Getenv("OVERSEER_TEST_DB_URL")
	if dsn == "" {
		t.Skip("OVERSEER_TEST_DB_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewHistoryRepo(pool)
	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.EnsureSchema(ctx), "schema must be idempotent")

	run := domain.NewRun("deploy/overseer.yaml")
	require.NoError(t, repo.RecordRun(ctx, run))

	task := &domain.TaskDef{Name: "migrate", Kind: domain.KindOneShot}
	exec := domain.NewExecution(run.ID, task, 1)
	exec.MarkRunning(4242)
	require.NoError(t, repo.RecordExecution(ctx, exec))

	exec.Output = []string{"relation does not exist"}
	exec.MarkFinished(domain.ExecutionFailed, 1, "exit status 1")
	require.NoError(t, repo.RecordExecution(ctx, exec))

	run.State = domain.RunStateFailed
	require.NoError(t, repo.RecordRun(ctx, run))
	run.MarkTerminated(2, "task migrate failed")
	require.NoError(t, repo.RecordRun(ctx, run))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateTerminated, got.State)
	assert.Equal(t, 2, got.ExitCode)
	assert.NotNil(t, got.FinishedAt)

	execs, err := repo.ListExecutions(ctx, ExecutionFilter{RunID: run.ID, Task: "migrate"})
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, domain.ExecutionFailed, execs[0].Status)
	assert.Equal(t, 4242, execs[0].PID)
	assert.Equal(t, []string{"relation does not exist"}, execs[0].Output)
}
