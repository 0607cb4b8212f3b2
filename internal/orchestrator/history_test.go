package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Overseer/internal/domain"
)

func TestHistory_Ring(t *testing.T) {
	h := newHistory(3)
	runID := uuid.New()

	for i := 1; i <= 5; i++ {
		task := &domain.TaskDef{Name: fmt.Sprintf("task-%d", i%2)}
		exec := domain.NewExecution(runID, task, i)
		exec.MarkFinished(domain.ExecutionSucceeded, 0, "")
		h.Add(exec)
	}

	all := h.List("")
	require.Len(t, all, 3)
	assert.Equal(t, []int{5, 4, 3}, []int{all[0].Attempt, all[1].Attempt, all[2].Attempt})

	odd := h.List("task-1")
	require.Len(t, odd, 2)
	assert.Equal(t, 5, odd[0].Attempt)

	// Возвращаются копии
	all[0].Status = domain.ExecutionFailed
	assert.Equal(t, domain.ExecutionSucceeded, h.List("")[0].Status)
}

type errRecorder struct{ err error }

func (r errRecorder) RecordRun(context.Context, *domain.Run) error             { return r.err }
func (r errRecorder) RecordExecution(context.Context, *domain.Execution) error { return r.err }

func TestMultiRecorder(t *testing.T) {
	errDB := errors.New("db down")
	errMQ := errors.New("broker down")
	ok := &fakeRecorder{}

	m := MultiRecorder{ok, errRecorder{errDB}, errRecorder{errMQ}}

	run := domain.NewRun("overseer.yaml")
	err := m.RecordRun(context.Background(), run)
	assert.ErrorIs(t, err, errDB)
	assert.ErrorIs(t, err, errMQ)
	assert.Equal(t, []domain.RunState{domain.RunStateInit}, ok.runStates())

	exec := domain.NewExecution(run.ID, &domain.TaskDef{Name: "web"}, 1)
	assert.Error(t, m.RecordExecution(context.Background(), exec))
	assert.Len(t, ok.execs, 1)

	assert.NoError(t, MultiRecorder{ok}.RecordRun(context.Background(), run))
}
