package mq

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Overseer/internal/domain"
)

// publisher — минимальный контракт публикации, нужный EventPublisher.
type publisher interface {
	Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error
}

// RunEvent — payload события о переходе run.
type RunEvent struct {
	RunID      uuid.UUID  `json:"run_id"`
	ConfigPath string     `json:"config_path,omitempty"`
	State      string     `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ExitCode   int        `json:"exit_code"`
	Error      string     `json:"error,omitempty"`
}

// ExecutionEvent — payload события о запуске задачи.
// Хвост вывода не передаётся: он доступен через историю.
type ExecutionEvent struct {
	ExecutionID uuid.UUID  `json:"execution_id"`
	RunID       uuid.UUID  `json:"run_id"`
	Task        string     `json:"task"`
	Kind        string     `json:"kind"`
	Attempt     int        `json:"attempt"`
	PID         int        `json:"pid,omitempty"`
	Status      string     `json:"status"`
	ExitCode    int        `json:"exit_code"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// EventPublisher публикует изменения run и запусков в ExchangeEvents.
// Удовлетворяет orchestrator.Recorder.
type EventPublisher struct {
	pub publisher
	now func() time.Time
}

// NewEventPublisher создаёт EventPublisher поверх Publisher.
func NewEventPublisher(pub *Publisher) *EventPublisher {
	return newEventPublisher(pub)
}

func newEventPublisher(pub publisher) *EventPublisher {
	return &EventPublisher{pub: pub, now: time.Now}
}

// RunRoutingKey возвращает ключ вида run.<state>.
func RunRoutingKey(state domain.RunState) RoutingKey {
	return RoutingKey("run." + strings.ToLower(string(state)))
}

// ExecutionRoutingKey возвращает ключ вида execution.<status>.
func ExecutionRoutingKey(status domain.ExecutionStatus) RoutingKey {
	return RoutingKey("execution." + strings.ToLower(string(status)))
}

// RecordRun публикует событие run.<state>.
func (e *EventPublisher) RecordRun(ctx context.Context, run *domain.Run) error {
	msg := e.message(MessageTypeRun, RunEvent{
		RunID:      run.ID,
		ConfigPath: run.ConfigPath,
		State:      string(run.State),
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		ExitCode:   run.ExitCode,
		Error:      run.Error,
	})
	return e.pub.Publish(ctx, ExchangeEvents, RunRoutingKey(run.State), msg)
}

// RecordExecution публикует событие execution.<status>.
func (e *EventPublisher) RecordExecution(ctx context.Context, exec *domain.Execution) error {
	msg := e.message(MessageTypeExecution, ExecutionEvent{
		ExecutionID: exec.ID,
		RunID:       exec.RunID,
		Task:        exec.Task,
		Kind:        string(exec.Kind),
		Attempt:     exec.Attempt,
		PID:         exec.PID,
		Status:      string(exec.Status),
		ExitCode:    exec.ExitCode,
		StartedAt:   exec.StartedAt,
		EndedAt:     exec.EndedAt,
		Error:       exec.Error,
	})
	return e.pub.Publish(ctx, ExchangeEvents, ExecutionRoutingKey(exec.Status), msg)
}

func (e *EventPublisher) message(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   payload,
		Timestamp: e.now(),
	}
}
