package orchestrator

import (
	"fmt"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
)

// MemberStatus — живой сервис в снимке состояния.
type MemberStatus struct {
	Task      string     `json:"task"`
	Attempt   int        `json:"attempt"`
	PID       int        `json:"pid"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Snapshot — потокобезопасная копия состояния оркестратора.
type Snapshot struct {
	Run     domain.Run     `json:"run"`
	Members []MemberStatus `json:"members"`
}

// transition переводит run в следующее состояние.
// Вызывается только из горутины Run.
func (o *Orchestrator) transition(next domain.RunState) error {
	o.snapMu.Lock()
	current := o.run.State
	if !current.CanTransitionTo(next) {
		o.snapMu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}
	o.run.State = next
	run := *o.run
	o.snapMu.Unlock()

	o.logger.Info("run state changed", "from", current, "to", next)
	o.metrics.SetPhase(next)
	o.recordRun(&run)
	return nil
}

// mustTransition — переход, допустимость которого гарантирует порядок фаз.
func (o *Orchestrator) mustTransition(next domain.RunState) {
	if err := o.transition(next); err != nil {
		o.logger.Error("state machine violation", "error", err)
	}
}

// finish завершает run с кодом выхода.
func (o *Orchestrator) finish(exitCode int, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	o.snapMu.Lock()
	o.run.MarkTerminated(exitCode, msg)
	run := *o.run
	o.snapMu.Unlock()

	o.logger.Info("run terminated", "exit_code", exitCode, "duration", run.Duration())
	o.metrics.SetPhase(domain.RunStateTerminated)
	o.recordRun(&run)
}

// state возвращает текущее состояние run.
func (o *Orchestrator) state() domain.RunState {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()
	return o.run.State
}

// setMember публикует живой сервис в снимке.
func (o *Orchestrator) setMember(rec *domain.Execution) {
	o.snapMu.Lock()
	o.members[rec.Task] = MemberStatus{
		Task:      rec.Task,
		Attempt:   rec.Attempt,
		PID:       rec.PID,
		StartedAt: rec.StartedAt,
	}
	n := len(o.members)
	o.snapMu.Unlock()

	o.metrics.SetLiveServices(n)
}

// removeMember убирает сервис из снимка.
func (o *Orchestrator) removeMember(task string) {
	o.snapMu.Lock()
	delete(o.members, task)
	n := len(o.members)
	o.snapMu.Unlock()

	o.metrics.SetLiveServices(n)
}

// Snapshot возвращает копию текущего состояния.
func (o *Orchestrator) Snapshot() Snapshot {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()

	snap := Snapshot{
		Run:     *o.run,
		Members: make([]MemberStatus, 0, len(o.members)),
	}
	for _, task := range o.serviceOrder {
		if m, ok := o.members[task]; ok {
			snap.Members = append(snap.Members, m)
		}
	}
	return snap
}

// History возвращает последние завершённые запуски, от новых к старым.
// Если task не пустой — только запуски этой задачи.
func (o *Orchestrator) History(task string) []*domain.Execution {
	return o.history.List(task)
}

// recordRun ставит run в очередь получателям.
func (o *Orchestrator) recordRun(run *domain.Run) {
	if o.recorder == nil {
		return
	}
	o.records.send(recordJob{run: run})
}

// recordExecution ставит копию запуска в очередь получателям и, если он завершён,
// добавляет в историю.
func (o *Orchestrator) recordExecution(rec *domain.Execution) {
	exec := rec.Clone()
	if exec.IsFinished() {
		o.history.Add(exec)
		o.metrics.TaskFinished(exec.Task, exec.Status)
	}

	if o.recorder == nil {
		return
	}
	o.records.send(recordJob{exec: exec})
}
