package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Overseer/internal/domain"
)

const namespace = "overseer"

// Metrics — метрики супервизора.
//
// Все методы безопасны для nil-получателя: без метрик
// оркестратор работает так же.
type Metrics struct {
	taskStarts   *prometheus.CounterVec
	taskFinishes *prometheus.CounterVec
	restarts     *prometheus.CounterVec
	stormGiveUps *prometheus.CounterVec
	forcedKills  *prometheus.CounterVec
	liveServices prometheus.Gauge
	phase        *prometheus.GaugeVec
}

// allStates — состояния для gauge фазы: ровно одно из них равно 1.
var allStates = []domain.RunState{
	domain.RunStateInit,
	domain.RunStateRunningOneShots,
	domain.RunStateStartingServices,
	domain.RunStateMonitoring,
	domain.RunStateDraining,
	domain.RunStateFailed,
	domain.RunStateTerminated,
}

// NewMetrics регистрирует метрики в reg.
// В main передаётся prometheus.DefaultRegisterer, в тестах — новый Registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		taskStarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_starts_total",
			Help:      "Number of task process launches.",
		}, []string{"task", "kind"}),

		taskFinishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_finishes_total",
			Help:      "Number of finished task executions by status.",
		}, []string{"task", "status"}),

		restarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_restarts_total",
			Help:      "Number of service relaunches.",
		}, []string{"task"}),

		stormGiveUps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restart_storm_giveups_total",
			Help:      "Number of services left stopped after a restart storm.",
		}, []string{"task"}),

		forcedKills: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forced_kills_total",
			Help:      "Number of services killed after the drain timeout or on escalation.",
		}, []string{"task"}),

		liveServices: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_services",
			Help:      "Number of service processes currently running.",
		}),

		phase: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase",
			Help:      "Current orchestrator state (1 for the active state).",
		}, []string{"state"}),
	}
}

// TaskStarted учитывает запуск процесса.
func (m *Metrics) TaskStarted(task string, kind domain.TaskKind) {
	if m == nil {
		return
	}
	m.taskStarts.WithLabelValues(task, string(kind)).Inc()
}

// TaskFinished учитывает завершение запуска.
func (m *Metrics) TaskFinished(task string, status domain.ExecutionStatus) {
	if m == nil {
		return
	}
	m.taskFinishes.WithLabelValues(task, string(status)).Inc()
}

// ServiceRestarted учитывает перезапуск сервиса.
func (m *Metrics) ServiceRestarted(task string) {
	if m == nil {
		return
	}
	m.restarts.WithLabelValues(task).Inc()
}

// RestartStormGaveUp учитывает сервис, оставленный остановленным.
func (m *Metrics) RestartStormGaveUp(task string) {
	if m == nil {
		return
	}
	m.stormGiveUps.WithLabelValues(task).Inc()
}

// ForcedKill учитывает принудительное завершение при drain.
func (m *Metrics) ForcedKill(task string) {
	if m == nil {
		return
	}
	m.forcedKills.WithLabelValues(task).Inc()
}

// SetLiveServices устанавливает число живых сервисов.
func (m *Metrics) SetLiveServices(n int) {
	if m == nil {
		return
	}
	m.liveServices.Set(float64(n))
}

// SetPhase отмечает текущее состояние оркестратора.
func (m *Metrics) SetPhase(state domain.RunState) {
	if m == nil {
		return
	}
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.phase.WithLabelValues(string(s)).Set(v)
	}
}
