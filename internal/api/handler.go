package api

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/orchestrator"
)

// StatusProvider — источник состояния группы. Реализует *orchestrator.Orchestrator.
type StatusProvider interface {
	Snapshot() orchestrator.Snapshot
	History(task string) []*domain.Execution
}

// Handler — обработчик API с зависимостями.
type Handler struct {
	status  StatusProvider
	metrics http.Handler
	logger  *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Status StatusProvider

	// Gatherer — источник метрик для /metrics.
	// По умолчанию prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		status:  cfg.Status,
		metrics: promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}),
		logger:  cfg.Logger,
	}
}

// Health отвечает 200, пока run не завершён, и 503 после.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	snap := h.status.Snapshot()

	body := HealthResponse{
		State:        snap.Run.State,
		LiveServices: len(snap.Members),
	}

	if snap.Run.State.IsTerminal() {
		JSON(w, http.StatusServiceUnavailable, body)
		return
	}
	JSON(w, http.StatusOK, body)
}

// Status возвращает run и живые сервисы.
// GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.status.Snapshot())
}

// ListExecutions возвращает последние завершённые запуски.
// GET /api/v1/executions?task=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	execs := h.status.History(r.URL.Query().Get("task"))
	if execs == nil {
		execs = []*domain.Execution{}
	}
	List(w, execs, len(execs))
}

// HealthResponse — тело ответа /healthz.
type HealthResponse struct {
	State        domain.RunState `json:"state"`
	LiveServices int             `json:"live_services"`
}
