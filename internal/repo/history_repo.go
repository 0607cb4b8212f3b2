package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Overseer/internal/domain"
)

// HistoryRepo — история запусков группы в Postgres.
//
// Реализует orchestrator.Recorder: каждая запись — upsert,
// поэтому повторные вызовы для одного run или запуска обновляют строку.
type HistoryRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// EnsureSchema создаёт таблицы, если их нет.
func (r *HistoryRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordRun сохраняет состояние run.
func (r *HistoryRepo) RecordRun(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO overseer_runs (id, config_path, state, started_at, finished_at, exit_code, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state,
		    finished_at = EXCLUDED.finished_at,
		    exit_code = EXCLUDED.exit_code,
		    error = EXCLUDED.error
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.ConfigPath,
		string(run.State),
		run.StartedAt,
		run.FinishedAt,
		run.ExitCode,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// RecordExecution сохраняет запуск задачи.
func (r *HistoryRepo) RecordExecution(ctx context.Context, exec *domain.Execution) error {
	outputJSON, err := json.Marshal(exec.Output)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	query := `
		INSERT INTO overseer_executions
		    (id, run_id, task, kind, attempt, pid, status, exit_code, started_at, ended_at, error, output)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET pid = EXCLUDED.pid,
		    status = EXCLUDED.status,
		    exit_code = EXCLUDED.exit_code,
		    started_at = EXCLUDED.started_at,
		    ended_at = EXCLUDED.ended_at,
		    error = EXCLUDED.error,
		    output = EXCLUDED.output
	`
	_, err = r.pool.Exec(ctx, query,
		exec.ID,
		exec.RunID,
		exec.Task,
		string(exec.Kind),
		exec.Attempt,
		exec.PID,
		string(exec.Status),
		exec.ExitCode,
		exec.StartedAt,
		exec.EndedAt,
		nullString(exec.Error),
		outputJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert execution: %w", err)
	}
	return nil
}

// GetRun возвращает run по ID.
func (r *HistoryRepo) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `
		SELECT id, config_path, state, started_at, finished_at, exit_code, error
		FROM overseer_runs
		WHERE id = $1
	`
	var (
		run      domain.Run
		state    string
		errorStr *string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.ConfigPath,
		&state,
		&run.StartedAt,
		&run.FinishedAt,
		&run.ExitCode,
		&errorStr,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.State = domain.RunState(state)
	if errorStr != nil {
		run.Error = *errorStr
	}
	return &run, nil
}

// ExecutionFilter — фильтр для ListExecutions.
type ExecutionFilter struct {
	RunID uuid.UUID
	Task  string // пусто — все задачи
	Limit int    // default: 100
}

// ListExecutions возвращает запуски run, от новых к старым.
func (r *HistoryRepo) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, run_id, task, kind, attempt, pid, status, exit_code,
		       started_at, ended_at, error, output
		FROM overseer_executions
		WHERE run_id = $1
		  AND ($2::text IS NULL OR task = $2)
		ORDER BY started_at DESC NULLS LAST, attempt DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, filter.RunID, nullString(filter.Task), limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// scanExecution читает запуск из строки результата.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var (
		exec       domain.Execution
		kind       string
		status     string
		startedAt  *time.Time
		endedAt    *time.Time
		errorStr   *string
		outputJSON []byte
	)
	err := row.Scan(
		&exec.ID,
		&exec.RunID,
		&exec.Task,
		&kind,
		&exec.Attempt,
		&exec.PID,
		&status,
		&exec.ExitCode,
		&startedAt,
		&endedAt,
		&errorStr,
		&outputJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	exec.Kind = domain.TaskKind(kind)
	exec.Status = domain.ExecutionStatus(status)
	exec.StartedAt = startedAt
	exec.EndedAt = endedAt
	if errorStr != nil {
		exec.Error = *errorStr
	}
	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &exec.Output); err != nil {
			return nil, fmt.Errorf("unmarshal output: %w", err)
		}
	}
	return &exec, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
