package repo

// schemaSQL — таблицы истории. Применяется идемпотентно при старте.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS overseer_runs (
    id          uuid PRIMARY KEY,
    config_path text        NOT NULL,
    state       text        NOT NULL,
    started_at  timestamptz NOT NULL,
    finished_at timestamptz,
    exit_code   integer     NOT NULL DEFAULT 0,
    error       text
);

CREATE TABLE IF NOT EXISTS overseer_executions (
    id         uuid PRIMARY KEY,
    run_id     uuid        NOT NULL REFERENCES overseer_runs (id) ON DELETE CASCADE,
    task       text        NOT NULL,
    kind       text        NOT NULL,
    attempt    integer     NOT NULL,
    pid        integer     NOT NULL DEFAULT 0,
    status     text        NOT NULL,
    exit_code  integer     NOT NULL,
    started_at timestamptz,
    ended_at   timestamptz,
    error      text,
    output     jsonb
);

CREATE INDEX IF NOT EXISTS overseer_executions_run_task_idx
    ON overseer_executions (run_id, task, attempt);
`
