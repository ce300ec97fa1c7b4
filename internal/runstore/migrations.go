package runstore

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    run_dir TEXT,
    project TEXT NOT NULL,
    kind TEXT NOT NULL,
    seed INTEGER NOT NULL,
    dry_run BOOLEAN DEFAULT FALSE,
    verdict TEXT,
    status TEXT NOT NULL,
    exit_code INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_run_dir ON runs(run_dir);
CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

CREATE TABLE IF NOT EXISTS steps (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    step TEXT NOT NULL,
    exit_code INTEGER NOT NULL,
    error TEXT,
    started_at TIMESTAMP,
    duration_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_steps_run_id ON steps(run_id);
`
