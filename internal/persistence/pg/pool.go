// Package pg implements persistence.Store on PostgreSQL via pgx.
//
// Grounded on: kdlbs-kandev/apps/backend/internal/common/database/database.go
// (pgxpool connection/config, WithTx transaction helper).
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/persistence"
)

// Store is the PostgreSQL-backed persistence.Store.
type Store struct {
	pool *pgxpool.Pool

	sessions    *sessionRepo
	approvals   *approvalRepo
	prompts     *promptRepo
	checkpoints *checkpointRepo
	stallAlerts *stallAlertRepo
	steering    *steeringRepo
	inbox       *inboxRepo
}

// Options configures pool construction.
type Options struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// Open connects to PostgreSQL and verifies the connection with a ping.
func Open(ctx context.Context, opts Options) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, ierrors.WrapDb(err, "failed to parse database DSN")
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolCfg.MinConns = opts.MinConns
	}
	poolCfg.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, ierrors.WrapDb(err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, ierrors.WrapDb(err, "failed to ping database")
	}

	s := &Store{pool: pool}
	s.sessions = &sessionRepo{pool: pool}
	s.approvals = &approvalRepo{pool: pool}
	s.prompts = &promptRepo{pool: pool}
	s.checkpoints = &checkpointRepo{pool: pool}
	s.stallAlerts = &stallAlertRepo{pool: pool}
	s.steering = &steeringRepo{pool: pool}
	s.inbox = &inboxRepo{pool: pool}
	return s, nil
}

func (s *Store) Sessions() persistence.Sessions       { return s.sessions }
func (s *Store) Approvals() persistence.Approvals     { return s.approvals }
func (s *Store) Prompts() persistence.Prompts         { return s.prompts }
func (s *Store) Checkpoints() persistence.Checkpoints { return s.checkpoints }
func (s *Store) StallAlerts() persistence.StallAlerts { return s.stallAlerts }
func (s *Store) Steering() persistence.Steering       { return s.steering }
func (s *Store) Inbox() persistence.Inbox             { return s.inbox }

// ApplySchema (re-)creates every table this store depends on. Every
// statement is idempotent (CREATE TABLE IF NOT EXISTS /
// CREATE INDEX IF NOT EXISTS), so repeated calls converge rather than
// error, per spec §4.8.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return ierrors.WrapDb(err, "failed to apply schema")
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

var _ persistence.Store = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id                  TEXT PRIMARY KEY,
	owner_user_id       TEXT NOT NULL,
	workspace_root      TEXT NOT NULL,
	status              TEXT NOT NULL,
	prompt              TEXT,
	mode                TEXT NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	last_tool           TEXT,
	nudge_count         BIGINT NOT NULL DEFAULT 0,
	stall_paused        BOOLEAN NOT NULL DEFAULT FALSE,
	terminated_at       TIMESTAMPTZ,
	progress_snapshot   JSONB,
	protocol_mode       TEXT NOT NULL,
	channel_id          TEXT,
	thread_ts           TEXT,
	connectivity_status TEXT NOT NULL,
	last_activity_at    TIMESTAMPTZ,
	restart_of          TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status);
CREATE INDEX IF NOT EXISTS idx_sessions_channel ON sessions (channel_id);

CREATE TABLE IF NOT EXISTS approval_requests (
	id            TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	title         TEXT NOT NULL,
	description   TEXT,
	diff_content  TEXT NOT NULL,
	file_path     TEXT NOT NULL,
	risk_level    TEXT NOT NULL,
	status        TEXT NOT NULL,
	original_hash TEXT NOT NULL,
	slack_ts      TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	consumed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_approvals_session ON approval_requests (session_id);
CREATE INDEX IF NOT EXISTS idx_approvals_status ON approval_requests (status);

CREATE TABLE IF NOT EXISTS continuation_prompts (
	id              TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL REFERENCES sessions(id),
	prompt_text     TEXT NOT NULL,
	prompt_type     TEXT NOT NULL,
	elapsed_seconds BIGINT,
	actions_taken   BIGINT,
	decision        TEXT,
	instruction     TEXT,
	slack_ts        TEXT,
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prompts_session ON continuation_prompts (session_id);

CREATE TABLE IF NOT EXISTS checkpoints (
	id                TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL REFERENCES sessions(id),
	label             TEXT,
	session_state     JSONB,
	file_hashes       JSONB NOT NULL,
	workspace_root    TEXT NOT NULL,
	progress_snapshot JSONB,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints (session_id, created_at DESC);

CREATE TABLE IF NOT EXISTS stall_alerts (
	id                TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL REFERENCES sessions(id),
	last_tool         TEXT,
	last_activity_at  TIMESTAMPTZ NOT NULL,
	idle_seconds      BIGINT NOT NULL,
	nudge_count       INTEGER NOT NULL DEFAULT 0,
	status            TEXT NOT NULL,
	nudge_message     TEXT,
	progress_snapshot JSONB,
	slack_ts          TEXT,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stall_alerts_session ON stall_alerts (session_id, status);

CREATE TABLE IF NOT EXISTS steering_messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	source     TEXT NOT NULL,
	text       TEXT NOT NULL,
	consumed   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_steering_session ON steering_messages (session_id, consumed, created_at);

CREATE TABLE IF NOT EXISTS task_inbox_items (
	id         TEXT PRIMARY KEY,
	channel_id TEXT,
	source     TEXT NOT NULL,
	text       TEXT NOT NULL,
	consumed   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inbox_consumed ON task_inbox_items (consumed, created_at);
`
