package pg

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type sessionRepo struct {
	pool *pgxpool.Pool
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	progress, err := json.Marshal(s.ProgressSnapshot)
	if err != nil {
		return ierrors.WrapDb(err, "failed to encode progress snapshot")
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, owner_user_id, workspace_root, status, prompt, mode,
			created_at, updated_at, last_tool, nudge_count, stall_paused,
			terminated_at, progress_snapshot, protocol_mode, channel_id,
			thread_ts, connectivity_status, last_activity_at, restart_of
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		s.ID, s.OwnerUserID, s.WorkspaceRoot, s.Status, s.Prompt, s.Mode,
		s.CreatedAt, s.UpdatedAt, s.LastTool, s.NudgeCount, s.StallPaused,
		s.TerminatedAt, progress, s.ProtocolMode, s.ChannelID,
		s.ThreadTS, s.ConnectivityStatus, s.LastActivityAt, s.RestartOf,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to insert session %q", s.ID)
	}
	return nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_user_id, workspace_root, status, prompt, mode,
			created_at, updated_at, last_tool, nudge_count, stall_paused,
			terminated_at, progress_snapshot, protocol_mode, channel_id,
			thread_ts, connectivity_status, last_activity_at, restart_of
		FROM sessions WHERE id = $1`, id)
	return scanSession(row, id)
}

func (r *sessionRepo) ListActive(ctx context.Context) ([]*models.Session, error) {
	return r.listByStatus(ctx, models.SessionActive)
}

func (r *sessionRepo) ListPaused(ctx context.Context) ([]*models.Session, error) {
	return r.listByStatus(ctx, models.SessionPaused)
}

func (r *sessionRepo) ListInterrupted(ctx context.Context) ([]*models.Session, error) {
	return r.listByStatus(ctx, models.SessionInterrupted)
}

func (r *sessionRepo) listByStatus(ctx context.Context, status models.SessionStatus) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_user_id, workspace_root, status, prompt, mode,
			created_at, updated_at, last_tool, nudge_count, stall_paused,
			terminated_at, progress_snapshot, protocol_mode, channel_id,
			thread_ts, connectivity_status, last_activity_at, restart_of
		FROM sessions WHERE status = $1 ORDER BY created_at ASC`, status)
	if err != nil {
		return nil, ierrors.WrapDb(err, "failed to query sessions by status %q", status)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		s, err := scanSession(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionRepo) FindActiveByChannel(ctx context.Context, channelID string) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_user_id, workspace_root, status, prompt, mode,
			created_at, updated_at, last_tool, nudge_count, stall_paused,
			terminated_at, progress_snapshot, protocol_mode, channel_id,
			thread_ts, connectivity_status, last_activity_at, restart_of
		FROM sessions WHERE status = $1 AND channel_id = $2 LIMIT 1`,
		models.SessionActive, channelID)
	return scanSession(row, "for channel "+channelID)
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, id string, next models.SessionStatus) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !current.CanTransitionTo(next) {
		return ierrors.Protocol("illegal session transition %s -> %s", current.Status, next)
	}
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET status = $1, updated_at = now() WHERE id = $2`, next, id)
	if err != nil {
		return ierrors.WrapDb(err, "failed to update session %q status", id)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.NotFound("session", id)
	}
	return nil
}

func (r *sessionRepo) Update(ctx context.Context, s *models.Session) error {
	progress, err := json.Marshal(s.ProgressSnapshot)
	if err != nil {
		return ierrors.WrapDb(err, "failed to encode progress snapshot")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions SET
			status = $2, prompt = $3, updated_at = now(), last_tool = $4,
			nudge_count = $5, stall_paused = $6, terminated_at = $7,
			progress_snapshot = $8, channel_id = $9, thread_ts = $10,
			connectivity_status = $11, last_activity_at = $12, mode = $13
		WHERE id = $1`,
		s.ID, s.Status, s.Prompt, s.LastTool, s.NudgeCount, s.StallPaused,
		s.TerminatedAt, progress, s.ChannelID, s.ThreadTS,
		s.ConnectivityStatus, s.LastActivityAt, s.Mode,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to update session %q", s.ID)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.NotFound("session", s.ID)
	}
	return nil
}

func (r *sessionRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM sessions WHERE status = $1`, models.SessionActive).Scan(&n)
	if err != nil {
		return 0, ierrors.WrapDb(err, "failed to count active sessions")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, notFoundID string) (*models.Session, error) {
	var s models.Session
	var progress []byte
	err := row.Scan(
		&s.ID, &s.OwnerUserID, &s.WorkspaceRoot, &s.Status, &s.Prompt, &s.Mode,
		&s.CreatedAt, &s.UpdatedAt, &s.LastTool, &s.NudgeCount, &s.StallPaused,
		&s.TerminatedAt, &progress, &s.ProtocolMode, &s.ChannelID,
		&s.ThreadTS, &s.ConnectivityStatus, &s.LastActivityAt, &s.RestartOf,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierrors.NotFound("session", notFoundID)
		}
		return nil, ierrors.WrapDb(err, "failed to scan session row")
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &s.ProgressSnapshot); err != nil {
			return nil, ierrors.WrapDb(err, "failed to decode progress snapshot")
		}
	}
	return &s, nil
}
