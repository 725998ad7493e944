package pg

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type stallAlertRepo struct {
	pool *pgxpool.Pool
}

func (r *stallAlertRepo) Create(ctx context.Context, a *models.StallAlert) error {
	progress, err := json.Marshal(a.ProgressSnapshot)
	if err != nil {
		return ierrors.WrapDb(err, "failed to encode progress snapshot")
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO stall_alerts (id, session_id, last_tool, last_activity_at, idle_seconds,
			nudge_count, status, nudge_message, progress_snapshot, slack_ts, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.SessionID, a.LastTool, a.LastActivityAt, a.IdleSeconds,
		a.NudgeCount, a.Status, a.NudgeMessage, progress, a.SlackTS, a.CreatedAt,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to insert stall alert %q", a.ID)
	}
	return nil
}

func (r *stallAlertRepo) GetByID(ctx context.Context, id string) (*models.StallAlert, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, session_id, last_tool, last_activity_at, idle_seconds,
			nudge_count, status, nudge_message, progress_snapshot, slack_ts, created_at
		FROM stall_alerts WHERE id = $1`, id)
	return scanStallAlert(row, id)
}

func (r *stallAlertRepo) GetActiveForSession(ctx context.Context, sessionID string) (*models.StallAlert, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, session_id, last_tool, last_activity_at, idle_seconds,
			nudge_count, status, nudge_message, progress_snapshot, slack_ts, created_at
		FROM stall_alerts WHERE session_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`,
		sessionID, models.StallPending, models.StallNudged)
	return scanStallAlert(row, "active for session "+sessionID)
}

func (r *stallAlertRepo) UpdateStatus(ctx context.Context, id string, next models.StallAlertStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stall_alerts SET status = $1 WHERE id = $2`, next, id)
	if err != nil {
		return ierrors.WrapDb(err, "failed to update stall alert %q status", id)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.NotFound("stall_alert", id)
	}
	return nil
}

func (r *stallAlertRepo) IncrementNudgeCount(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE stall_alerts SET nudge_count = nudge_count + 1 WHERE id = $1`, id)
	if err != nil {
		return ierrors.WrapDb(err, "failed to increment nudge count for %q", id)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.NotFound("stall_alert", id)
	}
	return nil
}

func scanStallAlert(row rowScanner, notFoundID string) (*models.StallAlert, error) {
	var a models.StallAlert
	var progress []byte
	err := row.Scan(&a.ID, &a.SessionID, &a.LastTool, &a.LastActivityAt, &a.IdleSeconds,
		&a.NudgeCount, &a.Status, &a.NudgeMessage, &progress, &a.SlackTS, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierrors.NotFound("stall_alert", notFoundID)
		}
		return nil, ierrors.WrapDb(err, "failed to scan stall alert row")
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &a.ProgressSnapshot); err != nil {
			return nil, ierrors.WrapDb(err, "failed to decode progress snapshot")
		}
	}
	return &a, nil
}
