package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type approvalRepo struct {
	pool *pgxpool.Pool
}

const approvalColumns = `id, session_id, title, description, diff_content, file_path,
	risk_level, status, original_hash, slack_ts, created_at, consumed_at`

func (r *approvalRepo) Create(ctx context.Context, a *models.ApprovalRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO approval_requests (`+approvalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.SessionID, a.Title, a.Description, a.DiffContent, a.FilePath,
		a.RiskLevel, a.Status, a.OriginalHash, a.SlackTS, a.CreatedAt, a.ConsumedAt,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to insert approval %q", a.ID)
	}
	return nil
}

func (r *approvalRepo) GetByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id)
	return scanApproval(row, id)
}

func (r *approvalRepo) ListPending(ctx context.Context) ([]*models.ApprovalRequest, error) {
	return r.query(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE status = $1 ORDER BY created_at ASC`, models.ApprovalPending)
}

func (r *approvalRepo) GetPendingForSession(ctx context.Context, sessionID string) ([]*models.ApprovalRequest, error) {
	return r.query(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE session_id = $1 AND status = $2 ORDER BY created_at ASC`, sessionID, models.ApprovalPending)
}

func (r *approvalRepo) query(ctx context.Context, sql string, args ...any) ([]*models.ApprovalRequest, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, ierrors.WrapDb(err, "failed to query approval requests")
	}
	defer rows.Close()
	var out []*models.ApprovalRequest
	for rows.Next() {
		a, err := scanApproval(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *approvalRepo) UpdateStatus(ctx context.Context, id string, next models.ApprovalStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE approval_requests SET status = $1 WHERE id = $2`, next, id)
	if err != nil {
		return ierrors.WrapDb(err, "failed to update approval %q status", id)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.NotFound("approval", id)
	}
	return nil
}

func (r *approvalRepo) Consume(ctx context.Context, id string) error {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE approval_requests SET status = $1, consumed_at = $2
		WHERE id = $3 AND status = $4`,
		models.ApprovalConsumed, now, id, models.ApprovalApproved,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to consume approval %q", id)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.AlreadyConsumed("approval", id)
	}
	return nil
}

func scanApproval(row rowScanner, notFoundID string) (*models.ApprovalRequest, error) {
	var a models.ApprovalRequest
	err := row.Scan(
		&a.ID, &a.SessionID, &a.Title, &a.Description, &a.DiffContent, &a.FilePath,
		&a.RiskLevel, &a.Status, &a.OriginalHash, &a.SlackTS, &a.CreatedAt, &a.ConsumedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierrors.NotFound("approval", notFoundID)
		}
		return nil, ierrors.WrapDb(err, "failed to scan approval row")
	}
	return &a, nil
}
