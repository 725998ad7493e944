package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type steeringRepo struct {
	pool *pgxpool.Pool
}

func (r *steeringRepo) Create(ctx context.Context, m *models.SteeringMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO steering_messages (id, session_id, source, text, consumed, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.SessionID, m.Source, m.Text, m.Consumed, m.CreatedAt,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to insert steering message %q", m.ID)
	}
	return nil
}

func (r *steeringRepo) GetUnconsumedForSession(ctx context.Context, sessionID string) ([]*models.SteeringMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, source, text, consumed, created_at
		FROM steering_messages WHERE session_id = $1 AND consumed = false
		ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, ierrors.WrapDb(err, "failed to query steering messages for session %q", sessionID)
	}
	defer rows.Close()

	var out []*models.SteeringMessage
	for rows.Next() {
		var m models.SteeringMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Source, &m.Text, &m.Consumed, &m.CreatedAt); err != nil {
			return nil, ierrors.WrapDb(err, "failed to scan steering message row")
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *steeringRepo) MarkConsumed(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE steering_messages SET consumed = true WHERE id = $1`, id)
	if err != nil {
		return ierrors.WrapDb(err, "failed to mark steering message %q consumed", id)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.NotFound("steering_message", id)
	}
	return nil
}
