package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

const inboxColumns = `id, channel_id, source, text, consumed, created_at`

type inboxRepo struct {
	pool *pgxpool.Pool
}

func (r *inboxRepo) Create(ctx context.Context, item *models.TaskInboxItem) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_inbox_items (`+inboxColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		item.ID, item.ChannelID, item.Source, item.Text, item.Consumed, item.CreatedAt,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to insert task inbox item %q", item.ID)
	}
	return nil
}

func (r *inboxRepo) GetUnconsumed(ctx context.Context, channelID *string) ([]*models.TaskInboxItem, error) {
	sql := `SELECT ` + inboxColumns + ` FROM task_inbox_items WHERE consumed = false`
	args := []any{}
	if channelID != nil {
		sql += ` AND channel_id = $1`
		args = append(args, *channelID)
	}
	sql += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, ierrors.WrapDb(err, "failed to query task inbox items")
	}
	defer rows.Close()

	var out []*models.TaskInboxItem
	for rows.Next() {
		var item models.TaskInboxItem
		if err := rows.Scan(&item.ID, &item.ChannelID, &item.Source, &item.Text, &item.Consumed, &item.CreatedAt); err != nil {
			return nil, ierrors.WrapDb(err, "failed to scan task inbox item row")
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

func (r *inboxRepo) MarkConsumed(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE task_inbox_items SET consumed = true WHERE id = $1`, id)
	if err != nil {
		return ierrors.WrapDb(err, "failed to mark task inbox item %q consumed", id)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.NotFound("task_inbox_item", id)
	}
	return nil
}
