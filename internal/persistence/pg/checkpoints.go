package pg

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type checkpointRepo struct {
	pool *pgxpool.Pool
}

func (r *checkpointRepo) Create(ctx context.Context, c *models.Checkpoint) error {
	state, err := json.Marshal(c.SessionState)
	if err != nil {
		return ierrors.WrapDb(err, "failed to encode session state")
	}
	hashes, err := json.Marshal(c.FileHashes)
	if err != nil {
		return ierrors.WrapDb(err, "failed to encode file hashes")
	}
	progress, err := json.Marshal(c.ProgressSnapshot)
	if err != nil {
		return ierrors.WrapDb(err, "failed to encode progress snapshot")
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO checkpoints (id, session_id, label, session_state, file_hashes, workspace_root, progress_snapshot, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.SessionID, c.Label, state, hashes, c.WorkspaceRoot, progress, c.CreatedAt,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to insert checkpoint %q", c.ID)
	}
	return nil
}

func (r *checkpointRepo) GetByID(ctx context.Context, id string) (*models.Checkpoint, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, session_id, label, session_state, file_hashes, workspace_root, progress_snapshot, created_at
		FROM checkpoints WHERE id = $1`, id)
	return scanCheckpoint(row, id)
}

func (r *checkpointRepo) GetMostRecentForSession(ctx context.Context, sessionID string) (*models.Checkpoint, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, session_id, label, session_state, file_hashes, workspace_root, progress_snapshot, created_at
		FROM checkpoints WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`, sessionID)
	return scanCheckpoint(row, "for session "+sessionID)
}

func scanCheckpoint(row rowScanner, notFoundID string) (*models.Checkpoint, error) {
	var c models.Checkpoint
	var state, hashes, progress []byte
	err := row.Scan(&c.ID, &c.SessionID, &c.Label, &state, &hashes, &c.WorkspaceRoot, &progress, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierrors.NotFound("checkpoint", notFoundID)
		}
		return nil, ierrors.WrapDb(err, "failed to scan checkpoint row")
	}
	if len(state) > 0 {
		if err := json.Unmarshal(state, &c.SessionState); err != nil {
			return nil, ierrors.WrapDb(err, "failed to decode session state")
		}
	}
	if len(hashes) > 0 {
		if err := json.Unmarshal(hashes, &c.FileHashes); err != nil {
			return nil, ierrors.WrapDb(err, "failed to decode file hashes")
		}
	}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &c.ProgressSnapshot); err != nil {
			return nil, ierrors.WrapDb(err, "failed to decode progress snapshot")
		}
	}
	return &c, nil
}
