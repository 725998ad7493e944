package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softwaresalt/agent-intercom/internal/ierrors"
	"github.com/softwaresalt/agent-intercom/internal/models"
)

type promptRepo struct {
	pool *pgxpool.Pool
}

const promptColumns = `id, session_id, prompt_text, prompt_type, elapsed_seconds,
	actions_taken, decision, instruction, slack_ts, created_at`

func (r *promptRepo) Create(ctx context.Context, p *models.ContinuationPrompt) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO continuation_prompts (`+promptColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.SessionID, p.PromptText, p.PromptType, p.ElapsedSeconds,
		p.ActionsTaken, p.Decision, p.Instruction, p.SlackTS, p.CreatedAt,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to insert prompt %q", p.ID)
	}
	return nil
}

func (r *promptRepo) GetByID(ctx context.Context, id string) (*models.ContinuationPrompt, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+promptColumns+` FROM continuation_prompts WHERE id = $1`, id)
	return scanPrompt(row, id)
}

func (r *promptRepo) ListPending(ctx context.Context) ([]*models.ContinuationPrompt, error) {
	return r.query(ctx, `SELECT `+promptColumns+` FROM continuation_prompts WHERE decision IS NULL ORDER BY created_at ASC`)
}

func (r *promptRepo) GetPendingForSession(ctx context.Context, sessionID string) ([]*models.ContinuationPrompt, error) {
	return r.query(ctx, `SELECT `+promptColumns+` FROM continuation_prompts WHERE session_id = $1 AND decision IS NULL ORDER BY created_at ASC`, sessionID)
}

func (r *promptRepo) query(ctx context.Context, sql string, args ...any) ([]*models.ContinuationPrompt, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, ierrors.WrapDb(err, "failed to query continuation prompts")
	}
	defer rows.Close()
	var out []*models.ContinuationPrompt
	for rows.Next() {
		p, err := scanPrompt(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *promptRepo) Resolve(ctx context.Context, id string, decision models.PromptDecision, instruction *string) error {
	if decision == models.DecisionRefine && (instruction == nil || *instruction == "") {
		return ierrors.Protocol("refine decision requires instruction text")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE continuation_prompts SET decision = $1, instruction = $2 WHERE id = $3`,
		decision, instruction, id,
	)
	if err != nil {
		return ierrors.WrapDb(err, "failed to resolve prompt %q", id)
	}
	if tag.RowsAffected() == 0 {
		return ierrors.NotFound("prompt", id)
	}
	return nil
}

func scanPrompt(row rowScanner, notFoundID string) (*models.ContinuationPrompt, error) {
	var p models.ContinuationPrompt
	err := row.Scan(
		&p.ID, &p.SessionID, &p.PromptText, &p.PromptType, &p.ElapsedSeconds,
		&p.ActionsTaken, &p.Decision, &p.Instruction, &p.SlackTS, &p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ierrors.NotFound("prompt", notFoundID)
		}
		return nil, ierrors.WrapDb(err, "failed to scan prompt row")
	}
	return &p, nil
}
