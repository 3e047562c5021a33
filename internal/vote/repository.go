package vote

import (
	"context"
	"database/sql"
	"fmt"

	"campus-hub/internal/apperr"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func targetTable(kind Kind) (string, error) {
	switch kind {
	case KindPost:
		return "posts", nil
	case KindComment:
		return "comments", nil
	}
	return "", fmt.Errorf("vote: unknown target kind %q", kind)
}

func (r *Repository) Load(ctx context.Context, target Target) (Tally, error) {
	table, err := targetTable(target.Kind)
	if err != nil {
		return Tally{}, err
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`, target.ID).Scan(&exists)
	if err != nil {
		return Tally{}, err
	}
	if !exists {
		return Tally{}, apperr.NotFound("vote.load", string(target.Kind), target.ID)
	}

	tallies, err := r.LoadMany(ctx, target.Kind, []int64{target.ID})
	if err != nil {
		return Tally{}, err
	}
	return tallies[target.ID], nil
}

func (r *Repository) LoadMany(ctx context.Context, kind Kind, ids []int64) (map[int64]Tally, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT target_id, user_id, direction FROM votes
		WHERE target_kind = $1 AND target_id = ANY($2)`, string(kind), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[int64]map[int64]State, len(ids))
	for rows.Next() {
		var targetID, userID int64
		var direction int
		if err := rows.Scan(&targetID, &userID, &direction); err != nil {
			return nil, err
		}
		if states[targetID] == nil {
			states[targetID] = make(map[int64]State)
		}
		states[targetID][userID] = State(direction)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[int64]Tally, len(ids))
	for _, id := range ids {
		out[id] = FromStates(id, states[id])
	}
	return out, nil
}

// Record writes the vote row and recomputes the stored score from the vote
// rows in the same transaction, so the score column never drifts from the
// votes even when several instances write.
func (r *Repository) Record(ctx context.Context, target Target, userID int64, state State) error {
	table, err := targetTable(target.Kind)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if state == None {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM votes WHERE target_kind = $1 AND target_id = $2 AND user_id = $3`,
			string(target.Kind), target.ID, userID)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO votes (target_kind, target_id, user_id, direction) VALUES ($1, $2, $3, $4)
			ON CONFLICT (target_kind, target_id, user_id)
			DO UPDATE SET direction = EXCLUDED.direction, created_at = NOW()`,
			string(target.Kind), target.ID, userID, int(state))
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE `+table+` SET
			score = (SELECT COALESCE(SUM(direction), 0) FROM votes WHERE target_kind = $1 AND target_id = $2),
			updated_at = NOW()
		WHERE id = $2`, string(target.Kind), target.ID)
	if err != nil {
		return err
	}
	return tx.Commit()
}
