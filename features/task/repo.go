package task

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type Repository interface {
	Create(ctx context.Context, fileName string) (*Task, error)
	Get(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context, status *Status, limit, offset int) ([]Task, error)
	Update(ctx context.Context, id int64, patch Patch) (*Task, error)
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) (map[Status]int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const taskColumns = `id, file_name, status, created_at, updated_at, started_at, completed_at, error_message, embedding_count`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	t := &Task{}
	var status string
	err := row.Scan(&t.ID, &t.FileName, &status, &t.CreatedAt, &t.UpdatedAt, &t.StartedAt, &t.CompletedAt, &t.ErrorMessage, &t.EmbeddingCount)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	return t, nil
}

func (r *PostgresRepo) Create(ctx context.Context, fileName string) (*Task, error) {
	query := `INSERT INTO embedding_tasks (file_name) VALUES ($1) RETURNING ` + taskColumns
	return scanTask(r.db.QueryRowContext(ctx, query, fileName))
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM embedding_tasks WHERE id = $1`
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *PostgresRepo) List(ctx context.Context, status *Status, limit, offset int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var (
		rows *sql.Rows
		err  error
	)
	if status != nil {
		query := `SELECT ` + taskColumns + ` FROM embedding_tasks WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		rows, err = r.db.QueryContext(ctx, query, string(*status), limit, offset)
	} else {
		query := `SELECT ` + taskColumns + ` FROM embedding_tasks ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		rows, err = r.db.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// Update applies a partial update. When the patch carries a status change the
// UPDATE is guarded with `status = ANY(prior)`, making the store the
// serialization point for racing transitions: the losing writer matches zero
// rows and gets ErrConflictingState. started_at and completed_at are filled
// in by the database exactly once, never accepted from the caller.
func (r *PostgresRepo) Update(ctx context.Context, id int64, patch Patch) (*Task, error) {
	if patch.Status == nil && patch.ErrorMessage == nil && patch.EmbeddingCount == nil {
		return r.Get(ctx, id)
	}

	if patch.Status == nil {
		query := `
			UPDATE embedding_tasks
			SET error_message = COALESCE($1, error_message),
			    embedding_count = COALESCE($2, embedding_count),
			    updated_at = NOW()
			WHERE id = $3
			RETURNING ` + taskColumns
		t, err := scanTask(r.db.QueryRowContext(ctx, query, patch.ErrorMessage, patch.EmbeddingCount, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return t, err
	}

	prior := PriorStates(*patch.Status)
	if len(prior) == 0 {
		// No status has pending as a legal target.
		if _, err := r.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflictingState
	}
	priorStrs := make([]string, len(prior))
	for i, s := range prior {
		priorStrs[i] = string(s)
	}

	query := `
		UPDATE embedding_tasks
		SET status = $1,
		    error_message = COALESCE($2, error_message),
		    embedding_count = COALESCE($3, embedding_count),
		    updated_at = NOW(),
		    started_at = CASE WHEN $1 = 'processing' AND started_at IS NULL THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 IN ('completed', 'failed') AND completed_at IS NULL THEN NOW() ELSE completed_at END
		WHERE id = $4 AND status = ANY($5)
		RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRowContext(ctx, query, string(*patch.Status), patch.ErrorMessage, patch.EmbeddingCount, id, pq.Array(priorStrs)))
	if errors.Is(err, sql.ErrNoRows) {
		// Zero rows matched: either the task is gone or its status is not a
		// legal predecessor. Probe once to tell the two apart.
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflictingState
	}
	return t, err
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM embedding_tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM embedding_tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}
