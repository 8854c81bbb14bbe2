package task_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"ragline/features/task"
)

const taskColumnsSQL = `id, file_name, status, created_at, updated_at, started_at, completed_at, error_message, embedding_count`

func taskRow(id int64, fileName, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "file_name", "status", "created_at", "updated_at", "started_at", "completed_at", "error_message", "embedding_count"}).
		AddRow(id, fileName, status, now, now, nil, nil, nil, nil)
}

func TestPostgresRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := task.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO embedding_tasks (file_name) VALUES ($1) RETURNING `+taskColumnsSQL)).
		WithArgs("doc.txt").
		WillReturnRows(taskRow(1, "doc.txt", "pending"))

	got, err := repo.Create(context.Background(), "doc.txt")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := task.NewPostgresRepo(db)

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+taskColumnsSQL+` FROM embedding_tasks WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnRows(taskRow(1, "doc.txt", "completed"))

		got, err := repo.Get(context.Background(), 1)
		assert.NoError(t, err)
		assert.Equal(t, task.StatusCompleted, got.Status)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+taskColumnsSQL+` FROM embedding_tasks WHERE id = $1`)).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Get(context.Background(), 99)
		assert.ErrorIs(t, err, task.ErrNotFound)
	})
}

func TestPostgresRepo_Update(t *testing.T) {
	t.Run("GuardedTransition", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		repo := task.NewPostgresRepo(db)
		processing := task.StatusProcessing

		mock.ExpectQuery(`UPDATE embedding_tasks`).
			WithArgs("processing", nil, nil, int64(1), pq.Array([]string{"pending"})).
			WillReturnRows(taskRow(1, "doc.txt", "processing"))

		got, err := repo.Update(context.Background(), 1, task.Patch{Status: &processing})
		assert.NoError(t, err)
		assert.Equal(t, task.StatusProcessing, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ConflictingState", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		repo := task.NewPostgresRepo(db)
		completed := task.StatusCompleted

		// The guard matches zero rows; the probe finds the row in a state that
		// is not a legal predecessor.
		mock.ExpectQuery(`UPDATE embedding_tasks`).
			WithArgs("completed", nil, nil, int64(1), pq.Array([]string{"processing"})).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT .+ FROM embedding_tasks WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(taskRow(1, "doc.txt", "failed"))

		_, err = repo.Update(context.Background(), 1, task.Patch{Status: &completed})
		assert.ErrorIs(t, err, task.ErrConflictingState)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		repo := task.NewPostgresRepo(db)
		processing := task.StatusProcessing

		mock.ExpectQuery(`UPDATE embedding_tasks`).
			WithArgs("processing", nil, nil, int64(99), pq.Array([]string{"pending"})).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT .+ FROM embedding_tasks WHERE id = \$1`).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		_, err = repo.Update(context.Background(), 99, task.Patch{Status: &processing})
		assert.ErrorIs(t, err, task.ErrNotFound)
	})

	t.Run("PendingIsNeverATarget", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		repo := task.NewPostgresRepo(db)
		pending := task.StatusPending

		mock.ExpectQuery(`SELECT .+ FROM embedding_tasks WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(taskRow(1, "doc.txt", "processing"))

		_, err = repo.Update(context.Background(), 1, task.Patch{Status: &pending})
		assert.ErrorIs(t, err, task.ErrConflictingState)
	})

	t.Run("StatusLessPatch", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		repo := task.NewPostgresRepo(db)
		count := 12

		mock.ExpectQuery(`UPDATE embedding_tasks`).
			WithArgs(nil, &count, int64(1)).
			WillReturnRows(taskRow(1, "doc.txt", "processing"))

		got, err := repo.Update(context.Background(), 1, task.Patch{EmbeddingCount: &count})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), got.ID)
	})

	t.Run("EmptyPatchReadsBack", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		repo := task.NewPostgresRepo(db)

		mock.ExpectQuery(`SELECT .+ FROM embedding_tasks WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(taskRow(1, "doc.txt", "pending"))

		got, err := repo.Update(context.Background(), 1, task.Patch{})
		assert.NoError(t, err)
		assert.Equal(t, task.StatusPending, got.Status)
	})
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := task.NewPostgresRepo(db)

	t.Run("All", func(t *testing.T) {
		rows := taskRow(2, "b.txt", "pending").
			AddRow(int64(1), "a.txt", "completed", time.Now(), time.Now(), nil, nil, nil, nil)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+taskColumnsSQL+` FROM embedding_tasks ORDER BY created_at DESC LIMIT $1 OFFSET $2`)).
			WithArgs(50, 0).
			WillReturnRows(rows)

		tasks, err := repo.List(context.Background(), nil, 0, 0)
		assert.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("FilteredByStatus", func(t *testing.T) {
		failed := task.StatusFailed
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT `+taskColumnsSQL+` FROM embedding_tasks WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`)).
			WithArgs("failed", 10, 5).
			WillReturnRows(taskRow(3, "c.txt", "failed"))

		tasks, err := repo.List(context.Background(), &failed, 10, 5)
		assert.NoError(t, err)
		assert.Len(t, tasks, 1)
		assert.Equal(t, task.StatusFailed, tasks[0].Status)
	})
}

func TestPostgresRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := task.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM embedding_tasks WHERE id = $1`)).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Delete(context.Background(), 1))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM embedding_tasks WHERE id = $1`)).
			WithArgs(int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(context.Background(), 99), task.ErrNotFound)
	})
}

func TestPostgresRepo_CountByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := task.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("pending", 2).
		AddRow("completed", 5)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, COUNT(*) FROM embedding_tasks GROUP BY status`)).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, map[task.Status]int{task.StatusPending: 2, task.StatusCompleted: 5}, counts)
}
