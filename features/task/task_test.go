package task_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"ragline/features/task"
)

func TestParseStatus(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, s := range []string{"pending", "processing", "completed", "failed"} {
			parsed, err := task.ParseStatus(s)
			assert.NoError(t, err)
			assert.Equal(t, task.Status(s), parsed)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := task.ParseStatus("queued")
		assert.ErrorIs(t, err, task.ErrInvalidStatus)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := task.ParseStatus("")
		assert.ErrorIs(t, err, task.ErrInvalidStatus)
	})
}

func TestCanTransition(t *testing.T) {
	legal := []struct{ from, to task.Status }{
		{task.StatusPending, task.StatusProcessing},
		{task.StatusProcessing, task.StatusCompleted},
		{task.StatusProcessing, task.StatusFailed},
	}
	for _, tc := range legal {
		assert.True(t, task.CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct{ from, to task.Status }{
		{task.StatusPending, task.StatusCompleted},
		{task.StatusPending, task.StatusFailed},
		{task.StatusCompleted, task.StatusProcessing},
		{task.StatusFailed, task.StatusProcessing},
		{task.StatusCompleted, task.StatusFailed},
		{task.StatusFailed, task.StatusCompleted},
		{task.StatusProcessing, task.StatusPending},
		{task.StatusCompleted, task.StatusPending},
	}
	for _, tc := range illegal {
		assert.False(t, task.CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, task.IsTerminal(task.StatusPending))
	assert.False(t, task.IsTerminal(task.StatusProcessing))
	assert.True(t, task.IsTerminal(task.StatusCompleted))
	assert.True(t, task.IsTerminal(task.StatusFailed))
}

func TestPriorStates(t *testing.T) {
	assert.Equal(t, []task.Status{task.StatusPending}, task.PriorStates(task.StatusProcessing))
	assert.Equal(t, []task.Status{task.StatusProcessing}, task.PriorStates(task.StatusCompleted))
	assert.Equal(t, []task.Status{task.StatusProcessing}, task.PriorStates(task.StatusFailed))

	// Nothing transitions back into pending.
	assert.Empty(t, task.PriorStates(task.StatusPending))
}
