package batch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClassification(t *testing.T) {
	active := []Status{StatusPending, StatusValidating, StatusProcessing, StatusPaused}
	terminal := []Status{StatusCompleted, StatusPartialSuccess, StatusFailed, StatusRolledBack}

	for _, s := range active {
		assert.True(t, s.IsActive(), "%s should be active", s)
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
		assert.False(t, s.IsActive(), "%s should not be active", s)
	}
}

func TestTransitionHappyPath(t *testing.T) {
	op := &Operation{Status: StatusPending}

	require.NoError(t, op.Transition(StatusValidating))
	require.NoError(t, op.Transition(StatusProcessing))
	require.NoError(t, op.Transition(StatusPaused))
	require.NoError(t, op.Transition(StatusProcessing))
	require.NoError(t, op.Transition(StatusCompleted))

	assert.Equal(t, StatusCompleted, op.Status)
}

func TestTransitionRejectsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusPartialSuccess, StatusFailed, StatusRolledBack} {
		op := &Operation{Status: s}
		err := op.Transition(StatusProcessing)
		assert.Error(t, err, "terminal state %s must reject transitions", s)
		assert.Equal(t, s, op.Status, "status must be unchanged after rejected transition")
	}
}

func TestTransitionRollbackFromAnyActive(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusValidating, StatusProcessing, StatusPaused} {
		op := &Operation{Status: s}
		require.NoError(t, op.Transition(StatusRolledBack), "rollback from %s", s)
	}
}

func TestProgressPercentage(t *testing.T) {
	op := &Operation{TotalFiles: 4, FilesProcessed: 3}
	assert.InDelta(t, 75.0, op.ProgressPercentage(), 0.001)

	empty := &Operation{}
	assert.Equal(t, 0.0, empty.ProgressPercentage())
}

func TestSuccessRate(t *testing.T) {
	op := &Operation{FilesProcessed: 4, FilesSucceeded: 3}
	assert.InDelta(t, 75.0, op.SuccessRate(), 0.001)

	fresh := &Operation{}
	assert.Equal(t, 0.0, fresh.SuccessRate())
}

func TestAppendLogCapsEntries(t *testing.T) {
	op := &Operation{}
	for i := 0; i < MaxLogEntries+50; i++ {
		op.AppendLog("info", fmt.Sprintf("entry %d", i), 0)
	}

	require.Len(t, op.Log, MaxLogEntries)
	// Oldest entries dropped first.
	assert.Equal(t, "entry 50", op.Log[0].Message)
	assert.Equal(t, fmt.Sprintf("entry %d", MaxLogEntries+49), op.Log[len(op.Log)-1].Message)
}

func TestAppendLogTimestamps(t *testing.T) {
	op := &Operation{}
	op.AppendLog("error", "file 2 failed", 7)

	require.Len(t, op.Log, 1)
	entry := op.Log[0]
	assert.Equal(t, "error", entry.Level)
	assert.Equal(t, int64(7), entry.DocumentID)
	_, err := time.Parse(time.RFC3339, entry.Timestamp)
	assert.NoError(t, err)
}

func TestUpdateEstimate(t *testing.T) {
	now := time.Now().UTC()
	op := &Operation{
		TotalFiles:     4,
		FilesProcessed: 2,
		StartedAt:      now.Add(-2 * time.Minute).Format(time.RFC3339),
	}

	op.UpdateEstimate(now)
	require.NotEmpty(t, op.EstimatedCompletion)

	eta, err := time.Parse(time.RFC3339, op.EstimatedCompletion)
	require.NoError(t, err)
	// 2 files in ~2 minutes leaves ~2 minutes for the remaining 2.
	assert.WithinDuration(t, now.Add(2*time.Minute), eta, 5*time.Second)
}

func TestUpdateEstimateNoProgress(t *testing.T) {
	op := &Operation{TotalFiles: 4}
	op.UpdateEstimate(time.Now())
	assert.Empty(t, op.EstimatedCompletion)
}
