package backend

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashmetov/conveyor/internal/task"
)

// runBackendContract гоняет общий контракт Backend'а.
// Вызывается из тестов каждой реализации.
func runBackendContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("process cleanup", func(t *testing.T) {
		require.NoError(t, b.ProcessCleanup(ctx))
	})

	t.Run("unknown id", func(t *testing.T) {
		status, err := b.Status(ctx, "missing")
		require.NoError(t, err)
		require.Equal(t, task.StatusPending, status)

		_, err = b.Result(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("done", func(t *testing.T) {
		require.NoError(t, b.MarkAsDone(ctx, "t1", 5))

		status, err := b.Status(ctx, "t1")
		require.NoError(t, err)
		require.Equal(t, task.StatusDone, status)

		meta, err := b.Result(ctx, "t1")
		require.NoError(t, err)
		require.Equal(t, "t1", meta.TaskID)
		require.JSONEq(t, "5", string(meta.Result))
		require.False(t, meta.DateDone.IsZero())
	})

	t.Run("retry", func(t *testing.T) {
		cause := task.Retry("transient network error", errors.New("timeout"))
		info, err := b.MarkAsRetry(ctx, "t2", cause)
		require.NoError(t, err)
		require.Equal(t, "transient network error: timeout", info.Message)

		status, err := b.Status(ctx, "t2")
		require.NoError(t, err)
		require.Equal(t, task.StatusRetry, status)
		require.False(t, status.IsTerminal())
	})

	t.Run("failure", func(t *testing.T) {
		info, err := b.MarkAsFailure(ctx, "t3", errors.New("boom"))
		require.NoError(t, err)
		require.Equal(t, "boom", info.Message)
		require.NotEmpty(t, info.Traceback)

		// сохранённое представление обязано переживать сериализацию
		data, err := json.Marshal(info)
		require.NoError(t, err)
		var round task.ExcInfo
		require.NoError(t, json.Unmarshal(data, &round))
		require.Equal(t, info.Message, round.Message)
		require.Equal(t, info.Type, round.Type)

		meta, err := b.Result(ctx, "t3")
		require.NoError(t, err)
		require.Equal(t, task.StatusFailure, meta.Status)
		require.NotEmpty(t, meta.Traceback)

		var stored task.ExcInfo
		require.NoError(t, json.Unmarshal(meta.Result, &stored))
		require.Equal(t, "boom", stored.Message)
	})

	t.Run("later attempt overwrites", func(t *testing.T) {
		cause := task.Retry("busy", errors.New("try later"))
		_, err := b.MarkAsRetry(ctx, "t4", cause)
		require.NoError(t, err)

		require.NoError(t, b.MarkAsDone(ctx, "t4", "ok"))

		status, err := b.Status(ctx, "t4")
		require.NoError(t, err)
		require.Equal(t, task.StatusDone, status)
	})
}
