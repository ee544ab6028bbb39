package tasks_test

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-duel/internal/tasks"
)

func TestRoomCleanupTask_RoundTrip(t *testing.T) {
	task, err := tasks.NewRoomCleanupTask("room-1", "AB12CD")
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeRoomCleanup, task.Type())

	p, err := tasks.ParseRoomCleanupPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "room-1", p.RoomID)
	assert.Equal(t, "AB12CD", p.Code)
}

func TestParseRoomCleanupPayload_Invalid(t *testing.T) {
	_, err := tasks.ParseRoomCleanupPayload(asynq.NewTask(tasks.TypeRoomCleanup, []byte("not json")))
	assert.Error(t, err)

	_, err = tasks.ParseRoomCleanupPayload(asynq.NewTask(tasks.TypeRoomCleanup, []byte(`{"code":"X"}`)))
	assert.Error(t, err)
}
