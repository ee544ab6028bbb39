package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"task-duel/internal/repository/mocks"
	"task-duel/internal/tasks"
	"task-duel/internal/worker"
)

type countingHeartbeater struct{ calls int }

func (c *countingHeartbeater) Heartbeat() int {
	c.calls++
	return 2
}

func TestRoomCleanupHandler_ReleasesCode(t *testing.T) {
	state := mocks.NewStateRepository(t)
	taskRepo := mocks.NewTaskRepository(t)
	state.On("ReleaseJoinCode", mock.Anything, "ABC123").Return(nil).Once()
	taskRepo.On("CountByRoom", mock.Anything, "R1").Return(int64(3), nil).Once()

	task, err := tasks.NewRoomCleanupTask("R1", "ABC123")
	require.NoError(t, err)

	h := worker.NewRoomCleanupHandler(state, taskRepo)
	assert.NoError(t, h.ProcessTask(context.Background(), task))
}

func TestRoomCleanupHandler_RetriesOnRedisError(t *testing.T) {
	state := mocks.NewStateRepository(t)
	state.On("ReleaseJoinCode", mock.Anything, "ABC123").Return(errors.New("redis down")).Once()

	task, err := tasks.NewRoomCleanupTask("R1", "ABC123")
	require.NoError(t, err)

	err = worker.NewRoomCleanupHandler(state, nil).ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestRoomCleanupHandler_BadPayloadSkipsRetry(t *testing.T) {
	h := worker.NewRoomCleanupHandler(nil, nil)

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeRoomCleanup, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeRoomCleanup, []byte(`{"code":"X"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestWorkerServer_MuxRoutesTasks(t *testing.T) {
	state := mocks.NewStateRepository(t)
	taskRepo := mocks.NewTaskRepository(t)
	state.On("ReleaseJoinCode", mock.Anything, "ZZZ999").Return(nil).Once()
	taskRepo.On("CountByRoom", mock.Anything, "R9").Return(int64(0), nil).Once()
	streams := &countingHeartbeater{}

	ws := worker.NewWorkerServer(asynq.RedisClientOpt{Addr: "127.0.0.1:0"}, state, taskRepo, streams, logrus.New())
	mux := ws.Mux()

	require.NoError(t, mux.ProcessTask(context.Background(), tasks.NewHubHeartbeatTask()))
	assert.Equal(t, 1, streams.calls)

	cleanup, err := tasks.NewRoomCleanupTask("R9", "ZZZ999")
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), cleanup))
}
