package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"task-duel/internal/domain"
	"task-duel/internal/repository"
	"task-duel/internal/repository/mocks"
	"task-duel/internal/service"
)

type completionFixture struct {
	completions *mocks.CompletionRepository
	subtasks    *mocks.SubtaskRepository
	tasks       *mocks.TaskRepository
	users       *mocks.UserRepository
	hub         *fakeBroadcaster
	svc         *service.CompletionService
}

func newCompletionFixture(t *testing.T) *completionFixture {
	f := &completionFixture{
		completions: mocks.NewCompletionRepository(t),
		subtasks:    mocks.NewSubtaskRepository(t),
		tasks:       mocks.NewTaskRepository(t),
		users:       mocks.NewUserRepository(t),
		hub:         &fakeBroadcaster{},
	}
	f.svc = service.NewCompletionService(f.completions, f.subtasks, f.tasks, f.users,
		service.NewNotifier(f.hub).WithClock(fixedClock))
	return f
}

func (f *completionFixture) expectEventLookups(ctx context.Context) {
	f.tasks.On("FindByID", ctx, "T1").Return(&domain.Task{ID: "T1", RoomID: "R1"}, nil)
	f.users.On("FindByID", ctx, "U2").Return(&domain.User{ID: "U2", Name: "Bo"}, nil)
}

func TestCompletionService_CompleteSubtask_CreatesThenUpdates(t *testing.T) {
	// Arrange: 用内存 map 模拟 (用户, 子任务) 唯一的存储
	f := newCompletionFixture(t)
	ctx := context.Background()
	f.subtasks.On("FindByID", ctx, "S1").Return(&domain.Subtask{ID: "S1", TaskID: "T1"}, nil)
	f.expectEventLookups(ctx)

	var stored *domain.Completion
	saves := 0
	f.completions.On("FindByUserAndSubtask", ctx, "U2", "S1").Return(nil, repository.ErrCompletionNotFound).Once()
	// 第二次查找返回第一次保存的那一行
	secondLookup := f.completions.On("FindByUserAndSubtask", ctx, "U2", "S1").Once()
	secondLookup.Run(func(mock.Arguments) { secondLookup.ReturnArguments = mock.Arguments{stored, nil} })
	f.completions.On("Save", ctx, mock.AnythingOfType("*domain.Completion")).
		Run(func(args mock.Arguments) {
			c := args.Get(1).(*domain.Completion)
			if c.ID == "" {
				c.ID = "C1"
			}
			saves++
			stored = c
		}).
		Return(nil).Twice()

	// Act: 同一对完成两次
	first, err := f.svc.CompleteSubtask(ctx, "S1", "U2")
	require.NoError(t, err)
	second, err := f.svc.CompleteSubtask(ctx, "S1", "U2")
	require.NoError(t, err)

	// Assert: 只有一行，进度为 1
	assert.Equal(t, "C1", first.ID)
	assert.Equal(t, "C1", second.ID)
	assert.Equal(t, 1.0, stored.Progress)
	assert.Equal(t, 2, saves)

	events := f.hub.all()
	require.Len(t, events, 2)
	assert.Equal(t, "R1", events[0].roomID)
	assert.Equal(t, domain.EventSubtaskProgressUpdated, events[0].eventType)
	assert.Equal(t, domain.SubtaskProgressPayload{SubtaskID: "S1", UserID: "U2", UserName: "Bo", Progress: 1}, events[0].event.Data)
}

func TestCompletionService_CompleteSubtask_DuplicateRaceFallsBackToUpdate(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()
	f.subtasks.On("FindByID", ctx, "S1").Return(&domain.Subtask{ID: "S1", TaskID: "T1"}, nil).Once()
	f.expectEventLookups(ctx)

	winner := &domain.Completion{ID: "C9", UserID: "U2", SubtaskID: "S1", Progress: 0.5}
	f.completions.On("FindByUserAndSubtask", ctx, "U2", "S1").Return(nil, repository.ErrCompletionNotFound).Once()
	f.completions.On("Save", ctx, mock.MatchedBy(func(c *domain.Completion) bool { return c.ID == "" })).
		Return(repository.ErrDuplicateEntry).Once()
	f.completions.On("FindByUserAndSubtask", ctx, "U2", "S1").Return(winner, nil).Once()
	f.completions.On("Save", ctx, winner).Return(nil).Once()

	got, err := f.svc.CompleteSubtask(ctx, "S1", "U2")

	require.NoError(t, err)
	assert.Equal(t, "C9", got.ID)
	assert.Equal(t, 1.0, got.Progress)
}

func TestCompletionService_CompleteSubtask_UnknownSubtask(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()
	f.subtasks.On("FindByID", ctx, "nope").Return(nil, repository.ErrSubtaskNotFound).Once()

	_, err := f.svc.CompleteSubtask(ctx, "nope", "U2")
	assert.ErrorIs(t, err, service.ErrSubtaskNotFound)
	assert.Empty(t, f.hub.all())
}

func TestCompletionService_CompleteSubtask_SaveFailsNoEvent(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()
	f.subtasks.On("FindByID", ctx, "S1").Return(&domain.Subtask{ID: "S1", TaskID: "T1"}, nil).Once()
	f.completions.On("FindByUserAndSubtask", ctx, "U2", "S1").Return(nil, repository.ErrCompletionNotFound).Once()
	f.completions.On("Save", ctx, mock.Anything).Return(errors.New("db down")).Once()

	_, err := f.svc.CompleteSubtask(ctx, "S1", "U2")
	assert.ErrorIs(t, err, service.ErrInternalServer)
	assert.Empty(t, f.hub.all(), "变更失败时不广播")
}

func TestCompletionService_UpdateProgress(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateProgress(ctx, "C1", 1.5)
	assert.ErrorIs(t, err, service.ErrInvalidProgress)
	_, err = f.svc.UpdateProgress(ctx, "C1", -0.1)
	assert.ErrorIs(t, err, service.ErrInvalidProgress)

	c := &domain.Completion{ID: "C1", UserID: "U2", SubtaskID: "S1", Progress: 1}
	f.completions.On("FindByID", ctx, "C1").Return(c, nil).Once()
	f.completions.On("Save", ctx, c).Return(nil).Once()
	f.subtasks.On("FindByID", ctx, "S1").Return(&domain.Subtask{ID: "S1", TaskID: "T1"}, nil).Once()
	f.expectEventLookups(ctx)

	got, err := f.svc.UpdateProgress(ctx, "C1", 0.25)
	require.NoError(t, err)
	assert.Equal(t, 0.25, got.Progress)
	events := f.hub.all()
	require.Len(t, events, 1)
	assert.Equal(t, 0.25, events[0].event.Data.(domain.SubtaskProgressPayload).Progress)
}

func TestCompletionService_GetUserTaskProgress(t *testing.T) {
	// 4 个子任务，进度 1, 1, 0.5 和缺失 -> 63
	f := newCompletionFixture(t)
	ctx := context.Background()
	f.tasks.On("FindByID", ctx, "T1").Return(&domain.Task{ID: "T1"}, nil).Once()
	f.subtasks.On("FindByTask", ctx, "T1").Return([]domain.Subtask{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}, nil).Once()
	f.completions.On("FindByUserAndSubtasks", ctx, "U2", []string{"a", "b", "c", "d"}).Return([]domain.Completion{
		{SubtaskID: "a", Progress: 1},
		{SubtaskID: "b", Progress: 1},
		{SubtaskID: "c", Progress: 0.5},
	}, nil).Once()

	p, err := f.svc.GetUserTaskProgress(ctx, "U2", "T1")

	require.NoError(t, err)
	assert.Equal(t, 63, p)
}

func TestCompletionService_GetUserTaskProgress_NoSubtasks(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()
	f.tasks.On("FindByID", ctx, "T1").Return(&domain.Task{ID: "T1"}, nil).Once()
	f.subtasks.On("FindByTask", ctx, "T1").Return([]domain.Subtask{}, nil).Once()

	p, err := f.svc.GetUserTaskProgress(ctx, "U2", "T1")
	require.NoError(t, err)
	assert.Equal(t, 0, p)
}

func TestTaskProgressPercent(t *testing.T) {
	tests := []struct {
		name  string
		count int
		prog  []float64
		want  int
	}{
		{"no subtasks", 0, nil, 0},
		{"all done", 2, []float64{1, 1}, 100},
		{"half rounds away from zero", 8, []float64{1}, 13},
		{"one third", 3, []float64{1}, 33},
		{"two thirds", 3, []float64{1, 1}, 67},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := make([]domain.Completion, len(tt.prog))
			for i, p := range tt.prog {
				cs[i] = domain.Completion{Progress: p}
			}
			assert.Equal(t, tt.want, service.TaskProgressPercent(tt.count, cs))
		})
	}
}

func TestCompletionService_GetRoomCompletions_FailSoft(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()
	f.completions.On("FindByRoom", ctx, "R1").Return(nil, errors.New("db down")).Once()
	f.completions.On("FindByRoom", ctx, "R2").Return([]domain.Completion{{ID: "C1"}}, nil).Once()

	assert.Empty(t, f.svc.GetRoomCompletions(ctx, "R1"))
	assert.Len(t, f.svc.GetRoomCompletions(ctx, "R2"), 1)
}

func TestCompletionService_GetUserCompletions_Filter(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()
	f.completions.On("FindByUserAndSubtask", ctx, "U2", "S1").Return(&domain.Completion{ID: "C1"}, nil).Once()
	f.completions.On("FindByUserAndSubtask", ctx, "U2", "S2").Return(nil, repository.ErrCompletionNotFound).Once()
	f.completions.On("FindByUser", ctx, "U2").Return([]domain.Completion{{ID: "C1"}, {ID: "C2"}}, nil).Once()

	list, err := f.svc.GetUserCompletions(ctx, "U2", "S1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.GetUserCompletions(ctx, "U2", "S2")
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = f.svc.GetUserCompletions(ctx, "U2", "")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
