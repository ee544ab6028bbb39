package http

import (
	"github.com/gin-gonic/gin"
)

// Handlers 汇总 /api 下的全部 REST 处理器
type Handlers struct {
	Auth       *AuthHandler
	User       *UserHandler
	Room       *RoomHandler
	Task       *TaskHandler
	Subtask    *SubtaskHandler
	Completion *CompletionHandler
}

// RegisterRoutes 把 REST 路由挂到 api 分组下，auth 之外的路由都需要 JWT
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", h.Auth.Register)
		authRoutes.POST("/login", h.Auth.Login)
		authRoutes.POST("/guest", h.Auth.Guest)
	}

	users := api.Group("/users", auth)
	{
		users.POST("/batch", h.User.GetUsers)
		users.GET("/:id", h.User.GetUser)
		users.PUT("/:id", h.User.UpdateUser)
	}

	rooms := api.Group("/rooms", auth)
	{
		rooms.POST("", h.Room.CreateRoom)
		rooms.GET("/code/:code", h.Room.GetRoomByCode)
		rooms.GET("/user/:userId", h.Room.ListUserRooms)
		rooms.GET("/:id", h.Room.GetRoom)
		rooms.DELETE("/:id", h.Room.DeleteRoom)
		rooms.POST("/:id/participants", h.Room.AddParticipant)
		rooms.DELETE("/:id/participants/:userId", h.Room.RemoveParticipant)
	}

	tasks := api.Group("/tasks", auth)
	{
		tasks.POST("", h.Task.CreateTask)
		tasks.GET("/room/:roomId", h.Task.ListRoomTasks)
		tasks.GET("/:id", h.Task.GetTask)
		tasks.PUT("/:id", h.Task.UpdateTask)
		tasks.DELETE("/:id", h.Task.DeleteTask)
	}

	subtasks := api.Group("/subtasks", auth)
	{
		subtasks.POST("/batch", h.Subtask.CreateBatch)
		subtasks.GET("/task/:taskId", h.Subtask.ListTaskSubtasks)
		subtasks.GET("/:id", h.Subtask.GetSubtask)
		subtasks.PUT("/:id", h.Subtask.UpdateSubtask)
		subtasks.DELETE("/:id", h.Subtask.DeleteSubtask)
	}

	completion := api.Group("/completion", auth)
	{
		completion.POST("", h.Completion.Complete)
		completion.GET("/user/:userId", h.Completion.GetUserCompletions)
		completion.GET("/subtask/:subtaskId", h.Completion.GetSubtaskCompletions)
		completion.GET("/task/:taskId/user/:userId", h.Completion.GetUserTaskProgress)
		completion.GET("/room/:roomId", h.Completion.GetRoomCompletions)
		completion.PUT("/:id", h.Completion.UpdateProgress)
	}
}
