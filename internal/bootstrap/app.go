package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "task-duel/internal/handler/http"
	streamHandler "task-duel/internal/handler/stream"
	"task-duel/internal/hub"
	gormpersistence "task-duel/internal/infra/persistence/gorm"
	"task-duel/internal/infra/setup"
	redisstate "task-duel/internal/infra/state/redis"
	"task-duel/internal/middleware"
	"task-duel/internal/service"
	"task-duel/internal/tasks"
	"task-duel/internal/worker"
	"task-duel/pkg/translator"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	Router      *gin.Engine
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// NewApp 加载配置并初始化应用的所有组件
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		// logrus 此时还未配置
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig 按给定配置组装应用，不启动任何后台 goroutine
func NewAppWithConfig(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 1. Logger。各组件使用 logrus 的全局 logger，这里直接配置它
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)

	translator.InitTranslator(translator.Config{TranslationFolder: cfg.TranslationFolder})

	// 2. 基础设施
	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(setup.DBOptions{
		Driver:     cfg.DBDriver,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		Name:       cfg.DBName,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized and migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// 3. Repositories
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	taskRepo := gormpersistence.NewGormTaskRepository(db)
	subtaskRepo := gormpersistence.NewGormSubtaskRepository(db)
	completionRepo := gormpersistence.NewGormCompletionRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)

	// 4. Hub 与 Services
	hubInstance := hub.NewHub(log)
	notifier := service.NewNotifier(hubInstance)

	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	userService := service.NewUserService(userRepo)
	roomService := service.NewRoomService(roomRepo, userRepo, stateRepo, notifier, asynqClient)
	taskService := service.NewTaskService(taskRepo, roomRepo, notifier)
	subtaskService := service.NewSubtaskService(subtaskRepo, taskRepo, notifier)
	completionService := service.NewCompletionService(completionRepo, subtaskRepo, taskRepo, userRepo, notifier)
	log.Info("Services initialized")

	// 5. Handlers 与路由
	handlers := httpHandler.Handlers{
		Auth:       httpHandler.NewAuthHandler(authService),
		User:       httpHandler.NewUserHandler(userService),
		Room:       httpHandler.NewRoomHandler(roomService),
		Task:       httpHandler.NewTaskHandler(taskService),
		Subtask:    httpHandler.NewSubtaskHandler(subtaskService),
		Completion: httpHandler.NewCompletionHandler(completionService),
	}
	streams := streamHandler.NewStreamHandler(hubInstance, roomService, cfg.StreamWriteTimeout)
	router := newRouter(cfg, log, stateRepo, handlers, streams)

	// 6. Worker Server
	workerServer := worker.NewWorkerServer(redisClientOpt, stateRepo, taskRepo, hubInstance, log)

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled successfully")
	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		Router:         router,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// newRouter 构建 Gin Engine。中间件顺序：Recovery, 日志, CORS, 语言, 限流
func newRouter(cfg *Config, log *logrus.Logger, stateRepo *redisstate.RedisStateRepository,
	handlers httpHandler.Handlers, streams *streamHandler.StreamHandler) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.CORSAllowedOrigin))
	router.Use(middleware.Language())
	router.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))

	auth := middleware.Auth(cfg.JWTSecret)
	api := router.Group("/api")
	httpHandler.RegisterRoutes(api, handlers, auth)
	api.GET("/events/:roomId", auth, streams.ServeSSE)

	router.GET("/ws/room/:roomId", auth, streams.ServeWS)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks 注册事件流保活任务
func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	schedule := fmt.Sprintf("@every %s", a.Config.HeartbeatInterval)
	entryID, err := scheduler.Register(schedule, tasks.NewHubHeartbeatTask(), asynq.Queue("critical"))
	if err != nil {
		a.Log.Errorf("Could not register stream heartbeat task: %v", err)
		return
	}
	a.Log.Infof("Stream heartbeat task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	a.scheduler = scheduler

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			return
		}
		a.Log.Info("Asynq scheduler stopped.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}

	// 先关闭所有事件流，否则 HTTP Shutdown 会一直等待长连接
	if a.Hub != nil {
		for _, roomID := range a.Hub.ActiveRooms() {
			a.Hub.CloseRoom(roomID)
		}
	}

	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}
