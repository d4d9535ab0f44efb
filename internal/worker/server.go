package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/tasks"
)

// Server 封装 asynq 的 worker 与调度器: worker 消费房间清理任务,
// 调度器按固定周期投递兜底扫描任务。
type Server struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	log       *logrus.Entry

	shapeRepo    repository.ShapeRepository
	presenceRepo repository.PresenceRepository
	sweepSpec    string
}

// NewServer 创建 worker Server 实例。sweepSpec 是兜底扫描的
// cron 表达式, 如 "@every 10m"。
func NewServer(redisOpt asynq.RedisClientOpt, shapeRepo repository.ShapeRepository, presenceRepo repository.PresenceRepository, sweepSpec string, logger *logrus.Logger) *Server {
	if shapeRepo == nil || presenceRepo == nil {
		panic("All repositories must be non-nil for worker Server")
	}
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	return &Server{
		server:       server,
		scheduler:    scheduler,
		log:          logEntry,
		shapeRepo:    shapeRepo,
		presenceRepo: presenceRepo,
		sweepSpec:    sweepSpec,
	}
}

// Start 运行 worker 与调度器, 应在单独的 goroutine 中调用。
func (s *Server) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRoomCleanup, NewRoomCleanupHandler(s.shapeRepo, s.presenceRepo).ProcessTask)
	mux.HandleFunc(tasks.TypeRoomSweep, NewRoomSweepHandler(s.shapeRepo, s.presenceRepo).ProcessTask)

	if s.sweepSpec != "" {
		if _, err := s.scheduler.Register(s.sweepSpec, tasks.NewRoomSweepTask(), asynq.Queue("low")); err != nil {
			s.log.WithError(err).Fatal("Could not register room sweep schedule")
		}
		go func() {
			if err := s.scheduler.Run(); err != nil {
				s.log.WithError(err).Error("Scheduler stopped unexpectedly")
			}
		}()
	}

	s.log.Info("Worker server starting...")
	if err := s.server.Run(mux); err != nil {
		if !errors.Is(err, asynq.ErrServerClosed) {
			s.log.Fatalf("Could not run worker server: %v", err)
		}
		s.log.Info("Worker server stopped.")
	}
}

// Shutdown 优雅地关闭 worker 与调度器
func (s *Server) Shutdown() {
	s.log.Info("Shutting down worker server...")
	s.scheduler.Shutdown()
	s.server.Shutdown()
	s.log.Info("Worker server shut down complete.")
}
