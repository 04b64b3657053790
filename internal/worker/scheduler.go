package worker

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"backend/internal/config"
	"backend/internal/worker/tasks"
)

// Scheduler 周期任务调度器，按 cron 表达式投递后台任务
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *zap.Logger
}

// NewScheduler 创建调度器并注册周期任务
func NewScheduler(redisCfg config.RedisConfig, schedCfg config.SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		},
		&asynq.SchedulerOpts{
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					logger.Error("周期任务入队失败", zap.Error(err))
				}
			},
		},
	)

	seedTask := asynq.NewTask(tasks.TypeBudgetSeedMonthly, nil)
	if _, err := scheduler.Register(schedCfg.BudgetSeedCron, seedTask, asynq.Queue("budget")); err != nil {
		return nil, fmt.Errorf("worker: register budget seed task: %w", err)
	}

	cleanupPayload, err := json.Marshal(tasks.NotificationCleanupPayload{
		RetainDays: schedCfg.NotificationRetainDays,
	})
	if err != nil {
		return nil, err
	}
	cleanupTask := asynq.NewTask(tasks.TypeNotificationCleanup, cleanupPayload)
	if _, err := scheduler.Register(schedCfg.NotificationCleanupCron, cleanupTask); err != nil {
		return nil, fmt.Errorf("worker: register notification cleanup task: %w", err)
	}

	return &Scheduler{scheduler: scheduler, logger: logger}, nil
}

// Start 非阻塞启动
func (s *Scheduler) Start() error {
	s.logger.Info("调度器启动中...")
	return s.scheduler.Start()
}

// Shutdown 停止调度器
func (s *Scheduler) Shutdown() {
	s.logger.Info("调度器停止中...")
	s.scheduler.Shutdown()
}
