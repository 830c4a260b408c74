package task

import (
	"github.com/blues/dcs/internal/anchor"
	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// Manager 定时任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	config    *config.Config
	vesting   *logic.VestingLogic
	worker    *anchor.Worker
}

// NewManager 创建任务管理器
func NewManager(cfg *config.Config, vesting *logic.VestingLogic, worker *anchor.Worker) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler: s,
		config:    cfg,
		vesting:   vesting,
		worker:    worker,
	}
}

// Start 注册并启动所有任务
func (m *Manager) Start() {
	m.registerJob(NewVestingReleaseJob(m.config, m.vesting))
	m.registerJob(NewAnchorConfirmJob(m.config, m.worker))

	m.scheduler.Start()
	logger.Info("Task manager started successfully")
}

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// registerJob 注册单个任务，单例模式避免慢任务重入
func (m *Manager) registerJob(job Job) {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
