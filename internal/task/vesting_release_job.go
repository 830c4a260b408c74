package task

import (
	"time"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/logic"
	"github.com/go-co-op/gocron/v2"
)

// VestingReleaseJob 锁仓到期释放任务
type VestingReleaseJob struct {
	config  *config.Config
	vesting *logic.VestingLogic
}

// NewVestingReleaseJob 创建锁仓释放任务
func NewVestingReleaseJob(cfg *config.Config, vesting *logic.VestingLogic) *VestingReleaseJob {
	return &VestingReleaseJob{
		config:  cfg,
		vesting: vesting,
	}
}

// GetName 获取任务名称
func (j *VestingReleaseJob) GetName() string {
	return "vesting_release"
}

// GetSchedule 获取调度配置
func (j *VestingReleaseJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.VestingInterval) * time.Second)
}

// Execute 执行任务
func (j *VestingReleaseJob) Execute() {
	released, err := j.vesting.ReleaseDue()
	if err != nil {
		logger.Error("Vesting release task failed: %v", err)
		return
	}
	if released > 0 {
		logger.Info("Vesting release task processed %d schedules", released)
	}
}
