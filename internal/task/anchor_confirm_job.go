package task

import (
	"time"

	"github.com/blues/dcs/internal/anchor"
	"github.com/blues/dcs/internal/config"
	"github.com/go-co-op/gocron/v2"
)

// AnchorConfirmJob 锚定确认轮询任务
// 同时兜底重新提交落库后崩溃遗留的未锚定记录
type AnchorConfirmJob struct {
	config *config.Config
	worker *anchor.Worker
}

// NewAnchorConfirmJob 创建锚定确认任务
func NewAnchorConfirmJob(cfg *config.Config, worker *anchor.Worker) *AnchorConfirmJob {
	return &AnchorConfirmJob{
		config: cfg,
		worker: worker,
	}
}

// GetName 获取任务名称
func (j *AnchorConfirmJob) GetName() string {
	return "anchor_confirm"
}

// GetSchedule 获取调度配置
func (j *AnchorConfirmJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.AnchorInterval) * time.Second)
}

// Execute 执行任务
func (j *AnchorConfirmJob) Execute() {
	j.worker.ScanPending()
	j.worker.ConfirmPending()
}
