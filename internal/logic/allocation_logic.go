package logic

import (
	"context"
	"fmt"
	"math"

	"github.com/blues/dcs/internal/anchor"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"github.com/lightningnetwork/lnd/clock"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AllocationLogic 代币分配业务逻辑
// 所有分配请求的唯一入口：规则评估、池预留、开发者上限、锁仓、绩效记录、事件落账
type AllocationLogic struct {
	db      *gorm.DB
	pools   *PoolLogic
	perf    *PerformanceLogic
	vesting *VestingLogic
	worker  *anchor.Worker
	clk     clock.Clock
}

// NewAllocationLogic 创建分配业务逻辑
func NewAllocationLogic(db *gorm.DB, pools *PoolLogic, perf *PerformanceLogic, vesting *VestingLogic, worker *anchor.Worker, clk clock.Clock) *AllocationLogic {
	return &AllocationLogic{
		db:      db,
		pools:   pools,
		perf:    perf,
		vesting: vesting,
		worker:  worker,
		clk:     clk,
	}
}

// AllocationRequest 分配请求
type AllocationRequest struct {
	DeveloperID string                    `json:"developer_id"`
	ContractID  string                    `json:"contract_id"`
	IssueID     string                    `json:"issue_id"`
	ProjectID   string                    `json:"project_id"`
	PoolID      string                    `json:"pool_id"` // 为空时使用当前开发池
	EventType   model.AllocationEventType `json:"event_type"`
	Reason      string                    `json:"reason"`
	ApprovedBy  string                    `json:"approved_by"`

	// 绩效指标（规则评估与绩效记录共用）
	Metrics AllocationMetrics `json:"metrics"`

	// 预计算乘数（合约签署、里程碑完成路径）
	// 设置后跳过池规则评估，基础金额直接乘以该乘数
	PrecomputedMultiplier *float64 `json:"precomputed_multiplier,omitempty"`

	// 不产生绩效样本，仅累加代币计数（合约签署路径无质量指标）
	SkipPerformanceSample bool `json:"-"`
}

// AllocationResult 分配结果（完整审计信息，不使用不透明的成功标志）
type AllocationResult struct {
	Event             *model.TokenAllocationEvent `json:"event"`
	TokensAllocated   int64                       `json:"tokens_allocated"`
	RequestedAmount   int64                       `json:"requested_amount"`
	MultiplierApplied float64                     `json:"multiplier_applied"`
	RulesApplied      []string                    `json:"rules_applied"`
	CapApplied        bool                        `json:"cap_applied"` // 上限截断信号，非错误
	Vesting           *model.TokenVesting         `json:"vesting,omitempty"`
}

// Allocate 执行一次代币分配
// 池余额不足时整体失败且计数器不变；上限截断视为部分成功并在结果中报告
func (l *AllocationLogic) Allocate(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	poolID := req.PoolID
	if poolID == "" {
		poolID = CurrentPoolID
	}

	pool, err := l.pools.GetPool(poolID)
	if err != nil {
		return nil, err
	}

	// 规则评估或预计算乘数
	finalAmount := req.Metrics.BaseTokenAmount
	multiplier := 1.0
	rulesApplied := []string{}
	if req.PrecomputedMultiplier != nil {
		multiplier = *req.PrecomputedMultiplier
		finalAmount = int64(math.Floor(float64(req.Metrics.BaseTokenAmount) * multiplier))
	} else {
		eval := EvaluateRules(pool.Rules, req.Metrics)
		finalAmount = eval.FinalAmount
		multiplier = eval.Multiplier
		rulesApplied = eval.RulesApplied
	}

	capApplied := false

	// 单任务上限
	if pool.MaxAllocationPerIssue > 0 && finalAmount > pool.MaxAllocationPerIssue {
		finalAmount = pool.MaxAllocationPerIssue
		capApplied = true
	}

	// 开发者累计上限：截断为剩余额度，不报错
	perf, err := l.perf.GetOrCreate(req.DeveloperID)
	if err != nil {
		return nil, err
	}
	if pool.MaxAllocationPerDeveloper > 0 &&
		perf.TotalTokensEarned+finalAmount > pool.MaxAllocationPerDeveloper {
		remaining := pool.MaxAllocationPerDeveloper - perf.TotalTokensEarned
		if remaining < 0 {
			remaining = 0
		}
		finalAmount = remaining
		capApplied = true
	}

	// 池预留：余额不足整体拒绝
	if err := l.pools.Reserve(poolID, finalAmount); err != nil {
		return nil, err
	}

	// 大额分配触发锁仓
	vesting, err := l.vesting.MaybeCreate(req.DeveloperID, req.ContractID, finalAmount)
	if err != nil {
		l.rollback(poolID, finalAmount)
		return nil, err
	}

	// 绩效记录
	pending := int64(0)
	if vesting != nil {
		pending = finalAmount
	}
	if req.SkipPerformanceSample {
		if err := l.perf.AddTokens(req.DeveloperID, finalAmount, pending); err != nil {
			l.rollback(poolID, finalAmount)
			return nil, err
		}
	} else {
		sample := PerformanceSample{
			TokensEarned:       finalAmount,
			TokensPending:      pending,
			CodeQuality:        req.Metrics.CodeQuality,
			TestCoverage:       req.Metrics.TestCoverage,
			DocumentationScore: req.Metrics.DocumentationScore,
			CompletionTime:     req.Metrics.CompletionTime,
			EstimatedTime:      req.Metrics.EstimatedTime,
		}
		if _, err := l.perf.Record(req.DeveloperID, sample); err != nil {
			l.rollback(poolID, finalAmount)
			return nil, err
		}
	}

	// 事件落账（不可变记录，金额为最终授予额）
	approvedBy := req.ApprovedBy
	if approvedBy == "" {
		approvedBy = "system"
	}
	event := &model.TokenAllocationEvent{
		ID:                newID("token"),
		ContractID:        req.ContractID,
		DeveloperID:       req.DeveloperID,
		PoolID:            poolID,
		EventType:         req.EventType,
		TokenAmount:       finalAmount,
		RequestedAmount:   req.Metrics.BaseTokenAmount,
		CapApplied:        capApplied,
		Reason:            req.Reason,
		QualityMultiplier: multiplier,
		RulesApplied:      datatypes.NewJSONSlice(rulesApplied),
		AnchorStatus:      model.AnchorStatusPending,
		Timestamp:         l.clk.Now(),
		ApprovedBy:        approvedBy,
	}
	if vesting != nil {
		event.VestingID = vesting.ID
	}

	if err := l.db.Create(event).Error; err != nil {
		l.rollback(poolID, finalAmount)
		return nil, fmt.Errorf("记录分配事件失败: %w", err)
	}

	// 异步锚定（带重试，失败在事件上标记）
	if l.worker != nil {
		l.worker.SubmitEvent(event.ID)
	}

	logger.Info("Allocated %d tokens to %s from %s (%.2fx multiplier, %d rules applied)",
		finalAmount, req.DeveloperID, poolID, multiplier, len(rulesApplied))

	return &AllocationResult{
		Event:             event,
		TokensAllocated:   finalAmount,
		RequestedAmount:   req.Metrics.BaseTokenAmount,
		MultiplierApplied: multiplier,
		RulesApplied:      rulesApplied,
		CapApplied:        capApplied,
		Vesting:           vesting,
	}, nil
}

// rollback 分配中途失败时归还已预留的代币
func (l *AllocationLogic) rollback(poolID string, amount int64) {
	if err := l.pools.Release(poolID, amount); err != nil {
		logger.Error("Failed to release %d tokens back to pool %s: %v", amount, poolID, err)
	}
}

// GetDeveloperAllocations 获取开发者的全部分配事件
func (l *AllocationLogic) GetDeveloperAllocations(developerID string) ([]model.TokenAllocationEvent, error) {
	var events []model.TokenAllocationEvent
	err := l.db.Where("developer_id = ?", developerID).
		Order("timestamp ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("查询分配事件失败: %w", err)
	}

	return events, nil
}
