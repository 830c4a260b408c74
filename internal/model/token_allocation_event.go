package model

import (
	"time"

	"gorm.io/datatypes"
)

// TokenAllocationEvent 代币分配事件（不可变记录）
type TokenAllocationEvent struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ContractID  string              `json:"contract_id" gorm:"index"`
	DeveloperID string              `json:"developer_id" gorm:"not null;index"`
	PoolID      string              `json:"pool_id"`
	EventType   AllocationEventType `json:"event_type" gorm:"not null"`

	// 金额（TokenAmount 为经过规则和上限后的最终值）
	TokenAmount     int64  `json:"token_amount"`
	RequestedAmount int64  `json:"requested_amount"`
	CapApplied      bool   `json:"cap_applied"` // 开发者/单任务上限是否截断了请求金额
	Reason          string `json:"reason" gorm:"type:text"`

	// 规则评估结果
	QualityMultiplier float64                     `json:"quality_multiplier"`
	RulesApplied      datatypes.JSONSlice[string] `json:"rules_applied"`

	// 链上验证
	BlockchainTx string       `json:"blockchain_tx"`
	AnchorStatus AnchorStatus `json:"anchor_status" gorm:"default:'pending'"`
	Timestamp    time.Time    `json:"timestamp"`
	ApprovedBy   string       `json:"approved_by"`

	// 锁仓（大额分配时填写）
	VestingID string `json:"vesting_id"`
}

// AllocationEventType 分配事件类型
type AllocationEventType string

const (
	AllocationEventContractSigned     AllocationEventType = "contract-signed"     // 合约签署
	AllocationEventMilestoneCompleted AllocationEventType = "milestone-completed" // 里程碑完成
	AllocationEventPerformanceBonus   AllocationEventType = "performance-bonus"   // 绩效奖励
	AllocationEventQualityBonus       AllocationEventType = "quality-bonus"       // 质量奖励
	AllocationEventCommitReward       AllocationEventType = "commit-reward"       // 提交奖励
)
