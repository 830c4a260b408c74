package model

import (
	"time"

	"gorm.io/datatypes"
)

// ContractMilestone 合约里程碑
type ContractMilestone struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContractID  string `json:"contract_id" gorm:"not null;index"`
	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`

	// 交付物
	Deliverables datatypes.JSONSlice[string] `json:"deliverables"`

	// 奖励
	TokenReward   int64   `json:"token_reward"`
	PaymentAmount float64 `json:"payment_amount"`

	// 验收标准
	AcceptanceCriteria        datatypes.JSONSlice[string] `json:"acceptance_criteria"`
	TestingRequirements       datatypes.JSONSlice[string] `json:"testing_requirements"`
	DocumentationRequirements datatypes.JSONSlice[string] `json:"documentation_requirements"`

	// 时间
	EstimatedHours float64    `json:"estimated_hours"`
	DueDate        time.Time  `json:"due_date"`
	CompletedDate  *time.Time `json:"completed_date"`

	// 验证信息（完成时写入，之后不可变）
	Status             MilestoneStatus             `json:"status" gorm:"default:'pending'"`
	SubmissionHash     string                      `json:"submission_hash"`
	ApprovalSignatures datatypes.JSONSlice[string] `json:"approval_signatures"`
	QualityScore       *float64                    `json:"quality_score"` // 0-100
}

// MilestoneStatus 里程碑状态
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"     // 待开始
	MilestoneStatusInProgress MilestoneStatus = "in-progress" // 进行中
	MilestoneStatusReview     MilestoneStatus = "review"      // 审核中
	MilestoneStatusCompleted  MilestoneStatus = "completed"   // 已完成
	MilestoneStatusRejected   MilestoneStatus = "rejected"    // 已驳回
)
