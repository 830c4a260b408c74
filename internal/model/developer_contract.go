package model

import (
	"time"

	"gorm.io/datatypes"
)

// DeveloperContract 开发者合约模型
type DeveloperContract struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	DeveloperID  string       `json:"developer_id" gorm:"not null;index" binding:"required"`
	ProjectID    string       `json:"project_id" gorm:"not null" binding:"required"`
	ContractType ContractType `json:"contract_type" gorm:"default:'task-based'"`

	// 代币分配条款
	BaseTokens            int64                      `json:"base_tokens"`
	PerformanceMultiplier float64                    `json:"performance_multiplier" gorm:"default:1"`
	MilestoneTokens       datatypes.JSONSlice[int64] `json:"milestone_tokens"`
	TotalPossibleTokens   int64                      `json:"total_possible_tokens"`

	// 支付条款
	Currency            PaymentCurrency              `json:"currency" gorm:"default:'BCODE'"`
	Rate                float64                      `json:"rate"`
	MilestonePayments   datatypes.JSONSlice[float64] `json:"milestone_payments"`
	RevenueSharePercent float64                      `json:"revenue_share_percent"`

	// 绩效指标要求
	QualityThreshold      float64 `json:"quality_threshold" gorm:"default:70"`
	CommitFrequency       int     `json:"commit_frequency"` // 每周预期提交数
	RequiredTestCoverage  float64 `json:"required_test_coverage"`
	DocumentationRequired bool    `json:"documentation_required"`

	// 法律条款
	Jurisdiction      string `json:"jurisdiction"`
	IPAssignment      bool   `json:"ip_assignment"`
	NonCompeteClause  bool   `json:"non_compete_clause"`
	Confidentiality   bool   `json:"confidentiality"`
	TerminationNotice int    `json:"termination_notice"` // 终止通知期（天）

	// 区块链锚定信息（签署前为空，签署后不可变）
	ContractHash  string       `json:"contract_hash"`
	SignatureHash string       `json:"signature_hash"`
	TimestampTx   string       `json:"timestamp_tx"`
	AnchorStatus  AnchorStatus `json:"anchor_status" gorm:"default:''"`
	LastModified  time.Time    `json:"last_modified"`

	// 状态
	Status ContractStatus `json:"status" gorm:"default:'draft';index"`

	// 时间信息
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	// 集成信息
	GithubRepo           string `json:"github_repo"`
	ProjectManagementURL string `json:"project_management_url"`
	CommunicationChannel string `json:"communication_channel"`

	// 关联
	Milestones []ContractMilestone `json:"milestones,omitempty" gorm:"foreignKey:ContractID"`
}

// ContractType 合约类型
type ContractType string

const (
	ContractTypeFullTime     ContractType = "full-time"     // 全职
	ContractTypePartTime     ContractType = "part-time"     // 兼职
	ContractTypeTaskBased    ContractType = "task-based"    // 任务制
	ContractTypeRevenueShare ContractType = "revenue-share" // 收益分成
)

// ContractStatus 合约状态
type ContractStatus string

const (
	ContractStatusDraft      ContractStatus = "draft"      // 草稿
	ContractStatusPending    ContractStatus = "pending"    // 待生效（锚定确认中）
	ContractStatusActive     ContractStatus = "active"     // 生效中
	ContractStatusCompleted  ContractStatus = "completed"  // 已完成
	ContractStatusTerminated ContractStatus = "terminated" // 已终止
)

// PaymentCurrency 支付币种
type PaymentCurrency string

const (
	CurrencyBSV   PaymentCurrency = "BSV"
	CurrencyUSD   PaymentCurrency = "USD"
	CurrencyBCODE PaymentCurrency = "BCODE"
)

// AnchorStatus 链上锚定状态
type AnchorStatus string

const (
	AnchorStatusNone      AnchorStatus = ""          // 尚未锚定
	AnchorStatusPending   AnchorStatus = "pending"   // 已提交，等待确认
	AnchorStatusConfirmed AnchorStatus = "confirmed" // 已确认
	AnchorStatusFailed    AnchorStatus = "failed"    // 提交失败（已达重试上限）
)

// statusRank 状态单调序，用于禁止状态回退
func (s ContractStatus) statusRank() int {
	switch s {
	case ContractStatusDraft:
		return 0
	case ContractStatusPending:
		return 1
	case ContractStatusActive:
		return 2
	case ContractStatusCompleted, ContractStatusTerminated:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo 判断状态是否允许前进到目标状态
func (s ContractStatus) CanTransitionTo(next ContractStatus) bool {
	return next.statusRank() > s.statusRank()
}
