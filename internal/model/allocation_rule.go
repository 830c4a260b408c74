package model

import (
	"time"
)

// AllocationRule 分配规则（条件乘数/调整）
type AllocationRule struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PoolID      string `json:"pool_id" gorm:"not null;index"`
	SortOrder   int    `json:"sort_order" gorm:"not null"` // 池内评估顺序
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`

	// 条件
	ConditionType  RuleConditionType `json:"condition_type" gorm:"not null"`
	Operator       RuleOperator      `json:"operator" gorm:"not null"`
	ConditionValue float64           `json:"condition_value"`

	// 动作
	ActionType  RuleActionType `json:"action_type" gorm:"not null"`
	ActionValue float64        `json:"action_value"`
	MaxValue    int64          `json:"max_value"` // 0 表示无上限

	// 限制
	MaxApplicationsPerDeveloper int  `json:"max_applications_per_developer"`
	Enabled                     bool `json:"enabled" gorm:"default:true"`
}

// RuleConditionType 规则条件类型
type RuleConditionType string

const (
	ConditionCodeQuality     RuleConditionType = "code-quality"          // 代码质量
	ConditionContribution    RuleConditionType = "contribution-size"     // 贡献规模
	ConditionTimeToComplete  RuleConditionType = "time-to-complete"      // 完成耗时比
	ConditionTestingCoverage RuleConditionType = "testing-coverage"      // 测试覆盖率
	ConditionDocumentation   RuleConditionType = "documentation-quality" // 文档质量
)

// RuleOperator 比较运算符
type RuleOperator string

const (
	OperatorGT RuleOperator = ">"
	OperatorLT RuleOperator = "<"
	OperatorEQ RuleOperator = "="
	OperatorGE RuleOperator = ">="
	OperatorLE RuleOperator = "<="
)

// RuleActionType 规则动作类型
type RuleActionType string

const (
	ActionMultiply RuleActionType = "multiply" // 缩放当前金额并记录乘数
	ActionAdd      RuleActionType = "add"      // 直接加到当前金额
	ActionSubtract RuleActionType = "subtract" // 直接从当前金额扣减
	ActionSet      RuleActionType = "set"      // 直接替换当前金额
)
