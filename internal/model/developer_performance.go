package model

import (
	"time"

	"gorm.io/datatypes"
)

// DeveloperPerformance 开发者绩效记录（滚动统计）
type DeveloperPerformance struct {
	DeveloperID string    `json:"developer_id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// 代币指标
	TotalTokensEarned  int64 `json:"total_tokens_earned"`
	TotalTokensVested  int64 `json:"total_tokens_vested"`
	TotalTokensPending int64 `json:"total_tokens_pending"`

	// 质量指标（滚动平均，全历史权重，永不重置）
	AverageCodeQuality        float64 `json:"average_code_quality"`
	AverageTestCoverage       float64 `json:"average_test_coverage"`
	AverageDocumentationScore float64 `json:"average_documentation_score"`

	// 生产力指标
	IssuesCompleted       int64   `json:"issues_completed"`
	AverageCompletionTime float64 `json:"average_completion_time"` // 小时
	OnTimeDeliveryRate    float64 `json:"on_time_delivery_rate"`   // 百分比

	// 行为指标（初始值均为100）
	CommunicationScore float64 `json:"communication_score" gorm:"default:100"`
	CollaborationScore float64 `json:"collaboration_score" gorm:"default:100"`
	ReliabilityScore   float64 `json:"reliability_score" gorm:"default:100"`

	// 综合评分
	OverallPerformanceScore float64          `json:"overall_performance_score"`
	PerformanceGrade        PerformanceGrade `json:"performance_grade" gorm:"default:'C'"`

	// 反作弊
	SuspiciousActivityFlags datatypes.JSONSlice[string] `json:"suspicious_activity_flags"`
	GamingAttempts          int                         `json:"gaming_attempts"`
	LastVerificationDate    time.Time                   `json:"last_verification_date"`
}

// PerformanceGrade 绩效等级
type PerformanceGrade string

const (
	GradeS PerformanceGrade = "S" // 卓越 (>=95)
	GradeA PerformanceGrade = "A" // 优秀 (>=85)
	GradeB PerformanceGrade = "B" // 良好 (>=75)
	GradeC PerformanceGrade = "C" // 一般 (>=65)
	GradeD PerformanceGrade = "D" // 偏低 (>=50)
	GradeF PerformanceGrade = "F" // 不合格
)
