package model

import (
	"time"
)

// TokenPool 代币池模型
type TokenPool struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `json:"name" gorm:"not null"`

	// 池容量计数器（恒等式: allocated + available == total）
	TotalTokens     int64 `json:"total_tokens" gorm:"not null"`
	AllocatedTokens int64 `json:"allocated_tokens" gorm:"default:0"`
	AvailableTokens int64 `json:"available_tokens"`

	// 池级上限
	MaxAllocationPerIssue     int64 `json:"max_allocation_per_issue"`
	MaxAllocationPerDeveloper int64 `json:"max_allocation_per_developer"`

	// 状态
	Status         PoolStatus `json:"status" gorm:"default:'active'"`
	CreatedDate    time.Time  `json:"created_date"`
	LastAllocation *time.Time `json:"last_allocation"`

	// 关联（按 sort_order 顺序评估）
	Rules []AllocationRule `json:"rules,omitempty" gorm:"foreignKey:PoolID"`
}

// PoolStatus 代币池状态
type PoolStatus string

const (
	PoolStatusActive   PoolStatus = "active"   // 可分配
	PoolStatusFrozen   PoolStatus = "frozen"   // 已冻结
	PoolStatusDepleted PoolStatus = "depleted" // 已耗尽
)
