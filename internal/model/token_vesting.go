package model

import (
	"time"
)

// TokenVesting 代币锁仓释放计划
type TokenVesting struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DeveloperID string `json:"developer_id" gorm:"not null;index"`
	ContractID  string `json:"contract_id"`

	// 金额（恒等式: vested + unvested == total）
	TotalTokens    int64 `json:"total_tokens" gorm:"not null"`
	VestedTokens   int64 `json:"vested_tokens" gorm:"default:0"`
	UnvestedTokens int64 `json:"unvested_tokens"`

	// 释放计划
	VestingStartDate time.Time       `json:"vesting_start_date"`
	VestingDuration  int             `json:"vesting_duration"` // 月
	CliffPeriod      int             `json:"cliff_period"`     // 月
	VestingInterval  VestingInterval `json:"vesting_interval" gorm:"default:'monthly'"`

	// 状态
	Status          VestingStatus `json:"status" gorm:"default:'active'"`
	NextVestingDate time.Time     `json:"next_vesting_date"`
	LastVestingDate *time.Time    `json:"last_vesting_date"`
}

// VestingInterval 释放周期
type VestingInterval string

const (
	VestingIntervalMonthly   VestingInterval = "monthly"   // 按月
	VestingIntervalQuarterly VestingInterval = "quarterly" // 按季度
	VestingIntervalDaily     VestingInterval = "daily"     // 按天
)

// VestingStatus 锁仓状态
type VestingStatus string

const (
	VestingStatusActive     VestingStatus = "active"     // 释放中
	VestingStatusCompleted  VestingStatus = "completed"  // 已全部释放
	VestingStatusTerminated VestingStatus = "terminated" // 已终止
)
