package model

import (
	"time"
)

// GitRepository 接入代币奖励体系的代码仓库
type GitRepository struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name      string `json:"name" gorm:"not null"`
	RemoteUrl string `json:"remote_url" gorm:"not null"`
	LocalPath string `json:"local_path"`

	// 区块链集成开关
	BlockchainEnabled   bool `json:"blockchain_enabled" gorm:"default:true"`
	TimestampingEnabled bool `json:"timestamping_enabled" gorm:"default:true"`
	TokenRewardsEnabled bool `json:"token_rewards_enabled" gorm:"default:true"`

	// 项目关联
	ProjectID  string `json:"project_id"`
	ContractID string `json:"contract_id"`

	// 奖励设置
	AutoCommitTimestamp bool    `json:"auto_commit_timestamp" gorm:"default:true"`
	AutoTokenAllocation bool    `json:"auto_token_allocation" gorm:"default:true"`
	QualityThreshold    float64 `json:"quality_threshold" gorm:"default:70"` // 低于该质量的提交不计奖励

	// 元数据
	LastCommit         string    `json:"last_commit"`
	LastBlockchainSync time.Time `json:"last_blockchain_sync"`
}
