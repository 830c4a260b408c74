package model

import (
	"time"

	"gorm.io/datatypes"
)

// GitCommit 质量计分的代码提交记录
type GitCommit struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RepositoryID string `json:"repository_id" gorm:"not null;index"`
	Hash         string `json:"hash" gorm:"not null;uniqueIndex"`
	Message      string `json:"message" gorm:"type:text"`
	Branch       string `json:"branch" gorm:"default:'main'"`

	// 作者
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	DeveloperID string `json:"developer_id" gorm:"index"`

	// 提交详情
	Timestamp    time.Time `json:"timestamp"`
	LinesAdded   int       `json:"lines_added"`
	LinesDeleted int       `json:"lines_deleted"`

	// 质量指标
	QualityScore          float64 `json:"quality_score"`          // 0-100 综合质量
	Complexity            float64 `json:"complexity"`             // 圈复杂度 1-10
	Maintainability       float64 `json:"maintainability"`        // 可维护性指数
	TestCoverage          float64 `json:"test_coverage"`          // 测试覆盖率 %
	DocumentationCoverage float64 `json:"documentation_coverage"` // 文档覆盖率 %

	// 链上验证
	Timestamped      bool         `json:"timestamped"`
	TimestampTx      string       `json:"timestamp_tx"`
	AnchorStatus     AnchorStatus `json:"anchor_status" gorm:"default:''"`
	VerificationHash string       `json:"verification_hash"`

	// 代币奖励（质量未达门槛时保持零值）
	RewardEligible    bool    `json:"reward_eligible"`
	RewardBaseAmount  int64   `json:"reward_base_amount"`
	RewardMultiplier  float64 `json:"reward_multiplier"`
	RewardFinalAmount int64   `json:"reward_final_amount"`
	AllocationEventID string  `json:"allocation_event_id"`
	VestingScheduleID string  `json:"vesting_schedule_id"`

	// 集成关联
	RelatedIssues     datatypes.JSONSlice[string] `json:"related_issues"`
	RelatedMilestones datatypes.JSONSlice[string] `json:"related_milestones"`

	// 关联
	FileChanges []GitFileChange `json:"file_changes,omitempty" gorm:"foreignKey:CommitID;references:ID"`
}

// GitFileChange 提交中的单文件变更
type GitFileChange struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	CommitID string           `json:"commit_id" gorm:"not null;index"`
	Path     string           `json:"path" gorm:"not null"`
	Status   FileChangeStatus `json:"status" gorm:"default:'modified'"`

	LinesAdded   int `json:"lines_added"`
	LinesDeleted int `json:"lines_deleted"`

	// 质量分析
	CodeQuality       float64 `json:"code_quality"`
	TestFile          bool    `json:"test_file"`
	DocumentationFile bool    `json:"documentation_file"`

	// 内容指纹
	ContentHash string `json:"content_hash"`
}

// FileChangeStatus 文件变更类型
type FileChangeStatus string

const (
	FileChangeAdded    FileChangeStatus = "added"    // 新增
	FileChangeModified FileChangeStatus = "modified" // 修改
	FileChangeDeleted  FileChangeStatus = "deleted"  // 删除
	FileChangeRenamed  FileChangeStatus = "renamed"  // 重命名
)
