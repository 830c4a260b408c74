package logic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/blues/dcs/internal/analysis"
	"github.com/blues/dcs/internal/anchor"
	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/ledger"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"github.com/lightningnetwork/lnd/clock"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CommitLogic 代码提交登记与奖励业务逻辑
type CommitLogic struct {
	db       *gorm.DB
	analyzer analysis.Analyzer
	ledger   ledger.Adapter
	alloc    *AllocationLogic
	worker   *anchor.Worker
	token    config.TokenConfig
	clk      clock.Clock
}

// NewCommitLogic 创建提交业务逻辑
func NewCommitLogic(db *gorm.DB, analyzer analysis.Analyzer, adapter ledger.Adapter, alloc *AllocationLogic, worker *anchor.Worker, token config.TokenConfig, clk clock.Clock) *CommitLogic {
	return &CommitLogic{
		db:       db,
		analyzer: analyzer,
		ledger:   adapter,
		alloc:    alloc,
		worker:   worker,
		token:    token,
		clk:      clk,
	}
}

// RegisterRepository 登记仓库并启用奖励体系
func (l *CommitLogic) RegisterRepository(repo *model.GitRepository) (*model.GitRepository, error) {
	if repo.ID == "" {
		repo.ID = newID("repo")
	}
	if repo.QualityThreshold <= 0 {
		repo.QualityThreshold = l.token.QualityThreshold
	}

	if err := l.db.Create(repo).Error; err != nil {
		return nil, fmt.Errorf("登记仓库失败: %w", err)
	}

	logger.Info("Repository %s registered (%s), quality threshold %.0f",
		repo.ID, repo.Name, repo.QualityThreshold)

	return repo, nil
}

// GetRepository 获取仓库
func (l *CommitLogic) GetRepository(repoID string) (*model.GitRepository, error) {
	var repo model.GitRepository
	err := l.db.First(&repo, "id = ?", repoID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRepositoryNotFound
		}
		return nil, fmt.Errorf("查询仓库失败: %w", err)
	}
	return &repo, nil
}

// FileChangeInput 提交中单个文件的变更信息
type FileChangeInput struct {
	Path         string                 `json:"path" binding:"required"`
	Status       model.FileChangeStatus `json:"status"`
	LinesAdded   int                    `json:"lines_added"`
	LinesDeleted int                    `json:"lines_deleted"`
	Content      string                 `json:"content"` // 变更后内容，用于内容指纹
}

// CommitInput 提交登记请求
type CommitInput struct {
	RepositoryID string    `json:"repository_id"`
	Hash         string    `json:"hash" binding:"required"`
	Message      string    `json:"message"`
	Branch       string    `json:"branch"`
	AuthorName   string    `json:"author_name"`
	AuthorEmail  string    `json:"author_email"`
	DeveloperID  string    `json:"developer_id"`
	Timestamp    time.Time `json:"timestamp"`

	Files []FileChangeInput `json:"files"`

	RelatedIssues     []string `json:"related_issues"`
	RelatedMilestones []string `json:"related_milestones"`
}

// RecordCommit 登记提交：静态分析、链上指纹、按质量计酬
// 质量低于仓库门槛的提交正常登记但不触发任何代币发放
func (l *CommitLogic) RecordCommit(ctx context.Context, input CommitInput) (*model.GitCommit, *AllocationResult, error) {
	repo, err := l.GetRepository(input.RepositoryID)
	if err != nil {
		return nil, nil, err
	}

	var existing model.GitCommit
	err = l.db.First(&existing, "hash = ?", input.Hash).Error
	if err == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrCommitExists, input.Hash)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("查询提交失败: %w", err)
	}

	developerID := input.DeveloperID
	if developerID == "" {
		developerID = input.AuthorEmail
	}
	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = l.clk.Now()
	}
	branch := input.Branch
	if branch == "" {
		branch = "main"
	}

	commit := &model.GitCommit{
		ID:                newID("commit"),
		RepositoryID:      repo.ID,
		Hash:              input.Hash,
		Message:           input.Message,
		Branch:            branch,
		AuthorName:        input.AuthorName,
		AuthorEmail:       input.AuthorEmail,
		DeveloperID:       developerID,
		Timestamp:         timestamp,
		RelatedIssues:     datatypes.NewJSONSlice(input.RelatedIssues),
		RelatedMilestones: datatypes.NewJSONSlice(input.RelatedMilestones),
		RewardMultiplier:  1,
	}

	// 逐文件分析并聚合提交级指标
	changes, qualities, err := l.analyzeFiles(commit.ID, input.Files)
	if err != nil {
		return nil, nil, err
	}
	aggregate(commit, changes, qualities)
	commit.VerificationHash = l.verificationHash(commit, changes)

	if err := l.db.Create(commit).Error; err != nil {
		return nil, nil, fmt.Errorf("登记提交失败: %w", err)
	}
	for i := range changes {
		if err := l.db.Create(&changes[i]).Error; err != nil {
			return nil, nil, fmt.Errorf("登记文件变更失败: %w", err)
		}
	}
	commit.FileChanges = changes

	// 奖励计算
	var result *AllocationResult
	if repo.TokenRewardsEnabled && repo.AutoTokenAllocation {
		result, err = l.rewardCommit(ctx, repo, commit)
		if err != nil {
			return nil, nil, err
		}
	}

	// 链上时间戳（异步）
	if repo.BlockchainEnabled && repo.TimestampingEnabled && repo.AutoCommitTimestamp {
		commit.AnchorStatus = model.AnchorStatusPending
		if err := l.db.Save(commit).Error; err != nil {
			return nil, nil, fmt.Errorf("更新提交失败: %w", err)
		}
		if l.worker != nil {
			l.worker.SubmitCommit(commit.ID)
		}
	}

	repo.LastCommit = commit.Hash
	repo.LastBlockchainSync = l.clk.Now()
	if err := l.db.Save(repo).Error; err != nil {
		return nil, nil, fmt.Errorf("更新仓库失败: %w", err)
	}

	return commit, result, nil
}

// rewardCommit 按质量门槛与分配规则为提交计酬
func (l *CommitLogic) rewardCommit(ctx context.Context, repo *model.GitRepository, commit *model.GitCommit) (*AllocationResult, error) {
	if commit.QualityScore < repo.QualityThreshold {
		logger.Info("Commit %s quality %.1f below threshold %.1f, no reward",
			commit.Hash, commit.QualityScore, repo.QualityThreshold)
		commit.RewardEligible = false
		if err := l.db.Save(commit).Error; err != nil {
			return nil, fmt.Errorf("更新提交失败: %w", err)
		}
		return nil, nil
	}

	base := l.baseReward(commit)
	if base <= 0 {
		return nil, nil
	}

	result, err := l.alloc.Allocate(ctx, AllocationRequest{
		DeveloperID: commit.DeveloperID,
		ContractID:  repo.ContractID,
		IssueID:     commit.Hash,
		ProjectID:   repo.ProjectID,
		EventType:   model.AllocationEventCommitReward,
		Reason:      fmt.Sprintf("提交 %s 奖励", shortHash(commit.Hash)),
		Metrics: AllocationMetrics{
			BaseTokenAmount:    base,
			CodeQuality:        commit.QualityScore,
			TestCoverage:       commit.TestCoverage,
			DocumentationScore: commit.DocumentationCoverage,
			Complexity:         commit.Complexity,
		},
	})
	if err != nil {
		return nil, err
	}

	commit.RewardEligible = true
	commit.RewardBaseAmount = base
	commit.RewardMultiplier = result.MultiplierApplied
	commit.RewardFinalAmount = result.TokensAllocated
	commit.AllocationEventID = result.Event.ID
	if result.Vesting != nil {
		commit.VestingScheduleID = result.Vesting.ID
	}
	if err := l.db.Save(commit).Error; err != nil {
		return nil, fmt.Errorf("更新提交失败: %w", err)
	}

	logger.Info("Commit %s rewarded %d tokens (base %d, %.2fx)",
		shortHash(commit.Hash), result.TokensAllocated, base, result.MultiplierApplied)

	return result, nil
}

// baseReward 基础奖励：行数 × 费率 × 复杂度修正 × 质量修正，里程碑关联另计加成
func (l *CommitLogic) baseReward(commit *model.GitCommit) int64 {
	linesChanged := commit.LinesAdded + commit.LinesDeleted
	complexityFactor := commit.Complexity / 5
	if complexityFactor > 2 {
		complexityFactor = 2
	}
	base := float64(linesChanged) * float64(l.token.CommitBaseRate) *
		complexityFactor * commit.QualityScore / 100

	if len(commit.RelatedMilestones) > 0 {
		base += float64(commit.LinesAdded) * float64(l.token.MilestoneLineRate)
	}

	return int64(math.Floor(base))
}

// analyzeFiles 对每个文件做静态分析并生成变更记录
func (l *CommitLogic) analyzeFiles(commitID string, files []FileChangeInput) ([]model.GitFileChange, []analysis.FileQuality, error) {
	changes := make([]model.GitFileChange, 0, len(files))
	qualities := make([]analysis.FileQuality, 0, len(files))
	for _, f := range files {
		quality, err := l.analyzer.AnalyzeFile(f.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("分析文件 %s 失败: %w", f.Path, err)
		}

		status := f.Status
		if status == "" {
			status = model.FileChangeModified
		}

		changes = append(changes, model.GitFileChange{
			CommitID:          commitID,
			Path:              f.Path,
			Status:            status,
			LinesAdded:        f.LinesAdded,
			LinesDeleted:      f.LinesDeleted,
			CodeQuality:       quality.Quality,
			TestFile:          analysis.IsTestFile(f.Path),
			DocumentationFile: analysis.IsDocumentationFile(f.Path),
			ContentHash:       l.ledger.Hash([]byte(f.Content)),
		})
		qualities = append(qualities, quality)
	}
	return changes, qualities, nil
}

// aggregate 由文件级分析聚合提交级指标
// 测试/文档文件按数量折算覆盖率，封顶100
func aggregate(commit *model.GitCommit, changes []model.GitFileChange, qualities []analysis.FileQuality) {
	if len(changes) == 0 {
		commit.QualityScore = 0
		return
	}

	qualitySum := 0.0
	complexitySum := 0.0
	maintainSum := 0.0
	testFiles := 0
	docFiles := 0
	for i, c := range changes {
		commit.LinesAdded += c.LinesAdded
		commit.LinesDeleted += c.LinesDeleted
		qualitySum += c.CodeQuality
		complexitySum += qualities[i].Complexity
		maintainSum += qualities[i].Maintainability
		if c.TestFile {
			testFiles++
		}
		if c.DocumentationFile {
			docFiles++
		}
	}

	n := float64(len(changes))
	commit.QualityScore = qualitySum / n
	commit.Complexity = complexitySum / n
	commit.Maintainability = maintainSum / n
	commit.TestCoverage = capAt100(float64(testFiles) * 20)
	commit.DocumentationCoverage = capAt100(float64(docFiles) * 25)
}

func capAt100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}

// verificationHash 提交内容指纹：哈希、作者、时间与全部文件指纹
func (l *CommitLogic) verificationHash(commit *model.GitCommit, changes []model.GitFileChange) string {
	parts := []string{
		commit.Hash,
		commit.AuthorEmail,
		commit.Timestamp.UTC().Format(time.RFC3339),
	}
	for _, c := range changes {
		parts = append(parts, c.Path+":"+c.ContentHash)
	}
	return l.ledger.Hash([]byte(strings.Join(parts, "|")))
}

// GetCommit 获取提交及其文件变更
func (l *CommitLogic) GetCommit(commitID string) (*model.GitCommit, error) {
	var commit model.GitCommit
	err := l.db.Preload("FileChanges").First(&commit, "id = ?", commitID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommitNotFound
		}
		return nil, fmt.Errorf("查询提交失败: %w", err)
	}
	return &commit, nil
}

// ListCommits 按仓库列出提交
func (l *CommitLogic) ListCommits(repoID string, limit int) ([]model.GitCommit, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	var commits []model.GitCommit
	err := l.db.Where("repository_id = ?", repoID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&commits).Error
	if err != nil {
		return nil, fmt.Errorf("查询提交失败: %w", err)
	}
	return commits, nil
}

// VerifyCommit 校验提交记录是否被篡改
// 本地指纹重算不一致或链上记录缺失/不符均判为未通过
func (l *CommitLogic) VerifyCommit(ctx context.Context, commitID string) (bool, error) {
	commit, err := l.GetCommit(commitID)
	if err != nil {
		return false, err
	}

	if l.verificationHash(commit, commit.FileChanges) != commit.VerificationHash {
		logger.Warn("Commit %s local fingerprint mismatch", commit.Hash)
		return false, nil
	}

	if commit.TimestampTx == "" {
		// 尚未锚定，仅本地校验
		return true, nil
	}

	record, err := l.ledger.Fetch(ctx, commit.TimestampTx)
	if err != nil {
		logger.Warn("Commit %s anchor record unavailable: %v", commit.Hash, err)
		return false, nil
	}
	anchored, _ := record["verification_hash"].(string)
	if anchored != commit.VerificationHash {
		logger.Warn("Commit %s anchored fingerprint mismatch", commit.Hash)
		return false, nil
	}

	return true, nil
}

// shortHash 日志用短哈希
func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
