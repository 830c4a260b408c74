package logic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blues/dcs/internal/ledger"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"github.com/lightningnetwork/lnd/clock"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContractLogic 开发者合约业务逻辑
type ContractLogic struct {
	db     *gorm.DB
	ledger ledger.Adapter
	alloc  *AllocationLogic
	perf   *PerformanceLogic
	clk    clock.Clock
}

// NewContractLogic 创建合约业务逻辑
func NewContractLogic(db *gorm.DB, adapter ledger.Adapter, alloc *AllocationLogic, perf *PerformanceLogic, clk clock.Clock) *ContractLogic {
	return &ContractLogic{
		db:     db,
		ledger: adapter,
		alloc:  alloc,
		perf:   perf,
		clk:    clk,
	}
}

// CreateContract 创建草稿状态的合约并生成里程碑
// 总可能代币 = 基础代币 × 绩效乘数上限
func (l *ContractLogic) CreateContract(contract *model.DeveloperContract) (*model.DeveloperContract, error) {
	if contract.ID == "" {
		contract.ID = newID("contract")
	}
	contract.Status = model.ContractStatusDraft
	contract.ContractHash = ""
	contract.SignatureHash = ""
	contract.TimestampTx = ""
	contract.AnchorStatus = model.AnchorStatusNone
	contract.LastModified = l.clk.Now()
	if contract.PerformanceMultiplier <= 0 {
		contract.PerformanceMultiplier = 1
	}
	if contract.StartDate.IsZero() {
		contract.StartDate = l.clk.Now()
	}

	milestoneTokens := make([]int64, 0, len(contract.Milestones))
	for i := range contract.Milestones {
		m := &contract.Milestones[i]
		if m.ID == "" {
			m.ID = newID("milestone")
		}
		m.ContractID = contract.ID
		m.Status = model.MilestoneStatusPending
		milestoneTokens = append(milestoneTokens, m.TokenReward)
	}
	contract.MilestoneTokens = datatypes.NewJSONSlice(milestoneTokens)
	contract.TotalPossibleTokens = int64(float64(contract.BaseTokens) * contract.PerformanceMultiplier)

	if err := l.db.Create(contract).Error; err != nil {
		return nil, fmt.Errorf("创建合约失败: %w", err)
	}

	logger.Info("Contract %s created for developer %s (%d possible tokens, %d milestones)",
		contract.ID, contract.DeveloperID, contract.TotalPossibleTokens, len(contract.Milestones))

	return contract, nil
}

// GetContract 获取合约及其里程碑
func (l *ContractLogic) GetContract(contractID string) (*model.DeveloperContract, error) {
	var contract model.DeveloperContract
	err := l.db.Preload("Milestones").First(&contract, "id = ?", contractID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("查询合约失败: %w", err)
	}
	return &contract, nil
}

// GetDeveloperContracts 获取开发者的全部合约
func (l *ContractLogic) GetDeveloperContracts(developerID string) ([]model.DeveloperContract, error) {
	var contracts []model.DeveloperContract
	err := l.db.Preload("Milestones").
		Where("developer_id = ?", developerID).
		Order("created_at DESC").
		Find(&contracts).Error
	if err != nil {
		return nil, fmt.Errorf("查询合约失败: %w", err)
	}
	return contracts, nil
}

// SignContract 双方签署合约：哈希条款、锚定账本、激活并发放签约代币
// 签名哈希 = Hash(开发者签名 + 项目方签名)，签约代币 = 基础代币 × 1.0
// 锚定失败时不落库，可安全重试；已签署的合约重复签署返回 ErrContractAlreadySigned
func (l *ContractLogic) SignContract(ctx context.Context, contractID, developerSignature, projectSignature string) (*model.DeveloperContract, *AllocationResult, error) {
	contract, err := l.GetContract(contractID)
	if err != nil {
		return nil, nil, err
	}

	if contract.ContractHash != "" {
		return nil, nil, ErrContractAlreadySigned
	}
	if !contract.Status.CanTransitionTo(model.ContractStatusActive) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, contract.Status, model.ContractStatusActive)
	}

	now := l.clk.Now()
	payload, err := signablePayload(contract)
	if err != nil {
		return nil, nil, err
	}
	contractHash := l.ledger.Hash(payload)
	signatureHash := l.ledger.Hash([]byte(developerSignature + projectSignature))

	txRef, err := l.ledger.Anchor(ctx, ledger.Record{
		"type":                "contract-signature",
		"contract_id":         contract.ID,
		"developer_id":        contract.DeveloperID,
		"contract_hash":       contractHash,
		"signature_hash":      signatureHash,
		"developer_signature": developerSignature,
		"project_signature":   projectSignature,
		"timestamp":           now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("锚定合约签名失败: %w", err)
	}

	// 条件更新保证激活与发放只发生一次：并发签署时只有一方能写入
	res := l.db.Model(&model.DeveloperContract{}).
		Where("id = ? AND contract_hash = ''", contract.ID).
		Updates(map[string]interface{}{
			"contract_hash":  contractHash,
			"signature_hash": signatureHash,
			"timestamp_tx":   txRef,
			"anchor_status":  model.AnchorStatusPending,
			"status":         model.ContractStatusActive,
			"last_modified":  now,
		})
	if res.Error != nil {
		return nil, nil, fmt.Errorf("更新合约失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil, ErrContractAlreadySigned
	}

	contract.ContractHash = contractHash
	contract.SignatureHash = signatureHash
	contract.TimestampTx = txRef
	contract.AnchorStatus = model.AnchorStatusPending
	contract.Status = model.ContractStatusActive
	contract.LastModified = now

	logger.Info("Contract %s signed by both parties, anchored as %s", contract.ID, txRef)

	// 签约代币发放（无质量指标，不记入绩效样本）
	one := 1.0
	result, err := l.alloc.Allocate(ctx, AllocationRequest{
		DeveloperID: contract.DeveloperID,
		ContractID:  contract.ID,
		ProjectID:   contract.ProjectID,
		EventType:   model.AllocationEventContractSigned,
		Reason:      fmt.Sprintf("合约 %s 签署", contract.ID),
		ApprovedBy:  projectSignature,
		Metrics: AllocationMetrics{
			BaseTokenAmount: contract.BaseTokens,
		},
		PrecomputedMultiplier: &one,
		SkipPerformanceSample: true,
	})
	if err != nil {
		return contract, nil, err
	}

	return contract, result, nil
}

// MilestoneSubmission 里程碑交付信息
type MilestoneSubmission struct {
	QualityScore   float64 `json:"quality_score" binding:"required"` // 0-100
	SubmissionData string  `json:"submission_data"`                  // 交付物内容或其引用
	ApprovedBy     string  `json:"approved_by"`
}

// CompleteMilestone 完成里程碑并按质量乘数发放奖励
// 重复完成返回 ErrMilestoneAlreadyCompleted，不会二次发放
func (l *ContractLogic) CompleteMilestone(ctx context.Context, milestoneID string, sub MilestoneSubmission) (*model.ContractMilestone, *AllocationResult, error) {
	var milestone model.ContractMilestone
	err := l.db.First(&milestone, "id = ?", milestoneID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMilestoneNotFound
		}
		return nil, nil, fmt.Errorf("查询里程碑失败: %w", err)
	}

	if milestone.Status == model.MilestoneStatusCompleted {
		return nil, nil, ErrMilestoneAlreadyCompleted
	}

	contract, err := l.GetContract(milestone.ContractID)
	if err != nil {
		return nil, nil, err
	}
	if contract.Status != model.ContractStatusActive {
		return nil, nil, fmt.Errorf("%w: 合约状态为 %s", ErrInvalidStatusTransition, contract.Status)
	}

	now := l.clk.Now()
	multiplier := QualityMultiplier(sub.QualityScore, contract.QualityThreshold)
	completionHours := now.Sub(milestone.CreatedAt).Hours()

	quality := sub.QualityScore
	submissionHash := l.ledger.Hash([]byte(sub.SubmissionData))
	signatures := milestone.ApprovalSignatures
	if sub.ApprovedBy != "" {
		signatures = append(signatures, sub.ApprovedBy)
	}

	// 条件更新先占位：并发完成时只有一方能把状态推进到已完成，之后才发放奖励
	res := l.db.Model(&model.ContractMilestone{}).
		Where("id = ? AND status <> ?", milestone.ID, model.MilestoneStatusCompleted).
		Updates(map[string]interface{}{
			"status":              model.MilestoneStatusCompleted,
			"completed_date":      now,
			"quality_score":       quality,
			"submission_hash":     submissionHash,
			"approval_signatures": signatures,
		})
	if res.Error != nil {
		return nil, nil, fmt.Errorf("更新里程碑失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil, ErrMilestoneAlreadyCompleted
	}

	result, err := l.alloc.Allocate(ctx, AllocationRequest{
		DeveloperID: contract.DeveloperID,
		ContractID:  contract.ID,
		IssueID:     milestone.ID,
		ProjectID:   contract.ProjectID,
		EventType:   model.AllocationEventMilestoneCompleted,
		Reason:      fmt.Sprintf("里程碑 %s 完成（质量 %.1f）", milestone.Title, sub.QualityScore),
		ApprovedBy:  sub.ApprovedBy,
		Metrics: AllocationMetrics{
			BaseTokenAmount: milestone.TokenReward,
			CodeQuality:     sub.QualityScore,
			CompletionTime:  completionHours,
			EstimatedTime:   milestone.EstimatedHours,
		},
		PrecomputedMultiplier: &multiplier,
	})
	if err != nil {
		// 发放失败时释放占位，保证重试不会丢失里程碑
		rollback := l.db.Model(&model.ContractMilestone{}).
			Where("id = ?", milestone.ID).
			Updates(map[string]interface{}{
				"status":              milestone.Status,
				"completed_date":      nil,
				"quality_score":       nil,
				"submission_hash":     "",
				"approval_signatures": milestone.ApprovalSignatures,
			})
		if rollback.Error != nil {
			logger.Error("Failed to roll back milestone %s after allocation error: %v", milestone.ID, rollback.Error)
		}
		return nil, nil, err
	}

	milestone.Status = model.MilestoneStatusCompleted
	milestone.CompletedDate = &now
	milestone.QualityScore = &quality
	milestone.SubmissionHash = submissionHash
	milestone.ApprovalSignatures = signatures

	logger.Info("Milestone %s completed with quality %.1f (%.2fx), %d tokens allocated",
		milestone.ID, sub.QualityScore, multiplier, result.TokensAllocated)

	// 全部里程碑完成后合约自动转为已完成
	l.maybeCompleteContract(contract.ID)

	return &milestone, result, nil
}

// maybeCompleteContract 所有里程碑完成时结束合约
func (l *ContractLogic) maybeCompleteContract(contractID string) {
	var remaining int64
	err := l.db.Model(&model.ContractMilestone{}).
		Where("contract_id = ? AND status <> ?", contractID, model.MilestoneStatusCompleted).
		Count(&remaining).Error
	if err != nil || remaining > 0 {
		return
	}

	if err := l.UpdateStatus(contractID, model.ContractStatusCompleted); err != nil {
		logger.Warn("Failed to auto-complete contract %s: %v", contractID, err)
	}
}

// UpdateStatus 更新合约状态，只允许单调前进
func (l *ContractLogic) UpdateStatus(contractID string, next model.ContractStatus) error {
	var contract model.DeveloperContract
	err := l.db.First(&contract, "id = ?", contractID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrContractNotFound
		}
		return fmt.Errorf("查询合约失败: %w", err)
	}

	if !contract.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, contract.Status, next)
	}

	contract.Status = next
	contract.LastModified = l.clk.Now()
	if err := l.db.Save(&contract).Error; err != nil {
		return fmt.Errorf("更新合约失败: %w", err)
	}

	logger.Info("Contract %s status -> %s", contractID, next)
	return nil
}

// TerminateContract 终止合约
func (l *ContractLogic) TerminateContract(contractID string) error {
	return l.UpdateStatus(contractID, model.ContractStatusTerminated)
}

// VerifyContract 校验合约条款是否与签署时的链上记录一致
// 任何环节失败均判为未通过（宁可误报也不放过篡改）
func (l *ContractLogic) VerifyContract(ctx context.Context, contractID string) (bool, error) {
	contract, err := l.GetContract(contractID)
	if err != nil {
		return false, err
	}
	if contract.ContractHash == "" || contract.TimestampTx == "" {
		return false, nil
	}

	payload, err := signablePayload(contract)
	if err != nil {
		return false, nil
	}
	if l.ledger.Hash(payload) != contract.ContractHash {
		logger.Warn("Contract %s local terms no longer match stored hash", contractID)
		return false, nil
	}

	record, err := l.ledger.Fetch(ctx, contract.TimestampTx)
	if err != nil {
		logger.Warn("Contract %s anchor record unavailable: %v", contractID, err)
		return false, nil
	}
	anchored, _ := record["contract_hash"].(string)
	if anchored != contract.ContractHash {
		logger.Warn("Contract %s anchored hash mismatch", contractID)
		return false, nil
	}

	return true, nil
}

// PerformanceSummary 开发者绩效概览
type PerformanceSummary struct {
	DeveloperID         string                 `json:"developer_id"`
	TotalContracts      int64                  `json:"total_contracts"`
	ActiveContracts     int64                  `json:"active_contracts"`
	CompletedContracts  int64                  `json:"completed_contracts"`
	MilestonesCompleted int64                  `json:"milestones_completed"`
	TotalTokensEarned   int64                  `json:"total_tokens_earned"`
	TotalTokensVested   int64                  `json:"total_tokens_vested"`
	TotalTokensPending  int64                  `json:"total_tokens_pending"`
	AverageQuality      float64                `json:"average_quality"`
	OverallScore        float64                `json:"overall_score"`
	Grade               model.PerformanceGrade `json:"grade"`
	Rating              string                 `json:"rating"` // excellent / good / poor
}

// GetDeveloperPerformanceSummary 汇总开发者的合约与绩效情况
func (l *ContractLogic) GetDeveloperPerformanceSummary(developerID string) (*PerformanceSummary, error) {
	perf, err := l.perf.GetOrCreate(developerID)
	if err != nil {
		return nil, err
	}

	summary := &PerformanceSummary{
		DeveloperID:        developerID,
		TotalTokensEarned:  perf.TotalTokensEarned,
		TotalTokensVested:  perf.TotalTokensVested,
		TotalTokensPending: perf.TotalTokensPending,
		AverageQuality:     perf.AverageCodeQuality,
		OverallScore:       perf.OverallPerformanceScore,
		Grade:              perf.PerformanceGrade,
		Rating:             ratingForScore(perf.AverageCodeQuality),
	}

	counts := []struct {
		dest   *int64
		status model.ContractStatus
	}{
		{&summary.ActiveContracts, model.ContractStatusActive},
		{&summary.CompletedContracts, model.ContractStatusCompleted},
	}
	err = l.db.Model(&model.DeveloperContract{}).
		Where("developer_id = ?", developerID).
		Count(&summary.TotalContracts).Error
	if err != nil {
		return nil, fmt.Errorf("统计合约失败: %w", err)
	}
	for _, c := range counts {
		err = l.db.Model(&model.DeveloperContract{}).
			Where("developer_id = ? AND status = ?", developerID, c.status).
			Count(c.dest).Error
		if err != nil {
			return nil, fmt.Errorf("统计合约失败: %w", err)
		}
	}

	err = l.db.Model(&model.ContractMilestone{}).
		Where("status = ? AND contract_id IN (?)", model.MilestoneStatusCompleted,
			l.db.Model(&model.DeveloperContract{}).Select("id").Where("developer_id = ?", developerID)).
		Count(&summary.MilestonesCompleted).Error
	if err != nil {
		return nil, fmt.Errorf("统计里程碑失败: %w", err)
	}

	return summary, nil
}

// QualityMultiplier 质量分映射奖励乘数
// 低于门槛减半；达标后在门槛到满分区间线性放大，最高3倍
func QualityMultiplier(quality, threshold float64) float64 {
	if quality < threshold {
		return 0.5
	}
	span := 100 - threshold
	if span <= 0 {
		return 1
	}
	m := 1 + (quality-threshold)/span*2
	if m > 3 {
		m = 3
	}
	return m
}

// ratingForScore 按平均代码质量给出的三档粗粒度评价（等级的简化视图）
func ratingForScore(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 70:
		return "good"
	default:
		return "poor"
	}
}

// signableTerms 参与哈希的合约条款，锚定字段与可变状态不参与
type signableTerms struct {
	ID                    string    `json:"id"`
	DeveloperID           string    `json:"developer_id"`
	ProjectID             string    `json:"project_id"`
	ContractType          string    `json:"contract_type"`
	BaseTokens            int64     `json:"base_tokens"`
	PerformanceMultiplier float64   `json:"performance_multiplier"`
	MilestoneTokens       []int64   `json:"milestone_tokens"`
	TotalPossibleTokens   int64     `json:"total_possible_tokens"`
	Currency              string    `json:"currency"`
	Rate                  float64   `json:"rate"`
	RevenueSharePercent   float64   `json:"revenue_share_percent"`
	QualityThreshold      float64   `json:"quality_threshold"`
	RequiredTestCoverage  float64   `json:"required_test_coverage"`
	DocumentationRequired bool      `json:"documentation_required"`
	Jurisdiction          string    `json:"jurisdiction"`
	IPAssignment          bool      `json:"ip_assignment"`
	NonCompeteClause      bool      `json:"non_compete_clause"`
	Confidentiality       bool      `json:"confidentiality"`
	TerminationNotice     int       `json:"termination_notice"`
	StartDate             time.Time `json:"start_date"`
}

// signablePayload 生成确定性的条款序列化结果
func signablePayload(c *model.DeveloperContract) ([]byte, error) {
	terms := signableTerms{
		ID:                    c.ID,
		DeveloperID:           c.DeveloperID,
		ProjectID:             c.ProjectID,
		ContractType:          string(c.ContractType),
		BaseTokens:            c.BaseTokens,
		PerformanceMultiplier: c.PerformanceMultiplier,
		MilestoneTokens:       c.MilestoneTokens,
		TotalPossibleTokens:   c.TotalPossibleTokens,
		Currency:              string(c.Currency),
		Rate:                  c.Rate,
		RevenueSharePercent:   c.RevenueSharePercent,
		QualityThreshold:      c.QualityThreshold,
		RequiredTestCoverage:  c.RequiredTestCoverage,
		DocumentationRequired: c.DocumentationRequired,
		Jurisdiction:          c.Jurisdiction,
		IPAssignment:          c.IPAssignment,
		NonCompeteClause:      c.NonCompeteClause,
		Confidentiality:       c.Confidentiality,
		TerminationNotice:     c.TerminationNotice,
		StartDate:             c.StartDate.UTC(),
	}

	payload, err := json.Marshal(terms)
	if err != nil {
		return nil, fmt.Errorf("序列化合约条款失败: %w", err)
	}
	return payload, nil
}
