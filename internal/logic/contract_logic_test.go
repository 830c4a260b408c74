package logic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/blues/dcs/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftContract() *model.DeveloperContract {
	return &model.DeveloperContract{
		DeveloperID:           "dev-1",
		ProjectID:             "project-1",
		ContractType:          model.ContractTypeTaskBased,
		BaseTokens:            1_000_000,
		PerformanceMultiplier: 2,
		QualityThreshold:      70,
		Milestones: []model.ContractMilestone{
			{
				Title:          "核心模块",
				TokenReward:    10_000_000,
				EstimatedHours: 100,
			},
		},
	}
}

func TestCreateContract(t *testing.T) {
	s := newTestStack(t, fixedClock())

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)

	assert.NotEmpty(t, contract.ID)
	assert.Equal(t, model.ContractStatusDraft, contract.Status)
	// 总可能代币 = 1M × 2
	assert.Equal(t, int64(2_000_000), contract.TotalPossibleTokens)
	assert.Equal(t, []int64{10_000_000}, []int64(contract.MilestoneTokens))
	assert.Empty(t, contract.ContractHash)

	require.Len(t, contract.Milestones, 1)
	assert.Equal(t, contract.ID, contract.Milestones[0].ContractID)
	assert.Equal(t, model.MilestoneStatusPending, contract.Milestones[0].Status)
}

func TestSignContract(t *testing.T) {
	s := newTestStack(t, fixedClock())
	ctx := context.Background()

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)

	signed, allocation, err := s.contract.SignContract(ctx, contract.ID, "sig-dev-1", "sig-project-1")
	require.NoError(t, err)

	t.Run("contract is anchored and active", func(t *testing.T) {
		assert.Equal(t, model.ContractStatusActive, signed.Status)
		assert.NotEmpty(t, signed.ContractHash)
		assert.NotEmpty(t, signed.TimestampTx)
		assert.Equal(t, model.AnchorStatusPending, signed.AnchorStatus)

		// 签名哈希由双方签名拼接而来
		assert.Equal(t, s.ledger.Hash([]byte("sig-dev-1"+"sig-project-1")), signed.SignatureHash)
	})

	t.Run("signing grants exactly the base tokens", func(t *testing.T) {
		require.NotNil(t, allocation)
		assert.Equal(t, int64(1_000_000), allocation.TokensAllocated)
		assert.InDelta(t, 1.0, allocation.MultiplierApplied, 1e-9)
		assert.Empty(t, allocation.RulesApplied)
		assert.Equal(t, model.AllocationEventContractSigned, allocation.Event.EventType)

		pool, err := s.pools.GetPool(CurrentPoolID)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), pool.AllocatedTokens)

		// 签约不记入绩效样本
		p, err := s.perf.GetOrCreate("dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), p.TotalTokensEarned)
		assert.Equal(t, int64(0), p.IssuesCompleted)
	})

	t.Run("second signature is rejected", func(t *testing.T) {
		_, _, err := s.contract.SignContract(ctx, contract.ID, "sig-dev-1", "sig-project-1")
		assert.True(t, errors.Is(err, ErrContractAlreadySigned))

		// 重复签署不重复发放
		pool, err := s.pools.GetPool(CurrentPoolID)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), pool.AllocatedTokens)
	})
}

func TestCompleteMilestone(t *testing.T) {
	s := newTestStack(t, fixedClock())
	ctx := context.Background()

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)
	milestoneID := contract.Milestones[0].ID

	t.Run("milestone needs an active contract", func(t *testing.T) {
		_, _, err := s.contract.CompleteMilestone(ctx, milestoneID, MilestoneSubmission{QualityScore: 95})
		assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
	})

	_, _, err = s.contract.SignContract(ctx, contract.ID, "sig-dev-1", "sig-project-1")
	require.NoError(t, err)

	t.Run("reward scales with quality", func(t *testing.T) {
		milestone, allocation, err := s.contract.CompleteMilestone(ctx, milestoneID, MilestoneSubmission{
			QualityScore:   95,
			SubmissionData: "deliverable bundle v1",
			ApprovedBy:     "reviewer",
		})
		require.NoError(t, err)

		// 乘数 = 1 + (95-70)/(100-70) × 2 ≈ 2.667
		assert.Equal(t, int64(26_666_666), allocation.TokensAllocated)
		assert.InDelta(t, 2.6667, allocation.MultiplierApplied, 1e-3)
		assert.Equal(t, model.AllocationEventMilestoneCompleted, allocation.Event.EventType)

		assert.Equal(t, model.MilestoneStatusCompleted, milestone.Status)
		assert.NotNil(t, milestone.CompletedDate)
		require.NotNil(t, milestone.QualityScore)
		assert.Equal(t, float64(95), *milestone.QualityScore)
		assert.NotEmpty(t, milestone.SubmissionHash)
		assert.Equal(t, []string{"reviewer"}, []string(milestone.ApprovalSignatures))

		// 大额奖励自动锁仓
		require.NotNil(t, allocation.Vesting)
		assert.Equal(t, int64(26_666_666), allocation.Vesting.TotalTokens)
	})

	t.Run("completion is idempotent", func(t *testing.T) {
		before, err := s.pools.GetPool(CurrentPoolID)
		require.NoError(t, err)

		_, _, err = s.contract.CompleteMilestone(ctx, milestoneID, MilestoneSubmission{QualityScore: 95})
		assert.True(t, errors.Is(err, ErrMilestoneAlreadyCompleted))

		after, err := s.pools.GetPool(CurrentPoolID)
		require.NoError(t, err)
		assert.Equal(t, before.AllocatedTokens, after.AllocatedTokens)
	})

	t.Run("last milestone completes the contract", func(t *testing.T) {
		reloaded, err := s.contract.GetContract(contract.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ContractStatusCompleted, reloaded.Status)
	})

	t.Run("unknown milestone", func(t *testing.T) {
		_, _, err := s.contract.CompleteMilestone(ctx, "missing", MilestoneSubmission{QualityScore: 95})
		assert.True(t, errors.Is(err, ErrMilestoneNotFound))
	})
}

func TestSignContractConcurrent(t *testing.T) {
	s := newTestStack(t, fixedClock())
	ctx := context.Background()

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)

	// 并发签署只允许一次激活与发放
	const workers = 8
	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.contract.SignContract(ctx, contract.ID, "sig-dev-1", "sig-project-1")
			if err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes)

	pool, err := s.pools.GetPool(CurrentPoolID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), pool.AllocatedTokens)

	var events int64
	require.NoError(t, s.db.Model(&model.TokenAllocationEvent{}).
		Where("event_type = ?", model.AllocationEventContractSigned).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCompleteMilestoneConcurrent(t *testing.T) {
	s := newTestStack(t, fixedClock())
	ctx := context.Background()

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)
	_, _, err = s.contract.SignContract(ctx, contract.ID, "sig-dev-1", "sig-project-1")
	require.NoError(t, err)
	milestoneID := contract.Milestones[0].ID

	// 并发完成同一里程碑，只允许一次成功发放
	const workers = 8
	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.contract.CompleteMilestone(ctx, milestoneID, MilestoneSubmission{QualityScore: 80})
			if err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes)

	var events int64
	require.NoError(t, s.db.Model(&model.TokenAllocationEvent{}).
		Where("event_type = ?", model.AllocationEventMilestoneCompleted).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCompleteMilestoneAllocationFailure(t *testing.T) {
	s := newTestStack(t, fixedClock())
	ctx := context.Background()

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)
	_, _, err = s.contract.SignContract(ctx, contract.ID, "sig-dev-1", "sig-project-1")
	require.NoError(t, err)
	milestoneID := contract.Milestones[0].ID

	// 掏空代币池使发放失败
	require.NoError(t, s.db.Model(&model.TokenPool{}).
		Where("id = ?", CurrentPoolID).
		Update("available_tokens", 0).Error)

	_, _, err = s.contract.CompleteMilestone(ctx, milestoneID, MilestoneSubmission{QualityScore: 80})
	assert.True(t, errors.Is(err, ErrInsufficientPoolFunds))

	// 发放失败不留下已完成的里程碑，重试可以成功
	var m model.ContractMilestone
	require.NoError(t, s.db.First(&m, "id = ?", milestoneID).Error)
	assert.Equal(t, model.MilestoneStatusPending, m.Status)
	assert.Nil(t, m.CompletedDate)
	assert.Empty(t, m.SubmissionHash)

	require.NoError(t, s.db.Model(&model.TokenPool{}).
		Where("id = ?", CurrentPoolID).
		Update("available_tokens", int64(100_000_000)).Error)

	milestone, allocation, err := s.contract.CompleteMilestone(ctx, milestoneID, MilestoneSubmission{QualityScore: 80})
	require.NoError(t, err)
	assert.Equal(t, model.MilestoneStatusCompleted, milestone.Status)
	assert.Positive(t, allocation.TokensAllocated)
}

func TestVerifyContract(t *testing.T) {
	s := newTestStack(t, fixedClock())
	ctx := context.Background()

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)

	t.Run("unsigned contract never verifies", func(t *testing.T) {
		valid, err := s.contract.VerifyContract(ctx, contract.ID)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	_, _, err = s.contract.SignContract(ctx, contract.ID, "sig-dev-1", "sig-project-1")
	require.NoError(t, err)

	t.Run("intact contract verifies", func(t *testing.T) {
		valid, err := s.contract.VerifyContract(ctx, contract.ID)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("tampered terms fail verification", func(t *testing.T) {
		require.NoError(t, s.db.Model(&model.DeveloperContract{}).
			Where("id = ?", contract.ID).
			Update("base_tokens", 999_999_999).Error)

		valid, err := s.contract.VerifyContract(ctx, contract.ID)
		require.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestContractStatusMonotonic(t *testing.T) {
	s := newTestStack(t, fixedClock())

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)

	require.NoError(t, s.contract.UpdateStatus(contract.ID, model.ContractStatusActive))
	require.NoError(t, s.contract.UpdateStatus(contract.ID, model.ContractStatusCompleted))

	// 终态后不可回退
	err = s.contract.UpdateStatus(contract.ID, model.ContractStatusActive)
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
	err = s.contract.UpdateStatus(contract.ID, model.ContractStatusDraft)
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
}

func TestTerminateContract(t *testing.T) {
	s := newTestStack(t, fixedClock())

	contract, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)
	require.NoError(t, s.contract.TerminateContract(contract.ID))

	reloaded, err := s.contract.GetContract(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContractStatusTerminated, reloaded.Status)
}

func TestQualityMultiplier(t *testing.T) {
	assert.InDelta(t, 0.5, QualityMultiplier(69, 70), 1e-9)
	assert.InDelta(t, 1.0, QualityMultiplier(70, 70), 1e-9)
	assert.InDelta(t, 2.0, QualityMultiplier(85, 70), 1e-9)
	assert.InDelta(t, 3.0, QualityMultiplier(100, 70), 1e-9)
	// 上限封顶
	assert.InDelta(t, 3.0, QualityMultiplier(100, 20), 1e-9)
	// 门槛为满分时退化为1
	assert.InDelta(t, 1.0, QualityMultiplier(100, 100), 1e-9)
}

func TestGetDeveloperPerformanceSummary(t *testing.T) {
	s := newTestStack(t, fixedClock())
	ctx := context.Background()

	first, err := s.contract.CreateContract(draftContract())
	require.NoError(t, err)
	_, _, err = s.contract.SignContract(ctx, first.ID, "sig-dev-1", "sig-project-1")
	require.NoError(t, err)

	second := draftContract()
	second.Milestones = nil
	_, err = s.contract.CreateContract(second)
	require.NoError(t, err)

	summary, err := s.contract.GetDeveloperPerformanceSummary("dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalContracts)
	assert.Equal(t, int64(1), summary.ActiveContracts)
	assert.Equal(t, int64(0), summary.CompletedContracts)
	assert.Equal(t, int64(0), summary.MilestonesCompleted)
	assert.Equal(t, int64(1_000_000), summary.TotalTokensEarned)
	// 尚无质量样本，粗粒度评价垫底
	assert.Equal(t, "poor", summary.Rating)

	// 评价跟随平均代码质量而非综合评分
	_, err = s.perf.Record("dev-1", PerformanceSample{CodeQuality: 95, EstimatedTime: 1})
	require.NoError(t, err)
	summary, err = s.contract.GetDeveloperPerformanceSummary("dev-1")
	require.NoError(t, err)
	assert.Equal(t, "excellent", summary.Rating)
	assert.InDelta(t, 95, summary.AverageQuality, 1e-9)
}
