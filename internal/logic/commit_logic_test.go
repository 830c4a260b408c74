package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/blues/dcs/internal/analysis"
	"github.com/blues/dcs/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommitLogic(t *testing.T, s *testStack) *CommitLogic {
	t.Helper()
	return NewCommitLogic(s.db, analysis.NewHeuristicAnalyzer(), s.ledger, s.alloc, nil, testTokenConfig(), s.clk)
}

func testRepository(threshold float64) *model.GitRepository {
	return &model.GitRepository{
		Name:                "engine",
		RemoteUrl:           "https://example.com/engine.git",
		BlockchainEnabled:   true,
		TimestampingEnabled: true,
		TokenRewardsEnabled: true,
		AutoCommitTimestamp: true,
		AutoTokenAllocation: true,
		QualityThreshold:    threshold,
	}
}

func TestRegisterRepository(t *testing.T) {
	s := newTestStack(t, fixedClock())
	commits := newCommitLogic(t, s)

	repo, err := commits.RegisterRepository(testRepository(0))
	require.NoError(t, err)
	assert.NotEmpty(t, repo.ID)
	// 缺省门槛回落到配置值
	assert.Equal(t, float64(70), repo.QualityThreshold)

	_, err = commits.GetRepository("missing")
	assert.True(t, errors.Is(err, ErrRepositoryNotFound))
}

func TestRecordCommit_Rewarded(t *testing.T) {
	s := newTestStack(t, fixedClock())
	commits := newCommitLogic(t, s)

	repo, err := commits.RegisterRepository(testRepository(70))
	require.NoError(t, err)

	commit, allocation, err := commits.RecordCommit(context.Background(), CommitInput{
		RepositoryID: repo.ID,
		Hash:         "aaaa1111",
		Message:      "implement allocation engine",
		AuthorName:   "Dev One",
		AuthorEmail:  "dev1@example.com",
		DeveloperID:  "dev-1",
		Files: []FileChangeInput{
			{Path: "engine/allocator.go", Status: model.FileChangeAdded, LinesAdded: 100, Content: "package engine"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, allocation)

	t.Run("commit record is populated", func(t *testing.T) {
		assert.Equal(t, 100, commit.LinesAdded)
		assert.InDelta(t, 75, commit.QualityScore, 1e-9)
		assert.InDelta(t, 5, commit.Complexity, 1e-9)
		assert.NotEmpty(t, commit.VerificationHash)
		assert.Equal(t, model.AnchorStatusPending, commit.AnchorStatus)
		require.Len(t, commit.FileChanges, 1)
		assert.NotEmpty(t, commit.FileChanges[0].ContentHash)
	})

	t.Run("reward follows the line rate", func(t *testing.T) {
		// 100 行 × 1000 × (5/5) × 0.75
		assert.Equal(t, int64(75_000), commit.RewardBaseAmount)
		assert.True(t, commit.RewardEligible)
		assert.Equal(t, allocation.TokensAllocated, commit.RewardFinalAmount)
		assert.Equal(t, allocation.Event.ID, commit.AllocationEventID)
		assert.Equal(t, model.AllocationEventCommitReward, allocation.Event.EventType)

		pool, err := s.pools.GetPool(CurrentPoolID)
		require.NoError(t, err)
		assert.Equal(t, commit.RewardFinalAmount, pool.AllocatedTokens)
	})

	t.Run("duplicate hash is rejected", func(t *testing.T) {
		_, _, err := commits.RecordCommit(context.Background(), CommitInput{
			RepositoryID: repo.ID,
			Hash:         "aaaa1111",
			Files:        []FileChangeInput{{Path: "x.go", LinesAdded: 1}},
		})
		assert.True(t, errors.Is(err, ErrCommitExists))
	})
}

func TestRecordCommit_BelowThreshold(t *testing.T) {
	s := newTestStack(t, fixedClock())
	commits := newCommitLogic(t, s)

	// 门槛 80，启发式 .go 文件质量 75
	repo, err := commits.RegisterRepository(testRepository(80))
	require.NoError(t, err)

	commit, allocation, err := commits.RecordCommit(context.Background(), CommitInput{
		RepositoryID: repo.ID,
		Hash:         "bbbb2222",
		DeveloperID:  "dev-1",
		Files: []FileChangeInput{
			{Path: "hack.go", LinesAdded: 500},
		},
	})
	require.NoError(t, err)

	// 正常登记但不计酬
	assert.Nil(t, allocation)
	assert.False(t, commit.RewardEligible)
	assert.Equal(t, int64(0), commit.RewardFinalAmount)
	assert.Empty(t, commit.AllocationEventID)
	assert.NotEmpty(t, commit.VerificationHash)

	// 池不受影响
	pool, err := s.pools.GetPool(CurrentPoolID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pool.AllocatedTokens)
}

func TestRecordCommit_CoverageAggregation(t *testing.T) {
	s := newTestStack(t, fixedClock())
	commits := newCommitLogic(t, s)

	repo, err := commits.RegisterRepository(testRepository(70))
	require.NoError(t, err)

	commit, allocation, err := commits.RecordCommit(context.Background(), CommitInput{
		RepositoryID: repo.ID,
		Hash:         "cccc3333",
		DeveloperID:  "dev-1",
		Files: []FileChangeInput{
			{Path: "svc/service.go", LinesAdded: 30},
			{Path: "svc/service_test.go", LinesAdded: 30},
			{Path: "README.md", LinesAdded: 30},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, allocation)

	assert.InDelta(t, 20, commit.TestCoverage, 1e-9)
	assert.InDelta(t, 25, commit.DocumentationCoverage, 1e-9)
	assert.Equal(t, 90, commit.LinesAdded)
	assert.Greater(t, commit.RewardFinalAmount, int64(0))
	assert.Equal(t, allocation.TokensAllocated, commit.RewardFinalAmount)
}

func TestRecordCommit_MilestoneBonus(t *testing.T) {
	s := newTestStack(t, fixedClock())
	commits := newCommitLogic(t, s)

	repo, err := commits.RegisterRepository(testRepository(70))
	require.NoError(t, err)

	commit, _, err := commits.RecordCommit(context.Background(), CommitInput{
		RepositoryID:      repo.ID,
		Hash:              "dddd4444",
		DeveloperID:       "dev-1",
		RelatedMilestones: []string{"milestone-1"},
		Files: []FileChangeInput{
			{Path: "core.go", LinesAdded: 100},
		},
	})
	require.NoError(t, err)

	// 基础 75,000 加里程碑关联 100 行 × 500
	assert.Equal(t, int64(125_000), commit.RewardBaseAmount)
}

func TestVerifyCommit(t *testing.T) {
	s := newTestStack(t, fixedClock())
	commits := newCommitLogic(t, s)

	repo, err := commits.RegisterRepository(testRepository(70))
	require.NoError(t, err)

	commit, _, err := commits.RecordCommit(context.Background(), CommitInput{
		RepositoryID: repo.ID,
		Hash:         "eeee5555",
		AuthorEmail:  "dev1@example.com",
		DeveloperID:  "dev-1",
		Files: []FileChangeInput{
			{Path: "main.go", LinesAdded: 10, Content: "package main"},
		},
	})
	require.NoError(t, err)

	t.Run("intact commit verifies", func(t *testing.T) {
		valid, err := commits.VerifyCommit(context.Background(), commit.ID)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("tampered record fails verification", func(t *testing.T) {
		require.NoError(t, s.db.Model(&model.GitCommit{}).
			Where("id = ?", commit.ID).
			Update("author_email", "evil@example.com").Error)

		valid, err := commits.VerifyCommit(context.Background(), commit.ID)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("unknown commit", func(t *testing.T) {
		_, err := commits.VerifyCommit(context.Background(), "missing")
		assert.True(t, errors.Is(err, ErrCommitNotFound))
	})
}
