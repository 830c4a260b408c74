package logic

import (
	"errors"
	"sync"
	"testing"

	"github.com/blues/dcs/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultPools(t *testing.T) {
	db := newTestDB(t)
	pools := NewPoolLogic(db)

	require.NoError(t, pools.EnsureDefaultPools(testTokenConfig()))

	current, err := pools.GetPool(CurrentPoolID)
	require.NoError(t, err)
	assert.Equal(t, int64(250_000_000), current.TotalTokens)
	assert.Equal(t, int64(250_000_000), current.AvailableTokens)
	assert.Equal(t, int64(50_000_000), current.MaxAllocationPerIssue)
	assert.Equal(t, int64(100_000_000), current.MaxAllocationPerDeveloper)
	assert.Len(t, current.Rules, 5)

	future, err := pools.GetPool(FuturePoolID)
	require.NoError(t, err)
	assert.Equal(t, int64(250_000_000), future.TotalTokens)
	assert.Equal(t, int64(200_000_000), future.MaxAllocationPerDeveloper)
	assert.Len(t, future.Rules, 6)

	// 重复初始化不产生重复池
	require.NoError(t, pools.EnsureDefaultPools(testTokenConfig()))
	var count int64
	require.NoError(t, db.Model(&model.TokenPool{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestPoolReserve(t *testing.T) {
	db := newTestDB(t)
	pools := NewPoolLogic(db)
	require.NoError(t, pools.EnsureDefaultPools(testTokenConfig()))

	t.Run("reserve moves tokens between counters", func(t *testing.T) {
		require.NoError(t, pools.Reserve(CurrentPoolID, 1_000_000))

		pool, err := pools.GetPool(CurrentPoolID)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), pool.AllocatedTokens)
		assert.Equal(t, int64(249_000_000), pool.AvailableTokens)
		assert.Equal(t, pool.TotalTokens, pool.AllocatedTokens+pool.AvailableTokens)
		assert.NotNil(t, pool.LastAllocation)
	})

	t.Run("insufficient funds leaves counters untouched", func(t *testing.T) {
		before, err := pools.GetPool(CurrentPoolID)
		require.NoError(t, err)

		err = pools.Reserve(CurrentPoolID, before.AvailableTokens+1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInsufficientPoolFunds))

		after, err := pools.GetPool(CurrentPoolID)
		require.NoError(t, err)
		assert.Equal(t, before.AllocatedTokens, after.AllocatedTokens)
		assert.Equal(t, before.AvailableTokens, after.AvailableTokens)
	})

	t.Run("unknown pool", func(t *testing.T) {
		err := pools.Reserve("no-such-pool", 100)
		assert.True(t, errors.Is(err, ErrPoolNotFound))
	})

	t.Run("release restores tokens", func(t *testing.T) {
		before, err := pools.GetPool(CurrentPoolID)
		require.NoError(t, err)

		require.NoError(t, pools.Release(CurrentPoolID, 1_000_000))

		after, err := pools.GetPool(CurrentPoolID)
		require.NoError(t, err)
		assert.Equal(t, before.AvailableTokens+1_000_000, after.AvailableTokens)
		assert.Equal(t, before.AllocatedTokens-1_000_000, after.AllocatedTokens)
	})
}

func TestPoolDepletion(t *testing.T) {
	db := newTestDB(t)
	pools := NewPoolLogic(db)

	small := &model.TokenPool{Name: "small", TotalTokens: 1000}
	require.NoError(t, pools.CreatePool(small))

	require.NoError(t, pools.Reserve(small.ID, 1000))
	pool, err := pools.GetPool(small.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusDepleted, pool.Status)

	// 耗尽后不可再分配
	err = pools.Reserve(small.ID, 1)
	assert.True(t, errors.Is(err, ErrPoolNotActive))

	// 归还后恢复可分配
	require.NoError(t, pools.Release(small.ID, 500))
	pool, err = pools.GetPool(small.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PoolStatusActive, pool.Status)
	require.NoError(t, pools.Reserve(small.ID, 500))
}

func TestPoolFrozen(t *testing.T) {
	db := newTestDB(t)
	pools := NewPoolLogic(db)
	require.NoError(t, pools.EnsureDefaultPools(testTokenConfig()))

	require.NoError(t, db.Model(&model.TokenPool{}).
		Where("id = ?", CurrentPoolID).
		Update("status", model.PoolStatusFrozen).Error)

	err := pools.Reserve(CurrentPoolID, 100)
	assert.True(t, errors.Is(err, ErrPoolNotActive))
}

func TestPoolReserveConcurrent(t *testing.T) {
	db := newTestDB(t)
	pools := NewPoolLogic(db)

	pool := &model.TokenPool{Name: "concurrent", TotalTokens: 100_000}
	require.NoError(t, pools.CreatePool(pool))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pools.Reserve(pool.ID, 1000)
		}()
	}
	wg.Wait()

	after, err := pools.GetPool(pool.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20_000), after.AllocatedTokens)
	assert.Equal(t, after.TotalTokens, after.AllocatedTokens+after.AvailableTokens)
}

func TestGetPoolSummary(t *testing.T) {
	db := newTestDB(t)
	pools := NewPoolLogic(db)
	require.NoError(t, pools.EnsureDefaultPools(testTokenConfig()))
	require.NoError(t, pools.Reserve(CurrentPoolID, 50_000_000))

	summary, err := pools.GetPoolSummary(1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000), summary.TotalSupply)
	assert.Equal(t, int64(50_000_000), summary.TotalAllocated)
	assert.Equal(t, int64(450_000_000), summary.TotalAvailable)
	assert.InDelta(t, 10.0, summary.AllocationRate, 1e-9)
	assert.Len(t, summary.Pools, 2)
}
