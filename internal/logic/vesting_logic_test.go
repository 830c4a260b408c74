package logic

import (
	"errors"
	"testing"
	"time"

	"github.com/blues/dcs/internal/model"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVestingFixture(t *testing.T) (*VestingLogic, *PerformanceLogic, *clock.TestClock) {
	t.Helper()
	db := newTestDB(t)
	clk := clock.NewTestClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	perf := NewPerformanceLogic(db)
	vesting := NewVestingLogic(db, testVestingConfig(), testTokenConfig().LargeAllocation, clk, perf)
	return vesting, perf, clk
}

func TestVestingThreshold(t *testing.T) {
	vesting, _, _ := newVestingFixture(t)

	t.Run("below threshold creates nothing", func(t *testing.T) {
		schedule, err := vesting.MaybeCreate("dev-1", "contract-1", 14_999_999)
		require.NoError(t, err)
		assert.Nil(t, schedule)
	})

	t.Run("at threshold creates a schedule", func(t *testing.T) {
		schedule, err := vesting.MaybeCreate("dev-1", "contract-1", 15_000_000)
		require.NoError(t, err)
		require.NotNil(t, schedule)
		assert.Equal(t, int64(15_000_000), schedule.TotalTokens)
		assert.Equal(t, int64(15_000_000), schedule.UnvestedTokens)
		assert.Equal(t, int64(0), schedule.VestedTokens)
		assert.Equal(t, 12, schedule.VestingDuration)
		assert.Equal(t, 3, schedule.CliffPeriod)
		assert.Equal(t, model.VestingStatusActive, schedule.Status)
		// 首次释放安排在悬崖期结束
		assert.Equal(t, schedule.VestingStartDate.AddDate(0, 3, 0), schedule.NextVestingDate)
	})
}

func TestVestingRelease(t *testing.T) {
	vesting, perf, clk := newVestingFixture(t)

	schedule, err := vesting.MaybeCreate("dev-1", "contract-1", 24_000_000)
	require.NoError(t, err)
	require.NotNil(t, schedule)
	require.NoError(t, perf.AddTokens("dev-1", 24_000_000, 24_000_000))

	reload := func() *model.TokenVesting {
		var v model.TokenVesting
		require.NoError(t, vesting.db.First(&v, "id = ?", schedule.ID).Error)
		return &v
	}

	t.Run("nothing released inside the cliff", func(t *testing.T) {
		clk.SetTime(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
		released, err := vesting.ReleaseDue()
		require.NoError(t, err)
		assert.Equal(t, 0, released)
		assert.Equal(t, int64(0), reload().VestedTokens)
	})

	t.Run("cliff months count toward linear progress", func(t *testing.T) {
		clk.SetTime(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
		released, err := vesting.ReleaseDue()
		require.NoError(t, err)
		assert.Equal(t, 1, released)

		v := reload()
		// 3/12 个月已流逝
		assert.Equal(t, int64(6_000_000), v.VestedTokens)
		assert.Equal(t, int64(18_000_000), v.UnvestedTokens)
		assert.Equal(t, model.VestingStatusActive, v.Status)

		p, err := perf.GetOrCreate("dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(6_000_000), p.TotalTokensVested)
		assert.Equal(t, int64(18_000_000), p.TotalTokensPending)
	})

	t.Run("midway release is incremental", func(t *testing.T) {
		clk.SetTime(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
		released, err := vesting.ReleaseDue()
		require.NoError(t, err)
		assert.Equal(t, 1, released)

		v := reload()
		// 6/12 个月
		assert.Equal(t, int64(12_000_000), v.VestedTokens)
	})

	t.Run("full duration releases everything", func(t *testing.T) {
		clk.SetTime(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
		released, err := vesting.ReleaseDue()
		require.NoError(t, err)
		assert.Equal(t, 1, released)

		v := reload()
		assert.Equal(t, int64(24_000_000), v.VestedTokens)
		assert.Equal(t, int64(0), v.UnvestedTokens)
		assert.Equal(t, model.VestingStatusCompleted, v.Status)

		p, err := perf.GetOrCreate("dev-1")
		require.NoError(t, err)
		assert.Equal(t, int64(24_000_000), p.TotalTokensVested)
		assert.Equal(t, int64(0), p.TotalTokensPending)
	})

	t.Run("completed schedules are not picked up again", func(t *testing.T) {
		clk.SetTime(time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC))
		released, err := vesting.ReleaseDue()
		require.NoError(t, err)
		assert.Equal(t, 0, released)
	})
}

func TestVestingTerminate(t *testing.T) {
	vesting, _, _ := newVestingFixture(t)

	schedule, err := vesting.MaybeCreate("dev-1", "contract-1", 20_000_000)
	require.NoError(t, err)
	require.NotNil(t, schedule)

	require.NoError(t, vesting.Terminate(schedule.ID))

	var v model.TokenVesting
	require.NoError(t, vesting.db.First(&v, "id = ?", schedule.ID).Error)
	assert.Equal(t, model.VestingStatusTerminated, v.Status)

	// 已终止的计划不能再次终止，也不再释放
	err = vesting.Terminate(schedule.ID)
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))

	assert.True(t, errors.Is(vesting.Terminate("vesting-missing"), ErrVestingNotFound))
}

func TestElapsedVestingMonths(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	v := &model.TokenVesting{
		VestingStartDate: start,
		VestingInterval:  model.VestingIntervalMonthly,
	}

	assert.Equal(t, 0, elapsedVestingMonths(v, start))
	assert.Equal(t, 0, elapsedVestingMonths(v, start.AddDate(0, 0, 27)))
	assert.Equal(t, 1, elapsedVestingMonths(v, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 12, elapsedVestingMonths(v, start.AddDate(1, 0, 0)))
	// 开始之前
	assert.Equal(t, 0, elapsedVestingMonths(v, start.AddDate(0, -1, 0)))

	daily := &model.TokenVesting{
		VestingStartDate: start,
		VestingInterval:  model.VestingIntervalDaily,
	}
	assert.Equal(t, 2, elapsedVestingMonths(daily, start.AddDate(0, 0, 65)))
}
