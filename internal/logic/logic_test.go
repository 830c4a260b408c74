package logic

import (
	"testing"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/ledger"
	"github.com/blues/dcs/internal/repository"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitSQLite(":memory:")
	require.NoError(t, err)
	return db
}

func testTokenConfig() config.TokenConfig {
	return config.TokenConfig{
		TotalSupply:        1_000_000_000,
		CurrentPoolPercent: 0.25,
		FuturePoolPercent:  0.25,
		LargeAllocation:    15_000_000,
		CommitBaseRate:     1000,
		MilestoneLineRate:  500,
		QualityThreshold:   70,
	}
}

func testVestingConfig() config.VestingConfig {
	return config.VestingConfig{
		DurationMonths: 12,
		CliffMonths:    3,
		Interval:       "monthly",
	}
}

// testStack 组装一套共用内存数据库的完整业务逻辑
type testStack struct {
	db       *gorm.DB
	ledger   *ledger.MemoryAdapter
	clk      clock.Clock
	pools    *PoolLogic
	perf     *PerformanceLogic
	vesting  *VestingLogic
	alloc    *AllocationLogic
	contract *ContractLogic
}

func newTestStack(t *testing.T, clk clock.Clock) *testStack {
	t.Helper()
	db := newTestDB(t)
	adapter := ledger.NewMemoryAdapter()

	pools := NewPoolLogic(db)
	require.NoError(t, pools.EnsureDefaultPools(testTokenConfig()))

	perf := NewPerformanceLogic(db)
	vesting := NewVestingLogic(db, testVestingConfig(), testTokenConfig().LargeAllocation, clk, perf)
	alloc := NewAllocationLogic(db, pools, perf, vesting, nil, clk)
	contract := NewContractLogic(db, adapter, alloc, perf, clk)

	return &testStack{
		db:       db,
		ledger:   adapter,
		clk:      clk,
		pools:    pools,
		perf:     perf,
		vesting:  vesting,
		alloc:    alloc,
		contract: contract,
	}
}
