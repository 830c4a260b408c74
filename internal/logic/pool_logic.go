package logic

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"gorm.io/gorm"
)

// 内置代币池标识
const (
	CurrentPoolID = "current-dev-pool"
	FuturePoolID  = "future-dev-pool"
)

// PoolLogic 代币池业务逻辑
type PoolLogic struct {
	db *gorm.DB

	// 池级互斥锁，保证预留操作的原子性
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPoolLogic 创建代币池业务逻辑
func NewPoolLogic(db *gorm.DB) *PoolLogic {
	return &PoolLogic{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// poolLock 获取指定池的互斥锁
func (p *PoolLogic) poolLock(poolID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[poolID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[poolID] = lock
	}
	return lock
}

// EnsureDefaultPools 初始化内置代币池
// 当前开发池与未来储备池各占总供应量的固定比例，剩余部分不在本服务管理范围内
func (p *PoolLogic) EnsureDefaultPools(cfg config.TokenConfig) error {
	currentTotal := int64(float64(cfg.TotalSupply) * cfg.CurrentPoolPercent)
	futureTotal := int64(float64(cfg.TotalSupply) * cfg.FuturePoolPercent)

	pools := []model.TokenPool{
		{
			ID:                        CurrentPoolID,
			Name:                      "Current Development Pool",
			TotalTokens:               currentTotal,
			AvailableTokens:           currentTotal,
			MaxAllocationPerIssue:     50_000_000,
			MaxAllocationPerDeveloper: 100_000_000,
			Status:                    model.PoolStatusActive,
			CreatedDate:               time.Now(),
			Rules:                     defaultAllocationRules(CurrentPoolID),
		},
		{
			ID:                        FuturePoolID,
			Name:                      "Future Development Reserve",
			TotalTokens:               futureTotal,
			AvailableTokens:           futureTotal,
			MaxAllocationPerIssue:     100_000_000,
			MaxAllocationPerDeveloper: 200_000_000,
			Status:                    model.PoolStatusActive,
			CreatedDate:               time.Now(),
			Rules:                     advancedAllocationRules(FuturePoolID),
		},
	}

	for i := range pools {
		var existing model.TokenPool
		err := p.db.First(&existing, "id = ?", pools[i].ID).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("查询代币池失败: %w", err)
		}

		if err := p.db.Create(&pools[i]).Error; err != nil {
			return fmt.Errorf("创建代币池 %s 失败: %w", pools[i].ID, err)
		}
		logger.Info("Initialized token pool %s with %d tokens", pools[i].ID, pools[i].TotalTokens)
	}

	return nil
}

// CreatePool 创建代币池
func (p *PoolLogic) CreatePool(pool *model.TokenPool) error {
	if pool.Name == "" {
		return errors.New("代币池名称不能为空")
	}
	if pool.TotalTokens <= 0 {
		return errors.New("代币池容量必须大于0")
	}

	if pool.ID == "" {
		pool.ID = newID("pool")
	}
	pool.AllocatedTokens = 0
	pool.AvailableTokens = pool.TotalTokens
	pool.Status = model.PoolStatusActive
	pool.CreatedDate = time.Now()

	for i := range pool.Rules {
		if pool.Rules[i].ID == "" {
			pool.Rules[i].ID = newID("rule")
		}
		pool.Rules[i].PoolID = pool.ID
		pool.Rules[i].SortOrder = i
	}

	if err := p.db.Create(pool).Error; err != nil {
		return fmt.Errorf("创建代币池失败: %w", err)
	}

	return nil
}

// GetPool 获取代币池详情（含按顺序排列的规则）
func (p *PoolLogic) GetPool(poolID string) (*model.TokenPool, error) {
	var pool model.TokenPool
	err := p.db.Preload("Rules", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	}).First(&pool, "id = ?", poolID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPoolNotFound
		}
		return nil, fmt.Errorf("获取代币池失败: %w", err)
	}

	return &pool, nil
}

// Reserve 从池中原子预留代币
// 余额不足时整体拒绝，不做部分扣减
func (p *PoolLogic) Reserve(poolID string, amount int64) error {
	if amount <= 0 {
		return nil
	}

	lock := p.poolLock(poolID)
	lock.Lock()
	defer lock.Unlock()

	return p.db.Transaction(func(tx *gorm.DB) error {
		var pool model.TokenPool
		if err := tx.First(&pool, "id = ?", poolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPoolNotFound
			}
			return fmt.Errorf("获取代币池失败: %w", err)
		}

		if pool.Status != model.PoolStatusActive {
			return ErrPoolNotActive
		}

		if amount > pool.AvailableTokens {
			return fmt.Errorf("%w: 请求 %d, 可用 %d", ErrInsufficientPoolFunds, amount, pool.AvailableTokens)
		}

		now := time.Now()
		pool.AllocatedTokens += amount
		pool.AvailableTokens -= amount
		pool.LastAllocation = &now
		if pool.AvailableTokens == 0 {
			pool.Status = model.PoolStatusDepleted
		}

		if err := tx.Save(&pool).Error; err != nil {
			return fmt.Errorf("更新代币池失败: %w", err)
		}

		return nil
	})
}

// Release 归还已预留的代币（分配失败时回滚）
func (p *PoolLogic) Release(poolID string, amount int64) error {
	if amount <= 0 {
		return nil
	}

	lock := p.poolLock(poolID)
	lock.Lock()
	defer lock.Unlock()

	return p.db.Transaction(func(tx *gorm.DB) error {
		var pool model.TokenPool
		if err := tx.First(&pool, "id = ?", poolID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPoolNotFound
			}
			return fmt.Errorf("获取代币池失败: %w", err)
		}

		pool.AllocatedTokens -= amount
		pool.AvailableTokens += amount
		if pool.Status == model.PoolStatusDepleted && pool.AvailableTokens > 0 {
			pool.Status = model.PoolStatusActive
		}

		if err := tx.Save(&pool).Error; err != nil {
			return fmt.Errorf("更新代币池失败: %w", err)
		}

		return nil
	})
}

// PoolSummary 代币池总体状态
type PoolSummary struct {
	TotalSupply    int64             `json:"total_supply"`
	Pools          []model.TokenPool `json:"pools"`
	TotalAllocated int64             `json:"total_allocated"`
	TotalAvailable int64             `json:"total_available"`
	AllocationRate float64           `json:"allocation_rate"` // 百分比
}

// GetPoolSummary 获取所有代币池的统计信息
func (p *PoolLogic) GetPoolSummary(totalSupply int64) (*PoolSummary, error) {
	var pools []model.TokenPool
	if err := p.db.Order("created_date ASC").Find(&pools).Error; err != nil {
		return nil, fmt.Errorf("获取代币池列表失败: %w", err)
	}

	summary := &PoolSummary{
		TotalSupply: totalSupply,
		Pools:       pools,
	}

	var poolTotal int64
	for _, pool := range pools {
		summary.TotalAllocated += pool.AllocatedTokens
		summary.TotalAvailable += pool.AvailableTokens
		poolTotal += pool.TotalTokens
	}
	if poolTotal > 0 {
		summary.AllocationRate = float64(summary.TotalAllocated) / float64(poolTotal) * 100
	}

	return summary, nil
}

// defaultAllocationRules 当前开发池默认规则
func defaultAllocationRules(poolID string) []model.AllocationRule {
	return []model.AllocationRule{
		{
			ID:             newID("rule"),
			PoolID:         poolID,
			SortOrder:      0,
			Name:           "High Quality Code Bonus",
			Description:    "代码质量达到90%以上的额外奖励",
			ConditionType:  model.ConditionCodeQuality,
			Operator:       model.OperatorGE,
			ConditionValue: 90,
			ActionType:     model.ActionMultiply,
			ActionValue:    1.5,
			MaxValue:       75_000_000,
			Enabled:        true,
		},
		{
			ID:             newID("rule"),
			PoolID:         poolID,
			SortOrder:      1,
			Name:           "Exceptional Quality Bonus",
			Description:    "接近满分质量的最高奖励",
			ConditionType:  model.ConditionCodeQuality,
			Operator:       model.OperatorGE,
			ConditionValue: 98,
			ActionType:     model.ActionMultiply,
			ActionValue:    2.0,
			MaxValue:       100_000_000,
			Enabled:        true,
		},
		{
			ID:             newID("rule"),
			PoolID:         poolID,
			SortOrder:      2,
			Name:           "Poor Quality Penalty",
			Description:    "低质量代码的奖励扣减",
			ConditionType:  model.ConditionCodeQuality,
			Operator:       model.OperatorLT,
			ConditionValue: 70,
			ActionType:     model.ActionMultiply,
			ActionValue:    0.5,
			Enabled:        true,
		},
		{
			ID:             newID("rule"),
			PoolID:         poolID,
			SortOrder:      3,
			Name:           "Fast Completion Bonus",
			Description:    "显著提前完成的奖励",
			ConditionType:  model.ConditionTimeToComplete,
			Operator:       model.OperatorLT,
			ConditionValue: 0.7,
			ActionType:     model.ActionMultiply,
			ActionValue:    1.25,
			Enabled:        true,
		},
		{
			ID:             newID("rule"),
			PoolID:         poolID,
			SortOrder:      4,
			Name:           "Excellent Testing Coverage Bonus",
			Description:    "测试覆盖充分的奖励",
			ConditionType:  model.ConditionTestingCoverage,
			Operator:       model.OperatorGE,
			ConditionValue: 95,
			ActionType:     model.ActionMultiply,
			ActionValue:    1.2,
			Enabled:        true,
		},
	}
}

// advancedAllocationRules 未来储备池规则（默认规则加大额贡献奖励）
func advancedAllocationRules(poolID string) []model.AllocationRule {
	rules := defaultAllocationRules(poolID)
	rules = append(rules, model.AllocationRule{
		ID:             newID("rule"),
		PoolID:         poolID,
		SortOrder:      len(rules),
		Name:           "Major Contribution Bonus",
		Description:    "大型复杂贡献的额外乘数",
		ConditionType:  model.ConditionContribution,
		Operator:       model.OperatorGE,
		ConditionValue: 20_000_000,
		ActionType:     model.ActionMultiply,
		ActionValue:    1.3,
		Enabled:        true,
	})
	return rules
}
