package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"github.com/lightningnetwork/lnd/clock"
	"gorm.io/gorm"
)

// VestingLogic 代币锁仓业务逻辑
type VestingLogic struct {
	db        *gorm.DB
	cfg       config.VestingConfig
	threshold int64 // 大额分配阈值
	clk       clock.Clock
	perf      *PerformanceLogic
}

// NewVestingLogic 创建锁仓业务逻辑
func NewVestingLogic(db *gorm.DB, cfg config.VestingConfig, threshold int64, clk clock.Clock, perf *PerformanceLogic) *VestingLogic {
	return &VestingLogic{
		db:        db,
		cfg:       cfg,
		threshold: threshold,
		clk:       clk,
		perf:      perf,
	}
}

// MaybeCreate 大额分配时创建锁仓计划，未达阈值返回 nil
func (v *VestingLogic) MaybeCreate(developerID, contractID string, amount int64) (*model.TokenVesting, error) {
	if amount < v.threshold {
		return nil, nil
	}

	now := v.clk.Now()
	vesting := &model.TokenVesting{
		ID:               newID("vesting"),
		DeveloperID:      developerID,
		ContractID:       contractID,
		TotalTokens:      amount,
		VestedTokens:     0,
		UnvestedTokens:   amount,
		VestingStartDate: now,
		VestingDuration:  v.cfg.DurationMonths,
		CliffPeriod:      v.cfg.CliffMonths,
		VestingInterval:  model.VestingInterval(v.cfg.Interval),
		Status:           model.VestingStatusActive,
		NextVestingDate:  now.AddDate(0, v.cfg.CliffMonths, 0), // 悬崖期结束后首次释放
	}

	if err := v.db.Create(vesting).Error; err != nil {
		return nil, fmt.Errorf("创建锁仓计划失败: %w", err)
	}

	logger.Info("Created vesting schedule %s for developer %s: %d tokens over %d months (%d month cliff)",
		vesting.ID, developerID, amount, vesting.VestingDuration, vesting.CliffPeriod)
	return vesting, nil
}

// ReleaseDue 释放所有到期的锁仓代币
// 悬崖期内不释放；悬崖期后按线性计划释放，悬崖月份计入线性进度
func (v *VestingLogic) ReleaseDue() (int, error) {
	now := v.clk.Now()

	var schedules []model.TokenVesting
	err := v.db.Where("status = ? AND next_vesting_date <= ?", model.VestingStatusActive, now).
		Find(&schedules).Error
	if err != nil {
		return 0, fmt.Errorf("查询待释放锁仓计划失败: %w", err)
	}

	released := 0
	for i := range schedules {
		delta, err := v.release(&schedules[i], now)
		if err != nil {
			logger.Error("Failed to release vesting %s: %v", schedules[i].ID, err)
			continue
		}
		if delta > 0 {
			released++
		}
	}

	return released, nil
}

// release 按已流逝的释放周期计算可释放额并落账
func (v *VestingLogic) release(vesting *model.TokenVesting, now time.Time) (int64, error) {
	elapsed := elapsedVestingMonths(vesting, now)
	if elapsed < vesting.CliffPeriod {
		return 0, nil
	}

	// 线性释放：已释放总额 = total × min(elapsed, duration) / duration
	// 最后一期取整到总额，避免整除损失
	releasable := vesting.TotalTokens
	if elapsed < vesting.VestingDuration {
		releasable = vesting.TotalTokens * int64(elapsed) / int64(vesting.VestingDuration)
	}

	delta := releasable - vesting.VestedTokens
	if delta <= 0 {
		vesting.NextVestingDate = nextVestingDate(vesting, now)
		if err := v.db.Save(vesting).Error; err != nil {
			return 0, fmt.Errorf("更新锁仓计划失败: %w", err)
		}
		return 0, nil
	}

	vesting.VestedTokens += delta
	vesting.UnvestedTokens -= delta
	vesting.LastVestingDate = &now

	if vesting.VestedTokens >= vesting.TotalTokens {
		vesting.Status = model.VestingStatusCompleted
	} else {
		vesting.NextVestingDate = nextVestingDate(vesting, now)
	}

	if err := v.db.Save(vesting).Error; err != nil {
		return 0, fmt.Errorf("更新锁仓计划失败: %w", err)
	}

	if err := v.perf.RecordVested(vesting.DeveloperID, delta); err != nil {
		logger.Warn("Failed to update vested totals for %s: %v", vesting.DeveloperID, err)
	}

	logger.Info("Released %d vested tokens from %s (%d/%d)",
		delta, vesting.ID, vesting.VestedTokens, vesting.TotalTokens)
	return delta, nil
}

// Terminate 终止锁仓计划，未释放部分不再释放
func (v *VestingLogic) Terminate(vestingID string) error {
	var vesting model.TokenVesting
	if err := v.db.First(&vesting, "id = ?", vestingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrVestingNotFound
		}
		return fmt.Errorf("获取锁仓计划失败: %w", err)
	}

	if vesting.Status != model.VestingStatusActive {
		return ErrInvalidStatusTransition
	}

	vesting.Status = model.VestingStatusTerminated
	if err := v.db.Save(&vesting).Error; err != nil {
		return fmt.Errorf("更新锁仓计划失败: %w", err)
	}

	return nil
}

// ListByDeveloper 获取开发者的所有锁仓计划
func (v *VestingLogic) ListByDeveloper(developerID string) ([]model.TokenVesting, error) {
	var schedules []model.TokenVesting
	err := v.db.Where("developer_id = ?", developerID).
		Order("vesting_start_date ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("查询锁仓计划失败: %w", err)
	}

	return schedules, nil
}

// elapsedVestingMonths 计算自锁仓开始流逝的完整月数
// daily 周期以30天折算一个月，保持线性进度可比
func elapsedVestingMonths(vesting *model.TokenVesting, now time.Time) int {
	if now.Before(vesting.VestingStartDate) {
		return 0
	}

	if vesting.VestingInterval == model.VestingIntervalDaily {
		days := int(now.Sub(vesting.VestingStartDate).Hours() / 24)
		return days / 30
	}

	months := 0
	cursor := vesting.VestingStartDate
	for {
		next := cursor.AddDate(0, 1, 0)
		if next.After(now) {
			break
		}
		cursor = next
		months++
	}
	return months
}

// nextVestingDate 计算下一次释放时间
func nextVestingDate(vesting *model.TokenVesting, now time.Time) time.Time {
	switch vesting.VestingInterval {
	case model.VestingIntervalQuarterly:
		return now.AddDate(0, 3, 0)
	case model.VestingIntervalDaily:
		return now.AddDate(0, 0, 1)
	default:
		return now.AddDate(0, 1, 0)
	}
}
