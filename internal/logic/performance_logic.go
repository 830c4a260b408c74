package logic

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blues/dcs/internal/model"
	"gorm.io/gorm"
)

// PerformanceLogic 开发者绩效业务逻辑
type PerformanceLogic struct {
	db *gorm.DB

	// 按开发者串行化读-改-写，避免滚动平均并发更新丢失
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPerformanceLogic 创建绩效业务逻辑
func NewPerformanceLogic(db *gorm.DB) *PerformanceLogic {
	return &PerformanceLogic{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// developerLock 获取指定开发者的互斥锁
func (p *PerformanceLogic) developerLock(developerID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[developerID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[developerID] = lock
	}
	return lock
}

// PerformanceSample 一次分配产生的绩效样本
type PerformanceSample struct {
	TokensEarned       int64   `json:"tokens_earned"`
	TokensPending      int64   `json:"tokens_pending"` // 进入锁仓的部分
	CodeQuality        float64 `json:"code_quality"`
	TestCoverage       float64 `json:"test_coverage"`
	DocumentationScore float64 `json:"documentation_score"`
	CompletionTime     float64 `json:"completion_time"`
	EstimatedTime      float64 `json:"estimated_time"`
}

// GetOrCreate 获取开发者绩效记录，首次访问时初始化中性默认值
func (p *PerformanceLogic) GetOrCreate(developerID string) (*model.DeveloperPerformance, error) {
	var perf model.DeveloperPerformance
	err := p.db.First(&perf, "developer_id = ?", developerID).Error
	if err == nil {
		return &perf, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("获取开发者绩效失败: %w", err)
	}

	perf = model.DeveloperPerformance{
		DeveloperID:          developerID,
		OnTimeDeliveryRate:   100,
		CommunicationScore:   100,
		CollaborationScore:   100,
		ReliabilityScore:     100,
		PerformanceGrade:     model.GradeC,
		LastVerificationDate: time.Now(),
	}

	if err := p.db.Create(&perf).Error; err != nil {
		return nil, fmt.Errorf("初始化开发者绩效失败: %w", err)
	}

	return &perf, nil
}

// Record 记录一次绩效样本并更新所有滚动指标
func (p *PerformanceLogic) Record(developerID string, sample PerformanceSample) (*model.DeveloperPerformance, error) {
	lock := p.developerLock(developerID)
	lock.Lock()
	defer lock.Unlock()

	perf, err := p.GetOrCreate(developerID)
	if err != nil {
		return nil, err
	}

	oldCount := perf.IssuesCompleted
	newCount := oldCount + 1

	// 代币指标
	perf.TotalTokensEarned += sample.TokensEarned
	if sample.TokensPending > 0 {
		perf.TotalTokensPending += sample.TokensPending
	} else {
		perf.TotalTokensVested += sample.TokensEarned
	}

	// 滚动平均（全历史权重，永不重置）
	perf.AverageCodeQuality = rollingAverage(perf.AverageCodeQuality, sample.CodeQuality, oldCount, newCount)
	perf.AverageTestCoverage = rollingAverage(perf.AverageTestCoverage, sample.TestCoverage, oldCount, newCount)
	perf.AverageDocumentationScore = rollingAverage(perf.AverageDocumentationScore, sample.DocumentationScore, oldCount, newCount)
	perf.AverageCompletionTime = rollingAverage(perf.AverageCompletionTime, sample.CompletionTime, oldCount, newCount)

	// 按时交付率：按时记100，超时记0
	onTime := 0.0
	if sample.CompletionTime <= sample.EstimatedTime {
		onTime = 100
	}
	perf.OnTimeDeliveryRate = rollingAverage(perf.OnTimeDeliveryRate, onTime, oldCount, newCount)

	perf.IssuesCompleted = newCount

	// 综合评分与等级
	perf.OverallPerformanceScore = overallScore(perf)
	perf.PerformanceGrade = gradeForScore(perf.OverallPerformanceScore)

	if err := p.db.Save(perf).Error; err != nil {
		return nil, fmt.Errorf("更新开发者绩效失败: %w", err)
	}

	return perf, nil
}

// AddTokens 仅累加代币计数，不产生绩效样本
// 合约签署等没有质量指标的分配路径使用
func (p *PerformanceLogic) AddTokens(developerID string, earned, pending int64) error {
	lock := p.developerLock(developerID)
	lock.Lock()
	defer lock.Unlock()

	perf, err := p.GetOrCreate(developerID)
	if err != nil {
		return err
	}

	perf.TotalTokensEarned += earned
	if pending > 0 {
		perf.TotalTokensPending += pending
	} else {
		perf.TotalTokensVested += earned
	}

	if err := p.db.Save(perf).Error; err != nil {
		return fmt.Errorf("更新开发者绩效失败: %w", err)
	}

	return nil
}

// RecordVested 锁仓释放后把对应金额从待释放转入已释放
func (p *PerformanceLogic) RecordVested(developerID string, amount int64) error {
	lock := p.developerLock(developerID)
	lock.Lock()
	defer lock.Unlock()

	perf, err := p.GetOrCreate(developerID)
	if err != nil {
		return err
	}

	perf.TotalTokensPending -= amount
	if perf.TotalTokensPending < 0 {
		perf.TotalTokensPending = 0
	}
	perf.TotalTokensVested += amount

	if err := p.db.Save(perf).Error; err != nil {
		return fmt.Errorf("更新开发者绩效失败: %w", err)
	}

	return nil
}

// FlagSuspicious 记录可疑行为标记
func (p *PerformanceLogic) FlagSuspicious(developerID string, flag string) error {
	lock := p.developerLock(developerID)
	lock.Lock()
	defer lock.Unlock()

	perf, err := p.GetOrCreate(developerID)
	if err != nil {
		return err
	}

	perf.SuspiciousActivityFlags = append(perf.SuspiciousActivityFlags, flag)
	perf.GamingAttempts++
	perf.LastVerificationDate = time.Now()

	if err := p.db.Save(perf).Error; err != nil {
		return fmt.Errorf("更新开发者绩效失败: %w", err)
	}

	return nil
}

// rollingAverage 增量滚动平均
func rollingAverage(currentAvg, newValue float64, oldCount, newCount int64) float64 {
	if newCount <= 0 {
		return currentAvg
	}
	return (currentAvg*float64(oldCount) + newValue) / float64(newCount)
}

// overallScore 固定权重综合评分
func overallScore(perf *model.DeveloperPerformance) float64 {
	return perf.AverageCodeQuality*0.25 +
		perf.AverageTestCoverage*0.15 +
		perf.AverageDocumentationScore*0.10 +
		perf.OnTimeDeliveryRate*0.20 +
		perf.CommunicationScore*0.10 +
		perf.CollaborationScore*0.10 +
		perf.ReliabilityScore*0.10
}

// gradeForScore 综合评分映射等级
func gradeForScore(score float64) model.PerformanceGrade {
	switch {
	case score >= 95:
		return model.GradeS
	case score >= 85:
		return model.GradeA
	case score >= 75:
		return model.GradeB
	case score >= 65:
		return model.GradeC
	case score >= 50:
		return model.GradeD
	default:
		return model.GradeF
	}
}
