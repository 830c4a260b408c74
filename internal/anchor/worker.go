package anchor

import (
	"context"
	"time"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/ledger"
	"github.com/blues/dcs/internal/logger"
	"github.com/blues/dcs/internal/model"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

// Worker 异步锚定工作池
// 分配事件与提交记录通过协程池提交上链，带退避重试
type Worker struct {
	db         *gorm.DB
	adapter    ledger.Adapter
	pool       *ants.Pool
	maxRetries int
	clk        clock.Clock
}

// NewWorker 创建锚定工作池
func NewWorker(db *gorm.DB, adapter ledger.Adapter, cfg config.TaskConfig, clk clock.Clock) (*Worker, error) {
	workers := cfg.AnchorWorkers
	if workers <= 0 {
		workers = 8
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	retries := cfg.AnchorRetries
	if retries <= 0 {
		retries = 5
	}

	return &Worker{
		db:         db,
		adapter:    adapter,
		pool:       pool,
		maxRetries: retries,
		clk:        clk,
	}, nil
}

// SubmitEvent 异步锚定分配事件
func (w *Worker) SubmitEvent(eventID string) {
	err := w.pool.Submit(func() {
		w.anchorEvent(eventID)
	})
	if err != nil {
		logger.Error("Failed to submit anchor task for event %s: %v", eventID, err)
	}
}

// SubmitCommit 异步锚定提交记录
func (w *Worker) SubmitCommit(commitID string) {
	err := w.pool.Submit(func() {
		w.anchorCommit(commitID)
	})
	if err != nil {
		logger.Error("Failed to submit anchor task for commit %s: %v", commitID, err)
	}
}

// anchorEvent 锚定单个分配事件
func (w *Worker) anchorEvent(eventID string) {
	var event model.TokenAllocationEvent
	if err := w.db.First(&event, "id = ?", eventID).Error; err != nil {
		logger.Error("Anchor worker: event %s not found: %v", eventID, err)
		return
	}

	// 已有交易引用说明此前已提交，交给确认轮询处理
	if event.BlockchainTx != "" {
		return
	}

	record := ledger.Record{
		"type":               "token-allocation",
		"event_id":           event.ID,
		"contract_id":        event.ContractID,
		"developer_id":       event.DeveloperID,
		"pool_id":            event.PoolID,
		"event_type":         string(event.EventType),
		"token_amount":       event.TokenAmount,
		"quality_multiplier": event.QualityMultiplier,
		"rules_applied":      []string(event.RulesApplied),
		"reason":             event.Reason,
		"timestamp":          event.Timestamp.Unix(),
	}

	txRef, err := w.anchorWithRetry(record)
	if err != nil {
		logger.Error("Anchoring event %s failed after %d attempts: %v", event.ID, w.maxRetries, err)
		w.db.Model(&event).Update("anchor_status", model.AnchorStatusFailed)
		return
	}

	updates := map[string]interface{}{
		"blockchain_tx": txRef,
		"anchor_status": model.AnchorStatusPending,
	}
	if err := w.db.Model(&event).Updates(updates).Error; err != nil {
		logger.Error("Failed to record anchor tx for event %s: %v", event.ID, err)
	}
}

// anchorCommit 锚定单个提交记录
func (w *Worker) anchorCommit(commitID string) {
	var commit model.GitCommit
	if err := w.db.First(&commit, "id = ?", commitID).Error; err != nil {
		logger.Error("Anchor worker: commit %s not found: %v", commitID, err)
		return
	}

	if commit.TimestampTx != "" {
		return
	}

	record := ledger.Record{
		"type":              "git-commit-timestamp",
		"commit_hash":       commit.Hash,
		"repository_id":     commit.RepositoryID,
		"author":            commit.AuthorEmail,
		"message":           commit.Message,
		"lines_added":       commit.LinesAdded,
		"lines_deleted":     commit.LinesDeleted,
		"verification_hash": commit.VerificationHash,
		"quality_score":     commit.QualityScore,
		"timestamp":         commit.Timestamp.Unix(),
	}

	txRef, err := w.anchorWithRetry(record)
	if err != nil {
		logger.Error("Anchoring commit %s failed after %d attempts: %v", commit.Hash, w.maxRetries, err)
		w.db.Model(&commit).Update("anchor_status", model.AnchorStatusFailed)
		return
	}

	updates := map[string]interface{}{
		"timestamped":   true,
		"timestamp_tx":  txRef,
		"anchor_status": model.AnchorStatusPending,
	}
	if err := w.db.Model(&commit).Updates(updates).Error; err != nil {
		logger.Error("Failed to record anchor tx for commit %s: %v", commit.Hash, err)
	}
}

// anchorWithRetry 带指数退避的锚定提交
func (w *Worker) anchorWithRetry(record ledger.Record) (string, error) {
	var lastErr error
	backoff := time.Second

	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		txRef, err := w.adapter.Anchor(ctx, record)
		cancel()

		if err == nil {
			return txRef, nil
		}

		lastErr = err
		logger.Warn("Anchor attempt %d/%d failed: %v", attempt, w.maxRetries, err)

		if attempt < w.maxRetries {
			<-w.clk.TickAfter(backoff)
			backoff *= 2
		}
	}

	return "", lastErr
}

// ScanPending 重新提交遗留的未锚定记录（进程重启后的恢复路径）
func (w *Worker) ScanPending() {
	var events []model.TokenAllocationEvent
	err := w.db.Where("anchor_status = ? AND blockchain_tx = ''", model.AnchorStatusPending).
		Limit(100).Find(&events).Error
	if err != nil {
		logger.Error("Failed to scan pending events: %v", err)
	} else {
		for _, event := range events {
			w.SubmitEvent(event.ID)
		}
	}

	var commits []model.GitCommit
	err = w.db.Where("anchor_status = ? AND timestamp_tx = ''", model.AnchorStatusPending).
		Limit(100).Find(&commits).Error
	if err != nil {
		logger.Error("Failed to scan pending commits: %v", err)
	} else {
		for _, commit := range commits {
			w.SubmitCommit(commit.ID)
		}
	}
}

// ConfirmPending 轮询已提交交易的确认状态
func (w *Worker) ConfirmPending() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var events []model.TokenAllocationEvent
	err := w.db.Where("anchor_status = ? AND blockchain_tx <> ''", model.AnchorStatusPending).
		Limit(100).Find(&events).Error
	if err != nil {
		logger.Error("Failed to scan events awaiting confirmation: %v", err)
	}
	for _, event := range events {
		confirmed, err := w.adapter.Confirmed(ctx, event.BlockchainTx)
		if err != nil {
			logger.Warn("Confirmation check failed for %s: %v", event.BlockchainTx, err)
			continue
		}
		if confirmed {
			w.db.Model(&event).Update("anchor_status", model.AnchorStatusConfirmed)
		}
	}

	var commits []model.GitCommit
	err = w.db.Where("anchor_status = ? AND timestamp_tx <> ''", model.AnchorStatusPending).
		Limit(100).Find(&commits).Error
	if err != nil {
		logger.Error("Failed to scan commits awaiting confirmation: %v", err)
	}
	for _, commit := range commits {
		confirmed, err := w.adapter.Confirmed(ctx, commit.TimestampTx)
		if err != nil {
			logger.Warn("Confirmation check failed for %s: %v", commit.TimestampTx, err)
			continue
		}
		if confirmed {
			w.db.Model(&commit).Update("anchor_status", model.AnchorStatusConfirmed)
		}
	}

	var contracts []model.DeveloperContract
	err = w.db.Where("anchor_status = ? AND timestamp_tx <> ''", model.AnchorStatusPending).
		Limit(100).Find(&contracts).Error
	if err != nil {
		logger.Error("Failed to scan contracts awaiting confirmation: %v", err)
	}
	for _, contract := range contracts {
		confirmed, err := w.adapter.Confirmed(ctx, contract.TimestampTx)
		if err != nil {
			logger.Warn("Confirmation check failed for %s: %v", contract.TimestampTx, err)
			continue
		}
		if confirmed {
			w.db.Model(&contract).Update("anchor_status", model.AnchorStatusConfirmed)
		}
	}
}

// Stop 关闭协程池
func (w *Worker) Stop() {
	w.pool.Release()
}
