package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// MemoryAdapter 内存账本适配器（开发/测试模式）
// 追加写入，记录一经锚定即不可变
type MemoryAdapter struct {
	mu      sync.RWMutex
	records map[string]Record
	seq     int64
}

// NewMemoryAdapter 创建内存账本适配器
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		records: make(map[string]Record),
	}
}

// Hash 计算内容哈希（sha256）
func (a *MemoryAdapter) Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return "0x" + hex.EncodeToString(sum[:])
}

// Anchor 追加记录，返回自增交易引用
func (a *MemoryAdapter) Anchor(ctx context.Context, record Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	txRef := fmt.Sprintf("memtx-%08d", a.seq)

	// 拷贝后存储，防止调用方后续修改穿透到账本
	stored := make(Record, len(record))
	for k, v := range record {
		stored[k] = v
	}
	a.records[txRef] = stored

	return txRef, nil
}

// Fetch 取回记录
func (a *MemoryAdapter) Fetch(ctx context.Context, txRef string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	record, ok := a.records[txRef]
	if !ok {
		return nil, ErrNotFound
	}

	out := make(Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	return out, nil
}

// Confirmed 内存账本写入即确认
func (a *MemoryAdapter) Confirmed(ctx context.Context, txRef string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	_, ok := a.records[txRef]
	if !ok {
		return false, ErrNotFound
	}
	return true, nil
}
