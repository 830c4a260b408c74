package ledger

import (
	"context"
	"errors"
)

// Record 锚定到账本的结构化数据
type Record map[string]interface{}

// ErrNotFound 账本中不存在对应记录
var ErrNotFound = errors.New("ledger: record not found")

// Adapter 账本适配器
// 核心不依赖具体链，任何内容寻址存储加追加日志均可满足该契约
type Adapter interface {
	// Hash 计算内容哈希
	Hash(data []byte) string

	// Anchor 将记录写入账本，返回交易引用
	Anchor(ctx context.Context, record Record) (string, error)

	// Fetch 根据交易引用取回记录
	Fetch(ctx context.Context, txRef string) (Record, error)

	// Confirmed 判断交易是否已达到确认数
	Confirmed(ctx context.Context, txRef string) (bool, error)
}
