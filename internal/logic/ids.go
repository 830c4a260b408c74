package logic

import (
	"fmt"

	"github.com/google/uuid"
)

// newID 生成带实体前缀的唯一标识
func newID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
