package repository

import (
	"context"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// MessageRepository 定义了消息流的追加操作 (系统消息与答案持久化)。
// 本核心只写不读。
type MessageRepository interface {
	// Append 追加一条消息, 成功后 message.ID 被填充。
	Append(ctx context.Context, message *domain.Message) error
}
