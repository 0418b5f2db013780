package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// GormMessageRepository 是 MessageRepository 接口的 GORM 实现
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建 GormMessageRepository 实例
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Append 实现消息追加
func (r *GormMessageRepository) Append(ctx context.Context, message *domain.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("gorm: append message (room: %d, kind: %s): %w", message.RoomID, message.Kind, err)
	}
	return nil
}
