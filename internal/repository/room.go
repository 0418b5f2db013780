package repository

import (
	"context"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// RoomRepository 定义了房间数据的检索操作。
// 房间由外部服务管理, 本核心只读。
type RoomRepository interface {
	// FindByID 根据房间 ID 查找房间。
	// 如果房间不存在, 返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Room, error)
}
