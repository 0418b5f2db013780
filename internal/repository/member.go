package repository

import (
	"context"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// MemberRepository 定义了房间成员的存储操作。
// 注意: 轮换顺序永远是查询时派生的 (joined_at, user_id 排序),
// 绝不持久化一份固定顺序 —— 成员进出时固定顺序会失效。
type MemberRepository interface {
	// ListOrdered 返回房间的全部成员, 按 (joined_at, user_id) 稳定排序。
	ListOrdered(ctx context.Context, roomID uint) ([]domain.Member, error)

	// FindByRoomAndUser 查找某房间内的指定成员。
	// 如果不是成员, 返回 ErrMemberNotFound。
	FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*domain.Member, error)

	// Remove 将成员移出房间 (惩罚策略触发时由本核心调用)。
	Remove(ctx context.Context, roomID, userID uint) error

	// ResetStreak 将成员的连续未完成计数清零。
	ResetStreak(ctx context.Context, roomID, userID uint) error

	// IncrementStreak 将成员的连续未完成计数加一, 返回自增后的值。
	IncrementStreak(ctx context.Context, roomID, userID uint) (int, error)
}
