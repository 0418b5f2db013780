package repository

import (
	"context"
	"time"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// TurnSessionRepository 定义了回合会话的存储操作。
// 每个房间最多一行会话记录, 所有改写都以回合令牌做条件
// (compare-and-swap): WHERE room_id = ? AND instance_id = ? AND active = 1。
// 并发提交时只有一个赢家, 输家拿到 ErrStaleInstance。
type TurnSessionRepository interface {
	// FindActiveByRoom 返回房间当前激活的会话。
	// 没有激活会话时返回 ErrSessionNotFound。
	FindActiveByRoom(ctx context.Context, roomID uint) (*domain.TurnSession, error)

	// Start 写入一个新开始的会话: 房间已有会话行时原地覆盖
	// (重新激活并刷新全部回合字段), 否则插入新行。
	Start(ctx context.Context, session *domain.TurnSession) error

	// CompareAndRewrite 以 expectedInstanceID 为前提条件改写会话行,
	// 用 updated 中的回合字段 (holder/instance/prompt/cooldown/
	// all_nudged_at/last_completed_at/active) 整体替换。
	// 读取后令牌已变化或会话已停用时返回 ErrStaleInstance。
	CompareAndRewrite(ctx context.Context, expectedInstanceID string, updated *domain.TurnSession) error

	// StampAllNudged 给指定回合盖上 "全员已提醒" 时间戳。
	// 只在 all_nudged_at 仍为空时生效 (first-writer-wins),
	// 返回本次调用是否真正写入。
	StampAllNudged(ctx context.Context, roomID uint, instanceID string, at time.Time) (bool, error)

	// ListStalled 返回所有 all_nudged_at 不晚于 threshold 的激活会话,
	// 供周期扫描使用。扫描方必须在动手前重新读取会话。
	ListStalled(ctx context.Context, threshold time.Time) ([]domain.TurnSession, error)
}
