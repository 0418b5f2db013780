package repository

import (
	"context"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// NudgeRepository 定义了提醒台账的存储操作。
type NudgeRepository interface {
	// Insert 记录一次提醒。违反 (room, nudger, instance) 唯一约束时
	// 返回 ErrDuplicateEntry —— 这是并发下的正常结果, 不是异常。
	Insert(ctx context.Context, nudge *domain.Nudge) error

	// CountByInstance 统计指定回合收到的提醒数 (按提醒人去重)。
	// 只统计 nudgerIDs 中列出的提醒人, 已退房成员的历史提醒不计入。
	CountByInstance(ctx context.Context, roomID uint, instanceID string, nudgerIDs []uint) (int64, error)

	// HasNudged 判断某成员在指定回合是否已提醒过。
	HasNudged(ctx context.Context, roomID, userID uint, instanceID string) (bool, error)
}
