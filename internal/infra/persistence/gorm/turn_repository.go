package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/spinthechat/turn-chat/internal/domain"
	"github.com/spinthechat/turn-chat/internal/repository"
)

// GormTurnRepository 是 TurnSessionRepository 接口的 GORM 实现。
// 所有改写都是针对会话行的单条语句: 要么带 instance_id 前提条件
// (乐观锁), 要么是 room_id 冲突时的整行覆盖 (Start)。
type GormTurnRepository struct {
	db *gorm.DB
}

// NewGormTurnRepository 创建 GormTurnRepository 实例
func NewGormTurnRepository(db *gorm.DB) *GormTurnRepository {
	if db == nil {
		panic("database connection cannot be nil for GormTurnRepository")
	}
	return &GormTurnRepository{db: db}
}

// FindActiveByRoom 实现查找房间当前激活的会话
func (r *GormTurnRepository) FindActiveByRoom(ctx context.Context, roomID uint) (*domain.TurnSession, error) {
	var session domain.TurnSession
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND active = ?", roomID, true).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, fmt.Errorf("gorm: find active session of room %d: %w", roomID, err)
	}
	return &session, nil
}

// Start 实现写入新开始的会话。
// room_id 唯一索引冲突时整行覆盖, 等价于 "停用旧会话并开始新会话"
// 的单条原子操作。
func (r *GormTurnRepository) Start(ctx context.Context, session *domain.TurnSession) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"instance_id", "holder_user_id", "prompt_text", "prompt_type",
				"cooldown_until", "all_nudged_at", "last_completed_at", "active",
				"updated_at",
			}),
		}).
		Create(session).Error
	if err != nil {
		return fmt.Errorf("gorm: start session (room: %d): %w", session.RoomID, err)
	}
	return nil
}

// CompareAndRewrite 实现以回合令牌为前提条件的会话改写。
// RowsAffected == 0 意味着读取后令牌已变化 (或会话已停用),
// 调用方被并发操作击败。
func (r *GormTurnRepository) CompareAndRewrite(ctx context.Context, expectedInstanceID string, updated *domain.TurnSession) error {
	result := r.db.WithContext(ctx).
		Model(&domain.TurnSession{}).
		Where("room_id = ? AND instance_id = ? AND active = ?", updated.RoomID, expectedInstanceID, true).
		Updates(map[string]interface{}{
			"instance_id":       updated.InstanceID,
			"holder_user_id":    updated.HolderUserID,
			"prompt_text":       updated.PromptText,
			"prompt_type":       updated.PromptType,
			"cooldown_until":    updated.CooldownUntil,
			"all_nudged_at":     updated.AllNudgedAt,
			"last_completed_at": updated.LastCompletedAt,
			"active":            updated.Active,
		})
	if result.Error != nil {
		return fmt.Errorf("gorm: rewrite session (room: %d): %w", updated.RoomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrStaleInstance
	}
	return nil
}

// StampAllNudged 实现 "全员已提醒" 时间戳的首写生效。
// WHERE all_nudged_at IS NULL 保证后到的写入者不命中任何行。
func (r *GormTurnRepository) StampAllNudged(ctx context.Context, roomID uint, instanceID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.TurnSession{}).
		Where("room_id = ? AND instance_id = ? AND active = ? AND all_nudged_at IS NULL", roomID, instanceID, true).
		UpdateColumn("all_nudged_at", at)
	if result.Error != nil {
		return false, fmt.Errorf("gorm: stamp all-nudged (room: %d): %w", roomID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListStalled 实现列出可能停滞的激活会话
func (r *GormTurnRepository) ListStalled(ctx context.Context, threshold time.Time) ([]domain.TurnSession, error) {
	var sessions []domain.TurnSession
	err := r.db.WithContext(ctx).
		Where("active = ? AND all_nudged_at IS NOT NULL AND all_nudged_at <= ?", true, threshold).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list stalled sessions: %w", err)
	}
	return sessions, nil
}
