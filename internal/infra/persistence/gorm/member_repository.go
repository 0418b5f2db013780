package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/spinthechat/turn-chat/internal/domain"
	"github.com/spinthechat/turn-chat/internal/repository"
)

// GormMemberRepository 是 MemberRepository 接口的 GORM 实现
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository 创建 GormMemberRepository 实例
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMemberRepository")
	}
	return &GormMemberRepository{db: db}
}

// ListOrdered 实现按 (joined_at, user_id) 稳定排序返回房间成员。
// 顺序每次都从当前数据派生, 成员进出后下一次查询立即反映。
func (r *GormMemberRepository) ListOrdered(ctx context.Context, roomID uint) ([]domain.Member, error) {
	var members []domain.Member
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC, user_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list members of room %d: %w", roomID, err)
	}
	return members, nil
}

// FindByRoomAndUser 实现查找某房间内的指定成员
func (r *GormMemberRepository) FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*domain.Member, error) {
	var member domain.Member
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrMemberNotFound
		}
		return nil, fmt.Errorf("gorm: find member (room: %d, user: %d): %w", roomID, userID, err)
	}
	return &member, nil
}

// Remove 实现将成员移出房间
func (r *GormMemberRepository) Remove(ctx context.Context, roomID, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&domain.Member{})
	if result.Error != nil {
		return fmt.Errorf("gorm: remove member (room: %d, user: %d): %w", roomID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		// 成员可能已被并发移除, 按未找到处理
		return repository.ErrMemberNotFound
	}
	return nil
}

// ResetStreak 实现将连续未完成计数清零
func (r *GormMemberRepository) ResetStreak(ctx context.Context, roomID, userID uint) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		UpdateColumn("missed_streak", 0).Error
	if err != nil {
		return fmt.Errorf("gorm: reset streak (room: %d, user: %d): %w", roomID, userID, err)
	}
	return nil
}

// IncrementStreak 实现将连续未完成计数加一并返回新值。
// 自增本身是单条原子 UPDATE; 随后的读取只用于汇报新值。
func (r *GormMemberRepository) IncrementStreak(ctx context.Context, roomID, userID uint) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Member{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		UpdateColumn("missed_streak", gorm.Expr("missed_streak + 1"))
	if result.Error != nil {
		return 0, fmt.Errorf("gorm: increment streak (room: %d, user: %d): %w", roomID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, repository.ErrMemberNotFound
	}

	member, err := r.FindByRoomAndUser(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	return member.MissedStreak, nil
}
