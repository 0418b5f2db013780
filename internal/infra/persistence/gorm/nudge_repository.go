package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/spinthechat/turn-chat/internal/domain"
	"github.com/spinthechat/turn-chat/internal/repository"
)

// GormNudgeRepository 是 NudgeRepository 接口的 GORM 实现
type GormNudgeRepository struct {
	db *gorm.DB
}

// NewGormNudgeRepository 创建 GormNudgeRepository 实例
func NewGormNudgeRepository(db *gorm.DB) *GormNudgeRepository {
	if db == nil {
		panic("database connection cannot be nil for GormNudgeRepository")
	}
	return &GormNudgeRepository{db: db}
}

// Insert 实现提醒记录的插入。
// 幂等性完全交给 (room_id, nudger_user_id, instance_id) 唯一索引:
// 并发插入同一组合时数据库保证只有一个赢家, 输家拿到 1062。
func (r *GormNudgeRepository) Insert(ctx context.Context, nudge *domain.Nudge) error {
	err := r.db.WithContext(ctx).Create(nudge).Error
	if err != nil {
		// --- 唯一约束检查 (MySQL 1062) ---
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: insert nudge (room: %d, nudger: %d): %w", nudge.RoomID, nudge.NudgerUserID, err)
	}
	return nil
}

// CountByInstance 实现统计指定回合的提醒数。
// 只认 nudgerIDs 里的提醒人: 成员中途退房再有人补位时,
// 退房者留下的提醒记录不应推高计数。
func (r *GormNudgeRepository) CountByInstance(ctx context.Context, roomID uint, instanceID string, nudgerIDs []uint) (int64, error) {
	if len(nudgerIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Nudge{}).
		Where("room_id = ? AND instance_id = ? AND nudger_user_id IN ?", roomID, instanceID, nudgerIDs).
		Distinct("nudger_user_id").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count nudges (room: %d, instance: %s): %w", roomID, instanceID, err)
	}
	return count, nil
}

// HasNudged 实现判断成员在指定回合是否已提醒
func (r *GormNudgeRepository) HasNudged(ctx context.Context, roomID, userID uint, instanceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Nudge{}).
		Where("room_id = ? AND nudger_user_id = ? AND instance_id = ?", roomID, userID, instanceID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: check nudge (room: %d, user: %d): %w", roomID, userID, err)
	}
	return count > 0, nil
}
