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

// GormPromptRepository 是 PromptRepository 接口的 GORM 实现
type GormPromptRepository struct {
	db *gorm.DB
}

// NewGormPromptRepository 创建 GormPromptRepository 实例
func NewGormPromptRepository(db *gorm.DB) *GormPromptRepository {
	if db == nil {
		panic("database connection cannot be nil for GormPromptRepository")
	}
	return &GormPromptRepository{db: db}
}

// CountByMode 实现统计某模式下的题库总量
func (r *GormPromptRepository) CountByMode(ctx context.Context, mode string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Prompt{}).
		Where("mode = ?", mode).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count prompts (mode: %s): %w", mode, err)
	}
	return count, nil
}

// CountUsed 实现统计某房间某模式下已消耗的题目数
func (r *GormPromptRepository) CountUsed(ctx context.Context, roomID uint, mode string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.UsedPrompt{}).
		Where("room_id = ? AND mode = ?", roomID, mode).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count used prompts (room: %d, mode: %s): %w", roomID, mode, err)
	}
	return count, nil
}

// PickUnused 实现均匀随机抽取一条未消耗的题目。
// ORDER BY RAND() 在题库规模 (百级) 下足够便宜, 且天然支持
// 多房间共用同一题库而互不干扰。
func (r *GormPromptRepository) PickUnused(ctx context.Context, roomID uint, mode string) (*domain.Prompt, error) {
	var prompt domain.Prompt
	err := r.db.WithContext(ctx).
		Where("mode = ?", mode).
		Where("id NOT IN (?)",
			r.db.Model(&domain.UsedPrompt{}).
				Select("prompt_id").
				Where("room_id = ? AND mode = ?", roomID, mode),
		).
		Order("RAND()").
		First(&prompt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrPromptNotFound
		}
		return nil, fmt.Errorf("gorm: pick unused prompt (room: %d, mode: %s): %w", roomID, mode, err)
	}
	return &prompt, nil
}

// MarkUsed 实现标记题目已消耗 (重复标记幂等)
func (r *GormPromptRepository) MarkUsed(ctx context.Context, roomID uint, mode string, promptID uint) error {
	used := domain.UsedPrompt{RoomID: roomID, Mode: mode, PromptID: promptID}
	err := r.db.WithContext(ctx).Create(&used).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			// 已被并发标记, 效果等同成功
			return nil
		}
		return fmt.Errorf("gorm: mark prompt used (room: %d, prompt: %d): %w", roomID, promptID, err)
	}
	return nil
}

// ClearUsed 实现清空某房间某模式的消耗集合
func (r *GormPromptRepository) ClearUsed(ctx context.Context, roomID uint, mode string) error {
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND mode = ?", roomID, mode).
		Delete(&domain.UsedPrompt{}).Error
	if err != nil {
		return fmt.Errorf("gorm: clear used prompts (room: %d, mode: %s): %w", roomID, mode, err)
	}
	return nil
}
