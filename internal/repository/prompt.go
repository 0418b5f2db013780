package repository

import (
	"context"

	"github.com/spinthechat/turn-chat/internal/domain"
)

// PromptRepository 定义了题库与洗牌袋消耗集合的存储操作。
type PromptRepository interface {
	// CountByMode 返回某模式下题库的总条数。
	CountByMode(ctx context.Context, mode string) (int64, error)

	// CountUsed 返回某房间某模式下已消耗的题目数。
	CountUsed(ctx context.Context, roomID uint, mode string) (int64, error)

	// PickUnused 在某房间某模式下均匀随机抽取一条未消耗的题目。
	// 全部已消耗时返回 ErrPromptNotFound。
	PickUnused(ctx context.Context, roomID uint, mode string) (*domain.Prompt, error)

	// MarkUsed 标记题目已消耗。重复标记视为成功 (幂等)。
	MarkUsed(ctx context.Context, roomID uint, mode string, promptID uint) error

	// ClearUsed 清空某房间某模式的消耗集合 (洗牌袋重置)。
	ClearUsed(ctx context.Context, roomID uint, mode string) error
}
