package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/domain"
	"github.com/spinthechat/turn-chat/internal/repository"
)

// PromptBagService 实现每房间每模式的不重复抽题 (洗牌袋)。
// 建模为显式的消耗集合 + 抽完即重置, 而不是持久化一份洗好的序列:
// 多个房间共享同一题库时互不干扰, 也没有序列化顺序的并发问题。
// 切换房间模式天然只影响该模式的消耗集合 (按 room+mode 键控)。
type PromptBagService struct {
	promptRepo repository.PromptRepository
}

// NewPromptBagService 创建 PromptBagService 实例
func NewPromptBagService(promptRepo repository.PromptRepository) *PromptBagService {
	if promptRepo == nil {
		panic("PromptRepository cannot be nil for PromptBagService")
	}
	return &PromptBagService{promptRepo: promptRepo}
}

// Next 为房间抽取下一条题目。
// 题库中该模式为空时返回 ErrNoPromptsAvailable —— 这是致命配置错误,
// 绝不静默降级。消耗数量达到题库总量时先整体清空再抽 (永不枯竭)。
func (s *PromptBagService) Next(ctx context.Context, roomID uint, mode string) (*domain.Prompt, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "mode": mode})

	catalogSize, err := s.promptRepo.CountByMode(ctx, mode)
	if err != nil {
		logCtx.WithError(err).Error("PromptBag: failed to count catalog")
		return nil, ErrInternalServer
	}
	if catalogSize == 0 {
		logCtx.Error("PromptBag: no prompts configured for mode")
		return nil, ErrNoPromptsAvailable
	}

	usedCount, err := s.promptRepo.CountUsed(ctx, roomID, mode)
	if err != nil {
		logCtx.WithError(err).Error("PromptBag: failed to count used prompts")
		return nil, ErrInternalServer
	}
	if usedCount >= catalogSize {
		// 袋子空了: 整体重置, 之后允许重复上一轮抽过的题
		if err := s.promptRepo.ClearUsed(ctx, roomID, mode); err != nil {
			logCtx.WithError(err).Error("PromptBag: failed to reset bag")
			return nil, ErrInternalServer
		}
		logCtx.Info("PromptBag: bag exhausted, reshuffled")
	}

	prompt, err := s.promptRepo.PickUnused(ctx, roomID, mode)
	if errors.Is(err, repository.ErrNotFound) {
		// 计数和抽取之间被并发消耗殆尽: 重置后再抽一次
		if err := s.promptRepo.ClearUsed(ctx, roomID, mode); err != nil {
			logCtx.WithError(err).Error("PromptBag: failed to reset bag after race")
			return nil, ErrInternalServer
		}
		prompt, err = s.promptRepo.PickUnused(ctx, roomID, mode)
	}
	if err != nil {
		logCtx.WithError(err).Error("PromptBag: failed to pick prompt")
		return nil, ErrInternalServer
	}

	if err := s.promptRepo.MarkUsed(ctx, roomID, mode, prompt.ID); err != nil {
		logCtx.WithError(err).Error("PromptBag: failed to mark prompt used")
		return nil, ErrInternalServer
	}
	return prompt, nil
}
