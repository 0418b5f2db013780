package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/domain"
	"github.com/spinthechat/turn-chat/internal/notify"
	"github.com/spinthechat/turn-chat/internal/repository"
)

// 回合推进原因
const (
	ReasonCompleted = "completed"
	ReasonAutoSkip  = "auto_skip"
	ReasonHostSkip  = "host_skip"
)

// EngagementService 负责参与度策略: 连续未完成计数的维护,
// 以及达到阈值后的自动移除。阈值集中定义在 domain 包。
type EngagementService struct {
	memberRepo  repository.MemberRepository
	messageRepo repository.MessageRepository
	sink        notify.Sink
}

// NewEngagementService 创建 EngagementService 实例
func NewEngagementService(memberRepo repository.MemberRepository, messageRepo repository.MessageRepository, sink notify.Sink) *EngagementService {
	if memberRepo == nil {
		panic("MemberRepository cannot be nil for EngagementService")
	}
	if messageRepo == nil {
		panic("MessageRepository cannot be nil for EngagementService")
	}
	if sink == nil {
		panic("Sink cannot be nil for EngagementService")
	}
	return &EngagementService{memberRepo: memberRepo, messageRepo: messageRepo, sink: sink}
}

// OnCompleted 处理回合完成: 完成者的连续未完成计数清零。
func (s *EngagementService) OnCompleted(ctx context.Context, roomID, userID uint) error {
	if err := s.memberRepo.ResetStreak(ctx, roomID, userID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"room_id": roomID, "user_id": userID}).
			Error("Engagement: failed to reset streak")
		return ErrInternalServer
	}
	return nil
}

// OnSkipped 处理回合被跳过: 计数加一并通知被跳过的成员;
// 达到阈值时将其移出房间并写系统消息。
// 移除发生在下一位持有者查询之前, 因此成员视图立即排除该用户。
// 返回是否发生了移除。
func (s *EngagementService) OnSkipped(ctx context.Context, roomID, userID uint, reason string) (bool, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_id": userID, "reason": reason})

	streak, err := s.memberRepo.IncrementStreak(ctx, roomID, userID)
	if err != nil {
		// 成员可能刚退出房间; 没有计数可加, 也没有移除可做
		if errors.Is(err, repository.ErrNotFound) {
			logCtx.Debug("Engagement: skipped member already gone")
			return false, nil
		}
		logCtx.WithError(err).Error("Engagement: failed to increment streak")
		return false, ErrInternalServer
	}
	logCtx = logCtx.WithField("missed_streak", streak)

	// 通知属于尽力而为: 投递失败不影响状态变更
	notifyErr := s.sink.Notify(ctx, notify.Notification{
		UserID: userID,
		RoomID: roomID,
		Kind:   notify.KindTurnSkipped,
		Metadata: map[string]string{
			"reason":        reason,
			"missed_streak": fmt.Sprintf("%d", streak),
		},
	})
	if notifyErr != nil {
		logCtx.WithError(notifyErr).Warn("Engagement: failed to notify skipped member")
	}

	if streak < domain.MissedStreakRemovalThreshold {
		logCtx.Info("Engagement: turn skipped, streak incremented")
		return false, nil
	}

	// 连续未完成达到阈值: 移出房间
	if err := s.memberRepo.Remove(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return true, nil
		}
		logCtx.WithError(err).Error("Engagement: failed to remove member")
		return false, ErrInternalServer
	}
	logCtx.Info("Engagement: member removed after reaching missed-streak threshold")

	s.appendSystemMessage(ctx, roomID, fmt.Sprintf("A member was removed after missing %d turns in a row.", domain.MissedStreakRemovalThreshold), map[string]string{
		"event":   "member_removed",
		"user_id": fmt.Sprintf("%d", userID),
	})
	return true, nil
}

// appendSystemMessage 写一条系统消息 (尽力而为)
func (s *EngagementService) appendSystemMessage(ctx context.Context, roomID uint, text string, extra map[string]string) {
	payload := map[string]string{"text": text}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Engagement: failed to marshal system message")
		return
	}
	msg := &domain.Message{RoomID: roomID, AuthorID: nil, Kind: domain.MessageKindSystem, Payload: string(raw)}
	if err := s.messageRepo.Append(ctx, msg); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Engagement: failed to append system message")
	}
}
