package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/hub"
	"github.com/spinthechat/turn-chat/internal/tasks"
)

// NotificationDispatchHandler 负责将排队的通知投递到目标用户的 WebSocket 连接
type NotificationDispatchHandler struct {
	eventHub *hub.Hub
}

// NewNotificationDispatchHandler 创建通知投递处理器
func NewNotificationDispatchHandler(eventHub *hub.Hub) *NotificationDispatchHandler {
	if eventHub == nil {
		panic("Hub cannot be nil for NotificationDispatchHandler")
	}
	return &NotificationDispatchHandler{eventHub: eventHub}
}

// ProcessTask 解析通知载荷并通过 Hub 推送
// 目标用户不在线时静默丢弃, 不触发重试
func (h *NotificationDispatchHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.NotificationDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// 载荷损坏时重试无意义
		return fmt.Errorf("failed to unmarshal notification payload: %v: %w", err, asynq.SkipRetry)
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_id": payload.RoomID,
		"user_id": payload.UserID,
		"kind":    payload.Kind,
	})

	data := map[string]string{"kind": payload.Kind}
	for k, v := range payload.Metadata {
		data[k] = v
	}

	delivered := h.eventHub.SendToUser(payload.RoomID, payload.UserID, hub.Event{
		Type:   "notification",
		RoomID: payload.RoomID,
		UserID: payload.UserID,
		Data:   data,
	})
	if delivered == 0 {
		logCtx.Debug("Notification target not connected, dropped")
	} else {
		logCtx.WithField("connections", delivered).Info("Notification delivered")
	}

	// 回合易手时广播给整个房间, 在线客户端据此刷新回合状态
	if payload.Kind == "your_turn" {
		h.eventHub.Broadcast(hub.Event{
			Type:   "turn_advanced",
			RoomID: payload.RoomID,
			UserID: payload.UserID,
			Data:   data,
		})
	}
	return nil
}
