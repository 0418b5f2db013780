package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/spinthechat/turn-chat/internal/tasks"
)

// AsynqSink 是 Sink 的生产实现: 把通知封装成 Asynq 任务入队,
// 实际投递由 worker 端的处理器完成。
type AsynqSink struct {
	client *asynq.Client
	queue  string
}

// NewAsynqSink 创建 AsynqSink 实例
func NewAsynqSink(client *asynq.Client, queue string) *AsynqSink {
	if client == nil {
		panic("Asynq client cannot be nil for AsynqSink")
	}
	if queue == "" {
		queue = "default"
	}
	return &AsynqSink{client: client, queue: queue}
}

// Notify 实现 Sink 接口
func (s *AsynqSink) Notify(ctx context.Context, n Notification) error {
	payload, err := tasks.NewNotificationDispatchTask(tasks.NotificationDispatchPayload{
		UserID:   n.UserID,
		RoomID:   n.RoomID,
		Kind:     string(n.Kind),
		Metadata: n.Metadata,
	})
	if err != nil {
		return fmt.Errorf("notify: marshal notification payload: %w", err)
	}

	task := asynq.NewTask(tasks.TypeNotificationDispatch, payload)
	info, err := s.client.EnqueueContext(ctx, task, asynq.Queue(s.queue))
	if err != nil {
		return fmt.Errorf("notify: enqueue notification task: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"task_id": info.ID,
		"user_id": n.UserID,
		"room_id": n.RoomID,
		"kind":    n.Kind,
	}).Debug("Notification task enqueued")
	return nil
}
