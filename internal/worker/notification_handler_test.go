package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinthechat/turn-chat/internal/hub"
	"github.com/spinthechat/turn-chat/internal/tasks"
)

func TestNotificationDispatchHandler_ProcessTask(t *testing.T) {
	// Arrange: 带元数据的提醒通知, 目标用户不在线
	handler := NewNotificationDispatchHandler(hub.NewHub())
	payload, err := tasks.NewNotificationDispatchTask(tasks.NotificationDispatchPayload{
		UserID:   10,
		RoomID:   1,
		Kind:     "nudged_you",
		Metadata: map[string]string{"nudger_id": "20"},
	})
	require.NoError(t, err)
	task := asynq.NewTask(tasks.TypeNotificationDispatch, payload)

	// Act
	err = handler.ProcessTask(context.Background(), task)

	// Assert: 投递尽力而为, 不在线不算失败
	assert.NoError(t, err)
}

func TestNotificationDispatchHandler_CorruptPayloadSkipsRetry(t *testing.T) {
	// Arrange
	handler := NewNotificationDispatchHandler(hub.NewHub())
	task := asynq.NewTask(tasks.TypeNotificationDispatch, []byte("{not json"))

	// Act
	err := handler.ProcessTask(context.Background(), task)

	// Assert: 载荷损坏时重试无意义
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
