package tasks

import "encoding/json"

// 定义任务类型常量
const (
	// TypeNotificationDispatch 通知投递任务类型
	TypeNotificationDispatch = "notification:dispatch"
	// TypeStallSweep 周期性停滞回合扫描任务类型
	TypeStallSweep = "turn:stall_sweep"
)

// NotificationDispatchPayload 定义了通知投递任务的数据结构
type NotificationDispatchPayload struct {
	UserID   uint              `json:"user_id"`
	RoomID   uint              `json:"room_id"`
	Kind     string            `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewNotificationDispatchTask 序列化通知投递任务的 payload
func NewNotificationDispatchTask(payload NotificationDispatchPayload) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}

// NewStallSweepTask 构造停滞扫描任务的 payload。
// 扫描不信任任何调度时捕获的值, 所以 payload 为空对象。
func NewStallSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
