// Package notify 定义了领域层使用的通知出口 (NotificationSink)。
// 投递是 fire-and-forget: 入队或广播失败只记日志, 领域状态变更照常生效,
// 通知永远不参与原子状态转换。
package notify

import "context"

// Kind 通知类型
type Kind string

const (
	// KindYourTurn 轮到你答题了
	KindYourTurn Kind = "your_turn"
	// KindNudgedYou 有成员提醒你答题
	KindNudgedYou Kind = "nudged_you"
	// KindTurnSkipped 你的回合被跳过 (自动或房主操作)
	KindTurnSkipped Kind = "turn_skipped"
)

// Notification 一条待投递的通知
type Notification struct {
	UserID   uint              `json:"user_id"`
	RoomID   uint              `json:"room_id"`
	Kind     Kind              `json:"kind"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Sink 是通知投递的抽象。业务层只依赖这个接口,
// 生产实现把通知交给 Asynq 队列, 由 worker 负责实际投递。
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}
