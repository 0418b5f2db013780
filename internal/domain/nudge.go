package domain

import "time"

// Nudge 记录一次 "提醒当前答题人" 事件。
// (room_id, nudger_user_id, instance_id) 上的复合唯一索引保证
// 同一回合内同一成员最多提醒一次 —— 幂等性由数据库约束保证,
// 而不是先读后写。回合令牌变化后旧行仅作审计用途保留。
type Nudge struct {
	ID           uint      `gorm:"primaryKey"`
	RoomID       uint      `gorm:"not null;uniqueIndex:idx_room_nudger_instance,priority:1"`
	NudgerUserID uint      `gorm:"not null;uniqueIndex:idx_room_nudger_instance,priority:2"`
	InstanceID   string    `gorm:"size:36;not null;uniqueIndex:idx_room_nudger_instance,priority:3"`
	NudgedUserID uint      `gorm:"not null"` // 被提醒的回合持有者
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}
