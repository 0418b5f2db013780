package domain

import "time"

// Room 表示一个轮流答题的聊天房间。
// 房间本身由外部的房间管理服务负责创建和配置，对本核心只读。
type Room struct {
	ID              uint      `gorm:"primaryKey"`                       // 房间唯一标识符 (主键)
	Kind            string    `gorm:"size:10;not null;default:'group'"` // 房间类型: dm 或 group
	PromptMode      string    `gorm:"size:32;not null;index"`           // 当前题目模式 (如 "fun")
	CooldownMinutes int       `gorm:"not null;default:0"`               // 每轮答题冷却时长 (分钟), 只允许枚举值
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

const (
	RoomKindDM    = "dm"
	RoomKindGroup = "group"
)

// CooldownDuration 返回房间配置的冷却时长。
func (r *Room) CooldownDuration() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}
