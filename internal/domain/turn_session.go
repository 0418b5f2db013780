package domain

import "time"

// TurnSession 是每个房间唯一的回合记录。
// 它在 StartSession 时创建，此后每次推进都原地改写 (同一行, 新的 InstanceID)。
// room_id 上的唯一索引保证每个房间最多一行。
type TurnSession struct {
	ID              uint       `gorm:"primaryKey"`
	RoomID          uint       `gorm:"not null;uniqueIndex"`
	InstanceID      string     `gorm:"size:36;not null;index"` // 不透明回合令牌, 每次推进重新生成
	HolderUserID    uint       `gorm:"not null"`               // 当前持有回合的用户
	PromptText      string     `gorm:"type:text;not null"`
	PromptType      string     `gorm:"size:10;not null"` // text 或 photo
	CooldownUntil   *time.Time // 冷却结束时间, nil 表示无冷却
	AllNudgedAt     *time.Time `gorm:"index"` // 所有其他成员都已提醒的时间戳, 推进后清空
	LastCompletedAt *time.Time // 上一次回合推进的时间
	Active          bool       `gorm:"not null;default:true;index"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

const (
	PromptTypeText  = "text"
	PromptTypePhoto = "photo"
)

// InCooldown 判断在给定时刻回合是否仍处于冷却中。
func (s *TurnSession) InCooldown(now time.Time) bool {
	return s.CooldownUntil != nil && now.Before(*s.CooldownUntil)
}

// StalledSince 判断回合是否自 threshold 之前就已被所有成员提醒。
func (s *TurnSession) StalledSince(threshold time.Time) bool {
	return s.AllNudgedAt != nil && !s.AllNudgedAt.After(threshold)
}
